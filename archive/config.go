package archive

// Config holds archive initialization parameters.
type Config struct {
	Path string `json:"path,omitempty"` // Transcript directory; empty disables archiving.
}

// DefaultConfig returns the default archive configuration (disabled).
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
}

// NewStore creates a Store from configuration. Returns nil when Path is
// empty, indicating archiving is disabled.
func NewStore(cfg *Config) (Store, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	return NewFileStore(cfg.Path), nil
}
