package session

// Config holds session store initialization parameters. Currently empty —
// serves as an extension point for networked store backends.
type Config struct{}

// DefaultConfig returns the default session store configuration.
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {}

// NewStore creates a Store from configuration. Currently returns an
// in-memory store.
func NewStore(cfg *Config) (Store, error) {
	return NewMemoryStore(), nil
}
