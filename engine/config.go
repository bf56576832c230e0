package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/storyrelay/relay/archive"
	"github.com/storyrelay/relay/generate/providers"
	"github.com/storyrelay/relay/session"
)

const defaultObserver = "slog"

// Config holds initialization parameters for all engine subsystems. Each
// subsystem section delegates to that subsystem's config-driven
// constructor.
type Config struct {
	Session   session.Config   `json:"session"`
	Archive   archive.Config   `json:"archive"`
	Providers providers.Config `json:"providers"`
	// Observer names an entry in the observability registry.
	Observer string `json:"observer,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for all
// subsystems.
func DefaultConfig() Config {
	return Config{
		Session:   session.DefaultConfig(),
		Archive:   archive.DefaultConfig(),
		Providers: providers.DefaultConfig(),
		Observer:  defaultObserver,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Session.Merge(&source.Session)
	c.Archive.Merge(&source.Archive)
	c.Providers.Merge(&source.Providers)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and
// returns the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
