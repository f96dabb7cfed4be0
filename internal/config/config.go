// Package config holds featherlog's unified configuration: the backing
// database, the fixpoint engine limits, and logging toggles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all featherlog configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Backing SQLite database
	Database DatabaseConfig `yaml:"database"`

	// Fixpoint engine limits
	Engine EngineConfig `yaml:"engine"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the backing SQLite database.
type DatabaseConfig struct {
	Path          string `yaml:"path"`            // file path or ":memory:"
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"` // PRAGMA busy_timeout
}

// EngineConfig configures the fixpoint driver.
type EngineConfig struct {
	// MaxPasses bounds a Run call so a mis-specified rule set cannot loop
	// forever. Convergence is still detected via zero new rows per pass.
	MaxPasses int `yaml:"max_passes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "featherlog",
		Version: "0.1.0",
		Database: DatabaseConfig{
			Path:          ".featherlog/featherlog.db",
			BusyTimeoutMS: 5000,
		},
		Engine: EngineConfig{
			MaxPasses: 1000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// Load reads a config file, applies defaults for missing fields, then
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config to the given path as yaml.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets the environment take precedence over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FEATHERLOG_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("FEATHERLOG_MAX_PASSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.MaxPasses = n
		}
	}
	if v := os.Getenv("FEATHERLOG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FEATHERLOG_DEBUG"); v != "" {
		c.Logging.DebugMode = v == "1" || v == "true"
	}
}

// Validate checks the configuration for usability.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Engine.MaxPasses <= 0 {
		return fmt.Errorf("engine.max_passes must be positive, got %d", c.Engine.MaxPasses)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}
