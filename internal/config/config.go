// Package config loads marstools settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jward/marstools/internal/scene"
)

// Config holds all marstools configuration.
type Config struct {
	// Scene database
	Database DatabaseConfig `yaml:"database"`

	// Hierarchy query settings
	Query QueryConfig `yaml:"query"`

	// Risor scripts
	Scripts ScriptsConfig `yaml:"scripts"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig locates the SQLite scene database.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// QueryConfig tunes hierarchy queries.
type QueryConfig struct {
	BodyType string `yaml:"body_type" validate:"required"` // type tag that marks model roots
}

// ScriptsConfig locates user scripts. An empty Dir means the embedded set.
type ScriptsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(".marstools", "scene.db"),
		},
		Query: QueryConfig{
			BodyType: scene.BodyType,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
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

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("MARSTOOLS_DB"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("MARSTOOLS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if dir := os.Getenv("MARSTOOLS_SCRIPTS"); dir != "" {
		c.Scripts.Dir = dir
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
