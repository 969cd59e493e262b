// Package config loads and validates the settings that back a pool.Options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PoolConfig represents everything a pool.Options needs as configuration,
// plus the driver settings needed to build a PhysicalFactory.
type PoolConfig struct {
	Database ConnectionPool `yaml:"connection_pool"`
	Driver   DriverConfig   `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ConnectionPool mirrors the tunables exposed on pool.Options.
type ConnectionPool struct {
	PoolSize                 int  `yaml:"pool_size"`
	ConnectionTimeoutMS      int  `yaml:"connection_timeout_ms"`
	IdleTimeoutMS            int  `yaml:"idle_timeout_ms"`
	MaxLifetimeMS            int  `yaml:"max_lifetime_ms"`
	ValidationTimeoutMS      int  `yaml:"validation_timeout_ms"`
	ThrowOnConnectionTimeout bool `yaml:"throw_on_connection_timeout"`
	ValidateOnCheckout       bool `yaml:"validate_on_checkout"`
}

// DriverConfig names the PhysicalFactory to construct.
type DriverConfig struct {
	Driver string `yaml:"driver"` // sqlite | mysql | mock
	DSN    string `yaml:"dsn"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the baseline pool configuration new deployments
// start from.
func DefaultConfig() *PoolConfig {
	return &PoolConfig{
		Database: ConnectionPool{
			PoolSize:                 10,
			ConnectionTimeoutMS:      30_000,
			IdleTimeoutMS:            600_000,
			MaxLifetimeMS:            1_800_000,
			ValidationTimeoutMS:      5_000,
			ThrowOnConnectionTimeout: false,
			ValidateOnCheckout:       false,
		},
		Driver: DriverConfig{
			Driver: "sqlite",
			DSN:    "./pool.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from an optional YAML file, then applies
// environment variable overrides, then validates.
func LoadConfig(configPath string) (*PoolConfig, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *PoolConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies CONNPOOL_-prefixed environment overrides.
func applyEnvOverrides(cfg *PoolConfig) {
	if v := os.Getenv("CONNPOOL_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.PoolSize = n
		}
	}
	if v := os.Getenv("CONNPOOL_CONNECTION_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.ConnectionTimeoutMS = n
		}
	}
	if v := os.Getenv("CONNPOOL_IDLE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.IdleTimeoutMS = n
		}
	}
	if v := os.Getenv("CONNPOOL_MAX_LIFETIME_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxLifetimeMS = n
		}
	}
	if v := os.Getenv("CONNPOOL_DRIVER"); v != "" {
		cfg.Driver.Driver = v
	}
	if v := os.Getenv("CONNPOOL_DSN"); v != "" {
		cfg.Driver.DSN = v
	}
	if v := os.Getenv("CONNPOOL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CONNPOOL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks the loaded configuration for internal consistency. A
// sub-second validation timeout (values under 1000ms) is rounded up to
// one second rather than rejected.
func (c *PoolConfig) Validate() error {
	if c.Database.PoolSize < 0 {
		return fmt.Errorf("pool_size cannot be negative")
	}
	if c.Database.IdleTimeoutMS <= 0 {
		return fmt.Errorf("idle_timeout_ms must be positive")
	}
	if c.Database.MaxLifetimeMS <= 0 {
		return fmt.Errorf("max_lifetime_ms must be positive")
	}
	if c.Database.ValidationTimeoutMS > 0 && c.Database.ValidationTimeoutMS < 1000 {
		c.Database.ValidationTimeoutMS = 1000
	}
	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Driver.Driver {
	case "sqlite", "mysql", "mock", "":
	default:
		return fmt.Errorf("unsupported driver: %s", c.Driver.Driver)
	}
	return nil
}

func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// String renders a summary suitable for a startup log line.
func (c *PoolConfig) String() string {
	return fmt.Sprintf("PoolConfig{PoolSize: %d, Driver: %s, IdleTimeoutMS: %d, MaxLifetimeMS: %d}",
		c.Database.PoolSize, c.Driver.Driver, c.Database.IdleTimeoutMS, c.Database.MaxLifetimeMS)
}
