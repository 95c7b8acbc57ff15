// Package config provides configuration for the tenantkit schema management
// system.
//
// Configuration is resolved from an optional YAML file and TENANTKIT_*
// environment variables, with programmatic defaults. Only deployment-level
// knobs live here; behavior options are plain Go APIs on the components
// themselves.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// TENANTKIT_DATABASE_URL.
const EnvPrefix = "TENANTKIT"

// Config holds deployment configuration.
type Config struct {
	// DatabaseURL is the PostgreSQL connection URL.
	DatabaseURL string `mapstructure:"database_url"`

	// MigrationsDir is the directory holding tenant migration files
	// (NNNNNNNNNN_description.{up,down}.sql).
	MigrationsDir string `mapstructure:"migrations_dir"`

	// IgnoredTables are tables the introspector excludes from listings,
	// in addition to the migrations bookkeeping table.
	IgnoredTables []string `mapstructure:"ignored_tables"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MigrationsDir: "./migrations",
	}
}

// Load resolves configuration from the given file (optional, pass "" to
// skip), the environment and defaults, in that order of precedence.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("database_url", defaults.DatabaseURL)
	v.SetDefault("migrations_dir", defaults.MigrationsDir)
	v.SetDefault("ignored_tables", defaults.IgnoredTables)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is not set")
	}
	return nil
}
