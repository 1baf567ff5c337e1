// Package config loads and validates the baserepo configuration.
//
// Configuration sources, in order of precedence:
//
//  1. Environment variables (BASEREPO_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store and versioning backends follow the type-plus-section pattern: the
// Type field selects the implementation and only the matching type-specific
// section is decoded (see factories.go).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete baserepo configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Store selects and configures the metadata store
	Store StoreConfig `mapstructure:"store"`

	// Versioning selects and configures the physical content backend
	Versioning VersioningConfig `mapstructure:"versioning"`

	// Auth configures how caller identities are interpreted
	Auth AuthConfig `mapstructure:"auth"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is "text" or "json"
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is "stdout", "stderr" or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// StoreConfig selects the metadata store implementation.
type StoreConfig struct {
	// Type is "memory" or "badger"
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger holds BadgerDB-specific settings, used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// VersioningConfig selects the physical content backend.
type VersioningConfig struct {
	// Type is "none" (direct filesystem writes) or "s3"
	Type string `mapstructure:"type" validate:"required,oneof=none s3"`

	// None holds filesystem settings, used when Type = "none"
	None map[string]any `mapstructure:"none"`

	// S3 holds S3 settings, used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// AuthConfig configures identity interpretation.
type AuthConfig struct {
	// AdministratorRole is the authority name that grants global
	// administrator status
	AdministratorRole string `mapstructure:"administrator_role" validate:"required"`
}

// Load reads the configuration from the given file path. A missing file is
// not an error: defaults plus environment variables still produce a valid
// configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BASEREPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(underlying(err)) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// underlying unwraps viper's pathError wrapping so a plain missing file is
// distinguishable from a malformed one.
func underlying(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}
