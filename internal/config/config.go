// Package config defines the core's typed configuration surface: the
// database connection, blob root, session lifetime and logging
// settings needed to construct a vault.Vault. The CLI front end's own
// flag/env-resolution layer is out of scope; this package only loads
// an optional file overlay via viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete set of settings needed to construct the
// core's components.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Blob     BlobConfig     `mapstructure:"blob" yaml:"blob"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// DatabaseConfig configures the PostgreSQL metadata store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
}

// BlobConfig configures the content-addressed blob store.
type BlobConfig struct {
	// Root is the local filesystem base directory for the fs backend.
	Root string `mapstructure:"root" yaml:"root"`

	// Backend selects "fs" or "s3".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// S3Bucket/S3Region are used when Backend == "s3".
	S3Bucket string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Region string `mapstructure:"s3_region" yaml:"s3_region"`
}

// SessionConfig configures session lifetime.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns operationally sane defaults: 24h sessions, local fs
// blob backend, info-level text logging.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			MaxConns:        10,
			MaxConnLifetime: time.Hour,
		},
		Blob: BlobConfig{
			Root:    "./data/blobs",
			Backend: "fs",
		},
		Session: SessionConfig{
			TTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// Load builds the configuration by overlaying, in order: Default(), an
// optional YAML file at path, and OCLOUD_-prefixed environment
// variables (OCLOUD_DATABASE_DSN overrides database.dsn). A missing
// file is not an error; path == "" skips the file read entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("OCLOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults must be registered for AutomaticEnv to surface env-only
	// keys through Unmarshal.
	v.SetDefault("database.dsn", cfg.Database.DSN)
	v.SetDefault("database.max_conns", cfg.Database.MaxConns)
	v.SetDefault("database.min_conns", cfg.Database.MinConns)
	v.SetDefault("database.max_conn_lifetime", cfg.Database.MaxConnLifetime)
	v.SetDefault("blob.root", cfg.Blob.Root)
	v.SetDefault("blob.backend", cfg.Blob.Backend)
	v.SetDefault("blob.s3_bucket", cfg.Blob.S3Bucket)
	v.SetDefault("blob.s3_region", cfg.Blob.S3Region)
	v.SetDefault("session.ttl", cfg.Session.TTL)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
