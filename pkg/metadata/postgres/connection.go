// Package postgres implements metadata.Store on top of PostgreSQL via
// pgx and pgxpool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the connection pool.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxConns bounds the pool size. ApplyDefaults turns zero into 10.
	MaxConns int32
	// MinConns keeps this many connections warm.
	MinConns int32
	// MaxConnLifetime recycles connections older than this.
	MaxConnLifetime time.Duration
	// MaxConnIdleTime closes idle connections older than this.
	MaxConnIdleTime time.Duration
	// HealthCheckPeriod is how often pgxpool pings idle connections.
	HealthCheckPeriod time.Duration
	// StatementTimeout sets the session-level statement_timeout, if
	// non-zero.
	StatementTimeout time.Duration
}

// ApplyDefaults fills zero-valued fields with sane operational
// defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
}

// Validate reports whether the config has the minimum required fields.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("postgres: DSN is required")
	}
	return nil
}

func createConnectionPool(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	if cfg.StatementTimeout > 0 {
		poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if logger != nil {
		logger.Info("postgres pool ready", "max_conns", poolCfg.MaxConns, "min_conns", poolCfg.MinConns)
	}

	return pool, nil
}

func closeConnectionPool(pool *pgxpool.Pool, logger *slog.Logger) {
	pool.Close()
	if logger != nil {
		logger.Info("postgres pool closed")
	}
}
