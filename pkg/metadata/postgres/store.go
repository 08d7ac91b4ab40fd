package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niooii/ocloud/pkg/metadata"
)

// Store implements metadata.Store over a pgxpool connection pool. Every
// Transaction method on Store opens and commits its own transaction;
// see transaction.go for the WithTx-scoped variant shared with callers
// that need several writes to be atomic.
type Store struct {
	pool   *pgxpool.Pool
	dsn    string
	logger *slog.Logger
}

var _ metadata.Store = (*Store)(nil)

// Open creates the connection pool and returns a ready Store. Run
// RunMigrations separately before first use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	pool, err := createConnectionPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, dsn: cfg.DSN, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	closeConnectionPool(s.pool, s.logger)
}

// Nuke drops and recreates the public schema, then re-runs every
// migration from scratch, leaving an empty database holding only the
// synthetic root sfile. Destroys all users' data; callers are expected
// to keep this off any normal request path.
func (s *Store) Nuke(ctx context.Context) error {
	if _, err := s.exec(ctx, `DROP SCHEMA public CASCADE`); err != nil {
		return mapPgError(err, "")
	}
	if _, err := s.exec(ctx, `CREATE SCHEMA public`); err != nil {
		return mapPgError(err, "")
	}
	if err := RunMigrations(s.dsn, s.logger); err != nil {
		return metadata.NewDatabaseError("failed to rebuild schema")
	}
	if s.logger != nil {
		s.logger.Warn("metadata store nuked, schema rebuilt")
	}
	return nil
}
