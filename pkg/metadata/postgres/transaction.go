package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/niooii/ocloud/pkg/metadata"
)

// maxTransactionRetries bounds how many times WithTx retries a
// transaction that failed on a serialization conflict or deadlock.
const maxTransactionRetries = 3

// postgresTransaction adapts a pgx.Tx to metadata.Transaction via the
// dbtx interface, so the CRUD functions in this package are written
// once and serve both "join caller's tx" (postgresTransaction) and
// "open my own tx per call" (Store) call shapes.
type postgresTransaction struct {
	store *Store
	tx    pgx.Tx
}

func (t *postgresTransaction) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *postgresTransaction) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *postgresTransaction) exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ dbtx = (*postgresTransaction)(nil)
var _ dbtx = (*Store)(nil)

// WithTx runs fn against a fresh transaction, retrying with backoff on
// a retryable SQLSTATE up to maxTransactionRetries times.
func (s *Store) WithTx(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	var lastErr error

	for attempt := 0; attempt <= maxTransactionRetries; attempt++ {
		tx, err := s.beginTx(ctx)
		if err != nil {
			return mapPgError(err, "")
		}

		ptx := &postgresTransaction{store: s, tx: tx}
		fnErr := func() error {
			defer func() {
				if p := recover(); p != nil {
					_ = tx.Rollback(ctx)
					panic(p)
				}
			}()
			return fn(ptx)
		}()

		if fnErr != nil {
			_ = tx.Rollback(ctx)
			if isRetryableError(fnErr) || isMappedConflict(fnErr) {
				lastErr = fnErr
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			return fnErr
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryableError(err) {
				lastErr = err
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			return mapPgError(err, "")
		}

		return nil
	}

	if se, ok := lastErr.(*metadata.StoreError); ok {
		return se
	}
	return mapPgError(lastErr, "")
}

// isMappedConflict reports whether err is the StoreError mapPgErrorCode
// builds for SQLSTATE 40001/40P01, so a conflict that a CRUD helper
// already mapped inside the WithTx closure is still retried.
func isMappedConflict(err error) bool {
	se, ok := err.(*metadata.StoreError)
	return ok && se.Code == metadata.ErrDatabase && se.Message == "transaction conflict, retry"
}
