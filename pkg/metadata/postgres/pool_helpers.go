package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// poolConnectionAcquireTimeout bounds how long a single query waits to
// check out a connection from the pool, so a query never blocks
// indefinitely under pool exhaustion.
const poolConnectionAcquireTimeout = 10 * time.Second

// dbtx is satisfied by both Store (direct mode, each call acquiring its
// own pooled connection) and a transaction wrapper (tx mode, every call
// joining the same pgx.Tx), letting the CRUD functions in this package
// be written once against the interface instead of twice against the
// concrete types.
type dbtx interface {
	queryRow(ctx context.Context, sql string, args ...any) pgx.Row
	query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// queryRow acquires a connection, runs QueryRow, and releases the
// connection once the returned row has been scanned.
func (s *Store) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	acquireCtx, cancel := context.WithTimeout(ctx, poolConnectionAcquireTimeout)
	conn, err := s.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		return errorRow{err: err}
	}
	row := conn.QueryRow(ctx, sql, args...)
	return poolRow{row: row, conn: conn}
}

// query acquires a connection, runs Query, and releases the connection
// once the returned rows are closed.
func (s *Store) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, poolConnectionAcquireTimeout)
	conn, err := s.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		conn.Release()
		return nil, err
	}
	return poolRows{Rows: rows, conn: conn}, nil
}

// exec acquires a connection, runs Exec, and releases the connection
// before returning.
func (s *Store) exec(ctx context.Context, sql string, args ...any) (int64, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, poolConnectionAcquireTimeout)
	conn, err := s.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		return 0, err
	}
	defer conn.Release()
	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) beginTx(ctx context.Context) (pgx.Tx, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, poolConnectionAcquireTimeout)
	defer cancel()
	return s.pool.BeginTx(acquireCtx, pgx.TxOptions{})
}

// errorRow is a pgx.Row that always returns a fixed acquire error.
type errorRow struct {
	err error
}

func (r errorRow) Scan(dest ...any) error {
	return r.err
}

// poolRow releases its connection once Scan has run.
type poolRow struct {
	row  pgx.Row
	conn *pgxpool.Conn
}

func (r poolRow) Scan(dest ...any) error {
	defer r.conn.Release()
	return r.row.Scan(dest...)
}

// poolRows releases its connection when the caller closes the rows.
type poolRows struct {
	pgx.Rows
	conn *pgxpool.Conn
}

func (r poolRows) Close() {
	r.Rows.Close()
	r.conn.Release()
}
