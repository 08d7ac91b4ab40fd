package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/niooii/ocloud/pkg/metadata"
)

// mapPgError classifies a raw pgx/pgconn error into a metadata.StoreError,
// per the taxonomy in the error handling design: unique-violation maps
// to PathAlreadyExists, foreign-key and check violations map to domain
// codes, and everything else collapses to an opaque database or I/O
// error so no SQL fragment reaches a caller.
func mapPgError(err error, path string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return metadata.NewPathDoesntExistError(path)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgErrorCode(pgErr, path)
	}

	return metadata.NewIOError(err.Error())
}

func mapPgErrorCode(pgErr *pgconn.PgError, path string) error {
	switch pgErr.Code {
	case "23505": // unique_violation
		return metadata.NewPathAlreadyExistsError(path)
	case "23503": // foreign_key_violation
		return metadata.NewPathDoesntExistError(path)
	case "23514": // check_violation
		return metadata.NewValidationError(pgErr.Message)
	case "23502": // not_null_violation
		return metadata.NewValidationError("missing required field: " + pgErr.ColumnName)
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return metadata.NewDatabaseError("transaction conflict, retry")
	case "53100", "53200": // disk_full, out_of_memory
		return metadata.NewIOError("storage exhausted")
	case "57014": // query_canceled
		return metadata.NewIOError("query canceled")
	default:
		if strings.HasPrefix(string(pgErr.Code), "08") { // connection exceptions
			return metadata.NewIOError("connection error")
		}
		return metadata.NewDatabaseError(pgErr.Message)
	}
}

// isRetryableError reports whether err is a transaction-level conflict
// that should be retried with a fresh transaction.
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
