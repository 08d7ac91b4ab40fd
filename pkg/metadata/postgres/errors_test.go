package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/niooii/ocloud/pkg/metadata"
)

func TestMapPgErrorCode(t *testing.T) {
	cases := []struct {
		name string
		code string
		want metadata.ErrorCode
	}{
		{"unique violation", "23505", metadata.ErrPathAlreadyExists},
		{"foreign key violation", "23503", metadata.ErrPathDoesntExist},
		{"check violation", "23514", metadata.ErrValidation},
		{"not null violation", "23502", metadata.ErrValidation},
		{"serialization failure", "40001", metadata.ErrDatabase},
		{"deadlock", "40P01", metadata.ErrDatabase},
		{"disk full", "53100", metadata.ErrIO},
		{"query canceled", "57014", metadata.ErrIO},
		{"connection exception", "08006", metadata.ErrIO},
		{"unrecognized", "99999", metadata.ErrDatabase},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tc.code, Message: "boom"}
			err := mapPgErrorCode(pgErr, "root/a.txt")
			se, ok := err.(*metadata.StoreError)
			if assert.True(t, ok) {
				assert.Equal(t, tc.want, se.Code)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryableError(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isRetryableError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryableError(assert.AnError))
}
