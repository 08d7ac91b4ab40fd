package postgres

import (
	"context"

	"github.com/niooii/ocloud/pkg/metadata"
)

func insertSession(ctx context.Context, db dbtx, s *metadata.Session) error {
	_, err := db.exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at, accessed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt, s.AccessedAt)
	if err != nil {
		return mapPgError(err, "")
	}
	return nil
}

func getSession(ctx context.Context, db dbtx, id string) (*metadata.Session, error) {
	row := db.queryRow(ctx, `
		SELECT id, user_id, created_at, expires_at, accessed_at
		FROM sessions WHERE id = $1`, id)
	var s metadata.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.AccessedAt); err != nil {
		return nil, mapPgError(err, "")
	}
	return &s, nil
}

func touchSession(ctx context.Context, db dbtx, id string) error {
	_, err := db.exec(ctx, `UPDATE sessions SET accessed_at = now() WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err, "")
	}
	return nil
}

func deleteSession(ctx context.Context, db dbtx, id string) error {
	_, err := db.exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err, "")
	}
	return nil
}

func (s *Store) InsertSession(ctx context.Context, sess *metadata.Session) error {
	return insertSession(ctx, s, sess)
}
func (s *Store) GetSession(ctx context.Context, id string) (*metadata.Session, error) {
	return getSession(ctx, s, id)
}
func (s *Store) TouchSession(ctx context.Context, id string) error {
	return touchSession(ctx, s, id)
}
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return deleteSession(ctx, s, id)
}

func (t *postgresTransaction) InsertSession(ctx context.Context, sess *metadata.Session) error {
	return insertSession(ctx, t, sess)
}
func (t *postgresTransaction) GetSession(ctx context.Context, id string) (*metadata.Session, error) {
	return getSession(ctx, t, id)
}
func (t *postgresTransaction) TouchSession(ctx context.Context, id string) error {
	return touchSession(ctx, t, id)
}
func (t *postgresTransaction) DeleteSession(ctx context.Context, id string) error {
	return deleteSession(ctx, t, id)
}
