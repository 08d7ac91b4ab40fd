package postgres

import (
	"context"

	"github.com/niooii/ocloud/pkg/metadata"
)

func getSFile(ctx context.Context, db dbtx, id int64) (*metadata.SFile, error) {
	row := db.queryRow(ctx, `
		SELECT id, is_dir, media_id, is_public, user_id, created_at, modified_at
		FROM sfiles WHERE id = $1`, id)
	return scanSFile(row)
}

func insertSFile(ctx context.Context, db dbtx, sf *metadata.SFile) (*metadata.SFile, error) {
	row := db.queryRow(ctx, `
		INSERT INTO sfiles (is_dir, media_id, is_public, user_id, created_at, modified_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, is_dir, media_id, is_public, user_id, created_at, modified_at`,
		sf.IsDir, sf.MediaID, sf.IsPublic, sf.UserID)
	created, err := scanSFile(row)
	if err != nil {
		return nil, mapPgError(err, "")
	}
	return created, nil
}

func setSFileVisibility(ctx context.Context, db dbtx, id int64, public bool) error {
	n, err := db.exec(ctx, `UPDATE sfiles SET is_public = $2, modified_at = now() WHERE id = $1`, id, public)
	if err != nil {
		return mapPgError(err, "")
	}
	if n == 0 {
		return metadata.NewPathDoesntExistError("")
	}
	return nil
}

func deleteSFile(ctx context.Context, db dbtx, id int64) error {
	_, err := db.exec(ctx, `DELETE FROM sfiles WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err, "")
	}
	return nil
}

func scanSFile(row interface{ Scan(dest ...any) error }) (*metadata.SFile, error) {
	var sf metadata.SFile
	if err := row.Scan(&sf.ID, &sf.IsDir, &sf.MediaID, &sf.IsPublic, &sf.UserID, &sf.CreatedAt, &sf.ModifiedAt); err != nil {
		return nil, mapPgError(err, "")
	}
	return &sf, nil
}

func (s *Store) GetSFile(ctx context.Context, id int64) (*metadata.SFile, error) {
	return getSFile(ctx, s, id)
}
func (s *Store) InsertSFile(ctx context.Context, sf *metadata.SFile) (*metadata.SFile, error) {
	return insertSFile(ctx, s, sf)
}
func (s *Store) SetSFileVisibility(ctx context.Context, id int64, public bool) error {
	return setSFileVisibility(ctx, s, id, public)
}
func (s *Store) DeleteSFile(ctx context.Context, id int64) error {
	return deleteSFile(ctx, s, id)
}

func (t *postgresTransaction) GetSFile(ctx context.Context, id int64) (*metadata.SFile, error) {
	return getSFile(ctx, t, id)
}
func (t *postgresTransaction) InsertSFile(ctx context.Context, sf *metadata.SFile) (*metadata.SFile, error) {
	return insertSFile(ctx, t, sf)
}
func (t *postgresTransaction) SetSFileVisibility(ctx context.Context, id int64, public bool) error {
	return setSFileVisibility(ctx, t, id, public)
}
func (t *postgresTransaction) DeleteSFile(ctx context.Context, id int64) error {
	return deleteSFile(ctx, t, id)
}
