package postgres

import (
	"context"

	"github.com/niooii/ocloud/pkg/metadata"
)

func getMediaByHash(ctx context.Context, db dbtx, hash string) (*metadata.Media, error) {
	row := db.queryRow(ctx, `
		SELECT id, file_hash, file_size, uploaded_time, accessed_time, expiring_time
		FROM media WHERE file_hash = $1`, hash)
	return scanMedia(row)
}

func getMediaByID(ctx context.Context, db dbtx, id int64) (*metadata.Media, error) {
	row := db.queryRow(ctx, `
		SELECT id, file_hash, file_size, uploaded_time, accessed_time, expiring_time
		FROM media WHERE id = $1`, id)
	return scanMedia(row)
}

func insertMedia(ctx context.Context, db dbtx, m *metadata.Media) (*metadata.Media, error) {
	row := db.queryRow(ctx, `
		INSERT INTO media (file_hash, file_size, uploaded_time, accessed_time, expiring_time)
		VALUES ($1, $2, now(), now(), $3)
		RETURNING id, file_hash, file_size, uploaded_time, accessed_time, expiring_time`,
		m.Hash, m.Size, m.ExpiringAt)
	created, err := scanMedia(row)
	if err != nil {
		return nil, mapPgError(err, "")
	}
	return created, nil
}

func deleteMedia(ctx context.Context, db dbtx, id int64) (*metadata.Media, error) {
	row := db.queryRow(ctx, `
		DELETE FROM media WHERE id = $1
		RETURNING id, file_hash, file_size, uploaded_time, accessed_time, expiring_time`, id)
	deleted, err := scanMedia(row)
	if err != nil {
		return nil, mapPgError(err, "")
	}
	return deleted, nil
}

func hasSFilesReferencingMedia(ctx context.Context, db dbtx, mediaID int64) (bool, error) {
	row := db.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sfiles WHERE media_id = $1)`, mediaID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, mapPgError(err, "")
	}
	return exists, nil
}

func scanMedia(row interface{ Scan(dest ...any) error }) (*metadata.Media, error) {
	var m metadata.Media
	if err := row.Scan(&m.ID, &m.Hash, &m.Size, &m.UploadedAt, &m.AccessedAt, &m.ExpiringAt); err != nil {
		return nil, mapPgError(err, "")
	}
	return &m, nil
}

func (s *Store) GetMediaByHash(ctx context.Context, hash string) (*metadata.Media, error) {
	return getMediaByHash(ctx, s, hash)
}
func (s *Store) GetMediaByID(ctx context.Context, id int64) (*metadata.Media, error) {
	return getMediaByID(ctx, s, id)
}
func (s *Store) InsertMedia(ctx context.Context, m *metadata.Media) (*metadata.Media, error) {
	return insertMedia(ctx, s, m)
}
func (s *Store) DeleteMedia(ctx context.Context, id int64) (*metadata.Media, error) {
	return deleteMedia(ctx, s, id)
}
func (s *Store) HasSFilesReferencingMedia(ctx context.Context, mediaID int64) (bool, error) {
	return hasSFilesReferencingMedia(ctx, s, mediaID)
}

func (t *postgresTransaction) GetMediaByHash(ctx context.Context, hash string) (*metadata.Media, error) {
	return getMediaByHash(ctx, t, hash)
}
func (t *postgresTransaction) GetMediaByID(ctx context.Context, id int64) (*metadata.Media, error) {
	return getMediaByID(ctx, t, id)
}
func (t *postgresTransaction) InsertMedia(ctx context.Context, m *metadata.Media) (*metadata.Media, error) {
	return insertMedia(ctx, t, m)
}
func (t *postgresTransaction) DeleteMedia(ctx context.Context, id int64) (*metadata.Media, error) {
	return deleteMedia(ctx, t, id)
}
func (t *postgresTransaction) HasSFilesReferencingMedia(ctx context.Context, mediaID int64) (bool, error) {
	return hasSFilesReferencingMedia(ctx, t, mediaID)
}
