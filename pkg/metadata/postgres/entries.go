package postgres

import (
	"context"

	"github.com/niooii/ocloud/pkg/metadata"
)

func getEntry(ctx context.Context, db dbtx, parentID int64, filename string, userID int64) (*metadata.Entry, error) {
	row := db.queryRow(ctx, `
		SELECT id, parent_id, child_id, filename, user_id
		FROM entries WHERE parent_id = $1 AND filename = $2 AND user_id = $3`,
		parentID, filename, userID)
	return scanEntry(row)
}

func insertEntry(ctx context.Context, db dbtx, e *metadata.Entry) (*metadata.Entry, error) {
	row := db.queryRow(ctx, `
		INSERT INTO entries (parent_id, child_id, filename, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, parent_id, child_id, filename, user_id`,
		e.ParentID, e.ChildID, e.Filename, e.UserID)
	created, err := scanEntry(row)
	if err != nil {
		return nil, mapPgError(err, e.Filename)
	}
	return created, nil
}

func listEntries(ctx context.Context, db dbtx, parentID int64, userID int64) ([]metadata.Entry, error) {
	rows, err := db.query(ctx, `
		SELECT id, parent_id, child_id, filename, user_id
		FROM entries WHERE parent_id = $1 AND user_id = $2
		ORDER BY filename`, parentID, userID)
	if err != nil {
		return nil, mapPgError(err, "")
	}
	defer rows.Close()

	var out []metadata.Entry
	for rows.Next() {
		var e metadata.Entry
		if err := rows.Scan(&e.ID, &e.ParentID, &e.ChildID, &e.Filename, &e.UserID); err != nil {
			return nil, mapPgError(err, "")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "")
	}
	return out, nil
}

func deleteEntryByChild(ctx context.Context, db dbtx, childID int64, userID int64) (*metadata.Entry, error) {
	row := db.queryRow(ctx, `
		DELETE FROM entries WHERE child_id = $1 AND user_id = $2
		RETURNING id, parent_id, child_id, filename, user_id`, childID, userID)
	deleted, err := scanEntry(row)
	if err != nil {
		return nil, mapPgError(err, "")
	}
	return deleted, nil
}

func updateEntryLocation(ctx context.Context, db dbtx, childID int64, newParentID int64, newFilename string, userID int64) error {
	n, err := db.exec(ctx, `
		UPDATE entries SET parent_id = $2, filename = $3
		WHERE child_id = $1 AND user_id = $4`,
		childID, newParentID, newFilename, userID)
	if err != nil {
		return mapPgError(err, newFilename)
	}
	if n == 0 {
		return metadata.NewPathDoesntExistError("")
	}
	return nil
}

func scanEntry(row interface{ Scan(dest ...any) error }) (*metadata.Entry, error) {
	var e metadata.Entry
	if err := row.Scan(&e.ID, &e.ParentID, &e.ChildID, &e.Filename, &e.UserID); err != nil {
		return nil, mapPgError(err, "")
	}
	return &e, nil
}

func (s *Store) GetEntry(ctx context.Context, parentID int64, filename string, userID int64) (*metadata.Entry, error) {
	return getEntry(ctx, s, parentID, filename, userID)
}
func (s *Store) InsertEntry(ctx context.Context, e *metadata.Entry) (*metadata.Entry, error) {
	return insertEntry(ctx, s, e)
}
func (s *Store) ListEntries(ctx context.Context, parentID int64, userID int64) ([]metadata.Entry, error) {
	return listEntries(ctx, s, parentID, userID)
}
func (s *Store) DeleteEntryByChild(ctx context.Context, childID int64, userID int64) (*metadata.Entry, error) {
	return deleteEntryByChild(ctx, s, childID, userID)
}
func (s *Store) UpdateEntryLocation(ctx context.Context, childID int64, newParentID int64, newFilename string, userID int64) error {
	return updateEntryLocation(ctx, s, childID, newParentID, newFilename, userID)
}

func (t *postgresTransaction) GetEntry(ctx context.Context, parentID int64, filename string, userID int64) (*metadata.Entry, error) {
	return getEntry(ctx, t, parentID, filename, userID)
}
func (t *postgresTransaction) InsertEntry(ctx context.Context, e *metadata.Entry) (*metadata.Entry, error) {
	return insertEntry(ctx, t, e)
}
func (t *postgresTransaction) ListEntries(ctx context.Context, parentID int64, userID int64) ([]metadata.Entry, error) {
	return listEntries(ctx, t, parentID, userID)
}
func (t *postgresTransaction) DeleteEntryByChild(ctx context.Context, childID int64, userID int64) (*metadata.Entry, error) {
	return deleteEntryByChild(ctx, t, childID, userID)
}
func (t *postgresTransaction) UpdateEntryLocation(ctx context.Context, childID int64, newParentID int64, newFilename string, userID int64) error {
	return updateEntryLocation(ctx, t, childID, newParentID, newFilename, userID)
}
