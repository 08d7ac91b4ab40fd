package postgres

import (
	"context"

	"github.com/niooii/ocloud/pkg/metadata"
)

func getOrCreateResource(ctx context.Context, db dbtx, resourceType string, targetID int64) (*metadata.Resource, error) {
	row := db.queryRow(ctx, `
		SELECT id, resource_type, target_id FROM resources
		WHERE resource_type = $1 AND target_id = $2`, resourceType, targetID)
	var r metadata.Resource
	err := row.Scan(&r.ID, &r.Type, &r.TargetID)
	if err == nil {
		return &r, nil
	}

	row = db.queryRow(ctx, `
		INSERT INTO resources (resource_type, target_id) VALUES ($1, $2)
		ON CONFLICT (resource_type, target_id) DO UPDATE SET resource_type = EXCLUDED.resource_type
		RETURNING id, resource_type, target_id`, resourceType, targetID)
	if err := row.Scan(&r.ID, &r.Type, &r.TargetID); err != nil {
		return nil, mapPgError(err, "")
	}
	return &r, nil
}

func insertRelationship(ctx context.Context, db dbtx, r *metadata.Relationship) (*metadata.Relationship, error) {
	var exists bool
	if err := db.queryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM relationships
		WHERE user_id = $1 AND resource_id = $2 AND kind = $3
		  AND (expires_at IS NULL OR expires_at > now()))`,
		r.UserID, r.ResourceID, int(r.Kind)).Scan(&exists); err != nil {
		return nil, mapPgError(err, "")
	}
	if exists {
		return nil, metadata.NewValidationError("relationship already exists")
	}

	row := db.queryRow(ctx, `
		INSERT INTO relationships (user_id, resource_id, kind, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, now(), $5)
		RETURNING id, user_id, resource_id, kind, granted_by, granted_at, expires_at`,
		r.UserID, r.ResourceID, int(r.Kind), r.GrantedBy, r.ExpiresAt)
	created, err := scanRelationship(row)
	if err != nil {
		return nil, mapPgError(err, "")
	}
	return created, nil
}

func deleteRelationship(ctx context.Context, db dbtx, userID, resourceID int64, kind metadata.RelationshipKind) error {
	n, err := db.exec(ctx, `
		DELETE FROM relationships WHERE user_id = $1 AND resource_id = $2 AND kind = $3`,
		userID, resourceID, int(kind))
	if err != nil {
		return mapPgError(err, "")
	}
	if n == 0 {
		return metadata.NewValidationError("relationship does not exist")
	}
	return nil
}

func listActiveRelationships(ctx context.Context, db dbtx, userID int64) ([]metadata.Relationship, error) {
	rows, err := db.query(ctx, `
		SELECT id, user_id, resource_id, kind, granted_by, granted_at, expires_at
		FROM relationships
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > now())`, userID)
	if err != nil {
		return nil, mapPgError(err, "")
	}
	defer rows.Close()

	var out []metadata.Relationship
	for rows.Next() {
		var r metadata.Relationship
		var kind int
		if err := rows.Scan(&r.ID, &r.UserID, &r.ResourceID, &kind, &r.GrantedBy, &r.GrantedAt, &r.ExpiresAt); err != nil {
			return nil, mapPgError(err, "")
		}
		r.Kind = metadata.RelationshipKind(kind)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "")
	}
	return out, nil
}

func getActiveRelationship(ctx context.Context, db dbtx, userID, resourceID int64, kind metadata.RelationshipKind) (*metadata.Relationship, error) {
	row := db.queryRow(ctx, `
		SELECT id, user_id, resource_id, kind, granted_by, granted_at, expires_at
		FROM relationships
		WHERE user_id = $1 AND resource_id = $2 AND kind = $3
		  AND (expires_at IS NULL OR expires_at > now())`, userID, resourceID, int(kind))
	return scanRelationship(row)
}

func scanRelationship(row interface{ Scan(dest ...any) error }) (*metadata.Relationship, error) {
	var r metadata.Relationship
	var kind int
	if err := row.Scan(&r.ID, &r.UserID, &r.ResourceID, &kind, &r.GrantedBy, &r.GrantedAt, &r.ExpiresAt); err != nil {
		return nil, mapPgError(err, "")
	}
	r.Kind = metadata.RelationshipKind(kind)
	return &r, nil
}

func (s *Store) GetOrCreateResource(ctx context.Context, resourceType string, targetID int64) (*metadata.Resource, error) {
	return getOrCreateResource(ctx, s, resourceType, targetID)
}
func (s *Store) InsertRelationship(ctx context.Context, r *metadata.Relationship) (*metadata.Relationship, error) {
	return insertRelationship(ctx, s, r)
}
func (s *Store) DeleteRelationship(ctx context.Context, userID, resourceID int64, kind metadata.RelationshipKind) error {
	return deleteRelationship(ctx, s, userID, resourceID, kind)
}
func (s *Store) ListActiveRelationships(ctx context.Context, userID int64) ([]metadata.Relationship, error) {
	return listActiveRelationships(ctx, s, userID)
}
func (s *Store) GetActiveRelationship(ctx context.Context, userID, resourceID int64, kind metadata.RelationshipKind) (*metadata.Relationship, error) {
	return getActiveRelationship(ctx, s, userID, resourceID, kind)
}

func (t *postgresTransaction) GetOrCreateResource(ctx context.Context, resourceType string, targetID int64) (*metadata.Resource, error) {
	return getOrCreateResource(ctx, t, resourceType, targetID)
}
func (t *postgresTransaction) InsertRelationship(ctx context.Context, r *metadata.Relationship) (*metadata.Relationship, error) {
	return insertRelationship(ctx, t, r)
}
func (t *postgresTransaction) DeleteRelationship(ctx context.Context, userID, resourceID int64, kind metadata.RelationshipKind) error {
	return deleteRelationship(ctx, t, userID, resourceID, kind)
}
func (t *postgresTransaction) ListActiveRelationships(ctx context.Context, userID int64) ([]metadata.Relationship, error) {
	return listActiveRelationships(ctx, t, userID)
}
func (t *postgresTransaction) GetActiveRelationship(ctx context.Context, userID, resourceID int64, kind metadata.RelationshipKind) (*metadata.Relationship, error) {
	return getActiveRelationship(ctx, t, userID, resourceID, kind)
}
