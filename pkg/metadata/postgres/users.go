package postgres

import (
	"context"

	"github.com/niooii/ocloud/pkg/metadata"
)

func getUserByID(ctx context.Context, db dbtx, id int64) (*metadata.User, error) {
	row := db.queryRow(ctx, `
		SELECT id, username, email, password_hash, active, created_at, updated_at, last_login_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func getUserByUsernameOrEmail(ctx context.Context, db dbtx, usernameOrEmail string) (*metadata.User, error) {
	row := db.queryRow(ctx, `
		SELECT id, username, email, password_hash, active, created_at, updated_at, last_login_at
		FROM users WHERE username = $1 OR email = $1`, usernameOrEmail)
	return scanUser(row)
}

func insertUser(ctx context.Context, db dbtx, u *metadata.User) (*metadata.User, error) {
	row := db.queryRow(ctx, `
		INSERT INTO users (username, email, password_hash, active)
		VALUES ($1, $2, $3, true)
		RETURNING id, username, email, password_hash, active, created_at, updated_at, last_login_at`,
		u.Username, u.Email, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return nil, mapPgError(err, u.Username)
	}
	return created, nil
}

func touchLastLogin(ctx context.Context, db dbtx, userID int64) error {
	_, err := db.exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, userID)
	if err != nil {
		return mapPgError(err, "")
	}
	return nil
}

func scanUser(row interface{ Scan(dest ...any) error }) (*metadata.User, error) {
	var u metadata.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, mapPgError(err, u.Username)
	}
	return &u, nil
}

// Store direct-mode passthroughs.

func (s *Store) GetUserByID(ctx context.Context, id int64) (*metadata.User, error) {
	return getUserByID(ctx, s, id)
}

func (s *Store) GetUserByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*metadata.User, error) {
	return getUserByUsernameOrEmail(ctx, s, usernameOrEmail)
}

func (s *Store) InsertUser(ctx context.Context, u *metadata.User) (*metadata.User, error) {
	return insertUser(ctx, s, u)
}

func (s *Store) TouchLastLogin(ctx context.Context, userID int64) error {
	return touchLastLogin(ctx, s, userID)
}

// postgresTransaction passthroughs.

func (t *postgresTransaction) GetUserByID(ctx context.Context, id int64) (*metadata.User, error) {
	return getUserByID(ctx, t, id)
}

func (t *postgresTransaction) GetUserByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*metadata.User, error) {
	return getUserByUsernameOrEmail(ctx, t, usernameOrEmail)
}

func (t *postgresTransaction) InsertUser(ctx context.Context, u *metadata.User) (*metadata.User, error) {
	return insertUser(ctx, t, u)
}

func (t *postgresTransaction) TouchLastLogin(ctx context.Context, userID int64) error {
	return touchLastLogin(ctx, t, userID)
}
