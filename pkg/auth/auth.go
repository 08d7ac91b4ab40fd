// Package auth implements the auth/session validator: Argon2id
// password hashing and verification with constant-time dummy-compare
// on failure, and session issuance/validation/revocation backed by
// metadata.Store. Session ids are opaque UUID tokens.
package auth

import (
	"context"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/niooii/ocloud/pkg/metadata"
)

// SessionTTL is how long a freshly issued session remains valid.
const SessionTTL = 24 * time.Hour

// dummyHash is a fixed, valid Argon2id PHC string with no real account
// behind it. Login runs a verification against this when the user
// lookup fails, so failure paths spend the same CPU time as
// success paths and do not leak which half (username vs password)
// was wrong.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=2$c29tZXNhbHQAAAAAAAAAAA$RdescudvJCsgt3ub+b+dWRWJTmaaJObG"

// Authenticator issues and validates sessions against a metadata.Store.
type Authenticator struct {
	store metadata.Store
	ttl   time.Duration
}

// New constructs an Authenticator over store using the default
// SessionTTL.
func New(store metadata.Store) *Authenticator {
	return &Authenticator{store: store, ttl: SessionTTL}
}

// NewWithTTL constructs an Authenticator over store with a
// caller-supplied session lifetime (see internal/config's
// SessionConfig.TTL), falling back to SessionTTL if ttl is zero.
func NewWithTTL(store metadata.Store, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &Authenticator{store: store, ttl: ttl}
}

// HashPassword hashes password with Argon2id using a fresh random salt,
// returning the PHC-encoded verifier to persist on the user row.
func HashPassword(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", metadata.NewInternalError("failed to hash password")
	}
	return hash, nil
}

// verifyPassword compares password against hash in constant time.
func verifyPassword(password, hash string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false
	}
	return match
}

// dummyVerify runs a verification against dummyHash purely to consume
// the same CPU time a real verification would, so a caller cannot
// distinguish "no such user" from "wrong password" by timing.
func dummyVerify(password string) {
	_, _ = argon2id.ComparePasswordAndHash(password, dummyHash)
}

// Register creates a new user with an Argon2id-hashed password. The
// username/email uniqueness check is enforced by the store's insert.
func (a *Authenticator) Register(ctx context.Context, username, email, password string) (*metadata.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return a.store.InsertUser(ctx, &metadata.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	})
}

// Login authenticates usernameOrEmail/password in a single query
// accepting either. When the user is unknown or inactive it performs
// a dummy verify in place of the real one to equalize timing. On
// success it issues a session valid for the Authenticator's TTL
// (SessionTTL unless set through NewWithTTL).
func (a *Authenticator) Login(ctx context.Context, usernameOrEmail, password string) (*metadata.User, *metadata.Session, error) {
	user, err := a.store.GetUserByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil || !user.Active {
		dummyVerify(password)
		return nil, nil, metadata.NewAuthenticationError("invalid credentials")
	}

	if !verifyPassword(password, user.PasswordHash) {
		return nil, nil, metadata.NewAuthenticationError("invalid credentials")
	}

	now := time.Now()
	session := &metadata.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(a.ttl),
		AccessedAt: now,
	}
	if err := a.store.InsertSession(ctx, session); err != nil {
		return nil, nil, err
	}
	if err := a.store.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, nil, err
	}

	return user, session, nil
}

// Validate looks up sessionID, fails with AuthenticationError if
// absent or expired (deleting expired sessions as it goes), otherwise
// touches last_accessed and returns the session's user. Users with
// Active == false are treated as not found.
func (a *Authenticator) Validate(ctx context.Context, sessionID string) (*metadata.User, *metadata.Session, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, metadata.NewAuthenticationError("invalid session")
	}

	if sess.Expired(time.Now()) {
		_ = a.store.DeleteSession(ctx, sessionID)
		return nil, nil, metadata.NewAuthenticationError("session expired")
	}

	user, err := a.store.GetUserByID(ctx, sess.UserID)
	if err != nil || !user.Active {
		return nil, nil, metadata.NewAuthenticationError("invalid session")
	}

	if err := a.store.TouchSession(ctx, sessionID); err != nil {
		return nil, nil, err
	}

	return user, sess, nil
}

// Logout deletes sessionID unconditionally; deleting an unknown or
// already-expired session is not an error.
func (a *Authenticator) Logout(ctx context.Context, sessionID string) error {
	return a.store.DeleteSession(ctx, sessionID)
}
