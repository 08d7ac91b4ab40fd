package metadata

import "context"

// Store is the relational metadata store: users, sessions, media,
// sfiles, entries, resources and relationships. Implementations must
// translate unique-constraint violations on entries into
// ErrPathAlreadyExists and collapse every other database failure into
// ErrDatabase; see the postgres implementation's error mapping.
//
// Store is also the transaction orchestrator: WithTx begins a
// transaction, runs fn with a Transaction handle, commits on success
// and rolls back on any error or panic. Components that accept an
// optional Transaction must join the caller's when given one and
// otherwise call WithTx themselves — see the Tx-suffixed functions in
// pkg/namespace and pkg/rebac for that pairing.
type Store interface {
	Transaction

	// WithTx runs fn inside a new transaction, retrying on
	// serialization failure or deadlock (SQLSTATE 40001 / 40P01) up to
	// an implementation-defined bound.
	WithTx(ctx context.Context, fn func(tx Transaction) error) error

	// Close releases the underlying connection pool.
	Close()
}

// Transaction is the set of operations available either directly on a
// Store (each call opening its own transaction) or on the Transaction
// handle passed into a Store.WithTx closure (all calls joining the
// same transaction).
type Transaction interface {
	// Users
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*User, error)
	InsertUser(ctx context.Context, u *User) (*User, error)
	TouchLastLogin(ctx context.Context, userID int64) error

	// Sessions
	InsertSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error

	// Media
	GetMediaByHash(ctx context.Context, hash string) (*Media, error)
	GetMediaByID(ctx context.Context, id int64) (*Media, error)
	InsertMedia(ctx context.Context, m *Media) (*Media, error)
	DeleteMedia(ctx context.Context, id int64) (*Media, error)

	// HasSFilesReferencingMedia reports whether any sfile still points
	// at mediaID. An existence probe, not a count: the only caller is
	// the delete path's last-reference check, which needs a yes/no.
	HasSFilesReferencingMedia(ctx context.Context, mediaID int64) (bool, error)

	// SFiles
	GetSFile(ctx context.Context, id int64) (*SFile, error)
	InsertSFile(ctx context.Context, s *SFile) (*SFile, error)
	SetSFileVisibility(ctx context.Context, id int64, public bool) error
	DeleteSFile(ctx context.Context, id int64) error

	// Entries
	GetEntry(ctx context.Context, parentID int64, filename string, userID int64) (*Entry, error)
	InsertEntry(ctx context.Context, e *Entry) (*Entry, error)
	ListEntries(ctx context.Context, parentID int64, userID int64) ([]Entry, error)
	DeleteEntryByChild(ctx context.Context, childID int64, userID int64) (*Entry, error)
	UpdateEntryLocation(ctx context.Context, childID int64, newParentID int64, newFilename string, userID int64) error

	// Resources & relationships
	GetOrCreateResource(ctx context.Context, resourceType string, targetID int64) (*Resource, error)
	InsertRelationship(ctx context.Context, r *Relationship) (*Relationship, error)
	DeleteRelationship(ctx context.Context, userID, resourceID int64, kind RelationshipKind) error
	ListActiveRelationships(ctx context.Context, userID int64) ([]Relationship, error)
	GetActiveRelationship(ctx context.Context, userID, resourceID int64, kind RelationshipKind) (*Relationship, error)
}
