package metadata

import "time"

// RelationshipKind is the ReBAC relationship a user can hold on a
// resource. The permission resolver's action matrix is keyed on this
// exact set.
type RelationshipKind int

const (
	RelOwner RelationshipKind = iota
	RelEditor
	RelViewer
)

func (k RelationshipKind) String() string {
	switch k {
	case RelOwner:
		return "owner"
	case RelEditor:
		return "editor"
	case RelViewer:
		return "viewer"
	default:
		return "unknown"
	}
}

// User is a registered account: stable integer id, unique username and
// email, an opaque Argon2id password verifier, and an active flag.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// Session is an opaque 128-bit session identifier bound to a user,
// valid for 24h from creation and touched on every validation.
type Session struct {
	ID         string
	UserID     int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// Expired reports whether the session is no longer valid at t.
func (s Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Media is one content-addressed blob: its hex SHA-256 hash, byte size,
// and lifecycle timestamps. Unique by Hash.
type Media struct {
	ID           int64
	Hash         string
	Size         int64
	UploadedAt   time.Time
	AccessedAt   time.Time
	ExpiringAt   *time.Time
}

// SFile is one virtual inode: either a directory or a file pointing at
// a Media row. The root sfile has ID 1 and no owning entry.
type SFile struct {
	ID      int64
	IsDir   bool
	MediaID *int64
	// UserID is nil only for the synthetic root node (ID RootSFileID),
	// which is shared across every user's namespace and owned by no
	// one.
	UserID     *int64
	IsPublic   bool
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Entry is one (parent, filename) -> child edge in a user's namespace.
// Unique by (ParentID, Filename, UserID).
type Entry struct {
	ID       int64
	ParentID int64
	ChildID  int64
	Filename string
	UserID   int64
}

// Resource is one (type, target id) pair that has ever received a
// relationship. In this domain ResourceType is always "sfile".
type Resource struct {
	ID       int64
	Type     string
	TargetID *int64
}

// ResourceTypeSFile is the only resource type this domain exercises.
const ResourceTypeSFile = "sfile"

// Relationship is one (user, resource, kind) grant, optionally expiring.
type Relationship struct {
	ID         int64
	UserID     int64
	ResourceID int64
	Kind       RelationshipKind
	GrantedBy  int64
	GrantedAt  time.Time
	ExpiresAt  *time.Time
}

// RootSFileID is the synthetic root node id shared by every user's
// namespace.
const RootSFileID int64 = 1
