package metadatatest

import (
	"context"
	"sort"
	"time"

	"github.com/niooii/ocloud/pkg/metadata"
)

// clone returns an independent value copy so callers can never mutate
// a stored pointer's fields out from under the table (mirrors what a
// real row scan into a fresh struct gives you).
func clone[T any](v *T) *T {
	c := *v
	return &c
}

// --- Users ---

func (v *view) GetUserByID(ctx context.Context, id int64) (*metadata.User, error) {
	u, ok := v.t.users[id]
	if !ok {
		return nil, metadata.NewPathDoesntExistError("")
	}
	return clone(u), nil
}

func (v *view) GetUserByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*metadata.User, error) {
	for _, u := range v.t.users {
		if u.Username == usernameOrEmail || u.Email == usernameOrEmail {
			return clone(u), nil
		}
	}
	return nil, metadata.NewPathDoesntExistError("")
}

func (v *view) InsertUser(ctx context.Context, u *metadata.User) (*metadata.User, error) {
	for _, existing := range v.t.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, metadata.NewValidationError("username or email already taken")
		}
	}
	id := v.t.nextUserID
	v.t.nextUserID++
	now := time.Time{}
	if !u.CreatedAt.IsZero() {
		now = u.CreatedAt
	}
	stored := *u
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now
	v.t.users[id] = &stored
	return clone(&stored), nil
}

func (v *view) TouchLastLogin(ctx context.Context, userID int64) error {
	u, ok := v.t.users[userID]
	if !ok {
		return metadata.NewPathDoesntExistError("")
	}
	stored := *u
	now := stored.UpdatedAt
	stored.LastLoginAt = &now
	v.t.users[userID] = &stored
	return nil
}

// --- Sessions ---

func (v *view) InsertSession(ctx context.Context, s *metadata.Session) error {
	stored := *s
	v.t.sessions[stored.ID] = &stored
	return nil
}

func (v *view) GetSession(ctx context.Context, id string) (*metadata.Session, error) {
	s, ok := v.t.sessions[id]
	if !ok {
		return nil, metadata.NewAuthenticationError("session not found")
	}
	return clone(s), nil
}

func (v *view) TouchSession(ctx context.Context, id string) error {
	s, ok := v.t.sessions[id]
	if !ok {
		return metadata.NewAuthenticationError("session not found")
	}
	stored := *s
	stored.AccessedAt = time.Now()
	v.t.sessions[id] = &stored
	return nil
}

func (v *view) DeleteSession(ctx context.Context, id string) error {
	delete(v.t.sessions, id)
	return nil
}

// --- Media ---

func (v *view) GetMediaByHash(ctx context.Context, hash string) (*metadata.Media, error) {
	for _, m := range v.t.media {
		if m.Hash == hash {
			return clone(m), nil
		}
	}
	return nil, metadata.NewNoMediaFoundError("")
}

func (v *view) GetMediaByID(ctx context.Context, id int64) (*metadata.Media, error) {
	m, ok := v.t.media[id]
	if !ok {
		return nil, metadata.NewNoMediaFoundError("")
	}
	return clone(m), nil
}

func (v *view) InsertMedia(ctx context.Context, m *metadata.Media) (*metadata.Media, error) {
	for _, existing := range v.t.media {
		if existing.Hash == m.Hash {
			return nil, metadata.NewPathAlreadyExistsError("")
		}
	}
	id := v.t.nextMediaID
	v.t.nextMediaID++
	stored := *m
	stored.ID = id
	v.t.media[id] = &stored
	return clone(&stored), nil
}

func (v *view) DeleteMedia(ctx context.Context, id int64) (*metadata.Media, error) {
	m, ok := v.t.media[id]
	if !ok {
		return nil, metadata.NewNoMediaFoundError("")
	}
	delete(v.t.media, id)
	return clone(m), nil
}

func (v *view) HasSFilesReferencingMedia(ctx context.Context, mediaID int64) (bool, error) {
	for _, sf := range v.t.sfiles {
		if sf.MediaID != nil && *sf.MediaID == mediaID {
			return true, nil
		}
	}
	return false, nil
}

// --- SFiles ---

func (v *view) GetSFile(ctx context.Context, id int64) (*metadata.SFile, error) {
	sf, ok := v.t.sfiles[id]
	if !ok {
		return nil, metadata.NewPathDoesntExistError("")
	}
	return clone(sf), nil
}

func (v *view) InsertSFile(ctx context.Context, s *metadata.SFile) (*metadata.SFile, error) {
	id := v.t.nextSFileID
	v.t.nextSFileID++
	stored := *s
	stored.ID = id
	v.t.sfiles[id] = &stored
	return clone(&stored), nil
}

func (v *view) SetSFileVisibility(ctx context.Context, id int64, public bool) error {
	sf, ok := v.t.sfiles[id]
	if !ok {
		return metadata.NewPathDoesntExistError("")
	}
	stored := *sf
	stored.IsPublic = public
	v.t.sfiles[id] = &stored
	return nil
}

func (v *view) DeleteSFile(ctx context.Context, id int64) error {
	if _, ok := v.t.sfiles[id]; !ok {
		return metadata.NewPathDoesntExistError("")
	}
	delete(v.t.sfiles, id)
	return nil
}

// --- Entries ---

func (v *view) GetEntry(ctx context.Context, parentID int64, filename string, userID int64) (*metadata.Entry, error) {
	for _, e := range v.t.entries {
		if e.ParentID == parentID && e.Filename == filename && e.UserID == userID {
			return clone(e), nil
		}
	}
	return nil, metadata.NewPathDoesntExistError(filename)
}

func (v *view) InsertEntry(ctx context.Context, e *metadata.Entry) (*metadata.Entry, error) {
	for _, existing := range v.t.entries {
		if existing.ParentID == e.ParentID && existing.Filename == e.Filename && existing.UserID == e.UserID {
			return nil, metadata.NewPathAlreadyExistsError(e.Filename)
		}
	}
	id := v.t.nextEntryID
	v.t.nextEntryID++
	stored := *e
	stored.ID = id
	v.t.entries[id] = &stored
	return clone(&stored), nil
}

func (v *view) ListEntries(ctx context.Context, parentID int64, userID int64) ([]metadata.Entry, error) {
	var out []metadata.Entry
	for _, e := range v.t.entries {
		if e.ParentID == parentID && e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func (v *view) DeleteEntryByChild(ctx context.Context, childID int64, userID int64) (*metadata.Entry, error) {
	for id, e := range v.t.entries {
		if e.ChildID == childID && e.UserID == userID {
			deleted := *e
			delete(v.t.entries, id)
			return &deleted, nil
		}
	}
	return nil, metadata.NewPathDoesntExistError("")
}

func (v *view) UpdateEntryLocation(ctx context.Context, childID int64, newParentID int64, newFilename string, userID int64) error {
	var target *metadata.Entry
	var targetID int64
	for id, e := range v.t.entries {
		if e.ChildID == childID && e.UserID == userID {
			target = e
			targetID = id
			break
		}
	}
	if target == nil {
		return metadata.NewPathDoesntExistError("")
	}
	for id, e := range v.t.entries {
		if id != targetID && e.ParentID == newParentID && e.Filename == newFilename && e.UserID == userID {
			return metadata.NewPathAlreadyExistsError(newFilename)
		}
	}
	stored := *target
	stored.ParentID = newParentID
	stored.Filename = newFilename
	v.t.entries[targetID] = &stored
	return nil
}

// --- Resources & relationships ---

func (v *view) GetOrCreateResource(ctx context.Context, resourceType string, targetID int64) (*metadata.Resource, error) {
	for _, r := range v.t.resources {
		if r.Type == resourceType && r.TargetID != nil && *r.TargetID == targetID {
			return clone(r), nil
		}
	}
	id := v.t.nextResID
	v.t.nextResID++
	t := targetID
	stored := metadata.Resource{ID: id, Type: resourceType, TargetID: &t}
	v.t.resources[id] = &stored
	return clone(&stored), nil
}

func (v *view) InsertRelationship(ctx context.Context, r *metadata.Relationship) (*metadata.Relationship, error) {
	now := time.Now()
	for _, existing := range v.t.relationships {
		if existing.UserID == r.UserID && existing.ResourceID == r.ResourceID && existing.Kind == r.Kind {
			if existing.ExpiresAt != nil && !existing.ExpiresAt.After(now) {
				continue
			}
			return nil, metadata.NewValidationError("relationship already exists")
		}
	}
	id := v.t.nextRelID
	v.t.nextRelID++
	stored := *r
	stored.ID = id
	v.t.relationships[id] = &stored
	return clone(&stored), nil
}

func (v *view) DeleteRelationship(ctx context.Context, userID, resourceID int64, kind metadata.RelationshipKind) error {
	for id, r := range v.t.relationships {
		if r.UserID == userID && r.ResourceID == resourceID && r.Kind == kind {
			delete(v.t.relationships, id)
			return nil
		}
	}
	return metadata.NewPathDoesntExistError("")
}

func (v *view) ListActiveRelationships(ctx context.Context, userID int64) ([]metadata.Relationship, error) {
	now := time.Now()
	var out []metadata.Relationship
	for _, r := range v.t.relationships {
		if r.UserID != userID {
			continue
		}
		if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (v *view) GetActiveRelationship(ctx context.Context, userID, resourceID int64, kind metadata.RelationshipKind) (*metadata.Relationship, error) {
	now := time.Now()
	for _, r := range v.t.relationships {
		if r.UserID == userID && r.ResourceID == resourceID && r.Kind == kind {
			if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
				continue
			}
			return clone(r), nil
		}
	}
	return nil, metadata.NewPathDoesntExistError("")
}
