// Package metadatatest provides an in-memory metadata.Store
// implementation and a conformance suite any metadata.Store shape can
// run against. It backs unit tests for pkg/namespace, pkg/rebac,
// pkg/upload and pkg/auth without a live PostgreSQL instance. The
// conformance suite checks which operations succeed or fail on both
// stores; the error code of a failure can differ between them (a
// duplicate username is ErrValidation here and ErrPathAlreadyExists
// from pkg/metadata/postgres).
package metadatatest

import (
	"context"
	"sync"

	"github.com/niooii/ocloud/pkg/metadata"
)

// tables is the mutable state of the in-memory store, copied by value
// (each field's map header is re-created, but entries are always
// replaced wholesale rather than mutated in place) for every
// transaction so a rollback is simply "discard the copy".
type tables struct {
	users         map[int64]*metadata.User
	sessions      map[string]*metadata.Session
	media         map[int64]*metadata.Media
	sfiles        map[int64]*metadata.SFile
	entries       map[int64]*metadata.Entry
	resources     map[int64]*metadata.Resource
	relationships map[int64]*metadata.Relationship

	nextUserID  int64
	nextMediaID int64
	nextSFileID int64
	nextEntryID int64
	nextResID   int64
	nextRelID   int64
}

func newTables() *tables {
	root := int64(metadata.RootSFileID)
	return &tables{
		users:         make(map[int64]*metadata.User),
		sessions:      make(map[string]*metadata.Session),
		media:         make(map[int64]*metadata.Media),
		sfiles:        map[int64]*metadata.SFile{root: {ID: root, IsDir: true}},
		entries:       make(map[int64]*metadata.Entry),
		resources:     make(map[int64]*metadata.Resource),
		relationships: make(map[int64]*metadata.Relationship),
		nextUserID:    1,
		nextMediaID:   1,
		nextSFileID:   root + 1,
		nextEntryID:   1,
		nextResID:     1,
		nextRelID:     1,
	}
}

// clone returns a shallow-but-independent copy: new map headers, same
// pointer values. Safe because every mutating operation below replaces
// a map slot with a freshly allocated struct rather than editing one
// in place.
func (t *tables) clone() *tables {
	c := &tables{
		users:         make(map[int64]*metadata.User, len(t.users)),
		sessions:      make(map[string]*metadata.Session, len(t.sessions)),
		media:         make(map[int64]*metadata.Media, len(t.media)),
		sfiles:        make(map[int64]*metadata.SFile, len(t.sfiles)),
		entries:       make(map[int64]*metadata.Entry, len(t.entries)),
		resources:     make(map[int64]*metadata.Resource, len(t.resources)),
		relationships: make(map[int64]*metadata.Relationship, len(t.relationships)),
		nextUserID:    t.nextUserID,
		nextMediaID:   t.nextMediaID,
		nextSFileID:   t.nextSFileID,
		nextEntryID:   t.nextEntryID,
		nextResID:     t.nextResID,
		nextRelID:     t.nextRelID,
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.sessions {
		c.sessions[k] = v
	}
	for k, v := range t.media {
		c.media[k] = v
	}
	for k, v := range t.sfiles {
		c.sfiles[k] = v
	}
	for k, v := range t.entries {
		c.entries[k] = v
	}
	for k, v := range t.resources {
		c.resources[k] = v
	}
	for k, v := range t.relationships {
		c.relationships[k] = v
	}
	return c
}

// Store is an in-memory metadata.Store. All operations take a single
// process-wide mutex, so unlike the postgres implementation there is
// no real concurrency inside one Store — adequate for unit tests,
// wrong for production (hence pkg/metadata/postgres).
type Store struct {
	mu   sync.Mutex
	data *tables
}

var _ metadata.Store = (*Store)(nil)

// New returns a ready, empty in-memory Store with only the synthetic
// root sfile present.
func New() *Store {
	return &Store{data: newTables()}
}

// view adapts a *tables (either the live store's or a transaction's
// working copy) to metadata.Transaction.
type view struct {
	t *tables
}

var _ metadata.Transaction = (*view)(nil)

func (s *Store) Close() {}

// Nuke resets the store to its freshly-constructed state, keeping only
// the synthetic root sfile.
func (s *Store) Nuke(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newTables()
	return nil
}

// WithTx clones the current table set, runs fn against the clone, and
// — only if fn returns nil — swaps the clone in as the new live state.
// Any error discards the clone entirely, which is the in-memory
// analogue of a ROLLBACK.
func (s *Store) WithTx(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.data.clone()
	if err := fn(&view{t: clone}); err != nil {
		return err
	}
	s.data = clone
	return nil
}

// Direct-mode Transaction methods delegate to a throwaway view over
// the live tables, each call committing immediately — matching the
// postgres Store's "every direct call is its own transaction"
// contract, without the WithTx retry/commit machinery since there is
// nothing to roll back to on a single in-process map write.
func (s *Store) direct() *view {
	return &view{t: s.data}
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*metadata.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetUserByID(ctx, id)
}
func (s *Store) GetUserByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*metadata.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetUserByUsernameOrEmail(ctx, usernameOrEmail)
}
func (s *Store) InsertUser(ctx context.Context, u *metadata.User) (*metadata.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertUser(ctx, u)
}
func (s *Store) TouchLastLogin(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().TouchLastLogin(ctx, userID)
}
func (s *Store) InsertSession(ctx context.Context, sess *metadata.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertSession(ctx, sess)
}
func (s *Store) GetSession(ctx context.Context, id string) (*metadata.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetSession(ctx, id)
}
func (s *Store) TouchSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().TouchSession(ctx, id)
}
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteSession(ctx, id)
}
func (s *Store) GetMediaByHash(ctx context.Context, hash string) (*metadata.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetMediaByHash(ctx, hash)
}
func (s *Store) GetMediaByID(ctx context.Context, id int64) (*metadata.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetMediaByID(ctx, id)
}
func (s *Store) InsertMedia(ctx context.Context, m *metadata.Media) (*metadata.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertMedia(ctx, m)
}
func (s *Store) DeleteMedia(ctx context.Context, id int64) (*metadata.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteMedia(ctx, id)
}
func (s *Store) HasSFilesReferencingMedia(ctx context.Context, mediaID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().HasSFilesReferencingMedia(ctx, mediaID)
}
func (s *Store) GetSFile(ctx context.Context, id int64) (*metadata.SFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetSFile(ctx, id)
}
func (s *Store) InsertSFile(ctx context.Context, sf *metadata.SFile) (*metadata.SFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertSFile(ctx, sf)
}
func (s *Store) SetSFileVisibility(ctx context.Context, id int64, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().SetSFileVisibility(ctx, id, public)
}
func (s *Store) DeleteSFile(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteSFile(ctx, id)
}
func (s *Store) GetEntry(ctx context.Context, parentID int64, filename string, userID int64) (*metadata.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetEntry(ctx, parentID, filename, userID)
}
func (s *Store) InsertEntry(ctx context.Context, e *metadata.Entry) (*metadata.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertEntry(ctx, e)
}
func (s *Store) ListEntries(ctx context.Context, parentID int64, userID int64) ([]metadata.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().ListEntries(ctx, parentID, userID)
}
func (s *Store) DeleteEntryByChild(ctx context.Context, childID int64, userID int64) (*metadata.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteEntryByChild(ctx, childID, userID)
}
func (s *Store) UpdateEntryLocation(ctx context.Context, childID int64, newParentID int64, newFilename string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().UpdateEntryLocation(ctx, childID, newParentID, newFilename, userID)
}
func (s *Store) GetOrCreateResource(ctx context.Context, resourceType string, targetID int64) (*metadata.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetOrCreateResource(ctx, resourceType, targetID)
}
func (s *Store) InsertRelationship(ctx context.Context, r *metadata.Relationship) (*metadata.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().InsertRelationship(ctx, r)
}
func (s *Store) DeleteRelationship(ctx context.Context, userID, resourceID int64, kind metadata.RelationshipKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteRelationship(ctx, userID, resourceID, kind)
}
func (s *Store) ListActiveRelationships(ctx context.Context, userID int64) ([]metadata.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().ListActiveRelationships(ctx, userID)
}
func (s *Store) GetActiveRelationship(ctx context.Context, userID, resourceID int64, kind metadata.RelationshipKind) (*metadata.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().GetActiveRelationship(ctx, userID, resourceID, kind)
}
