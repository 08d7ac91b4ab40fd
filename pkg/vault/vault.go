// Package vault is the facade composing the content store
// (pkg/blobstore), pkg/upload, pkg/namespace, pkg/rebac and pkg/auth
// behind one handle implementing the full external operation surface:
// register, login, logout, me, upload, list, get, delete, mv,
// set-visibility, grant, revoke. The handle is a plain struct holding
// shared, already-concurrency-safe collaborators (metadata.Store's
// own pool, pkg/hashlock's map, pkg/blobstore's Store), so passing a
// *Vault between goroutines is all the sharing a caller needs.
package vault

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/niooii/ocloud/internal/metrics"
	"github.com/niooii/ocloud/pkg/auth"
	"github.com/niooii/ocloud/pkg/blobstore"
	"github.com/niooii/ocloud/pkg/hashlock"
	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/namespace"
	"github.com/niooii/ocloud/pkg/rebac"
	"github.com/niooii/ocloud/pkg/upload"
	"github.com/niooii/ocloud/pkg/vpath"
)

// Vault is the public library surface. Every method is safe for
// concurrent use; the zero value is not usable, construct with New.
type Vault struct {
	store metadata.Store
	blobs blobstore.Store
	ns    *namespace.Controller
	az    *auth.Authenticator
	up    *upload.Finalizer
}

// New wires store, blobs and tempDir into a ready Vault using the
// default session lifetime. tempDir must share a filesystem with
// blobs' backing root for pkg/upload's temp-then-rename to succeed
// when blobs is pkg/blobstore/fs.
func New(store metadata.Store, blobs blobstore.Store, tempDir string, collectors *metrics.Collectors, logger *slog.Logger) *Vault {
	return NewWithSessionTTL(store, blobs, tempDir, 0, collectors, logger)
}

// NewWithSessionTTL is New with an explicit session lifetime (see
// internal/config's SessionConfig.TTL); zero falls back to
// auth.SessionTTL.
func NewWithSessionTTL(store metadata.Store, blobs blobstore.Store, tempDir string, sessionTTL time.Duration, collectors *metrics.Collectors, logger *slog.Logger) *Vault {
	ns := namespace.New(store, collectors, logger)
	return &Vault{
		store: store,
		blobs: blobs,
		ns:    ns,
		az:    auth.NewWithTTL(store, sessionTTL),
		up:    upload.New(store, blobs, ns, hashlock.New(), tempDir, collectors, logger),
	}
}

// Register creates a new user account.
func (v *Vault) Register(ctx context.Context, username, email, password string) (*metadata.User, error) {
	return v.az.Register(ctx, username, email, password)
}

// Login authenticates and issues a session.
func (v *Vault) Login(ctx context.Context, usernameOrEmail, password string) (*metadata.User, *metadata.Session, error) {
	return v.az.Login(ctx, usernameOrEmail, password)
}

// Logout revokes sessionID.
func (v *Vault) Logout(ctx context.Context, sessionID string) error {
	return v.az.Logout(ctx, sessionID)
}

// Me validates sessionID and returns the caller plus how many active
// relationships (of any kind) they hold, as a coarse permission count.
func (v *Vault) Me(ctx context.Context, sessionID string) (*metadata.User, int, error) {
	user, _, err := v.az.Validate(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	rels, err := v.store.ListActiveRelationships(ctx, user.ID)
	if err != nil {
		return nil, 0, err
	}
	return user, len(rels), nil
}

// requireCaller validates sessionID and fails with AuthenticationError
// if it is missing or invalid — the gate for every operation that has
// no anonymous/public path.
func (v *Vault) requireCaller(ctx context.Context, sessionID string) (*metadata.User, error) {
	if sessionID == "" {
		return nil, metadata.NewAuthenticationError("authentication required")
	}
	user, _, err := v.az.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// resolveCaller validates sessionID if present, returning (nil, nil)
// for an anonymous caller rather than failing — the gate for
// operations with a public fallback (list, get).
func (v *Vault) resolveCaller(ctx context.Context, sessionID string) (*metadata.User, error) {
	if sessionID == "" {
		return nil, nil
	}
	user, _, err := v.az.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// requireAction enforces the fixed relationship matrix for caller
// against sf: the direct-ownership shortcut always wins, otherwise an
// AuthContext built from caller's active relationships must grant
// action on sf's resource.
func (v *Vault) requireAction(ctx context.Context, callerID int64, sf *metadata.SFile, action rebac.Action) error {
	if sf.UserID != nil && *sf.UserID == callerID {
		return nil
	}
	res, err := v.store.GetOrCreateResource(ctx, metadata.ResourceTypeSFile, sf.ID)
	if err != nil {
		return err
	}
	ac, err := rebac.Build(ctx, v.store, callerID)
	if err != nil {
		return err
	}
	if !ac.HasOnSFile(sf, res.ID, action) {
		return metadata.NewAuthorizationError("permission denied")
	}
	return nil
}

// Upload streams src into dir/filename in the caller's own namespace.
func (v *Vault) Upload(ctx context.Context, sessionID string, dir vpath.Path, filename string, src io.Reader) (*metadata.SFile, error) {
	caller, err := v.requireCaller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result, err := v.up.Finish(ctx, src, dir, filename, caller.ID)
	if err != nil {
		return nil, err
	}
	return result.SFile, nil
}

// List resolves dir in targetUserID's namespace and returns its
// entries. Listing root requires only authentication (the synthetic
// root is shared and carries nothing itself). Any other directory
// must be readable by the caller: owners always are, other
// authenticated users need a Read-granting relationship, and a public
// directory is listable by anyone including anonymous callers.
func (v *Vault) List(ctx context.Context, sessionID string, dir vpath.Path, targetUserID int64) ([]namespace.Node, error) {
	caller, err := v.resolveCaller(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if dir.IsRoot() {
		if caller == nil {
			return nil, metadata.NewAuthenticationError("authentication required")
		}
		return v.ns.List(ctx, dir, targetUserID)
	}

	dirID, err := v.ns.Resolve(ctx, dir, targetUserID)
	if err != nil {
		return nil, err
	}
	sf, err := v.store.GetSFile(ctx, dirID)
	if err != nil {
		return nil, err
	}
	if !sf.IsPublic {
		if caller == nil {
			return nil, metadata.NewAuthenticationError("authentication required")
		}
		if err := v.requireAction(ctx, caller.ID, sf, rebac.ActionRead); err != nil {
			return nil, err
		}
	}

	return v.ns.List(ctx, dir, targetUserID)
}

// Get resolves path in targetUserID's namespace and returns a stream
// of its blob contents plus the resolved sfile. Public files are
// readable anonymously; private files require authentication and Read.
func (v *Vault) Get(ctx context.Context, sessionID string, path vpath.Path, targetUserID int64) (io.ReadCloser, *metadata.SFile, error) {
	caller, err := v.resolveCaller(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	id, err := v.ns.Resolve(ctx, path, targetUserID)
	if err != nil {
		return nil, nil, err
	}
	sf, err := v.store.GetSFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sf.IsDir {
		return nil, nil, metadata.NewWrongPathTypeError(path.String(), "cannot get a directory")
	}

	if !sf.IsPublic {
		if caller == nil {
			return nil, nil, metadata.NewAuthenticationError("authentication required")
		}
		if err := v.requireAction(ctx, caller.ID, sf, rebac.ActionRead); err != nil {
			return nil, nil, err
		}
	}

	media, err := v.store.GetMediaByID(ctx, *sf.MediaID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := v.blobs.OpenStream(ctx, media.Hash)
	if err != nil {
		return nil, nil, err
	}
	return rc, sf, nil
}

// Delete removes path from the caller's own namespace, reclaiming the
// underlying media and blob once no sfile references it anymore.
// Always requires authentication and Delete, regardless of the
// public flag.
func (v *Vault) Delete(ctx context.Context, sessionID string, path vpath.Path) error {
	caller, err := v.requireCaller(ctx, sessionID)
	if err != nil {
		return err
	}

	id, err := v.ns.Resolve(ctx, path, caller.ID)
	if err != nil {
		return err
	}
	sf, err := v.store.GetSFile(ctx, id)
	if err != nil {
		return err
	}
	if err := v.requireAction(ctx, caller.ID, sf, rebac.ActionDelete); err != nil {
		return err
	}

	return v.ns.DeleteFile(ctx, path, caller.ID, v.blobs.Remove)
}

// Move relocates from to to within the caller's own namespace.
// Requires ChangePermissions (owner-only in the fixed matrix).
func (v *Vault) Move(ctx context.Context, sessionID string, from, to vpath.Path) (*metadata.SFile, error) {
	caller, err := v.requireCaller(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	id, err := v.ns.Resolve(ctx, from, caller.ID)
	if err != nil {
		return nil, err
	}
	sf, err := v.store.GetSFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.requireAction(ctx, caller.ID, sf, rebac.ActionChangePermissions); err != nil {
		return nil, err
	}

	if err := v.ns.Move(ctx, from, to, caller.ID); err != nil {
		return nil, err
	}
	return v.store.GetSFile(ctx, id)
}

// SetVisibility flips path's public flag in the caller's own
// namespace. Requires ChangePermissions.
func (v *Vault) SetVisibility(ctx context.Context, sessionID string, path vpath.Path, public bool) (*metadata.SFile, error) {
	caller, err := v.requireCaller(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	id, err := v.ns.Resolve(ctx, path, caller.ID)
	if err != nil {
		return nil, err
	}
	sf, err := v.store.GetSFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.requireAction(ctx, caller.ID, sf, rebac.ActionChangePermissions); err != nil {
		return nil, err
	}

	return v.ns.SetVisibility(ctx, path, caller.ID, public)
}

// Grant records a (targetUserID, path's resource, kind) relationship
// on behalf of the caller, who must own path outright.
func (v *Vault) Grant(ctx context.Context, sessionID string, path vpath.Path, targetUserID int64, kind metadata.RelationshipKind) error {
	caller, err := v.requireCaller(ctx, sessionID)
	if err != nil {
		return err
	}

	id, err := v.ns.Resolve(ctx, path, caller.ID)
	if err != nil {
		return err
	}
	sf, err := v.store.GetSFile(ctx, id)
	if err != nil {
		return err
	}

	_, err = rebac.Grant(ctx, v.store, caller.ID, sf, targetUserID, kind)
	return err
}

// Revoke removes a (targetUserID, path's resource, kind) relationship
// on behalf of the caller, who must own path outright.
func (v *Vault) Revoke(ctx context.Context, sessionID string, path vpath.Path, targetUserID int64, kind metadata.RelationshipKind) error {
	caller, err := v.requireCaller(ctx, sessionID)
	if err != nil {
		return err
	}

	id, err := v.ns.Resolve(ctx, path, caller.ID)
	if err != nil {
		return err
	}
	sf, err := v.store.GetSFile(ctx, id)
	if err != nil {
		return err
	}

	return rebac.Revoke(ctx, v.store, caller.ID, sf, targetUserID, kind)
}

// nuker is the optional administrative reset a backend may support.
type nuker interface {
	Nuke(ctx context.Context) error
}

// Nuke destroys all users' data: the metadata schema is dropped and
// rebuilt and the blob root is removed and recreated. Both backends
// must support the operation. There is deliberately no session-gated
// path to this method — it is for administrative tooling only.
func (v *Vault) Nuke(ctx context.Context) error {
	sn, ok := v.store.(nuker)
	if !ok {
		return metadata.NewBadOperationError("metadata store does not support nuke")
	}
	bn, ok := v.blobs.(nuker)
	if !ok {
		return metadata.NewBadOperationError("blob store does not support nuke")
	}
	if err := sn.Nuke(ctx); err != nil {
		return err
	}
	return bn.Nuke(ctx)
}

// Close releases the underlying metadata store's connection pool.
func (v *Vault) Close() {
	v.store.Close()
}
