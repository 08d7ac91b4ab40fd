// Package namespace implements the namespace controller: resolving
// virtual paths to sfile ids, listing directories, ensuring directory
// lineage, creating/moving/deleting nodes, all scoped to one user's
// tree at a time. Full paths are never materialized in the database —
// the tree is pure (parent, filename) -> child edges, which is why a
// move touches exactly one entry row no matter how deep the subtree
// under it is.
package namespace

import (
	"context"
	"log/slog"

	"github.com/niooii/ocloud/internal/metrics"
	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/vpath"
)

// Node pairs a resolved entry with the full virtual path it lives at,
// the shape List returns to callers.
type Node struct {
	SFile    metadata.SFile
	Entry    metadata.Entry
	FullPath vpath.Path
}

// Controller is the namespace controller. It holds no state beyond the
// metadata store and an optional metrics sink; every operation is
// user-scoped via an explicit userID parameter.
type Controller struct {
	store   metadata.Store
	metrics *metrics.Collectors
	logger  *slog.Logger
}

// New constructs a Controller over store.
func New(store metadata.Store, collectors *metrics.Collectors, logger *slog.Logger) *Controller {
	return &Controller{store: store, metrics: collectors, logger: logger}
}

func vpathErr(path vpath.Path, err error) error {
	if verr, ok := err.(*vpath.Error); ok {
		return metadata.NewWrongPathTypeError(path.String(), verr.Message)
	}
	return err
}

// Resolve walks p's segments against the entry table, starting from
// the synthetic root (id 1), and returns the sfile id it names in
// userID's namespace. Root resolves to RootSFileID immediately.
func (c *Controller) Resolve(ctx context.Context, p vpath.Path, userID int64) (int64, error) {
	return resolveTx(ctx, c.store, p, userID)
}

// ResolveTx is Resolve joining an already-open transaction.
func (c *Controller) ResolveTx(ctx context.Context, tx metadata.Transaction, p vpath.Path, userID int64) (int64, error) {
	return resolveTx(ctx, tx, p, userID)
}

func resolveTx(ctx context.Context, tx metadata.Transaction, p vpath.Path, userID int64) (int64, error) {
	current := metadata.RootSFileID
	for _, segment := range p.PartsWithoutRoot() {
		entry, err := tx.GetEntry(ctx, current, segment, userID)
		if err != nil {
			if se, ok := err.(*metadata.StoreError); ok && se.Code == metadata.ErrPathDoesntExist {
				return 0, metadata.NewPathDoesntExistError(p.String())
			}
			return 0, err
		}
		current = entry.ChildID
	}
	return current, nil
}

// List resolves dir in target's namespace and returns every entry
// whose parent is that sfile, ordered by filename. Permission
// filtering against the requesting viewer is the caller's
// responsibility (pkg/rebac).
func (c *Controller) List(ctx context.Context, dir vpath.Path, target int64) ([]Node, error) {
	if err := dir.ErrIfFile(); err != nil {
		return nil, vpathErr(dir, err)
	}

	dirID, err := c.Resolve(ctx, dir, target)
	if err != nil {
		c.observe("list", "error")
		return nil, err
	}

	entries, err := c.store.ListEntries(ctx, dirID, target)
	if err != nil {
		c.observe("list", "error")
		return nil, err
	}

	nodes := make([]Node, 0, len(entries))
	for _, e := range entries {
		sf, err := c.store.GetSFile(ctx, e.ChildID)
		if err != nil {
			c.observe("list", "error")
			return nil, err
		}
		full, err := childPath(dir, e.Filename, sf.IsDir)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, Node{SFile: *sf, Entry: e, FullPath: full})
	}
	c.observe("list", "ok")
	return nodes, nil
}

func childPath(dir vpath.Path, filename string, isDir bool) (vpath.Path, error) {
	if isDir {
		p, err := dir.PushDir(filename)
		return p, vpathErr(dir, err)
	}
	p, err := dir.PushFile(filename)
	return p, vpathErr(dir, err)
}

// EnsureDirs walks p's parent chain (and p itself, if p is a
// directory) and creates every directory segment not yet present in
// userID's namespace, in its own transaction. It returns only the
// newly created sfiles.
func (c *Controller) EnsureDirs(ctx context.Context, p vpath.Path, userID int64) ([]metadata.SFile, error) {
	var created []metadata.SFile
	err := c.store.WithTx(ctx, func(tx metadata.Transaction) error {
		var err error
		created, err = c.EnsureDirsTx(ctx, tx, p, userID)
		return err
	})
	return created, err
}

// EnsureDirsTx is EnsureDirs joining an already-open transaction, the
// shape pkg/upload's finalizer calls from inside its own transaction.
func (c *Controller) EnsureDirsTx(ctx context.Context, tx metadata.Transaction, p vpath.Path, userID int64) ([]metadata.SFile, error) {
	segments := p.PartsWithoutRoot()
	if p.Kind() == vpath.KindFile {
		if len(segments) == 0 {
			return nil, metadata.NewBadOperationError("file path has no segments")
		}
		segments = segments[:len(segments)-1]
	}

	var created []metadata.SFile
	current := vpath.Root()
	parentID := metadata.RootSFileID

	for _, segment := range segments {
		next, err := current.PushDir(segment)
		if err != nil {
			return nil, vpathErr(current, err)
		}

		if existing, err := tx.GetEntry(ctx, parentID, segment, userID); err == nil {
			parentID = existing.ChildID
			current = next
			continue
		} else if !metadata.IsNotFoundError(err) {
			return nil, err
		}

		sf, entry, err := c.createNodeTx(ctx, tx, parentID, segment, userID, true, nil)
		if err != nil {
			if se, ok := err.(*metadata.StoreError); ok && se.Code == metadata.ErrPathAlreadyExists {
				existing, getErr := tx.GetEntry(ctx, parentID, segment, userID)
				if getErr != nil {
					return nil, getErr
				}
				parentID = existing.ChildID
				current = next
				continue
			}
			return nil, err
		}

		created = append(created, *sf)
		parentID = entry.ChildID
		current = next
	}

	return created, nil
}

// createNodeTx inserts one sfile and its owning entry atomically
// within tx. mediaID is nil for directories.
func (c *Controller) createNodeTx(ctx context.Context, tx metadata.Transaction, parentID int64, filename string, userID int64, isDir bool, mediaID *int64) (*metadata.SFile, *metadata.Entry, error) {
	sf, err := tx.InsertSFile(ctx, &metadata.SFile{
		IsDir:   isDir,
		MediaID: mediaID,
		UserID:  &userID,
	})
	if err != nil {
		return nil, nil, err
	}

	entry, err := tx.InsertEntry(ctx, &metadata.Entry{
		ParentID: parentID,
		ChildID:  sf.ID,
		Filename: filename,
		UserID:   userID,
	})
	if err != nil {
		return nil, nil, err
	}

	return sf, entry, nil
}

// CreateDir creates a single directory node at p, which must not
// already resolve, after ensuring its parent lineage exists.
func (c *Controller) CreateDir(ctx context.Context, p vpath.Path, userID int64) (*metadata.SFile, error) {
	if p.IsRoot() {
		return nil, metadata.NewBadOperationError("cannot create root")
	}
	if err := p.ErrIfFile(); err != nil {
		return nil, vpathErr(p, err)
	}

	var created *metadata.SFile
	err := c.store.WithTx(ctx, func(tx metadata.Transaction) error {
		parent, err := p.Parent()
		if err != nil {
			return vpathErr(p, err)
		}
		if _, err := c.EnsureDirsTx(ctx, tx, parent.AsDir(), userID); err != nil {
			return err
		}
		parentID, err := resolveTx(ctx, tx, parent, userID)
		if err != nil {
			return err
		}
		sf, _, err := c.createNodeTx(ctx, tx, parentID, p.Name(), userID, true, nil)
		if err != nil {
			return err
		}
		created = sf
		return nil
	})
	c.observeErr("create_dir", err)
	return created, err
}

// CreateFile creates a file node at p pointing at mediaID, ensuring
// directory lineage first. Most callers go through pkg/upload instead,
// which composes this with media dedup inside one transaction; this
// entry point exists for namespace-only callers (tests, admin tools).
func (c *Controller) CreateFile(ctx context.Context, p vpath.Path, mediaID int64, userID int64) (*metadata.SFile, error) {
	if p.IsRoot() {
		return nil, metadata.NewBadOperationError("cannot create root")
	}
	if err := p.ErrIfDir(); err != nil {
		return nil, vpathErr(p, err)
	}

	var created *metadata.SFile
	err := c.store.WithTx(ctx, func(tx metadata.Transaction) error {
		parent, err := p.Parent()
		if err != nil {
			return vpathErr(p, err)
		}
		if _, err := c.EnsureDirsTx(ctx, tx, parent.AsDir(), userID); err != nil {
			return err
		}
		parentID, err := resolveTx(ctx, tx, parent, userID)
		if err != nil {
			return err
		}
		sf, _, err := c.createNodeTx(ctx, tx, parentID, p.Name(), userID, false, &mediaID)
		if err != nil {
			return err
		}
		created = sf
		return nil
	})
	c.observeErr("create_file", err)
	return created, err
}

// Move resolves from and relocates it to to.parent()/to.name(), both
// in userID's namespace. Moving root, or moving a directory into one
// of its own descendants, fails with BadOperation.
func (c *Controller) Move(ctx context.Context, from, to vpath.Path, userID int64) error {
	if from.IsRoot() {
		return metadata.NewBadOperationError("cannot move root")
	}
	if to.ChildOf(from) {
		return metadata.NewBadOperationError("cannot move a path into its own subtree")
	}

	err := c.store.WithTx(ctx, func(tx metadata.Transaction) error {
		fromID, err := resolveTx(ctx, tx, from, userID)
		if err != nil {
			return err
		}
		toParent, err := to.Parent()
		if err != nil {
			return vpathErr(to, err)
		}
		toParentID, err := resolveTx(ctx, tx, toParent.AsDir(), userID)
		if err != nil {
			return err
		}
		return tx.UpdateEntryLocation(ctx, fromID, toParentID, to.Name(), userID)
	})
	c.observeErr("move", err)
	return err
}

// DeleteFile resolves path (which must name a file, not root or a
// directory), deletes its owning entry and sfile row, and — if no
// other sfile still references the same media — deletes the media row
// and its on-disk blob. onOrphanMedia is invoked with the media id to
// reclaim when the last reference is gone; pkg/vault wires this to
// the blob store's Remove so the blob delete participates in
// the same call without this package importing pkg/blobstore.
func (c *Controller) DeleteFile(ctx context.Context, path vpath.Path, userID int64, onOrphanMedia func(ctx context.Context, hash string) error) error {
	if path.IsRoot() {
		return metadata.NewBadOperationError("cannot delete root")
	}
	if err := path.ErrIfDir(); err != nil {
		return vpathErr(path, err)
	}

	var orphanedHash string
	err := c.store.WithTx(ctx, func(tx metadata.Transaction) error {
		id, err := resolveTx(ctx, tx, path, userID)
		if err != nil {
			return err
		}

		sf, err := tx.GetSFile(ctx, id)
		if err != nil {
			return err
		}
		if sf.MediaID == nil {
			return metadata.NewInternalError("file sfile has no media_id")
		}

		if _, err := tx.DeleteEntryByChild(ctx, id, userID); err != nil {
			return err
		}
		if err := tx.DeleteSFile(ctx, id); err != nil {
			return err
		}

		referenced, err := tx.HasSFilesReferencingMedia(ctx, *sf.MediaID)
		if err != nil {
			return err
		}
		if !referenced {
			media, err := tx.DeleteMedia(ctx, *sf.MediaID)
			if err != nil {
				return err
			}
			orphanedHash = media.Hash
		}
		return nil
	})
	if err != nil {
		c.observeErr("delete_file", err)
		return err
	}

	if orphanedHash != "" && onOrphanMedia != nil {
		if err := onOrphanMedia(ctx, orphanedHash); err != nil {
			if c.logger != nil {
				c.logger.Warn("namespace: failed to remove orphaned blob", "hash", orphanedHash, "error", err)
			}
		}
	}

	c.observe("delete_file", "ok")
	return nil
}

// SetVisibility flips the is_public flag on the sfile at path in
// userID's namespace.
func (c *Controller) SetVisibility(ctx context.Context, path vpath.Path, userID int64, public bool) (*metadata.SFile, error) {
	var updated *metadata.SFile
	err := c.store.WithTx(ctx, func(tx metadata.Transaction) error {
		id, err := resolveTx(ctx, tx, path, userID)
		if err != nil {
			return err
		}
		if err := tx.SetSFileVisibility(ctx, id, public); err != nil {
			return err
		}
		sf, err := tx.GetSFile(ctx, id)
		if err != nil {
			return err
		}
		updated = sf
		return nil
	})
	c.observeErr("set_visibility", err)
	return updated, err
}

func (c *Controller) observe(op, outcome string) {
	if c.metrics != nil {
		c.metrics.ObserveNamespaceOp(op, outcome)
	}
}

func (c *Controller) observeErr(op string, err error) {
	if err != nil {
		c.observe(op, "error")
		return
	}
	c.observe(op, "ok")
}
