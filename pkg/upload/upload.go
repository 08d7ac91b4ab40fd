// Package upload implements the upload finalizer: the two-phase
// algorithm that streams an incoming byte source to a temp file while
// hashing it, then — inside a per-hash-serialized critical section —
// either dedups onto an existing media row or commits a fresh one,
// ensures directory lineage, and inserts the sfile/entry/relationship
// rows that make the upload visible in the user's namespace.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/niooii/ocloud/internal/metrics"
	"github.com/niooii/ocloud/pkg/blobstore"
	"github.com/niooii/ocloud/pkg/hashlock"
	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/namespace"
	"github.com/niooii/ocloud/pkg/vpath"
)

// Finalizer runs the two-phase upload algorithm over a blob store and
// metadata store, serializing concurrent uploads of identical content
// through a shared hashlock.Map.
type Finalizer struct {
	store   metadata.Store
	blobs   blobstore.Store
	ns      *namespace.Controller
	locks   *hashlock.Map
	tempDir string
	metrics *metrics.Collectors
	logger  *slog.Logger
}

// New constructs a Finalizer. tempDir is where Phase A writes its
// staging files before they are renamed into the blob store's sharded
// tree by blobs.Put; it must live on the same filesystem as the blob
// store's root for the rename in Put to succeed.
func New(store metadata.Store, blobs blobstore.Store, ns *namespace.Controller, locks *hashlock.Map, tempDir string, collectors *metrics.Collectors, logger *slog.Logger) *Finalizer {
	return &Finalizer{store: store, blobs: blobs, ns: ns, locks: locks, tempDir: tempDir, metrics: collectors, logger: logger}
}

// Result is what a successful Finish returns: the sfile now visible in
// the caller's namespace and whether the upload deduplicated onto an
// existing blob.
type Result struct {
	SFile     *metadata.SFile
	Duplicate bool
}

// Finish runs Phase A (streaming ingest and hashing) then Phase B (the
// hash-keyed critical section: dedup-or-insert media, ensure lineage,
// insert sfile/entry/relationship) and returns the new sfile.
func (f *Finalizer) Finish(ctx context.Context, src io.Reader, dir vpath.Path, filename string, userID int64) (*Result, error) {
	start := time.Now()

	tempPath, hash, size, err := f.ingest(ctx, src, filename)
	if err != nil {
		f.observe("error", time.Since(start))
		return nil, err
	}

	target, err := dir.PushFile(filename)
	if err != nil {
		os.Remove(tempPath)
		f.observe("error", time.Since(start))
		return nil, metadata.NewWrongPathTypeError(dir.String(), err.Error())
	}

	lockWaitStart := time.Now()
	release := f.locks.Lock(hash)
	if f.metrics != nil {
		f.metrics.ObserveHashlockWait(time.Since(lockWaitStart))
	}
	defer release()

	result, err := f.commit(ctx, tempPath, hash, size, target, userID)
	if err != nil {
		f.observe("error", time.Since(start))
		return nil, err
	}

	if result.Duplicate {
		f.observe("duplicate", time.Since(start))
	} else {
		f.observe("fresh", time.Since(start))
	}
	return result, nil
}

// ingest is Phase A: stream src to a temp file under tempDir while
// hashing it incrementally, returning the temp path, uppercase hex
// SHA-256 hash, and byte count. Any I/O error here deletes the temp
// file and leaves no database state changed.
func (f *Finalizer) ingest(ctx context.Context, src io.Reader, filename string) (tempPath string, hash string, size int64, err error) {
	tempName := fmt.Sprintf("tmp_%d_%s", time.Now().UnixMilli(), filename)
	tempPath = filepath.Join(f.tempDir, tempName)

	if err := os.MkdirAll(f.tempDir, 0o755); err != nil {
		return "", "", 0, metadata.NewIOError("failed to create temp upload directory")
	}
	out, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", 0, metadata.NewIOError("failed to create temp upload file")
	}

	hasher := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(out, hasher), src)
	closeErr := out.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(tempPath)
		if copyErr != nil {
			return "", "", 0, metadata.NewIOError("failed to stream upload: " + copyErr.Error())
		}
		return "", "", 0, metadata.NewIOError("failed to finalize upload temp file: " + closeErr.Error())
	}

	return tempPath, strings.ToUpper(hex.EncodeToString(hasher.Sum(nil))), n, nil
}

// commit is Phase B: the hashlock-serialized critical section. It
// opens one transaction that dedups-or-inserts the media row, ensures
// directory lineage, and inserts the owning sfile/entry/relationship
// rows, committing only once every write has succeeded.
func (f *Finalizer) commit(ctx context.Context, tempPath, hash string, size int64, target vpath.Path, userID int64) (*Result, error) {
	var result Result

	err := f.store.WithTx(ctx, func(tx metadata.Transaction) error {
		mediaID, duplicate, err := f.resolveMediaTx(ctx, tx, tempPath, hash, size)
		if err != nil {
			return err
		}
		result.Duplicate = duplicate

		parent, err := target.Parent()
		if err != nil {
			return metadata.NewWrongPathTypeError(target.String(), err.Error())
		}
		if _, err := f.ns.EnsureDirsTx(ctx, tx, parent.AsDir(), userID); err != nil {
			return err
		}

		parentID, err := f.ns.ResolveTx(ctx, tx, parent.AsDir(), userID)
		if err != nil {
			return err
		}

		sf, err := tx.InsertSFile(ctx, &metadata.SFile{
			IsDir:   false,
			MediaID: &mediaID,
			UserID:  &userID,
		})
		if err != nil {
			return err
		}

		if _, err := tx.InsertEntry(ctx, &metadata.Entry{
			ParentID: parentID,
			ChildID:  sf.ID,
			Filename: target.Name(),
			UserID:   userID,
		}); err != nil {
			return err
		}

		res, err := tx.GetOrCreateResource(ctx, metadata.ResourceTypeSFile, sf.ID)
		if err != nil {
			return err
		}
		if _, err := tx.InsertRelationship(ctx, &metadata.Relationship{
			UserID:     userID,
			ResourceID: res.ID,
			Kind:       metadata.RelOwner,
			GrantedBy:  userID,
		}); err != nil {
			return err
		}

		result.SFile = sf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// resolveMediaTx looks up a media row by hash. If one already exists
// (the deduplicated path) the temp file is discarded and its id is
// reused; otherwise a fresh media row is inserted and the temp file is
// moved into the blob store under its canonical path.
func (f *Finalizer) resolveMediaTx(ctx context.Context, tx metadata.Transaction, tempPath, hash string, size int64) (mediaID int64, duplicate bool, err error) {
	existing, err := tx.GetMediaByHash(ctx, hash)
	if err == nil {
		if rmErr := os.Remove(tempPath); rmErr != nil && f.logger != nil {
			f.logger.Warn("upload: failed to remove duplicate temp file", "path", tempPath, "error", rmErr)
		}
		return existing.ID, true, nil
	}
	if !metadata.IsNotFoundError(err) {
		return 0, false, err
	}

	media, err := tx.InsertMedia(ctx, &metadata.Media{Hash: hash, Size: size})
	if err != nil {
		return 0, false, err
	}

	if err := f.blobs.Put(ctx, tempPath, hash); err != nil {
		return 0, false, metadata.NewIOError("failed to store blob: " + err.Error())
	}

	return media.ID, false, nil
}

func (f *Finalizer) observe(outcome string, d time.Duration) {
	if f.metrics != nil {
		f.metrics.ObserveUpload(outcome, d)
	}
}
