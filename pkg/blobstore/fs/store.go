// Package fs implements blobstore.Store over a local, two-level
// sharded directory tree: blobs land via temp-then-rename, and shard
// directories are pruned best-effort once they empty out.
package fs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/niooii/ocloud/pkg/blobstore"
)

// Store is a filesystem-backed content-addressed blob store. The
// canonical path for hash h is <root>/<h[0:2]>/<h[2:4]>/<h[4:]>, a
// pure function of the hash.
//
// The store keeps no record of which blobs a media row references. A
// blob Put during a transaction that later rolls back stays on disk with
// no media row pointing at it, and nothing in this package removes it.
type Store struct {
	root   string
	logger *slog.Logger
}

var _ blobstore.Store = (*Store)(nil)

// New creates the blob root directory if absent and returns a ready
// Store.
func New(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.New("blobstore/fs: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, logger: logger}, nil
}

// Path returns the canonical on-disk path for hash, without touching
// the filesystem. Put creates the shard directories itself, so callers
// need not consult Path before writing.
func (s *Store) Path(hash string) string {
	return shardedPath(s.root, hash)
}

func shardedPath(root, hash string) string {
	if len(hash) < 4 {
		// Degenerate hashes (should never happen for SHA-256 hex)
		// still get a stable, if shallow, home rather than panicking.
		return filepath.Join(root, hash)
	}
	return filepath.Join(root, hash[0:2], hash[2:4], hash[4:])
}

// Put renames tempPath to the canonical path for hash, creating the
// two-level shard directory first. tempPath must live on the same
// filesystem as root (rename is used, not copy).
func (s *Store) Put(ctx context.Context, tempPath string, hash string) error {
	dest := shardedPath(s.root, hash)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.Rename(tempPath, dest); err != nil {
		return err
	}
	return nil
}

// OpenStream opens the blob at hash for reading.
func (s *Store) OpenStream(ctx context.Context, hash string) (io.ReadCloser, error) {
	f, err := os.Open(shardedPath(s.root, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, blobstore.ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes the blob at hash and prunes now-empty shard
// directories back up to root. A missing blob is not an error.
func (s *Store) Remove(ctx context.Context, hash string) error {
	path := shardedPath(s.root, hash)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		if s.logger != nil {
			s.logger.Warn("blobstore/fs: failed to remove blob", "hash", hash, "error", err)
		}
		return nil
	}
	s.cleanEmptyDirs(filepath.Dir(path))
	return nil
}

// Nuke removes the blob root and recreates it empty, destroying every
// stored blob. Callers are expected to keep this off any normal
// request path.
func (s *Store) Nuke(ctx context.Context) error {
	if err := os.RemoveAll(s.root); err != nil {
		return err
	}
	return os.MkdirAll(s.root, 0o755)
}

// cleanEmptyDirs removes now-empty shard directories up to (but not
// including) root. Stops at the first non-empty directory.
func (s *Store) cleanEmptyDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root) {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
}
