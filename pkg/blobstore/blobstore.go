// Package blobstore defines the content-addressed blob store contract
// (C3): a content hash maps to exactly one on-disk (or object-store)
// blob. Implementations never look at the namespace or reference
// counts; that bookkeeping belongs to pkg/namespace and pkg/upload.
package blobstore

import (
	"context"
	"io"
)

// Store maps a hex SHA-256 content hash to a blob. Put is the only
// write path and is expected to be called at most once per distinct
// hash in steady state (pkg/upload serializes callers on the same hash
// via pkg/hashlock before it ever reaches Put).
type Store interface {
	// Put moves the file at tempPath into the store under hash,
	// replacing any existing blob at that hash. Implementations that
	// back onto a local filesystem must rename rather than copy: the
	// precondition is that tempPath lives on the same filesystem as
	// the store's root.
	Put(ctx context.Context, tempPath string, hash string) error

	// OpenStream returns a reader for the blob at hash, suitable for
	// streaming as an HTTP response body. The caller must close it.
	OpenStream(ctx context.Context, hash string) (io.ReadCloser, error)

	// Remove deletes the blob at hash. A missing blob is not an error:
	// by the time Remove is called the database row is already gone,
	// so the authoritative state has already moved on.
	Remove(ctx context.Context, hash string) error
}

// ErrBlobNotFound is returned by OpenStream when no blob exists for
// the given hash.
var ErrBlobNotFound = blobNotFoundError{}

type blobNotFoundError struct{}

func (blobNotFoundError) Error() string { return "blobstore: blob not found" }
