package upload

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niooii/ocloud/pkg/blobstore/fs"
	"github.com/niooii/ocloud/pkg/hashlock"
	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/metadatatest"
	"github.com/niooii/ocloud/pkg/namespace"
	"github.com/niooii/ocloud/pkg/vpath"
)

func newFinalizer(t *testing.T) (*Finalizer, metadata.Store, int64) {
	t.Helper()
	store := metadatatest.New()
	blobRoot := t.TempDir()
	blobs, err := fs.New(blobRoot, nil)
	require.NoError(t, err)

	ns := namespace.New(store, nil, nil)
	locks := hashlock.New()
	finalizer := New(store, blobs, ns, locks, t.TempDir(), nil, nil)

	u, err := store.InsertUser(context.Background(), &metadata.User{
		Username: "alice", Email: "alice@example.com", PasswordHash: "x", Active: true,
	})
	require.NoError(t, err)

	return finalizer, store, u.ID
}

func TestFinish_FreshUploadCreatesMediaAndSFile(t *testing.T) {
	finalizer, store, uid := newFinalizer(t)
	ctx := context.Background()

	result, err := finalizer.Finish(ctx, bytes.NewReader([]byte("hello world")), vpath.Root(), "hello.txt", uid)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.False(t, result.SFile.IsDir)
	require.NotNil(t, result.SFile.MediaID)

	media, err := store.GetMediaByID(ctx, *result.SFile.MediaID)
	require.NoError(t, err)
	assert.EqualValues(t, len("hello world"), media.Size)

	rc, err := finalizer.blobs.OpenStream(ctx, media.Hash)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFinish_DuplicateContentDedupsOntoSameMedia(t *testing.T) {
	finalizer, store, uid := newFinalizer(t)
	ctx := context.Background()

	first, err := finalizer.Finish(ctx, bytes.NewReader([]byte("identical bytes")), vpath.Root(), "a.txt", uid)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := finalizer.Finish(ctx, bytes.NewReader([]byte("identical bytes")), vpath.Root(), "b.txt", uid)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, *first.SFile.MediaID, *second.SFile.MediaID)

	referenced, err := store.HasSFilesReferencingMedia(ctx, *first.SFile.MediaID)
	require.NoError(t, err)
	assert.True(t, referenced)
}

func TestFinish_EnsuresDirectoryLineage(t *testing.T) {
	finalizer, store, uid := newFinalizer(t)
	ctx := context.Background()

	result, err := finalizer.Finish(ctx, bytes.NewReader([]byte("nested")), mustDir(t, "root/a/b/"), "c.txt", uid)
	require.NoError(t, err)
	require.NotNil(t, result.SFile)

	ns := namespace.New(store, nil, nil)
	id, err := ns.Resolve(ctx, mustPath(t, "root/a/b/c.txt"), uid)
	require.NoError(t, err)
	assert.Equal(t, result.SFile.ID, id)
}

func TestFinish_GrantsOwnerRelationship(t *testing.T) {
	finalizer, store, uid := newFinalizer(t)
	ctx := context.Background()

	result, err := finalizer.Finish(ctx, bytes.NewReader([]byte("owned")), vpath.Root(), "owned.txt", uid)
	require.NoError(t, err)

	res, err := store.GetOrCreateResource(ctx, metadata.ResourceTypeSFile, result.SFile.ID)
	require.NoError(t, err)

	rel, err := store.GetActiveRelationship(ctx, uid, res.ID, metadata.RelOwner)
	require.NoError(t, err)
	assert.Equal(t, uid, rel.GrantedBy)
}

func mustDir(t *testing.T, s string) vpath.Path {
	t.Helper()
	p, err := vpath.Parse(s)
	require.NoError(t, err)
	return p
}

func mustPath(t *testing.T, s string) vpath.Path {
	return mustDir(t, s)
}
