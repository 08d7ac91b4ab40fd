package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niooii/ocloud/pkg/blobstore"
)

func writeTemp(t *testing.T, dir, content string) string {
	t.Helper()
	f, err := os.CreateTemp(dir, "tmp_*")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestStore_PutShardsByHash(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, nil)
	require.NoError(t, err)

	hash := "ABCDEF0123456789"
	tmp := writeTemp(t, root, "hello")

	require.NoError(t, store.Put(context.Background(), tmp, hash))

	want := filepath.Join(root, "AB", "CD", "EF0123456789")
	assert.FileExists(t, want)
	assert.NoFileExists(t, tmp)
}

func TestStore_OpenStreamRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, nil)
	require.NoError(t, err)

	hash := "FF00112233445566"
	tmp := writeTemp(t, root, "payload bytes")
	require.NoError(t, store.Put(context.Background(), tmp, hash))

	rc, err := store.OpenStream(context.Background(), hash)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(data))
}

func TestStore_OpenStreamMissing(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, nil)
	require.NoError(t, err)

	_, err = store.OpenStream(context.Background(), "0000000000000000")
	assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
}

func TestStore_RemovePrunesEmptyShards(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, nil)
	require.NoError(t, err)

	hash := "112233445566778899"
	tmp := writeTemp(t, root, "x")
	require.NoError(t, store.Put(context.Background(), tmp, hash))

	require.NoError(t, store.Remove(context.Background(), hash))
	assert.NoFileExists(t, store.Path(hash))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "shard directories should be pruned back up to root")
}

func TestStore_NukeRecreatesEmptyRoot(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, nil)
	require.NoError(t, err)

	hash := "AABBCCDDEEFF0011"
	tmp := writeTemp(t, root, "doomed")
	require.NoError(t, store.Put(context.Background(), tmp, hash))

	require.NoError(t, store.Nuke(context.Background()))

	assert.DirExists(t, root)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_RemoveMissingIsNotFatal(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, nil)
	require.NoError(t, err)

	assert.NoError(t, store.Remove(context.Background(), "deadbeefdeadbeef"))
}
