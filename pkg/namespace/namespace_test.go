package namespace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/metadatatest"
	"github.com/niooii/ocloud/pkg/vpath"
)

func newController(t *testing.T) (*Controller, int64) {
	t.Helper()
	store := metadatatest.New()
	ctrl := New(store, nil, nil)

	var userID int64
	err := store.WithTx(context.Background(), func(tx metadata.Transaction) error {
		u, err := tx.InsertUser(context.Background(), &metadata.User{
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: "x",
			Active:       true,
		})
		if err != nil {
			return err
		}
		userID = u.ID
		return nil
	})
	require.NoError(t, err)
	return ctrl, userID
}

func mustParse(t *testing.T, s string) vpath.Path {
	t.Helper()
	p, err := vpath.Parse(s)
	require.NoError(t, err)
	return p
}

func TestController_EnsureDirsCreatesLineage(t *testing.T) {
	ctrl, uid := newController(t)
	ctx := context.Background()

	created, err := ctrl.EnsureDirs(ctx, mustParse(t, "root/a/b/c/"), uid)
	require.NoError(t, err)
	assert.Len(t, created, 3)

	id, err := ctrl.Resolve(ctx, mustParse(t, "root/a/b/c/"), uid)
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestController_EnsureDirsIsIdempotent(t *testing.T) {
	ctrl, uid := newController(t)
	ctx := context.Background()

	_, err := ctrl.EnsureDirs(ctx, mustParse(t, "root/a/b/"), uid)
	require.NoError(t, err)

	created, err := ctrl.EnsureDirs(ctx, mustParse(t, "root/a/b/"), uid)
	require.NoError(t, err)
	assert.Empty(t, created, "re-ensuring existing dirs should create nothing new")
}

func TestController_ResolveMissingPath(t *testing.T) {
	ctrl, uid := newController(t)
	ctx := context.Background()

	_, err := ctrl.Resolve(ctx, mustParse(t, "root/nope/"), uid)
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrPathDoesntExist, se.Code)
}

func TestController_CreateDirThenList(t *testing.T) {
	ctrl, uid := newController(t)
	ctx := context.Background()

	_, err := ctrl.CreateDir(ctx, mustParse(t, "root/docs/"), uid)
	require.NoError(t, err)

	nodes, err := ctrl.List(ctx, vpath.Root(), uid)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "docs", nodes[0].Entry.Filename)
	assert.True(t, nodes[0].SFile.IsDir)
	assert.Equal(t, "root/docs/", nodes[0].FullPath.String())
}

func TestController_CreateDirConflict(t *testing.T) {
	ctrl, uid := newController(t)
	ctx := context.Background()

	_, err := ctrl.CreateDir(ctx, mustParse(t, "root/docs/"), uid)
	require.NoError(t, err)

	_, err = ctrl.CreateDir(ctx, mustParse(t, "root/docs/"), uid)
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrPathAlreadyExists, se.Code)
}

func TestController_CreateFileAndDeleteReclaimsMedia(t *testing.T) {
	ctrl, uid := newController(t)
	store := metadatatest.New()
	ctrl = New(store, nil, nil)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx metadata.Transaction) error {
		u, err := tx.InsertUser(ctx, &metadata.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Active: true})
		if err != nil {
			return err
		}
		uid = u.ID
		return nil
	})
	require.NoError(t, err)

	var mediaID int64
	err = store.WithTx(ctx, func(tx metadata.Transaction) error {
		m, err := tx.InsertMedia(ctx, &metadata.Media{Hash: "deadbeef", Size: 5})
		if err != nil {
			return err
		}
		mediaID = m.ID
		return nil
	})
	require.NoError(t, err)

	_, err = ctrl.CreateFile(ctx, mustParse(t, "root/a.txt"), mediaID, uid)
	require.NoError(t, err)

	var orphaned string
	err = ctrl.DeleteFile(ctx, mustParse(t, "root/a.txt"), uid, func(ctx context.Context, hash string) error {
		orphaned = hash
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", orphaned, "last reference removed should invoke onOrphanMedia with the blob hash")

	_, err = ctrl.Resolve(ctx, mustParse(t, "root/a.txt"), uid)
	assert.Error(t, err, "deleted file should no longer resolve")
}

func TestController_DeleteFileKeepsMediaWhileReferenced(t *testing.T) {
	store := metadatatest.New()
	ctrl := New(store, nil, nil)
	ctx := context.Background()

	var uid int64
	err := store.WithTx(ctx, func(tx metadata.Transaction) error {
		u, err := tx.InsertUser(ctx, &metadata.User{Username: "carol", Email: "carol@example.com", PasswordHash: "x", Active: true})
		if err != nil {
			return err
		}
		uid = u.ID
		return nil
	})
	require.NoError(t, err)

	var mediaID int64
	err = store.WithTx(ctx, func(tx metadata.Transaction) error {
		m, err := tx.InsertMedia(ctx, &metadata.Media{Hash: "cafef00d", Size: 5})
		if err != nil {
			return err
		}
		mediaID = m.ID
		return nil
	})
	require.NoError(t, err)

	_, err = ctrl.CreateFile(ctx, mustParse(t, "root/one.txt"), mediaID, uid)
	require.NoError(t, err)
	_, err = ctrl.CreateFile(ctx, mustParse(t, "root/two.txt"), mediaID, uid)
	require.NoError(t, err)

	called := false
	err = ctrl.DeleteFile(ctx, mustParse(t, "root/one.txt"), uid, func(ctx context.Context, hash string) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "onOrphanMedia must not fire while another sfile still references the media")

	_, err = ctrl.Resolve(ctx, mustParse(t, "root/two.txt"), uid)
	assert.NoError(t, err)
}

func TestController_MoveRejectsRootAndSelfNesting(t *testing.T) {
	ctrl, uid := newController(t)
	ctx := context.Background()

	err := ctrl.Move(ctx, vpath.Root(), mustParse(t, "root/x/"), uid)
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrBadOperation, se.Code)

	_, err = ctrl.CreateDir(ctx, mustParse(t, "root/a/"), uid)
	require.NoError(t, err)
	err = ctrl.Move(ctx, mustParse(t, "root/a/"), mustParse(t, "root/a/b/"), uid)
	require.Error(t, err)
	se, ok = err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrBadOperation, se.Code)
}

func TestController_MoveRelocatesEntry(t *testing.T) {
	ctrl, uid := newController(t)
	ctx := context.Background()

	_, err := ctrl.CreateDir(ctx, mustParse(t, "root/src/"), uid)
	require.NoError(t, err)
	_, err = ctrl.CreateDir(ctx, mustParse(t, "root/dst/"), uid)
	require.NoError(t, err)

	err = ctrl.Move(ctx, mustParse(t, "root/src/"), mustParse(t, "root/dst/src/"), uid)
	require.NoError(t, err)

	_, err = ctrl.Resolve(ctx, mustParse(t, "root/src/"), uid)
	assert.Error(t, err)
	_, err = ctrl.Resolve(ctx, mustParse(t, "root/dst/src/"), uid)
	assert.NoError(t, err)
}

func TestController_SetVisibilityToggles(t *testing.T) {
	ctrl, uid := newController(t)
	ctx := context.Background()

	sf, err := ctrl.CreateDir(ctx, mustParse(t, "root/shared/"), uid)
	require.NoError(t, err)
	assert.False(t, sf.IsPublic)

	updated, err := ctrl.SetVisibility(ctx, mustParse(t, "root/shared/"), uid, true)
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
}
