package vault

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niooii/ocloud/pkg/blobstore/fs"
	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/metadatatest"
	"github.com/niooii/ocloud/pkg/vpath"
)

func newVault(t *testing.T) *Vault {
	t.Helper()
	store := metadatatest.New()
	blobs, err := fs.New(t.TempDir(), nil)
	require.NoError(t, err)
	return New(store, blobs, t.TempDir(), nil, nil)
}

func registerAndLogin(t *testing.T, v *Vault, username string) (*metadata.User, string) {
	t.Helper()
	ctx := context.Background()
	user, err := v.Register(ctx, username, username+"@example.com", "a-decent-password")
	require.NoError(t, err)
	_, sess, err := v.Login(ctx, username, "a-decent-password")
	require.NoError(t, err)
	return user, sess.ID
}

func TestVault_RegisterLoginLogout(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()

	user, sessID := registerAndLogin(t, v, "alice")
	me, count, err := v.Me(ctx, sessID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, 0, count)

	require.NoError(t, v.Logout(ctx, sessID))
	_, _, err = v.Me(ctx, sessID)
	assert.Error(t, err)
}

func TestVault_UploadRequiresAuth(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()

	_, err := v.Upload(ctx, "", vpath.Root(), "f.txt", bytes.NewReader([]byte("x")))
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthentication, se.Code)
}

func TestVault_UploadListGetDeleteRoundTrip(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	user, sess := registerAndLogin(t, v, "bob")

	sf, err := v.Upload(ctx, sess, vpath.Root(), "note.txt", bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	assert.False(t, sf.IsDir)

	nodes, err := v.List(ctx, sess, vpath.Root(), user.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "note.txt", nodes[0].Entry.Filename)

	rc, gotSF, err := v.Get(ctx, sess, mustParse(t, "root/note.txt"), user.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, sf.ID, gotSF.ID)

	require.NoError(t, v.Delete(ctx, sess, mustParse(t, "root/note.txt")))
	_, _, err = v.Get(ctx, sess, mustParse(t, "root/note.txt"), user.ID)
	assert.Error(t, err)
}

func TestVault_GetPrivateRequiresAuthAndOwnership(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	owner, ownerSess := registerAndLogin(t, v, "carol")
	_, err := v.Upload(ctx, ownerSess, vpath.Root(), "secret.txt", bytes.NewReader([]byte("shh")))
	require.NoError(t, err)

	_, _, err = v.Get(ctx, "", mustParse(t, "root/secret.txt"), owner.ID)
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthentication, se.Code)

	_, stranger := registerAndLogin(t, v, "dave")
	_, _, err = v.Get(ctx, stranger, mustParse(t, "root/secret.txt"), owner.ID)
	require.Error(t, err)
	se, ok = err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthorization, se.Code)
}

func TestVault_GetPublicAllowsAnonymous(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	owner, ownerSess := registerAndLogin(t, v, "erin")
	_, err := v.Upload(ctx, ownerSess, vpath.Root(), "open.txt", bytes.NewReader([]byte("public")))
	require.NoError(t, err)

	_, err = v.SetVisibility(ctx, ownerSess, mustParse(t, "root/open.txt"), true)
	require.NoError(t, err)

	rc, _, err := v.Get(ctx, "", mustParse(t, "root/open.txt"), owner.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "public", string(data))
}

func TestVault_DeleteIgnoresPublicFlag(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	_, sess := registerAndLogin(t, v, "frank")
	_, err := v.Upload(ctx, sess, vpath.Root(), "pub.txt", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	_, err = v.SetVisibility(ctx, sess, mustParse(t, "root/pub.txt"), true)
	require.NoError(t, err)

	err = v.Delete(ctx, "", mustParse(t, "root/pub.txt"))
	require.Error(t, err, "anonymous delete must be rejected even for a public file")
}

func TestVault_GrantThenViewerCanReadNotDelete(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	owner, ownerSess := registerAndLogin(t, v, "george")
	viewer, viewerSess := registerAndLogin(t, v, "harriet")

	_, err := v.Upload(ctx, ownerSess, vpath.Root(), "shared.txt", bytes.NewReader([]byte("shared")))
	require.NoError(t, err)

	require.NoError(t, v.Grant(ctx, ownerSess, mustParse(t, "root/shared.txt"), viewer.ID, metadata.RelViewer))

	rc, _, err := v.Get(ctx, viewerSess, mustParse(t, "root/shared.txt"), owner.ID)
	require.NoError(t, err)
	rc.Close()

	err = v.Delete(ctx, viewerSess, mustParse(t, "root/shared.txt"))
	require.Error(t, err, "viewer's delete of root/shared.txt resolves in the viewer's own namespace and must fail")
}

func TestVault_OwnerCanMove(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	_, sess := registerAndLogin(t, v, "irene")

	_, err := v.Upload(ctx, sess, vpath.Root(), "a.txt", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	moved, err := v.Move(ctx, sess, mustParse(t, "root/a.txt"), mustParse(t, "root/b.txt"))
	require.NoError(t, err)
	assert.NotNil(t, moved)
}

func TestVault_ListPrivateDirRequiresRead(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	owner, ownerSess := registerAndLogin(t, v, "judy")

	_, err := v.Upload(ctx, ownerSess, mustParse(t, "root/private/"), "s.txt", bytes.NewReader([]byte("s")))
	require.NoError(t, err)

	nodes, err := v.List(ctx, ownerSess, mustParse(t, "root/private/"), owner.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	_, strangerSess := registerAndLogin(t, v, "kevin")
	_, err = v.List(ctx, strangerSess, mustParse(t, "root/private/"), owner.ID)
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthorization, se.Code)

	viewer, viewerSess := registerAndLogin(t, v, "lena")
	require.NoError(t, v.Grant(ctx, ownerSess, mustParse(t, "root/private/"), viewer.ID, metadata.RelViewer))
	nodes, err = v.List(ctx, viewerSess, mustParse(t, "root/private/"), owner.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	_, err = v.List(ctx, "", mustParse(t, "root/private/"), owner.ID)
	require.Error(t, err)
	se, ok = err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthentication, se.Code)
}

func TestVault_NukeDestroysAllState(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	user, sess := registerAndLogin(t, v, "kate")

	_, err := v.Upload(ctx, sess, vpath.Root(), "doomed.txt", bytes.NewReader([]byte("gone")))
	require.NoError(t, err)

	require.NoError(t, v.Nuke(ctx))

	_, _, err = v.Me(ctx, sess)
	assert.Error(t, err, "sessions must not survive a nuke")
	_, err = v.List(ctx, sess, vpath.Root(), user.ID)
	assert.Error(t, err, "namespaces must not survive a nuke")
}

func mustParse(t *testing.T, s string) vpath.Path {
	t.Helper()
	p, err := vpath.Parse(s)
	require.NoError(t, err)
	return p
}
