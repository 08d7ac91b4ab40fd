package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/metadatatest"
)

func TestRegisterAndLogin(t *testing.T) {
	store := metadatatest.New()
	a := New(store)
	ctx := context.Background()

	user, err := a.Register(ctx, "alice", "alice@example.com", "correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct horse battery staple", user.PasswordHash)

	loggedIn, sess, err := a.Login(ctx, "alice", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.Equal(t, user.ID, sess.UserID)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), sess.ExpiresAt, time.Minute)
}

func TestLogin_WrongPasswordFails(t *testing.T) {
	store := metadatatest.New()
	a := New(store)
	ctx := context.Background()

	_, err := a.Register(ctx, "bob", "bob@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, _, err = a.Login(ctx, "bob", "wrong-password")
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthentication, se.Code)
}

func TestLogin_UnknownUserFails(t *testing.T) {
	store := metadatatest.New()
	a := New(store)
	ctx := context.Background()

	_, _, err := a.Login(ctx, "nobody", "irrelevant")
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthentication, se.Code)
}

func TestValidate_ExpiredSessionDeleted(t *testing.T) {
	store := metadatatest.New()
	a := New(store)
	ctx := context.Background()

	user, err := a.Register(ctx, "dave", "dave@example.com", "whatever1234")
	require.NoError(t, err)

	expired := &metadata.Session{
		ID:         "expired-session",
		UserID:     user.ID,
		CreatedAt:  time.Now().Add(-2 * SessionTTL),
		ExpiresAt:  time.Now().Add(-time.Hour),
		AccessedAt: time.Now().Add(-2 * SessionTTL),
	}
	require.NoError(t, store.InsertSession(ctx, expired))

	_, _, err = a.Validate(ctx, "expired-session")
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthentication, se.Code)

	_, getErr := store.GetSession(ctx, "expired-session")
	assert.Error(t, getErr, "expired session should be deleted by Validate")
}

func TestValidate_UnknownSessionFails(t *testing.T) {
	store := metadatatest.New()
	a := New(store)

	_, _, err := a.Validate(context.Background(), "does-not-exist")
	require.Error(t, err)
	se, ok := err.(*metadata.StoreError)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrAuthentication, se.Code)
}

func TestValidate_TouchesSession(t *testing.T) {
	store := metadatatest.New()
	a := New(store)
	ctx := context.Background()

	_, err := a.Register(ctx, "erin", "erin@example.com", "anotherpass123")
	require.NoError(t, err)

	_, sess, err := a.Login(ctx, "erin", "anotherpass123")
	require.NoError(t, err)

	_, validated, err := a.Validate(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, validated.ID)

	touched, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, touched.AccessedAt.After(sess.AccessedAt), "Validate must advance the session's last-access time")
}

func TestLogout_DeletesSession(t *testing.T) {
	store := metadatatest.New()
	a := New(store)
	ctx := context.Background()

	_, err := a.Register(ctx, "frank", "frank@example.com", "yetanother123")
	require.NoError(t, err)
	_, sess, err := a.Login(ctx, "frank", "yetanother123")
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx, sess.ID))

	_, _, err = a.Validate(ctx, sess.ID)
	require.Error(t, err)
}
