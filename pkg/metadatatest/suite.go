package metadatatest

import (
	"context"
	"testing"

	"github.com/niooii/ocloud/pkg/metadata"
)

// StoreFactory creates a fresh metadata.Store for each test. The
// factory receives *testing.T so implementations needing a filesystem
// path or external process can use t.TempDir()/t.Cleanup().
type StoreFactory func(t *testing.T) metadata.Store

// RunConformanceSuite exercises any metadata.Store implementation
// against the same behavioral contract this package's in-memory Store
// satisfies, so pkg/metadata/postgres can be run through identical
// assertions.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("Users", func(t *testing.T) { runUserTests(t, factory) })
	t.Run("Sessions", func(t *testing.T) { runSessionTests(t, factory) })
	t.Run("MediaDedup", func(t *testing.T) { runMediaTests(t, factory) })
	t.Run("Entries", func(t *testing.T) { runEntryTests(t, factory) })
	t.Run("Relationships", func(t *testing.T) { runRelationshipTests(t, factory) })
	t.Run("Transactions", func(t *testing.T) { runTransactionTests(t, factory) })
}

func mustInsertUser(t *testing.T, ctx context.Context, store metadata.Store, username string) *metadata.User {
	t.Helper()
	u, err := store.InsertUser(ctx, &metadata.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("InsertUser(%q) failed: %v", username, err)
	}
	return u
}

func runUserTests(t *testing.T, factory StoreFactory) {
	ctx := context.Background()

	t.Run("InsertAndGetByID", func(t *testing.T) {
		store := factory(t)
		u := mustInsertUser(t, ctx, store, "alice")
		got, err := store.GetUserByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if got.Username != "alice" {
			t.Fatalf("expected username alice, got %q", got.Username)
		}
	})

	t.Run("DuplicateUsernameRejected", func(t *testing.T) {
		store := factory(t)
		mustInsertUser(t, ctx, store, "bob")
		_, err := store.InsertUser(ctx, &metadata.User{Username: "bob", Email: "other@example.com", PasswordHash: "x", Active: true})
		if err == nil {
			t.Fatal("expected duplicate username to fail")
		}
	})

	t.Run("GetByUsernameOrEmail", func(t *testing.T) {
		store := factory(t)
		mustInsertUser(t, ctx, store, "carol")
		got, err := store.GetUserByUsernameOrEmail(ctx, "carol@example.com")
		if err != nil {
			t.Fatalf("lookup by email failed: %v", err)
		}
		if got.Username != "carol" {
			t.Fatalf("expected carol, got %q", got.Username)
		}
	})
}

func runSessionTests(t *testing.T, factory StoreFactory) {
	ctx := context.Background()

	t.Run("InsertGetDelete", func(t *testing.T) {
		store := factory(t)
		u := mustInsertUser(t, ctx, store, "dave")
		sessID := "00000000-0000-4000-8000-000000000001"
		sess := &metadata.Session{ID: sessID, UserID: u.ID}
		if err := store.InsertSession(ctx, sess); err != nil {
			t.Fatalf("InsertSession failed: %v", err)
		}
		got, err := store.GetSession(ctx, sessID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got.UserID != u.ID {
			t.Fatalf("session user mismatch")
		}
		if err := store.DeleteSession(ctx, sessID); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		if _, err := store.GetSession(ctx, sessID); err == nil {
			t.Fatal("expected deleted session lookup to fail")
		}
	})
}

func runMediaTests(t *testing.T, factory StoreFactory) {
	ctx := context.Background()

	t.Run("InsertAndLookupByHash", func(t *testing.T) {
		store := factory(t)
		m, err := store.InsertMedia(ctx, &metadata.Media{Hash: "abc123", Size: 42})
		if err != nil {
			t.Fatalf("InsertMedia failed: %v", err)
		}
		got, err := store.GetMediaByHash(ctx, "abc123")
		if err != nil {
			t.Fatalf("GetMediaByHash failed: %v", err)
		}
		if got.ID != m.ID {
			t.Fatalf("media id mismatch")
		}
	})

	t.Run("DuplicateHashRejected", func(t *testing.T) {
		store := factory(t)
		if _, err := store.InsertMedia(ctx, &metadata.Media{Hash: "dup", Size: 1}); err != nil {
			t.Fatalf("first insert failed: %v", err)
		}
		if _, err := store.InsertMedia(ctx, &metadata.Media{Hash: "dup", Size: 2}); err == nil {
			t.Fatal("expected duplicate hash insert to fail")
		}
	})

	t.Run("ReferenceExistence", func(t *testing.T) {
		store := factory(t)
		u := mustInsertUser(t, ctx, store, "erin")
		m, err := store.InsertMedia(ctx, &metadata.Media{Hash: "refd", Size: 10})
		if err != nil {
			t.Fatalf("InsertMedia failed: %v", err)
		}

		has, err := store.HasSFilesReferencingMedia(ctx, m.ID)
		if err != nil {
			t.Fatalf("HasSFilesReferencingMedia failed: %v", err)
		}
		if has {
			t.Fatal("fresh media must not be referenced yet")
		}

		if _, err := store.InsertSFile(ctx, &metadata.SFile{IsDir: false, MediaID: &m.ID, UserID: &u.ID}); err != nil {
			t.Fatalf("InsertSFile failed: %v", err)
		}
		has, err = store.HasSFilesReferencingMedia(ctx, m.ID)
		if err != nil {
			t.Fatalf("HasSFilesReferencingMedia failed: %v", err)
		}
		if !has {
			t.Fatal("expected media to be referenced after InsertSFile")
		}
	})
}

func runEntryTests(t *testing.T, factory StoreFactory) {
	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
		store := factory(t)
		u := mustInsertUser(t, ctx, store, "frank")
		sf, err := store.InsertSFile(ctx, &metadata.SFile{IsDir: true, UserID: &u.ID})
		if err != nil {
			t.Fatalf("InsertSFile failed: %v", err)
		}
		if _, err := store.InsertEntry(ctx, &metadata.Entry{ParentID: metadata.RootSFileID, ChildID: sf.ID, Filename: "docs", UserID: u.ID}); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
		got, err := store.GetEntry(ctx, metadata.RootSFileID, "docs", u.ID)
		if err != nil {
			t.Fatalf("GetEntry failed: %v", err)
		}
		if got.ChildID != sf.ID {
			t.Fatalf("entry child mismatch")
		}
	})

	t.Run("DuplicateFilenameRejected", func(t *testing.T) {
		store := factory(t)
		u := mustInsertUser(t, ctx, store, "george")
		sf1, _ := store.InsertSFile(ctx, &metadata.SFile{IsDir: true, UserID: &u.ID})
		sf2, _ := store.InsertSFile(ctx, &metadata.SFile{IsDir: true, UserID: &u.ID})
		if _, err := store.InsertEntry(ctx, &metadata.Entry{ParentID: metadata.RootSFileID, ChildID: sf1.ID, Filename: "dup", UserID: u.ID}); err != nil {
			t.Fatalf("first InsertEntry failed: %v", err)
		}
		if _, err := store.InsertEntry(ctx, &metadata.Entry{ParentID: metadata.RootSFileID, ChildID: sf2.ID, Filename: "dup", UserID: u.ID}); err == nil {
			t.Fatal("expected duplicate (parent, filename, user) to fail")
		}
	})

	t.Run("UpdateLocationMoves", func(t *testing.T) {
		store := factory(t)
		u := mustInsertUser(t, ctx, store, "hank")
		dir, _ := store.InsertSFile(ctx, &metadata.SFile{IsDir: true, UserID: &u.ID})
		if _, err := store.InsertEntry(ctx, &metadata.Entry{ParentID: metadata.RootSFileID, ChildID: dir.ID, Filename: "target", UserID: u.ID}); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
		if err := store.UpdateEntryLocation(ctx, dir.ID, metadata.RootSFileID, "renamed", u.ID); err != nil {
			t.Fatalf("UpdateEntryLocation failed: %v", err)
		}
		if _, err := store.GetEntry(ctx, metadata.RootSFileID, "target", u.ID); err == nil {
			t.Fatal("old name should no longer resolve")
		}
		if _, err := store.GetEntry(ctx, metadata.RootSFileID, "renamed", u.ID); err != nil {
			t.Fatalf("new name should resolve: %v", err)
		}
	})
}

func runRelationshipTests(t *testing.T, factory StoreFactory) {
	ctx := context.Background()

	t.Run("GrantAndCheck", func(t *testing.T) {
		store := factory(t)
		owner := mustInsertUser(t, ctx, store, "ivan")
		viewer := mustInsertUser(t, ctx, store, "judy")
		sf, _ := store.InsertSFile(ctx, &metadata.SFile{IsDir: true, UserID: &owner.ID})
		res, err := store.GetOrCreateResource(ctx, metadata.ResourceTypeSFile, sf.ID)
		if err != nil {
			t.Fatalf("GetOrCreateResource failed: %v", err)
		}
		if _, err := store.InsertRelationship(ctx, &metadata.Relationship{UserID: viewer.ID, ResourceID: res.ID, Kind: metadata.RelViewer, GrantedBy: owner.ID}); err != nil {
			t.Fatalf("InsertRelationship failed: %v", err)
		}
		rel, err := store.GetActiveRelationship(ctx, viewer.ID, res.ID, metadata.RelViewer)
		if err != nil {
			t.Fatalf("GetActiveRelationship failed: %v", err)
		}
		if rel.Kind != metadata.RelViewer {
			t.Fatalf("expected viewer relationship")
		}
	})

	t.Run("DuplicateGrantRejected", func(t *testing.T) {
		store := factory(t)
		owner := mustInsertUser(t, ctx, store, "karl")
		viewer := mustInsertUser(t, ctx, store, "lena")
		sf, _ := store.InsertSFile(ctx, &metadata.SFile{IsDir: true, UserID: &owner.ID})
		res, _ := store.GetOrCreateResource(ctx, metadata.ResourceTypeSFile, sf.ID)
		if _, err := store.InsertRelationship(ctx, &metadata.Relationship{UserID: viewer.ID, ResourceID: res.ID, Kind: metadata.RelEditor, GrantedBy: owner.ID}); err != nil {
			t.Fatalf("first grant failed: %v", err)
		}
		if _, err := store.InsertRelationship(ctx, &metadata.Relationship{UserID: viewer.ID, ResourceID: res.ID, Kind: metadata.RelEditor, GrantedBy: owner.ID}); err == nil {
			t.Fatal("expected duplicate grant to fail")
		}
	})

	t.Run("RevokeRemovesGrant", func(t *testing.T) {
		store := factory(t)
		owner := mustInsertUser(t, ctx, store, "mike")
		viewer := mustInsertUser(t, ctx, store, "nora")
		sf, _ := store.InsertSFile(ctx, &metadata.SFile{IsDir: true, UserID: &owner.ID})
		res, _ := store.GetOrCreateResource(ctx, metadata.ResourceTypeSFile, sf.ID)
		if _, err := store.InsertRelationship(ctx, &metadata.Relationship{UserID: viewer.ID, ResourceID: res.ID, Kind: metadata.RelViewer, GrantedBy: owner.ID}); err != nil {
			t.Fatalf("grant failed: %v", err)
		}
		if err := store.DeleteRelationship(ctx, viewer.ID, res.ID, metadata.RelViewer); err != nil {
			t.Fatalf("DeleteRelationship failed: %v", err)
		}
		if _, err := store.GetActiveRelationship(ctx, viewer.ID, res.ID, metadata.RelViewer); err == nil {
			t.Fatal("expected relationship lookup to fail after revoke")
		}
	})
}

func runTransactionTests(t *testing.T, factory StoreFactory) {
	ctx := context.Background()

	t.Run("RollbackDiscardsWrites", func(t *testing.T) {
		store := factory(t)
		wantErr := metadata.NewInternalError("boom")
		err := store.WithTx(ctx, func(tx metadata.Transaction) error {
			if _, err := tx.InsertUser(ctx, &metadata.User{Username: "olive", Email: "olive@example.com", PasswordHash: "x", Active: true}); err != nil {
				return err
			}
			return wantErr
		})
		if err != wantErr {
			t.Fatalf("expected WithTx to propagate the closure error, got %v", err)
		}
		if _, err := store.GetUserByUsernameOrEmail(ctx, "olive"); err == nil {
			t.Fatal("rolled-back insert should not be visible")
		}
	})

	t.Run("CommitPersistsWrites", func(t *testing.T) {
		store := factory(t)
		err := store.WithTx(ctx, func(tx metadata.Transaction) error {
			_, err := tx.InsertUser(ctx, &metadata.User{Username: "pete", Email: "pete@example.com", PasswordHash: "x", Active: true})
			return err
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
		if _, err := store.GetUserByUsernameOrEmail(ctx, "pete"); err != nil {
			t.Fatalf("committed insert should be visible: %v", err)
		}
	})
}
