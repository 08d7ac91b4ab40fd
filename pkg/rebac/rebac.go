// Package rebac implements a relationship-based access control
// resolver: a fixed relationship-to-action matrix
// (owner/editor/viewer/none), an in-memory AuthContext built once per
// request from every unexpired relationship a user holds, and the
// Grant/Revoke operations that mutate the relationship table.
// Grant/Revoke come in paired forms: a public wrapper that opens its
// own transaction and a Tx-suffixed variant that joins the caller's.
package rebac

import (
	"context"

	"github.com/niooii/ocloud/pkg/metadata"
)

// Action is one of the five operations the matrix gates.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
	ActionDelete
	ActionShare
	ActionChangePermissions
)

// matrix[kind] is the set of actions that relationship kind grants.
// Encodes the fixed table exactly: owner grants everything, editor
// grants Read+Write, viewer grants Read only.
var matrix = map[metadata.RelationshipKind]map[Action]bool{
	metadata.RelOwner: {
		ActionRead:              true,
		ActionWrite:             true,
		ActionDelete:            true,
		ActionShare:             true,
		ActionChangePermissions: true,
	},
	metadata.RelEditor: {
		ActionRead:  true,
		ActionWrite: true,
	},
	metadata.RelViewer: {
		ActionRead: true,
	},
}

// grants reports whether holding kind covers action.
func grants(kind metadata.RelationshipKind, action Action) bool {
	return matrix[kind][action]
}

// grant is one loaded (resource_type, target_id, kind) fact.
type grant struct {
	resourceType string
	targetID     int64
	kind         metadata.RelationshipKind
}

// AuthContext is a per-request snapshot of every unexpired
// relationship a user holds, answering Has without further store
// access.
type AuthContext struct {
	userID int64
	grants []grant
}

// UserID returns the context's subject.
func (a *AuthContext) UserID() int64 {
	return a.userID
}

// Build loads every unexpired relationship userID holds (via the
// store's ListActiveRelationships, which already filters expiry) into
// an in-memory AuthContext. Resources in this domain are always typed
// "sfile" (see metadata.ResourceTypeSFile), so relationships are kept
// keyed directly on their Resource row id, the same id HasOnSFile is
// given by the caller after resolving an sfile to its Resource row.
func Build(ctx context.Context, store metadata.Transaction, userID int64) (*AuthContext, error) {
	rels, err := store.ListActiveRelationships(ctx, userID)
	if err != nil {
		return nil, err
	}

	ac := &AuthContext{userID: userID}
	for _, r := range rels {
		ac.grants = append(ac.grants, grant{
			resourceType: metadata.ResourceTypeSFile,
			targetID:     r.ResourceID,
			kind:         r.Kind,
		})
	}
	return ac, nil
}

// Has reports whether the context grants action on the sfile resource
// whose Resource row id is resourceID. Direct-ownership is not checked
// here — see HasOnSFile, which layers the sfiles.user_id shortcut on
// top of Has.
func (a *AuthContext) Has(resourceID int64, action Action) bool {
	for _, g := range a.grants {
		if g.resourceType == metadata.ResourceTypeSFile && g.targetID == resourceID && grants(g.kind, action) {
			return true
		}
	}
	return false
}

// HasOnSFile is the gate every namespace operation actually calls: the
// caller is granted action on sfile sf if they own it outright
// (sfiles.user_id == ctx.user, the authoritative path that always
// wins) or if Has returns true for sf's resource row.
//
// resourceID may be zero if no Resource row has ever been created for
// sf (nobody has ever been granted a relationship on it); in that case
// only the direct-ownership shortcut can grant access.
func (a *AuthContext) HasOnSFile(sf *metadata.SFile, resourceID int64, action Action) bool {
	if sf.UserID != nil && *sf.UserID == a.userID {
		return true
	}
	if resourceID == 0 {
		return false
	}
	return a.Has(resourceID, action)
}

// Grant records a new (target user, resource, kind) relationship on
// behalf of granter, after verifying granter owns sf outright — only
// the direct-ownership path is honored here, never a shared
// ChangePermissions relationship. A still-active duplicate grant is a
// ValidationError; an expired one may be re-granted.
func Grant(ctx context.Context, store metadata.Store, granterID int64, sf *metadata.SFile, targetUserID int64, kind metadata.RelationshipKind) (*metadata.Relationship, error) {
	var rel *metadata.Relationship
	err := store.WithTx(ctx, func(tx metadata.Transaction) error {
		var err error
		rel, err = GrantTx(ctx, tx, granterID, sf, targetUserID, kind)
		return err
	})
	return rel, err
}

// GrantTx is Grant joining an already-open transaction.
func GrantTx(ctx context.Context, tx metadata.Transaction, granterID int64, sf *metadata.SFile, targetUserID int64, kind metadata.RelationshipKind) (*metadata.Relationship, error) {
	if sf.UserID == nil || *sf.UserID != granterID {
		return nil, metadata.NewAuthorizationError("only the owner may grant or revoke relationships")
	}

	res, err := tx.GetOrCreateResource(ctx, metadata.ResourceTypeSFile, sf.ID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.GetActiveRelationship(ctx, targetUserID, res.ID, kind); err == nil {
		return nil, metadata.NewValidationError("relationship already exists")
	} else if !metadata.IsNotFoundError(err) {
		return nil, err
	}

	rel, err := tx.InsertRelationship(ctx, &metadata.Relationship{
		UserID:     targetUserID,
		ResourceID: res.ID,
		Kind:       kind,
		GrantedBy:  granterID,
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// Revoke removes the (targetUserID, sf's resource, kind) relationship,
// after the same owner-only verification Grant performs. Absence of
// the relationship is a ValidationError, not a not-found error, since
// the caller asked to remove a grant that was never made.
func Revoke(ctx context.Context, store metadata.Store, revokerID int64, sf *metadata.SFile, targetUserID int64, kind metadata.RelationshipKind) error {
	return store.WithTx(ctx, func(tx metadata.Transaction) error {
		return RevokeTx(ctx, tx, revokerID, sf, targetUserID, kind)
	})
}

// RevokeTx is Revoke joining an already-open transaction.
func RevokeTx(ctx context.Context, tx metadata.Transaction, revokerID int64, sf *metadata.SFile, targetUserID int64, kind metadata.RelationshipKind) error {
	if sf.UserID == nil || *sf.UserID != revokerID {
		return metadata.NewAuthorizationError("only the owner may grant or revoke relationships")
	}

	res, err := tx.GetOrCreateResource(ctx, metadata.ResourceTypeSFile, sf.ID)
	if err != nil {
		return err
	}

	if err := tx.DeleteRelationship(ctx, targetUserID, res.ID, kind); err != nil {
		if se, ok := err.(*metadata.StoreError); ok && se.Code == metadata.ErrPathDoesntExist {
			return metadata.NewValidationError("no such relationship to revoke")
		}
		return err
	}
	return nil
}
