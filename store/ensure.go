package store

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/demoforge/types"
)

// OwnerEnsurer resolves an authenticated Subject to its persisted Owner,
// creating the Owner on first access. Concurrent requests for the same
// identity key are collapsed into one backend call; the store's uniqueness
// constraint arbitrates across processes.
type OwnerEnsurer struct {
	owners OwnerStore
	group  singleflight.Group
}

// NewOwnerEnsurer wraps an OwnerStore.
func NewOwnerEnsurer(owners OwnerStore) *OwnerEnsurer {
	return &OwnerEnsurer{owners: owners}
}

// Ensure returns the Owner for the subject's identity key.
func (e *OwnerEnsurer) Ensure(ctx context.Context, subject types.Subject) (*types.Owner, error) {
	if !subject.Authenticated() {
		return nil, types.NewError(types.ErrUnauthenticated, "subject has no identity key")
	}

	v, err, _ := e.group.Do(subject.Key, func() (interface{}, error) {
		return e.owners.Ensure(ctx, &types.Owner{
			ID:          uuid.NewString(),
			IdentityKey: subject.Key,
			Email:       subject.Email,
			DisplayName: subject.Name,
			OrgKey:      subject.OrgKey,
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Owner), nil
}
