// Package store persists Owners, Documents and Artifacts.
//
// Three backends implement the same contract: gorm (postgres/mysql/sqlite),
// mongo, and an in-memory store for tests and single-process development.
// All backends guarantee read-your-writes: a Get issued after a successful
// Insert or Patch observes the write.
//
// Patches are partial: nil patch fields leave the stored column untouched,
// and a patch is applied atomically or not at all. Status changes are
// validated against the closed transition graphs in the types package, so an
// invalid transition or a write to a terminal record fails regardless of
// which backend is in use.
package store

import (
	"context"
	"errors"

	"github.com/BaSui01/demoforge/types"
)

var (
	// ErrNotFound is returned when no record matches the given ID.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate key")

	// ErrInvalidTransition is returned when a patch asks for a status change
	// the transition graph does not allow.
	ErrInvalidTransition = errors.New("store: invalid status transition")

	// ErrImmutable is returned when a patch targets a record whose status is
	// terminal.
	ErrImmutable = errors.New("store: record is terminal")

	// ErrEmptyPatch is returned when a patch carries no changes.
	ErrEmptyPatch = errors.New("store: empty patch")
)

// OwnerStore persists Owners.
type OwnerStore interface {
	// Ensure returns the Owner for the given identity key, creating it if
	// absent. Concurrent calls for the same key converge on one record.
	Ensure(ctx context.Context, owner *types.Owner) (*types.Owner, error)

	// Get loads an Owner by ID.
	Get(ctx context.Context, id string) (*types.Owner, error)

	// GetByIdentityKey loads an Owner by its external identity key.
	GetByIdentityKey(ctx context.Context, identityKey string) (*types.Owner, error)
}

// DocumentStore persists Documents.
type DocumentStore interface {
	Insert(ctx context.Context, doc *types.Document) error
	Get(ctx context.Context, id string) (*types.Document, error)
	Patch(ctx context.Context, id string, patch types.DocumentPatch) error

	// ListByOwner returns the owner's documents, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]types.Document, error)
}

// ArtifactStore persists Artifacts.
type ArtifactStore interface {
	Insert(ctx context.Context, artifact *types.Artifact) error
	Get(ctx context.Context, id string) (*types.Artifact, error)
	Patch(ctx context.Context, id string, patch types.ArtifactPatch) error

	// ListByDocument returns the document's artifacts, newest first.
	ListByDocument(ctx context.Context, documentID string) ([]types.Artifact, error)

	// ListByOwner returns the owner's artifacts, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]types.Artifact, error)
}

// Store bundles the three entity stores behind one backend.
type Store interface {
	Owners() OwnerStore
	Documents() DocumentStore
	Artifacts() ArtifactStore

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// validateDocumentPatch applies the shared patch rules for documents.
func validateDocumentPatch(current types.DocumentStatus, patch types.DocumentPatch) error {
	if patch.IsZero() {
		return ErrEmptyPatch
	}
	if current.IsTerminal() {
		return ErrImmutable
	}
	if patch.Status != nil && !current.CanTransition(*patch.Status) {
		return ErrInvalidTransition
	}
	return nil
}

// validateArtifactPatch applies the shared patch rules for artifacts.
func validateArtifactPatch(current types.ArtifactStatus, patch types.ArtifactPatch) error {
	if patch.IsZero() {
		return ErrEmptyPatch
	}
	if current.IsTerminal() {
		return ErrImmutable
	}
	if patch.Status != nil && !current.CanTransition(*patch.Status) {
		return ErrInvalidTransition
	}
	return nil
}
