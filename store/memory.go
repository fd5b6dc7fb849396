package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/demoforge/types"
)

// MemoryStore implements Store with in-process maps. It is used by tests and
// by single-process development runs without a database.
type MemoryStore struct {
	owners    *memoryOwnerStore
	documents *memoryDocumentStore
	artifacts *memoryArtifactStore
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		owners:    &memoryOwnerStore{byID: make(map[string]types.Owner), byIdentity: make(map[string]string)},
		documents: &memoryDocumentStore{byID: make(map[string]types.Document)},
		artifacts: &memoryArtifactStore{byID: make(map[string]types.Artifact)},
	}
}

func (s *MemoryStore) Owners() OwnerStore       { return s.owners }
func (s *MemoryStore) Documents() DocumentStore { return s.documents }
func (s *MemoryStore) Artifacts() ArtifactStore { return s.artifacts }

func (s *MemoryStore) HealthCheck(ctx context.Context) error { return ctx.Err() }

// ---------------------------------------------------------------------------
// Owners
// ---------------------------------------------------------------------------

type memoryOwnerStore struct {
	mu         sync.RWMutex
	byID       map[string]types.Owner
	byIdentity map[string]string
}

func (s *memoryOwnerStore) Ensure(ctx context.Context, owner *types.Owner) (*types.Owner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byIdentity[owner.IdentityKey]; ok {
		existing := s.byID[id]
		return &existing, nil
	}

	stored := *owner
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byID[stored.ID] = stored
	s.byIdentity[stored.IdentityKey] = stored.ID

	result := stored
	return &result, nil
}

func (s *memoryOwnerStore) Get(ctx context.Context, id string) (*types.Owner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := owner
	return &result, nil
}

func (s *memoryOwnerStore) GetByIdentityKey(ctx context.Context, identityKey string) (*types.Owner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentity[identityKey]
	if !ok {
		return nil, ErrNotFound
	}
	owner := s.byID[id]
	result := owner
	return &result, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

type memoryDocumentStore struct {
	mu   sync.RWMutex
	byID map[string]types.Document
}

func copyDocument(d types.Document) types.Document {
	out := d
	if d.ExtractedContent != nil {
		content := *d.ExtractedContent
		out.ExtractedContent = &content
	}
	if d.Metadata != nil {
		meta := *d.Metadata
		meta.Authors = append([]string(nil), d.Metadata.Authors...)
		meta.Keywords = append([]string(nil), d.Metadata.Keywords...)
		out.Metadata = &meta
	}
	return out
}

func (s *memoryDocumentStore) Insert(ctx context.Context, doc *types.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[doc.ID]; ok {
		return ErrDuplicate
	}

	stored := copyDocument(*doc)
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byID[stored.ID] = stored

	doc.CreatedAt = stored.CreatedAt
	doc.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *memoryDocumentStore) Get(ctx context.Context, id string) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := copyDocument(doc)
	return &result, nil
}

func (s *memoryDocumentStore) Patch(ctx context.Context, id string, patch types.DocumentPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := validateDocumentPatch(current.Status, patch); err != nil {
		return err
	}

	if patch.Title != nil {
		current.Title = *patch.Title
	}
	if patch.Status != nil {
		current.Status = *patch.Status
	}
	if patch.ExtractedContent != nil {
		content := *patch.ExtractedContent
		current.ExtractedContent = &content
	}
	if patch.Metadata != nil {
		meta := *patch.Metadata
		current.Metadata = &meta
	}
	current.UpdatedAt = time.Now().UTC()

	s.byID[id] = current
	return nil
}

func (s *memoryDocumentStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]types.Document, 0)
	for _, d := range s.byID {
		if d.OwnerID == ownerID {
			docs = append(docs, copyDocument(d))
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

type memoryArtifactStore struct {
	mu   sync.RWMutex
	byID map[string]types.Artifact
}

func copyArtifact(a types.Artifact) types.Artifact {
	out := a
	if a.Results != nil {
		results := *a.Results
		results.Logs = append([]string(nil), a.Results.Logs...)
		results.Errors = append([]string(nil), a.Results.Errors...)
		if a.Results.Render != nil {
			render := *a.Results.Render
			results.Render = &render
		}
		out.Results = &results
	}
	return out
}

func (s *memoryArtifactStore) Insert(ctx context.Context, artifact *types.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[artifact.ID]; ok {
		return ErrDuplicate
	}

	stored := copyArtifact(*artifact)
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byID[stored.ID] = stored

	artifact.CreatedAt = stored.CreatedAt
	artifact.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *memoryArtifactStore) Get(ctx context.Context, id string) (*types.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := copyArtifact(artifact)
	return &result, nil
}

func (s *memoryArtifactStore) Patch(ctx context.Context, id string, patch types.ArtifactPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := validateArtifactPatch(current.Status, patch); err != nil {
		return err
	}

	if patch.Status != nil {
		current.Status = *patch.Status
	}
	if patch.GeneratedCode != nil {
		current.GeneratedCode = *patch.GeneratedCode
	}
	if patch.Results != nil {
		results := copyArtifact(types.Artifact{Results: patch.Results}).Results
		current.Results = results
	}
	if patch.OutputBlobID != nil {
		current.OutputBlobID = *patch.OutputBlobID
	}
	current.UpdatedAt = time.Now().UTC()

	s.byID[id] = current
	return nil
}

func (s *memoryArtifactStore) ListByDocument(ctx context.Context, documentID string) ([]types.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	artifacts := make([]types.Artifact, 0)
	for _, a := range s.byID {
		if a.DocumentID == documentID {
			artifacts = append(artifacts, copyArtifact(a))
		}
	}
	sortArtifacts(artifacts)
	return artifacts, nil
}

func (s *memoryArtifactStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	artifacts := make([]types.Artifact, 0)
	for _, a := range s.byID {
		if a.OwnerID == ownerID {
			artifacts = append(artifacts, copyArtifact(a))
		}
	}
	sortArtifacts(artifacts)
	return artifacts, nil
}

func sortArtifacts(artifacts []types.Artifact) {
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].ID > artifacts[j].ID
		}
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})
}

var _ Store = (*MemoryStore)(nil)
