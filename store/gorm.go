package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/demoforge/types"
)

// GormStore implements Store on a gorm.DB. The same implementation serves
// postgres, mysql and sqlite; dialect differences are handled by gorm.
type GormStore struct {
	db        *gorm.DB
	owners    *gormOwnerStore
	documents *gormDocumentStore
	artifacts *gormArtifactStore
}

// NewGormStore wraps an open gorm.DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:        db,
		owners:    &gormOwnerStore{db: db},
		documents: &gormDocumentStore{db: db},
		artifacts: &gormArtifactStore{db: db},
	}
}

// AutoMigrate creates or updates the schema for all entities. Intended for
// sqlite and development; production deployments use versioned migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&types.Owner{}, &types.Document{}, &types.Artifact{})
}

func (s *GormStore) Owners() OwnerStore       { return s.owners }
func (s *GormStore) Documents() DocumentStore { return s.documents }
func (s *GormStore) Artifacts() ArtifactStore { return s.artifacts }

func (s *GormStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translateGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicateError(err) {
		return ErrDuplicate
	}
	return err
}

// isDuplicateError matches uniqueness violations across dialects. The
// string checks cover drivers without TranslateError support.
func isDuplicateError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

// ---------------------------------------------------------------------------
// Owners
// ---------------------------------------------------------------------------

type gormOwnerStore struct {
	db *gorm.DB
}

func (s *gormOwnerStore) Ensure(ctx context.Context, owner *types.Owner) (*types.Owner, error) {
	// Insert-if-absent keyed on identity_key; the unique index arbitrates
	// races between processes, DoNothing keeps the loser's insert silent.
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity_key"}},
			DoNothing: true,
		}).
		Create(owner).Error
	if err != nil && !isDuplicateError(err) {
		return nil, err
	}

	var existing types.Owner
	if err := s.db.WithContext(ctx).Where("identity_key = ?", owner.IdentityKey).First(&existing).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &existing, nil
}

func (s *gormOwnerStore) Get(ctx context.Context, id string) (*types.Owner, error) {
	var owner types.Owner
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&owner).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &owner, nil
}

func (s *gormOwnerStore) GetByIdentityKey(ctx context.Context, identityKey string) (*types.Owner, error) {
	var owner types.Owner
	if err := s.db.WithContext(ctx).Where("identity_key = ?", identityKey).First(&owner).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &owner, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

type gormDocumentStore struct {
	db *gorm.DB
}

func (s *gormDocumentStore) Insert(ctx context.Context, doc *types.Document) error {
	return translateGormError(s.db.WithContext(ctx).Create(doc).Error)
}

func (s *gormDocumentStore) Get(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &doc, nil
}

func (s *gormDocumentStore) Patch(ctx context.Context, id string, patch types.DocumentPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current types.Document
		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			return translateGormError(err)
		}
		if err := validateDocumentPatch(current.Status, patch); err != nil {
			return err
		}

		updates := types.Document{}
		fields := make([]string, 0, 4)
		if patch.Title != nil {
			updates.Title = *patch.Title
			fields = append(fields, "title")
		}
		if patch.Status != nil {
			updates.Status = *patch.Status
			fields = append(fields, "status")
		}
		if patch.ExtractedContent != nil {
			updates.ExtractedContent = patch.ExtractedContent
			fields = append(fields, "extracted_content")
		}
		if patch.Metadata != nil {
			updates.Metadata = patch.Metadata
			fields = append(fields, "metadata")
		}

		return tx.Model(&types.Document{}).
			Where("id = ?", id).
			Select(fields).
			Updates(updates).Error
	})
}

func (s *gormDocumentStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Document, error) {
	var docs []types.Document
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

type gormArtifactStore struct {
	db *gorm.DB
}

func (s *gormArtifactStore) Insert(ctx context.Context, artifact *types.Artifact) error {
	return translateGormError(s.db.WithContext(ctx).Create(artifact).Error)
}

func (s *gormArtifactStore) Get(ctx context.Context, id string) (*types.Artifact, error) {
	var artifact types.Artifact
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&artifact).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &artifact, nil
}

func (s *gormArtifactStore) Patch(ctx context.Context, id string, patch types.ArtifactPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current types.Artifact
		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			return translateGormError(err)
		}
		if err := validateArtifactPatch(current.Status, patch); err != nil {
			return err
		}

		updates := types.Artifact{}
		fields := make([]string, 0, 4)
		if patch.Status != nil {
			updates.Status = *patch.Status
			fields = append(fields, "status")
		}
		if patch.GeneratedCode != nil {
			updates.GeneratedCode = *patch.GeneratedCode
			fields = append(fields, "generated_code")
		}
		if patch.Results != nil {
			updates.Results = patch.Results
			fields = append(fields, "results")
		}
		if patch.OutputBlobID != nil {
			updates.OutputBlobID = *patch.OutputBlobID
			fields = append(fields, "output_blob_id")
		}

		return tx.Model(&types.Artifact{}).
			Where("id = ?", id).
			Select(fields).
			Updates(updates).Error
	})
}

func (s *gormArtifactStore) ListByDocument(ctx context.Context, documentID string) ([]types.Artifact, error) {
	var artifacts []types.Artifact
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&artifacts).Error
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (s *gormArtifactStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Artifact, error) {
	var artifacts []types.Artifact
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&artifacts).Error
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

var _ Store = (*GormStore)(nil)
