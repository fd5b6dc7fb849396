package types

import "time"

// DocumentMetadata is the structured metadata extracted from a source file.
// All fields are best-effort; the fallback parse path leaves them empty.
type DocumentMetadata struct {
	Authors  []string `json:"authors,omitempty" bson:"authors,omitempty"`
	Abstract string   `json:"abstract,omitempty" bson:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty" bson:"keywords,omitempty"`
}

// Document is one uploaded source file plus its extraction result.
//
// ExtractedContent and Metadata are populated iff Status is ready; they are
// absent while processing and stay absent on error. A Document is mutated
// exactly once after creation, by the ingestion stage; re-uploads create new
// Documents rather than revisiting old ones.
type Document struct {
	ID               string            `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	OwnerID          string            `gorm:"type:uuid;not null;index:idx_documents_owner_id" json:"owner_id" bson:"owner_id"`
	Title            string            `gorm:"size:512;not null" json:"title" bson:"title"`
	Filename         string            `gorm:"size:512" json:"filename" bson:"filename"`
	FileBlobID       string            `gorm:"size:128;not null" json:"file_blob_id" bson:"file_blob_id"`
	Status           DocumentStatus    `gorm:"size:32;not null;index:idx_documents_status" json:"status" bson:"status"`
	ExtractedContent *string           `gorm:"type:text" json:"extracted_content,omitempty" bson:"extracted_content,omitempty"`
	Metadata         *DocumentMetadata `gorm:"serializer:json" json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" bson:"updated_at"`
}

// TableName maps the model to its table.
func (Document) TableName() string { return "documents" }

// DocumentPatch is a partial update for a Document. Nil fields are left
// untouched by the store; non-nil fields overwrite. This keeps "absent" and
// "set to zero value" distinguishable.
type DocumentPatch struct {
	Title            *string
	Status           *DocumentStatus
	ExtractedContent *string
	Metadata         *DocumentMetadata
}

// IsZero reports whether the patch carries no changes.
func (p DocumentPatch) IsZero() bool {
	return p.Title == nil && p.Status == nil && p.ExtractedContent == nil && p.Metadata == nil
}
