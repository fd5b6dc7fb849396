package types

import "time"

// RenderSummary is a small digest of the rendered sandbox output, parsed from
// the fetched HTML. Purely informational; display layers use it for previews.
type RenderSummary struct {
	Title    string `json:"title,omitempty" bson:"title,omitempty"`
	Scripts  int    `json:"scripts" bson:"scripts"`
	Canvases int    `json:"canvases" bson:"canvases"`
	Inputs   int    `json:"inputs" bson:"inputs"`
}

// ExecutionResults holds everything the execution stage produced for one
// Artifact. SandboxID identifies the environment that ran the code (kept for
// log correlation even though the environment itself is gone by the time the
// record is terminal). Errors carries the failure message on the failed path.
type ExecutionResults struct {
	SandboxID  string         `json:"sandbox_id,omitempty" bson:"sandbox_id,omitempty"`
	OutputHTML string         `json:"output_html,omitempty" bson:"output_html,omitempty"`
	Logs       []string       `json:"logs,omitempty" bson:"logs,omitempty"`
	Errors     []string       `json:"errors,omitempty" bson:"errors,omitempty"`
	Render     *RenderSummary `json:"render,omitempty" bson:"render,omitempty"`
}

// Artifact is one generated interactive demo for a concept within a Document.
//
// GeneratedCode is non-empty once the status has advanced past generating.
// Results and OutputBlobID are present only once the status is ready or
// failed. Status only moves forward through the ArtifactStatus graph; a
// terminal Artifact is immutable and retries always create a new record.
type Artifact struct {
	ID            string            `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	OwnerID       string            `gorm:"type:uuid;not null;index:idx_artifacts_owner_id" json:"owner_id" bson:"owner_id"`
	DocumentID    string            `gorm:"type:uuid;not null;index:idx_artifacts_document_id" json:"document_id" bson:"document_id"`
	Concept       string            `gorm:"type:text;not null" json:"concept" bson:"concept"`
	Status        ArtifactStatus    `gorm:"size:32;not null;index:idx_artifacts_status" json:"status" bson:"status"`
	GeneratedCode string            `gorm:"type:text" json:"generated_code,omitempty" bson:"generated_code,omitempty"`
	Results       *ExecutionResults `gorm:"serializer:json" json:"results,omitempty" bson:"results,omitempty"`
	OutputBlobID  string            `gorm:"size:128" json:"output_blob_id,omitempty" bson:"output_blob_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" bson:"updated_at"`
}

// TableName maps the model to its table.
func (Artifact) TableName() string { return "artifacts" }

// ArtifactPatch is a partial update for an Artifact. Nil fields are left
// untouched by the store; non-nil fields overwrite.
type ArtifactPatch struct {
	Status        *ArtifactStatus
	GeneratedCode *string
	Results       *ExecutionResults
	OutputBlobID  *string
}

// IsZero reports whether the patch carries no changes.
func (p ArtifactPatch) IsZero() bool {
	return p.Status == nil && p.GeneratedCode == nil && p.Results == nil && p.OutputBlobID == nil
}
