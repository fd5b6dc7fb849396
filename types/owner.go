package types

import "time"

// Subject is the resolved identity of an authenticated caller, as delivered
// by the identity provider. Key is the stable external identity key; absence
// of a Key means the caller is unauthenticated.
type Subject struct {
	Key    string `json:"key"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	OrgKey string `json:"org_key,omitempty"`
}

// Authenticated reports whether the subject carries a resolvable identity.
func (s Subject) Authenticated() bool {
	return s.Key != ""
}

// Owner is the persisted principal that owns Documents and Artifacts.
// One Owner exists per external identity key; it is created lazily on first
// authenticated access and never deleted by this service. Only the display
// fields may change after creation.
type Owner struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	IdentityKey string    `gorm:"size:255;not null;uniqueIndex:idx_owners_identity_key" json:"identity_key" bson:"identity_key"`
	Email       string    `gorm:"size:255" json:"email,omitempty" bson:"email,omitempty"`
	DisplayName string    `gorm:"size:255" json:"display_name,omitempty" bson:"display_name,omitempty"`
	OrgKey      string    `gorm:"size:255" json:"org_key,omitempty" bson:"org_key,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// TableName maps the model to its table.
func (Owner) TableName() string { return "owners" }
