package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant holds the per-tenant signing secret and the downstream
// configuration the worker pool needs to act on a queued job.
type Tenant struct {
	ID             uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	TenantID       string            `gorm:"uniqueIndex;not null" json:"tenant_id"`
	SigningSecret  []byte            `gorm:"not null" json:"-"`
	IsActive       bool              `gorm:"default:true" json:"is_active"`
	APIEndpoint    string            `json:"api_endpoint"`
	CredentialsRef string            `json:"credentials_ref"`
	Preferences    map[string]string `gorm:"serializer:json" json:"preferences"`
	CreatedAt      time.Time         `json:"created_at"`
	RotatedAt      *time.Time        `json:"rotated_at,omitempty"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (Tenant) TableName() string {
	return "tenants"
}
