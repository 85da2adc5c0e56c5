package tenant

import (
	"context"
	"time"

	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/storage"
	"gorm.io/gorm"
)

type Repository struct {
	db *storage.Postgres
}

func NewRepository(db *storage.Postgres) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.db.DB.WithContext(ctx).Create(tenant).Error
}

func (r *Repository) FindByTenantID(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&tenant).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &tenant, err
}

func (r *Repository) List(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&tenants).Error

	return tenants, err
}

// UpdateSecret installs a new signing secret and stamps the rotation time
// in a single statement, so the old secret is never valid alongside the
// new one.
func (r *Repository) UpdateSecret(ctx context.Context, tenantID string, secret []byte) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"signing_secret": secret,
			"rotated_at":     time.Now().UTC(),
		}).Error
}

func (r *Repository) Update(ctx context.Context, tenantID string, updates map[string]interface{}) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("tenant_id = ?", tenantID).
		Updates(updates).Error
}

func (r *Repository) Delete(ctx context.Context, tenantID string) error {
	return r.db.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&models.Tenant{}).Error
}
