package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bookys-sync/internal/model"
)

// ErrTenantNotFound is returned when a tenant id does not exist.
var ErrTenantNotFound = errors.New("tenant not found")

// TenantRepository is the engine's read side for tenants. Tenant CRUD lives
// outside this service; the confirmation pipeline only looks tenants up and
// stores the source state ids created during setup.
type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) FindByID(id string) (*model.Tenant, error) {
	var tenant model.Tenant
	result := r.db.Preload("Integrations").First(&tenant, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to find tenant: %w", result.Error)
	}
	return &tenant, nil
}

func (r *TenantRepository) ListActive() ([]model.Tenant, error) {
	var tenants []model.Tenant
	result := r.db.Preload("Integrations").Where("is_active = ?", true).Find(&tenants)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", result.Error)
	}
	return tenants, nil
}

// SaveStateIDs persists the source states created by the Bookys state setup.
func (r *TenantRepository) SaveStateIDs(tenantID string, confirmedStateID, contactedStateID int) error {
	result := r.db.Model(&model.Tenant{}).Where("id = ?", tenantID).Updates(map[string]interface{}{
		"confirmed_state_id": confirmedStateID,
		"contacted_state_id": contactedStateID,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to save tenant state ids: %w", result.Error)
	}
	return nil
}
