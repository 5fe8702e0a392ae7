package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bookys-sync/internal/model"
)

const maxConfigsPerTenant = 3

var (
	ErrConfigNotFound  = errors.New("confirmation config not found")
	ErrTooManyConfigs  = errors.New("a tenant can have at most 3 confirmation configs")
	ErrOrderTaken      = errors.New("a config with this order already exists")
	ErrInvalidTimeSend = errors.New("time_to_send must be in HH:mm format")
)

// ConfigRepository manages the per-tenant confirmation rules.
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) validate(config *model.ConfirmationConfig) error {
	if _, _, err := config.SendTime(); err != nil {
		return ErrInvalidTimeSend
	}
	return nil
}

func (r *ConfigRepository) Create(config *model.ConfirmationConfig) error {
	if err := r.validate(config); err != nil {
		return err
	}

	var count int64
	if err := r.db.Model(&model.ConfirmationConfig{}).Where("tenant_id = ?", config.TenantID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count configs: %w", err)
	}
	if count >= maxConfigsPerTenant {
		return ErrTooManyConfigs
	}

	taken, err := r.orderTaken(config.TenantID, config.Order, "")
	if err != nil {
		return err
	}
	if taken {
		return ErrOrderTaken
	}

	if err := r.db.Create(config).Error; err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	return nil
}

func (r *ConfigRepository) orderTaken(tenantID string, order int, excludeID string) (bool, error) {
	query := r.db.Model(&model.ConfirmationConfig{}).Where("tenant_id = ? AND config_order = ?", tenantID, order)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check config order: %w", err)
	}
	return count > 0, nil
}

func (r *ConfigRepository) Get(tenantID, configID string) (*model.ConfirmationConfig, error) {
	var config model.ConfirmationConfig
	result := r.db.Where("id = ? AND tenant_id = ?", configID, tenantID).First(&config)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to find config: %w", result.Error)
	}
	return &config, nil
}

func (r *ConfigRepository) List(tenantID string) ([]model.ConfirmationConfig, error) {
	var configs []model.ConfirmationConfig
	result := r.db.Where("tenant_id = ?", tenantID).Order("config_order ASC").Find(&configs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list configs: %w", result.Error)
	}
	return configs, nil
}

func (r *ConfigRepository) ListEnabled(tenantID string) ([]model.ConfirmationConfig, error) {
	var configs []model.ConfirmationConfig
	result := r.db.Where("tenant_id = ? AND is_enabled = ?", tenantID, true).Order("config_order ASC").Find(&configs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list enabled configs: %w", result.Error)
	}
	return configs, nil
}

// ListAllEnabled returns every enabled config across tenants, for the
// half-hourly scheduler loop.
func (r *ConfigRepository) ListAllEnabled() ([]model.ConfirmationConfig, error) {
	var configs []model.ConfirmationConfig
	result := r.db.Where("is_enabled = ?", true).Order("tenant_id, config_order ASC").Find(&configs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list enabled configs: %w", result.Error)
	}
	return configs, nil
}

func (r *ConfigRepository) Update(config *model.ConfirmationConfig) error {
	if err := r.validate(config); err != nil {
		return err
	}

	taken, err := r.orderTaken(config.TenantID, config.Order, config.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrOrderTaken
	}

	if err := r.db.Save(config).Error; err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	return nil
}

func (r *ConfigRepository) Delete(tenantID, configID string) error {
	config, err := r.Get(tenantID, configID)
	if err != nil {
		return err
	}
	if err := r.db.Delete(config).Error; err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	return nil
}
