package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bookys-sync/internal/model"
)

var ErrConfirmationNotFound = errors.New("pending confirmation not found")

// PendingRepository is the durable confirmation queue. It is the single
// shared mutable resource of the pipeline: every trigger reads fresh rows
// from it instead of caching query results across drain iterations.
type PendingRepository struct {
	db *gorm.DB
}

func NewPendingRepository(db *gorm.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

// Exists checks the dedup key before insert. A unique index on the same
// tuple backs this up against racing fetch cycles.
func (r *PendingRepository) Exists(tenantID, configID, platform, platformAppointmentID string) (bool, error) {
	var count int64
	result := r.db.Model(&model.PendingConfirmation{}).
		Where("tenant_id = ? AND config_id = ? AND platform = ? AND platform_appointment_id = ?",
			tenantID, configID, platform, platformAppointmentID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check for existing confirmation: %w", result.Error)
	}
	return count > 0, nil
}

func (r *PendingRepository) Create(confirmation *model.PendingConfirmation) error {
	if err := r.db.Create(confirmation).Error; err != nil {
		return fmt.Errorf("failed to create pending confirmation: %w", err)
	}
	return nil
}

func (r *PendingRepository) FindByID(id string) (*model.PendingConfirmation, error) {
	var confirmation model.PendingConfirmation
	result := r.db.First(&confirmation, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrConfirmationNotFound
		}
		return nil, fmt.Errorf("failed to find confirmation: %w", result.Error)
	}
	return &confirmation, nil
}

// FindDue returns PENDING rows whose scheduledFor has passed, oldest first.
func (r *PendingRepository) FindDue(before time.Time, limit int) ([]model.PendingConfirmation, error) {
	var rows []model.PendingConfirmation
	result := r.db.Where("status = ? AND scheduled_for < ?", model.StatusPending, before).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find due confirmations: %w", result.Error)
	}
	return rows, nil
}

// FindPendingByTenant returns a tenant's PENDING rows regardless of
// scheduledFor, oldest first. limit <= 0 means no limit.
func (r *PendingRepository) FindPendingByTenant(tenantID string, limit int) ([]model.PendingConfirmation, error) {
	query := r.db.Where("tenant_id = ? AND status = ?", tenantID, model.StatusPending).
		Order("scheduled_for ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.PendingConfirmation
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find tenant pending confirmations: %w", err)
	}
	return rows, nil
}

func (r *PendingRepository) FindByTenant(tenantID string) ([]model.PendingConfirmation, error) {
	var rows []model.PendingConfirmation
	result := r.db.Where("tenant_id = ?", tenantID).Order("scheduled_for ASC").Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list confirmations: %w", result.Error)
	}
	return rows, nil
}

func (r *PendingRepository) FindByTenantAndStatus(tenantID string, status model.ConfirmationStatus) ([]model.PendingConfirmation, error) {
	var rows []model.PendingConfirmation
	result := r.db.Where("tenant_id = ? AND status = ?", tenantID, status).Order("scheduled_for ASC").Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list confirmations by status: %w", result.Error)
	}
	return rows, nil
}

func (r *PendingRepository) FindByIDs(tenantID string, ids []string) ([]model.PendingConfirmation, error) {
	var rows []model.PendingConfirmation
	result := r.db.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find confirmations by ids: %w", result.Error)
	}
	return rows, nil
}

// Claim atomically flips a PENDING row to PROCESSING, increments its
// attempts and stamps the claim lease. It reports whether this owner won
// the row; a false result means another trigger got there first.
func (r *PendingRepository) Claim(id, owner string, now time.Time) (bool, error) {
	result := r.db.Model(&model.PendingConfirmation{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":      model.StatusProcessing,
			"attempts":    gorm.Expr("attempts + 1"),
			"claimed_at":  now,
			"claim_owner": owner,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim confirmation: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReclaimStale returns PROCESSING rows whose claim lease expired back to
// PENDING so the hourly sweep can retry them after a crash. Attempts are
// left untouched; the interrupted attempt already consumed its slot.
func (r *PendingRepository) ReclaimStale(claimedBefore time.Time) (int64, error) {
	result := r.db.Model(&model.PendingConfirmation{}).
		Where("status = ? AND claimed_at IS NOT NULL AND claimed_at < ?", model.StatusProcessing, claimedBefore).
		Updates(map[string]interface{}{
			"status":        model.StatusPending,
			"claim_owner":   "",
			"claimed_at":    nil,
			"error_message": "reclaimed after stale processing lease",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reclaim stale confirmations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Save persists a mutated confirmation row.
func (r *PendingRepository) Save(confirmation *model.PendingConfirmation) error {
	if err := r.db.Save(confirmation).Error; err != nil {
		return fmt.Errorf("failed to save confirmation: %w", err)
	}
	return nil
}
