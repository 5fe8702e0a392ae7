package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfirmationStatus is the processing state of a pending confirmation
type ConfirmationStatus string

const (
	StatusPending    ConfirmationStatus = "pending"
	StatusProcessing ConfirmationStatus = "processing"
	StatusCompleted  ConfirmationStatus = "completed"
	StatusFailed     ConfirmationStatus = "failed"
)

// MaxAttempts is the retry budget for a confirmation. Rate-limit failures
// do not consume it.
const MaxAttempts = 3

// PendingConfirmation is one appointment queued for CRM synchronization.
// Rows are never deleted automatically; completed and failed rows remain as
// an audit trail.
type PendingConfirmation struct {
	ID string `json:"id" gorm:"type:varchar(36);primaryKey"`

	// Dedup key: one row per physical appointment per config.
	TenantID              string `json:"tenant_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_confirmation_dedup"`
	ConfigID              string `json:"config_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_confirmation_dedup"`
	Platform              string `json:"platform" gorm:"type:varchar(50);not null;uniqueIndex:idx_confirmation_dedup"`
	PlatformAppointmentID string `json:"platform_appointment_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_confirmation_dedup"`

	// Snapshot captured at insert, never re-fetched
	AppointmentData NormalizedAppointment `json:"appointment_data" gorm:"type:json"`

	Status ConfirmationStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_confirmation_due"`

	// When this row becomes eligible for processing
	ScheduledFor time.Time `json:"scheduled_for" gorm:"not null;index:idx_confirmation_due"`

	// Resolved CRM contact
	GHLContactID string `json:"ghl_contact_id" gorm:"type:varchar(255)"`

	ErrorMessage string `json:"error_message" gorm:"type:text"`
	Attempts     int    `json:"attempts" gorm:"default:0"`

	// Claim lease: set when a processor wins the row, used to reclaim rows
	// stuck in processing after a crash.
	ClaimedAt  *time.Time `json:"claimed_at"`
	ClaimOwner string     `json:"claim_owner" gorm:"type:varchar(36)"`

	ProcessedAt *time.Time `json:"processed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for PendingConfirmation
func (PendingConfirmation) TableName() string {
	return "pending_confirmations"
}

// BeforeCreate assigns a UUID primary key when none is set
func (p *PendingConfirmation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
