package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Integration platforms known to the confirmation system.
const (
	PlatformDentalink         = "dentalink"
	PlatformDentalinkMedilink = "dentalink_medilink"
	PlatformReservo           = "reservo"
)

// Tenant represents a clinic account with its integrations and CRM credentials
type Tenant struct {
	ID          string `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name        string `json:"name" gorm:"type:varchar(255);not null"`
	IsActive    bool   `json:"is_active" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`

	// IANA timezone used for all per-tenant date math
	Timezone string `json:"timezone" gorm:"type:varchar(64);default:'America/Santiago'"`

	// Legacy Dentalink API key, kept for tenants without an explicit integration row
	APIKey string `json:"api_key" gorm:"type:varchar(255)"`

	// GoHighLevel credentials
	GHLEnabled     bool   `json:"ghl_enabled" gorm:"default:false"`
	GHLAccessToken string `json:"ghl_access_token" gorm:"type:varchar(512)"`
	GHLLocationID  string `json:"ghl_location_id" gorm:"type:varchar(255)"`
	GHLCalendarID  string `json:"ghl_calendar_id" gorm:"type:varchar(255)"`

	// Source appointment states pushed back after a successful sync
	ConfirmedStateID int `json:"confirmed_state_id" gorm:"default:0"`
	ContactedStateID int `json:"contacted_state_id" gorm:"default:0"`

	Integrations []TenantIntegration `json:"integrations,omitempty" gorm:"foreignKey:TenantID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Tenant
func (Tenant) TableName() string {
	return "tenants"
}

// BeforeCreate assigns a UUID primary key when none is set
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Integration returns the enabled integration of the given type, or nil.
func (t *Tenant) Integration(integrationType string) *TenantIntegration {
	for i := range t.Integrations {
		if t.Integrations[i].IntegrationType == integrationType && t.Integrations[i].IsEnabled {
			return &t.Integrations[i]
		}
	}
	return nil
}

// HasIntegration reports whether the tenant has an enabled integration of the given type.
func (t *Tenant) HasIntegration(integrationType string) bool {
	return t.Integration(integrationType) != nil
}

// HasGHLCredentials reports whether the tenant can be synced into GoHighLevel.
func (t *Tenant) HasGHLCredentials() bool {
	return t.GHLEnabled && t.GHLAccessToken != "" && t.GHLLocationID != ""
}

// TenantIntegration holds the per-platform credentials of a tenant
type TenantIntegration struct {
	ID              uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID        string `json:"tenant_id" gorm:"type:varchar(36);not null;index"`
	IntegrationType string `json:"integration_type" gorm:"type:varchar(50);not null"`
	IsEnabled       bool   `json:"is_enabled" gorm:"not null"`

	// Platform credentials: API key for HealthAtom platforms, token for Reservo
	APIKey   string `json:"api_key" gorm:"type:varchar(255)"`
	Timezone string `json:"timezone" gorm:"type:varchar(64)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for TenantIntegration
func (TenantIntegration) TableName() string {
	return "tenant_integrations"
}
