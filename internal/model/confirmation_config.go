package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfirmationConfig is a per-tenant rule describing when appointments are
// pulled for confirmation and which source states qualify. A tenant can have
// up to three of these, ordered 1-3.
type ConfirmationConfig struct {
	ID       string `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID string `json:"tenant_id" gorm:"type:varchar(36);not null;index"`
	Name     string `json:"name" gorm:"type:varchar(255);not null"`

	// Days before the appointment date at which the confirmation is sent
	DaysBeforeAppointment int `json:"days_before_appointment" gorm:"not null"`

	// Local time of day at which the confirmation is sent (HH:mm)
	TimeToSend string `json:"time_to_send" gorm:"type:varchar(5);not null"`

	// Target GoHighLevel calendar
	GHLCalendarID string `json:"ghl_calendar_id" gorm:"type:varchar(255);not null"`

	// Source state ids that qualify, comma-encoded (e.g. "7,3")
	AppointmentStates string `json:"appointment_states" gorm:"type:text;default:'7'"`

	// No column default: gorm omits zero-value fields that carry one from
	// the INSERT, which would flip a config created disabled back to enabled.
	IsEnabled bool `json:"is_enabled" gorm:"not null"`

	// Position 1-3, unique per tenant
	Order int `json:"order" gorm:"column:config_order;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for ConfirmationConfig
func (ConfirmationConfig) TableName() string {
	return "confirmation_configs"
}

// BeforeCreate assigns a UUID primary key when none is set
func (c *ConfirmationConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// StateIDs decodes the comma-encoded appointment state list. Blank and
// non-numeric entries are dropped.
func (c *ConfirmationConfig) StateIDs() []int {
	parts := strings.Split(c.AppointmentStates, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// SendTime parses TimeToSend into hour and minute components.
func (c *ConfirmationConfig) SendTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.TimeToSend)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
