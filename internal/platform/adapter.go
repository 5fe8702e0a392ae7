package platform

import (
	"context"

	"bookys-sync/internal/model"
)

// FetchedAppointment is an adapter's output unit: one normalized appointment
// keyed by its platform-local id, not yet persisted.
type FetchedAppointment struct {
	PlatformAppointmentID string
	AppointmentData       model.NormalizedAppointment
}

// Adapter is implemented once per source scheduling platform.
//
// FetchAppointments pulls the appointments for one date, filtered per the
// config, and normalizes them. It persists nothing; deduplication and
// storage belong to the confirmation service.
//
// ConfirmAppointment pushes a state change back to the source after a
// successful CRM sync. Callers treat it as best-effort: failures are logged,
// never propagated as fatal.
type Adapter interface {
	Platform() string

	FetchAppointments(
		ctx context.Context,
		tenant *model.Tenant,
		config *model.ConfirmationConfig,
		appointmentDate string,
		timezone string,
	) ([]FetchedAppointment, error)

	// stateID is the numeric target state used by HealthAtom platforms;
	// Reservo ignores it and uses its fixed "C" code.
	ConfirmAppointment(
		ctx context.Context,
		tenant *model.Tenant,
		platformAppointmentID string,
		stateID int,
	) error
}
