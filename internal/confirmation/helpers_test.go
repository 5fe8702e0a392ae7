package confirmation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookys-sync/internal/config"
	"bookys-sync/internal/ghl"
	"bookys-sync/internal/lease"
	"bookys-sync/internal/metrics"
	"bookys-sync/internal/model"
	"bookys-sync/internal/platform"
	"bookys-sync/internal/repository"
)

// Prometheus collectors register globally, so the whole package shares one set.
var testMetrics = metrics.NewMetrics()

// fakeAdapter is a scriptable platform adapter.
type fakeAdapter struct {
	platform     string
	appointments []platform.FetchedAppointment
	fetchErr     error
	confirmErr   error

	mu        sync.Mutex
	confirmed []confirmedCall
}

type confirmedCall struct {
	AppointmentID string
	StateID       int
}

func (f *fakeAdapter) Platform() string { return f.platform }

func (f *fakeAdapter) FetchAppointments(ctx context.Context, tenant *model.Tenant, cfg *model.ConfirmationConfig, appointmentDate, timezone string) ([]platform.FetchedAppointment, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.appointments, nil
}

func (f *fakeAdapter) ConfirmAppointment(ctx context.Context, tenant *model.Tenant, platformAppointmentID string, stateID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, confirmedCall{AppointmentID: platformAppointmentID, StateID: stateID})
	return f.confirmErr
}

func (f *fakeAdapter) confirmedCalls() []confirmedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]confirmedCall(nil), f.confirmed...)
}

type testEnv struct {
	db      *gorm.DB
	service *Service
	tenants *repository.TenantRepository
	configs *repository.ConfigRepository
	pending *repository.PendingRepository
	adapter *fakeAdapter
}

func newTestEnv(t *testing.T, ghlBaseURL string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Tenant{},
		&model.TenantIntegration{},
		&model.ConfirmationConfig{},
		&model.PendingConfirmation{},
	))

	adapter := &fakeAdapter{platform: model.PlatformDentalink}
	resolver := platform.NewResolver(adapter, &fakeAdapter{platform: model.PlatformReservo})

	ghlClient := ghl.NewClient()
	ghlClient.BaseURL = ghlBaseURL
	ghlClient.BackoffBase = time.Millisecond

	tenants := repository.NewTenantRepository(db)
	configs := repository.NewConfigRepository(db)
	pending := repository.NewPendingRepository(db)

	pacing := config.PacingConfig{
		BatchSize:         10,
		RequestsPerSecond: 4000,
	}

	service := New(tenants, configs, pending, resolver, ghlClient, lease.NewMemoryLocker(), testMetrics, pacing)

	return &testEnv{
		db:      db,
		service: service,
		tenants: tenants,
		configs: configs,
		pending: pending,
		adapter: adapter,
	}
}

func (e *testEnv) createTenant(t *testing.T) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{
		Name:             "Clinica Test",
		IsActive:         true,
		Timezone:         "America/Santiago",
		GHLEnabled:       true,
		GHLAccessToken:   "token",
		GHLLocationID:    "loc-1",
		ContactedStateID: 12,
		Integrations: []model.TenantIntegration{
			{IntegrationType: model.PlatformDentalink, IsEnabled: true, APIKey: "key"},
		},
	}
	require.NoError(t, e.db.Create(tenant).Error)
	return tenant
}

func (e *testEnv) createConfig(t *testing.T, tenantID string, order int) *model.ConfirmationConfig {
	t.Helper()
	cfg := &model.ConfirmationConfig{
		TenantID:              tenantID,
		Name:                  "Confirmation",
		DaysBeforeAppointment: 1,
		TimeToSend:            "09:00",
		GHLCalendarID:         "cal-1",
		AppointmentStates:     "7",
		IsEnabled:             true,
		Order:                 order,
	}
	require.NoError(t, e.configs.Create(cfg))
	return cfg
}

func (e *testEnv) createPendingRow(t *testing.T, tenantID, configID, appointmentID string) *model.PendingConfirmation {
	t.Helper()
	row := &model.PendingConfirmation{
		TenantID:              tenantID,
		ConfigID:              configID,
		Platform:              model.PlatformDentalink,
		PlatformAppointmentID: appointmentID,
		AppointmentData: model.NormalizedAppointment{
			PatientName:  "Ana Rojas",
			PatientEmail: "ana@example.com",
			Date:         "2026-09-02",
			StartTime:    "10:00:00",
		},
		Status:       model.StatusPending,
		ScheduledFor: time.Now().Add(-time.Minute),
	}
	require.NoError(t, e.pending.Create(row))
	return row
}
