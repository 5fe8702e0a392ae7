package confirmation

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookys-sync/internal/model"
	"bookys-sync/internal/platform"
)

func TestScheduledCycleFiresConfigsInWindow(t *testing.T) {
	server := httptest.NewServer(happyGHL())
	defer server.Close()

	env := newTestEnv(t, server.URL)
	tenant := env.createTenant(t)
	env.createConfig(t, tenant.ID, 1)
	env.adapter.appointments = []platform.FetchedAppointment{fetchedAppointment("100")}

	loc := santiago(t)
	env.service.now = func() time.Time {
		return time.Date(2026, 9, 10, 9, 5, 0, 0, loc)
	}

	result, err := env.service.RunScheduledCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TenantsVisited)
	assert.Equal(t, 1, result.ConfigsFired)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 1, result.Processed)

	rows, err := env.pending.FindByTenant(tenant.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusCompleted, rows[0].Status)
	// No email or phone on the fetched appointment, so the contact came from
	// the create path
	assert.Equal(t, "contact-1", rows[0].GHLContactID)
}

func TestScheduledCycleSkipsOutOfWindowConfigs(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	tenant := env.createTenant(t)
	env.createConfig(t, tenant.ID, 1)
	env.adapter.appointments = []platform.FetchedAppointment{fetchedAppointment("100")}

	loc := santiago(t)
	env.service.now = func() time.Time {
		// Two hours past the 09:00 send time
		return time.Date(2026, 9, 10, 11, 0, 0, 0, loc)
	}

	result, err := env.service.RunScheduledCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TenantsVisited)
	assert.Equal(t, 0, result.ConfigsFired)

	rows, err := env.pending.FindByTenant(tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScheduledCycleSkipsDisabledTenants(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	tenant := env.createTenant(t)
	require.NoError(t, env.db.Model(tenant).Update("ghl_enabled", false).Error)
	env.createConfig(t, tenant.ID, 1)

	loc := santiago(t)
	env.service.now = func() time.Time {
		return time.Date(2026, 9, 10, 9, 5, 0, 0, loc)
	}

	result, err := env.service.RunScheduledCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ConfigsFired)
}

func TestProcessDueSweepsOverdueRows(t *testing.T) {
	server := httptest.NewServer(happyGHL())
	defer server.Close()

	env := newTestEnv(t, server.URL)
	tenant := env.createTenant(t)
	cfg := env.createConfig(t, tenant.ID, 1)

	overdue := env.createPendingRow(t, tenant.ID, cfg.ID, "100")
	future := env.createPendingRow(t, tenant.ID, cfg.ID, "101")
	future.ScheduledFor = time.Now().Add(time.Hour)
	require.NoError(t, env.pending.Save(future))

	result, err := env.service.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	env.service.Wait()

	done, err := env.pending.FindByID(overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	waiting, err := env.pending.FindByID(future.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, waiting.Status)
}
