package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookys-sync/internal/model"
)

func TestFindByIDPreservesDisabledFlags(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db)

	require.NoError(t, db.Create(&model.Tenant{
		ID:       "tenant-1",
		Name:     "Clinica Uno",
		IsActive: true,
		Integrations: []model.TenantIntegration{
			{IntegrationType: model.PlatformDentalink, IsEnabled: true, APIKey: "key-a"},
			{IntegrationType: model.PlatformReservo, IsEnabled: false, APIKey: "key-b"},
		},
	}).Error)

	tenant, err := repo.FindByID("tenant-1")
	require.NoError(t, err)
	require.Len(t, tenant.Integrations, 2)

	// A disabled integration must survive the insert as disabled, or adapter
	// resolution would pick it up
	assert.True(t, tenant.HasIntegration(model.PlatformDentalink))
	assert.False(t, tenant.HasIntegration(model.PlatformReservo))
}

func TestFindByIDUnknownTenant(t *testing.T) {
	repo := NewTenantRepository(newTestDB(t))

	_, err := repo.FindByID("missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestListActiveSkipsInactiveTenants(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db)

	require.NoError(t, db.Create(&model.Tenant{ID: "tenant-1", Name: "Activa", IsActive: true}).Error)
	require.NoError(t, db.Create(&model.Tenant{ID: "tenant-2", Name: "Pausada", IsActive: false}).Error)

	tenants, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, "tenant-1", tenants[0].ID)
}

func TestSaveStateIDs(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db)

	require.NoError(t, db.Create(&model.Tenant{ID: "tenant-1", Name: "Clinica Uno", IsActive: true}).Error)
	require.NoError(t, repo.SaveStateIDs("tenant-1", 15, 16))

	tenant, err := repo.FindByID("tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 15, tenant.ConfirmedStateID)
	assert.Equal(t, 16, tenant.ContactedStateID)
}
