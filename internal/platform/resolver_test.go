package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"bookys-sync/internal/model"
)

// stubAdapter implements Adapter with a fixed platform name
type stubAdapter struct{ platform string }

func (s *stubAdapter) Platform() string { return s.platform }

func (s *stubAdapter) FetchAppointments(ctx context.Context, tenant *model.Tenant, config *model.ConfirmationConfig, appointmentDate, timezone string) ([]FetchedAppointment, error) {
	return nil, nil
}

func (s *stubAdapter) ConfirmAppointment(ctx context.Context, tenant *model.Tenant, platformAppointmentID string, stateID int) error {
	return nil
}

func tenantWith(integrations ...string) *model.Tenant {
	tenant := &model.Tenant{ID: "t1"}
	for _, integ := range integrations {
		tenant.Integrations = append(tenant.Integrations, model.TenantIntegration{
			IntegrationType: integ,
			IsEnabled:       true,
			APIKey:          "key",
		})
	}
	return tenant
}

func TestResolverPriority(t *testing.T) {
	healthAtom := &stubAdapter{platform: model.PlatformDentalink}
	reservo := &stubAdapter{platform: model.PlatformReservo}
	resolver := NewResolver(healthAtom, reservo)

	// Dual-platform integration wins even when reservo is also enabled
	tenant := tenantWith(model.PlatformReservo, model.PlatformDentalinkMedilink)
	assert.Same(t, healthAtom, resolver.ForTenant(tenant))
	assert.Equal(t, model.PlatformDentalinkMedilink, resolver.PlatformForTenant(tenant))

	tenant = tenantWith(model.PlatformReservo, model.PlatformDentalink)
	assert.Same(t, reservo, resolver.ForTenant(tenant))
	assert.Equal(t, model.PlatformReservo, resolver.PlatformForTenant(tenant))

	tenant = tenantWith(model.PlatformDentalink)
	assert.Same(t, healthAtom, resolver.ForTenant(tenant))
	assert.Equal(t, model.PlatformDentalink, resolver.PlatformForTenant(tenant))
}

func TestResolverDisabledIntegrationIgnored(t *testing.T) {
	healthAtom := &stubAdapter{platform: model.PlatformDentalink}
	reservo := &stubAdapter{platform: model.PlatformReservo}
	resolver := NewResolver(healthAtom, reservo)

	tenant := tenantWith(model.PlatformReservo)
	tenant.Integrations[0].IsEnabled = false

	// Disabled reservo falls through to the legacy Dentalink path
	assert.Same(t, healthAtom, resolver.ForTenant(tenant))
	assert.Equal(t, model.PlatformDentalink, resolver.PlatformForTenant(tenant))
}

func TestResolverLegacyFallback(t *testing.T) {
	healthAtom := &stubAdapter{platform: model.PlatformDentalink}
	resolver := NewResolver(healthAtom, &stubAdapter{platform: model.PlatformReservo})

	tenant := &model.Tenant{ID: "t1", APIKey: "legacy-key"}
	assert.Same(t, healthAtom, resolver.ForTenant(tenant))
}

func TestByPlatform(t *testing.T) {
	healthAtom := &stubAdapter{platform: model.PlatformDentalink}
	reservo := &stubAdapter{platform: model.PlatformReservo}
	resolver := NewResolver(healthAtom, reservo)

	a, ok := resolver.ByPlatform(model.PlatformDentalinkMedilink)
	assert.True(t, ok)
	assert.Same(t, healthAtom, a)

	_, ok = resolver.ByPlatform("softdent")
	assert.False(t, ok)
}
