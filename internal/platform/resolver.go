package platform

import (
	"github.com/sirupsen/logrus"

	"bookys-sync/internal/model"
)

// Resolver selects the adapter for a tenant from its enabled integrations.
type Resolver struct {
	adapters map[string]Adapter
}

// NewResolver registers the closed set of platform adapters. The HealthAtom
// adapter serves both the dentalink and dentalink_medilink integrations.
func NewResolver(healthAtom Adapter, reservo Adapter) *Resolver {
	return &Resolver{
		adapters: map[string]Adapter{
			model.PlatformDentalink:         healthAtom,
			model.PlatformDentalinkMedilink: healthAtom,
			model.PlatformReservo:           reservo,
		},
	}
}

// ForTenant resolves the adapter by fixed priority: the dual-platform
// dentalink_medilink integration wins over reservo, which wins over plain
// dentalink. Tenants with no explicit integration fall back to Dentalink via
// their legacy API key.
func (r *Resolver) ForTenant(tenant *model.Tenant) Adapter {
	if tenant.HasIntegration(model.PlatformDentalinkMedilink) {
		return r.adapters[model.PlatformDentalinkMedilink]
	}
	if tenant.HasIntegration(model.PlatformReservo) {
		return r.adapters[model.PlatformReservo]
	}
	if tenant.HasIntegration(model.PlatformDentalink) {
		return r.adapters[model.PlatformDentalink]
	}

	logrus.Warnf("Tenant %s has no known integration, falling back to Dentalink", tenant.ID)
	return r.adapters[model.PlatformDentalink]
}

// PlatformForTenant returns the platform identifier the resolved adapter
// runs as for this tenant. The HealthAtom adapter reports dentalink_medilink
// only when that integration is enabled.
func (r *Resolver) PlatformForTenant(tenant *model.Tenant) string {
	if tenant.HasIntegration(model.PlatformDentalinkMedilink) {
		return model.PlatformDentalinkMedilink
	}
	if tenant.HasIntegration(model.PlatformReservo) {
		return model.PlatformReservo
	}
	return model.PlatformDentalink
}

// ByPlatform returns the adapter registered for a platform identifier.
func (r *Resolver) ByPlatform(platform string) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}
