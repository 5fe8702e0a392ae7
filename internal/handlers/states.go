package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bookys-sync/internal/model"
	"bookys-sync/internal/platform"
	"bookys-sync/internal/repository"
)

const (
	confirmedStateName = "Confirmado Bookys"
	contactedStateName = "Contactado Bookys"
	bookysStateColor   = "#1ABC9C"
)

// GetAppointmentStates lists the source platform's appointment states.
// Only HealthAtom tenants expose a state catalogue.
func (h *Handlers) GetAppointmentStates(c *gin.Context) {
	tenant, ok := h.loadHealthAtomTenant(c)
	if !ok {
		return
	}

	states, err := h.healthAtom.AppointmentStates(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, http.StatusBadGateway, "platform_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, states)
}

// CreateBookysStates provisions the two dedicated appointment states on the
// source platform and stores their ids on the tenant. Idempotent: existing
// states are reused.
func (h *Handlers) CreateBookysStates(c *gin.Context) {
	tenant, ok := h.loadHealthAtomTenant(c)
	if !ok {
		return
	}

	states, err := h.healthAtom.AppointmentStates(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, http.StatusBadGateway, "platform_error", err.Error())
		return
	}

	confirmedID := findStateID(states, confirmedStateName)
	contactedID := findStateID(states, contactedStateName)

	if confirmedID == 0 {
		state, err := h.healthAtom.CreateAppointmentState(c.Request.Context(), tenant, confirmedStateName, bookysStateColor)
		if err != nil {
			respondError(c, http.StatusBadGateway, "platform_error", err.Error())
			return
		}
		confirmedID = state.ID
	}
	if contactedID == 0 {
		state, err := h.healthAtom.CreateAppointmentState(c.Request.Context(), tenant, contactedStateName, bookysStateColor)
		if err != nil {
			respondError(c, http.StatusBadGateway, "platform_error", err.Error())
			return
		}
		contactedID = state.ID
	}

	if err := h.tenants.SaveStateIDs(tenant.ID, confirmedID, contactedID); err != nil {
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to store state ids")
		return
	}

	logrus.Infof("Bookys states ready for tenant %s: confirmed=%d contacted=%d", tenant.ID, confirmedID, contactedID)
	c.JSON(http.StatusOK, gin.H{
		"confirmed_state_id": confirmedID,
		"contacted_state_id": contactedID,
	})
}

func (h *Handlers) loadHealthAtomTenant(c *gin.Context) (*model.Tenant, bool) {
	tenant, err := h.tenants.FindByID(c.Param("tenantId"))
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			respondError(c, http.StatusNotFound, "tenant_not_found", "Tenant not found")
		} else {
			respondError(c, http.StatusInternalServerError, "database_error", "Failed to load tenant")
		}
		return nil, false
	}

	if h.resolver.PlatformForTenant(tenant) == model.PlatformReservo {
		respondError(c, http.StatusUnprocessableEntity, "unsupported_platform",
			"Appointment state management is only available for Dentalink/Medilink tenants")
		return nil, false
	}
	return tenant, true
}

func findStateID(states []platform.AppointmentState, name string) int {
	for _, s := range states {
		if s.Name == name {
			return s.ID
		}
	}
	return 0
}
