package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookys-sync/internal/ghl"
)

// SetupGHLFields creates the custom fields the confirmation sync writes to
// in the tenant's GoHighLevel location. Existing fields are left alone.
func (h *Handlers) SetupGHLFields(c *gin.Context) {
	creds, ok := h.loadGHLCredentials(c)
	if !ok {
		return
	}

	result, err := h.ghl.EnsureCustomFields(c.Request.Context(), creds)
	if err != nil {
		respondError(c, http.StatusBadGateway, "ghl_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// ValidateGHLFields checks that every required custom field exists
func (h *Handlers) ValidateGHLFields(c *gin.Context) {
	creds, ok := h.loadGHLCredentials(c)
	if !ok {
		return
	}

	valid, missing, err := h.ghl.ValidateCustomFields(c.Request.Context(), creds)
	if err != nil {
		respondError(c, http.StatusBadGateway, "ghl_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid, "missing": missing})
}

func (h *Handlers) loadGHLCredentials(c *gin.Context) (ghl.Credentials, bool) {
	tenant, err := h.tenants.FindByID(c.Param("tenantId"))
	if err != nil {
		respondError(c, http.StatusNotFound, "tenant_not_found", "Tenant not found")
		return ghl.Credentials{}, false
	}
	if !tenant.HasGHLCredentials() {
		respondError(c, http.StatusUnprocessableEntity, "ghl_not_configured",
			"Tenant has no GoHighLevel credentials configured")
		return ghl.Credentials{}, false
	}
	return ghl.Credentials{
		AccessToken: tenant.GHLAccessToken,
		LocationID:  tenant.GHLLocationID,
	}, true
}
