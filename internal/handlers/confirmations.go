package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookys-sync/internal/confirmation"
	"bookys-sync/internal/model"
)

// FetchRequest is the body of the manual fetch trigger
type FetchRequest struct {
	ConfigID   string `json:"config_id"`
	TargetDate string `json:"target_date"`
	Immediate  bool   `json:"immediate"`
}

// ProcessSelectedRequest names the confirmations a manual trigger should process
type ProcessSelectedRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// TriggerFetch runs a fetch cycle for a tenant on demand
func (h *Handlers) TriggerFetch(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}

	var req FetchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
			return
		}
	}

	result, err := h.service.FetchAndStore(c.Request.Context(), tenantID, confirmation.FetchOptions{
		ConfigID:   req.ConfigID,
		TargetDate: req.TargetDate,
		Immediate:  req.Immediate,
	})
	if err != nil {
		if errors.Is(err, confirmation.ErrNoEnabledConfigs) {
			respondError(c, http.StatusUnprocessableEntity, "no_enabled_configs", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "fetch_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessPending processes one batch of a tenant's pending confirmations
func (h *Handlers) ProcessPending(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}
	result, err := h.service.ProcessPendingNow(c.Request.Context(), tenantID)
	h.writeProcessResult(c, result, err)
}

// ProcessAllPending drains a tenant's whole pending queue
func (h *Handlers) ProcessAllPending(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}
	result, err := h.service.DrainTenant(c.Request.Context(), tenantID)
	h.writeProcessResult(c, result, err)
}

// ProcessSelected processes specific confirmations of a tenant
func (h *Handlers) ProcessSelected(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}

	var req ProcessSelectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "ids is required")
		return
	}
	result, err := h.service.ProcessSelected(c.Request.Context(), tenantID, req.IDs)
	h.writeProcessResult(c, result, err)
}

func (h *Handlers) writeProcessResult(c *gin.Context, result *confirmation.ProcessResult, err error) {
	if errors.Is(err, confirmation.ErrTenantBusy) {
		respondError(c, http.StatusConflict, "tenant_busy", err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "process_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListConfirmations returns a tenant's confirmations, optionally filtered by
// ?status=pending|processing|completed|failed
func (h *Handlers) ListConfirmations(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}

	status := c.Query("status")
	var (
		rows []model.PendingConfirmation
		err  error
	)
	if status == "" {
		rows, err = h.pending.FindByTenant(tenantID)
	} else {
		switch model.ConfirmationStatus(status) {
		case model.StatusPending, model.StatusProcessing, model.StatusCompleted, model.StatusFailed:
			rows, err = h.pending.FindByTenantAndStatus(tenantID, model.ConfirmationStatus(status))
		default:
			respondError(c, http.StatusBadRequest, "validation_error", "Unknown status filter")
			return
		}
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to fetch confirmations")
		return
	}
	c.JSON(http.StatusOK, rows)
}
