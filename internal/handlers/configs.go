package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookys-sync/internal/model"
	"bookys-sync/internal/repository"
)

// ConfigRequest is the create/update body for a confirmation config
type ConfigRequest struct {
	Name                  string `json:"name" binding:"required"`
	DaysBeforeAppointment int    `json:"days_before_appointment" binding:"min=0"`
	TimeToSend            string `json:"time_to_send" binding:"required"`
	GHLCalendarID         string `json:"ghl_calendar_id" binding:"required"`
	AppointmentStates     string `json:"appointment_states"`
	IsEnabled             *bool  `json:"is_enabled"`
	Order                 int    `json:"order" binding:"required,min=1,max=3"`
}

// ListConfigs returns all confirmation configs of a tenant
func (h *Handlers) ListConfigs(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}

	configs, err := h.configs.List(tenantID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to fetch configs")
		return
	}
	c.JSON(http.StatusOK, configs)
}

// CreateConfig creates a confirmation config
func (h *Handlers) CreateConfig(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}
	states := req.AppointmentStates
	if states == "" {
		states = "7"
	}

	config := model.ConfirmationConfig{
		TenantID:              tenantID,
		Name:                  req.Name,
		DaysBeforeAppointment: req.DaysBeforeAppointment,
		TimeToSend:            req.TimeToSend,
		GHLCalendarID:         req.GHLCalendarID,
		AppointmentStates:     states,
		IsEnabled:             enabled,
		Order:                 req.Order,
	}
	if err := h.configs.Create(&config); err != nil {
		h.writeConfigError(c, err)
		return
	}

	c.JSON(http.StatusCreated, config)
}

// GetConfig returns a single confirmation config
func (h *Handlers) GetConfig(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}

	config, err := h.configs.Get(tenantID, c.Param("configId"))
	if err != nil {
		h.writeConfigError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

// UpdateConfig updates a confirmation config
func (h *Handlers) UpdateConfig(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}

	config, err := h.configs.Get(tenantID, c.Param("configId"))
	if err != nil {
		h.writeConfigError(c, err)
		return
	}

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	config.Name = req.Name
	config.DaysBeforeAppointment = req.DaysBeforeAppointment
	config.TimeToSend = req.TimeToSend
	config.GHLCalendarID = req.GHLCalendarID
	if req.AppointmentStates != "" {
		config.AppointmentStates = req.AppointmentStates
	}
	if req.IsEnabled != nil {
		config.IsEnabled = *req.IsEnabled
	}
	config.Order = req.Order

	if err := h.configs.Update(config); err != nil {
		h.writeConfigError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

// DeleteConfig deletes a confirmation config
func (h *Handlers) DeleteConfig(c *gin.Context) {
	tenantID, ok := h.loadTenant(c)
	if !ok {
		return
	}

	if err := h.configs.Delete(tenantID, c.Param("configId")); err != nil {
		h.writeConfigError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) writeConfigError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrConfigNotFound):
		respondError(c, http.StatusNotFound, "config_not_found", "Confirmation config not found")
	case errors.Is(err, repository.ErrTooManyConfigs):
		respondError(c, http.StatusConflict, "too_many_configs", "Tenant already has the maximum number of configs")
	case errors.Is(err, repository.ErrOrderTaken):
		respondError(c, http.StatusConflict, "order_taken", "Another config already uses this order")
	case errors.Is(err, repository.ErrInvalidTimeSend):
		respondError(c, http.StatusBadRequest, "validation_error", "time_to_send must be HH:mm")
	default:
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to persist config")
	}
}
