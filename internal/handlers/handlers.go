package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"bookys-sync/internal/confirmation"
	"bookys-sync/internal/ghl"
	"bookys-sync/internal/metrics"
	"bookys-sync/internal/platform"
	"bookys-sync/internal/repository"
	"bookys-sync/internal/scheduler"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db         *gorm.DB
	tenants    *repository.TenantRepository
	configs    *repository.ConfigRepository
	pending    *repository.PendingRepository
	service    *confirmation.Service
	scheduler  *scheduler.Scheduler
	resolver   *platform.Resolver
	healthAtom *platform.HealthAtomAdapter
	ghl        *ghl.Client
	metrics    *metrics.Metrics
}

// NewHandlers creates new HTTP handlers
func NewHandlers(
	db *gorm.DB,
	tenants *repository.TenantRepository,
	configs *repository.ConfigRepository,
	pending *repository.PendingRepository,
	service *confirmation.Service,
	sched *scheduler.Scheduler,
	resolver *platform.Resolver,
	healthAtom *platform.HealthAtomAdapter,
	ghlClient *ghl.Client,
	m *metrics.Metrics,
) *Handlers {
	return &Handlers{
		db:         db,
		tenants:    tenants,
		configs:    configs,
		pending:    pending,
		service:    service,
		scheduler:  sched,
		resolver:   resolver,
		healthAtom: healthAtom,
		ghl:        ghlClient,
		metrics:    m,
	}
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func respondError(c *gin.Context, code int, kind, message string) {
	c.JSON(code, ErrorResponse{Error: kind, Message: message, Code: code})
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		tenant := api.Group("/tenants/:tenantId")
		{
			tenant.GET("/configs", h.ListConfigs)
			tenant.POST("/configs", h.CreateConfig)
			tenant.GET("/configs/:configId", h.GetConfig)
			tenant.PUT("/configs/:configId", h.UpdateConfig)
			tenant.DELETE("/configs/:configId", h.DeleteConfig)

			tenant.POST("/fetch", h.TriggerFetch)
			tenant.POST("/process", h.ProcessPending)
			tenant.POST("/process-all", h.ProcessAllPending)
			tenant.POST("/process-selected", h.ProcessSelected)
			tenant.GET("/confirmations", h.ListConfirmations)

			tenant.GET("/appointment-states", h.GetAppointmentStates)
			tenant.POST("/appointment-states/bookys", h.CreateBookysStates)

			tenant.POST("/ghl/setup", h.SetupGHLFields)
			tenant.GET("/ghl/validate", h.ValidateGHLFields)
		}

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// loadTenant resolves the path tenant or writes the 404 itself.
func (h *Handlers) loadTenant(c *gin.Context) (string, bool) {
	tenantID := c.Param("tenantId")
	if _, err := h.tenants.FindByID(tenantID); err != nil {
		if err == repository.ErrTenantNotFound {
			respondError(c, http.StatusNotFound, "tenant_not_found", "Tenant not found")
		} else {
			respondError(c, http.StatusInternalServerError, "database_error", "Failed to load tenant")
		}
		return "", false
	}
	return tenantID, true
}
