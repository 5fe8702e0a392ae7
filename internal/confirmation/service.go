package confirmation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bookys-sync/internal/config"
	"bookys-sync/internal/ghl"
	"bookys-sync/internal/lease"
	"bookys-sync/internal/metrics"
	"bookys-sync/internal/platform"
	"bookys-sync/internal/repository"
)

// ErrNoEnabledConfigs is returned by a fetch cycle for a tenant without any
// enabled confirmation config.
var ErrNoEnabledConfigs = errors.New("tenant has no enabled confirmation configs")

// Service drives the confirmation pipeline: fetch cycles that fill the
// pending queue and the rate-limited drain that syncs each row into
// GoHighLevel.
type Service struct {
	tenants  *repository.TenantRepository
	configs  *repository.ConfigRepository
	pending  *repository.PendingRepository
	resolver *platform.Resolver
	ghl      *ghl.Client
	locker   lease.Locker
	metrics  *metrics.Metrics
	pacing   config.PacingConfig

	// limiter is the shared token bucket for CRM-bound work; one permit is
	// taken per confirmation, sized so 3-4 requests each stay inside the
	// GHL budget.
	limiter *rate.Limiter

	// Injection points so tests can run without real timers.
	now             func() time.Time
	sleep           func(ctx context.Context, d time.Duration)
	preProcessDelay func() time.Duration

	pushes sync.WaitGroup
}

// New creates the confirmation service.
func New(
	tenants *repository.TenantRepository,
	configs *repository.ConfigRepository,
	pending *repository.PendingRepository,
	resolver *platform.Resolver,
	ghlClient *ghl.Client,
	locker lease.Locker,
	m *metrics.Metrics,
	pacing config.PacingConfig,
) *Service {
	// Each confirmation issues up to 4 CRM requests, so confirmations per
	// second is the request budget divided by four.
	perConfirmation := pacing.RequestsPerSecond / 4
	if perConfirmation <= 0 {
		perConfirmation = 1
	}

	s := &Service{
		tenants:  tenants,
		configs:  configs,
		pending:  pending,
		resolver: resolver,
		ghl:      ghlClient,
		locker:   locker,
		metrics:  m,
		pacing:   pacing,
		limiter:  rate.NewLimiter(rate.Limit(perConfirmation), 1),
		now:      time.Now,
	}

	s.sleep = func(ctx context.Context, d time.Duration) {
		if d <= 0 {
			return
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}

	s.preProcessDelay = func() time.Duration {
		min, max := pacing.PreProcessDelayMin, pacing.PreProcessDelayMax
		if max <= min {
			return min
		}
		return min + time.Duration(rand.Int63n(int64(max-min)))
	}

	return s
}

// Wait blocks until all spawned best-effort push tasks have finished.
func (s *Service) Wait() {
	s.pushes.Wait()
}

// scheduledTimeFor computes when a confirmation for an appointment on
// appointmentDate becomes due: daysBefore days earlier, at timeToSend in the
// tenant's timezone.
func scheduledTimeFor(appointmentDate string, timeToSend string, daysBefore int, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", appointmentDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad appointment date %q: %w", appointmentDate, err)
	}
	send, err := time.Parse("15:04", timeToSend)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time_to_send %q: %w", timeToSend, err)
	}

	day = day.AddDate(0, 0, -daysBefore)
	return time.Date(day.Year(), day.Month(), day.Day(), send.Hour(), send.Minute(), 0, 0, loc), nil
}

// tenantLocation resolves the tenant timezone, defaulting to Chile where the
// platforms operate.
func tenantLocation(timezone string) *time.Location {
	if timezone == "" {
		timezone = "America/Santiago"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
