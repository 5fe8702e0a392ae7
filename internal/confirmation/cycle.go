package confirmation

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"bookys-sync/internal/model"
)

// sendWindow is how long a config's time_to_send stays matchable. It equals
// the main loop interval so every config fires exactly once per day.
const sendWindow = 30 * time.Minute

// CycleResult aggregates one scheduled cycle across all tenants.
type CycleResult struct {
	TenantsVisited int `json:"tenants_visited"`
	ConfigsFired   int `json:"configs_fired"`
	Fetched        int `json:"fetched"`
	Stored         int `json:"stored"`
	Processed      int `json:"processed"`
}

// RunScheduledCycle is the body of the main 30-minute loop: for every active
// tenant, fire each enabled config whose time_to_send falls inside the
// current window, then drain whatever landed in the tenant's queue. Tenant
// failures are isolated; one broken tenant never stops the cycle.
func (s *Service) RunScheduledCycle(ctx context.Context) (*CycleResult, error) {
	tenants, err := s.tenants.ListActive()
	if err != nil {
		return nil, err
	}

	result := &CycleResult{}
	now := s.now()

	for i := range tenants {
		tenant := &tenants[i]
		result.TenantsVisited++

		if err := s.runTenantCycle(ctx, tenant, now, result); err != nil {
			logrus.Errorf("Scheduled cycle failed for tenant %s: %v", tenant.ID, err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	logrus.Infof("Scheduled cycle done: %d tenants, %d configs fired, %d stored, %d processed",
		result.TenantsVisited, result.ConfigsFired, result.Stored, result.Processed)
	return result, nil
}

func (s *Service) runTenantCycle(ctx context.Context, tenant *model.Tenant, now time.Time, result *CycleResult) error {
	if !tenant.GHLEnabled {
		return nil
	}

	configs, err := s.configs.ListEnabled(tenant.ID)
	if err != nil {
		return err
	}

	loc := tenantLocation(tenant.Timezone)
	fired := false

	for i := range configs {
		cfg := &configs[i]

		due, err := inSendWindow(now, cfg.TimeToSend, loc)
		if err != nil {
			logrus.Errorf("Config %s has invalid time_to_send %q: %v", cfg.ID, cfg.TimeToSend, err)
			continue
		}
		if !due {
			logrus.Debugf("Config %s for tenant %s outside send window (%s %s)", cfg.ID, tenant.ID, cfg.TimeToSend, loc)
			continue
		}

		fired = true
		result.ConfigsFired++

		fetch, err := s.FetchAndStore(ctx, tenant.ID, FetchOptions{ConfigID: cfg.ID, Immediate: true})
		if err != nil {
			logrus.Errorf("Fetch cycle failed for tenant %s config %s: %v", tenant.ID, cfg.ID, err)
			continue
		}
		result.Fetched += fetch.Fetched
		result.Stored += fetch.Stored
	}

	if !fired {
		return nil
	}

	drained, err := s.DrainTenant(ctx, tenant.ID)
	if errors.Is(err, ErrTenantBusy) {
		logrus.Warnf("Tenant %s queue already draining, scheduled drain skipped", tenant.ID)
		return nil
	}
	if err != nil {
		return err
	}
	result.Processed += drained.Processed
	return nil
}

// inSendWindow reports whether now (converted to loc) sits inside
// [timeToSend, timeToSend+sendWindow) on the local calendar day.
func inSendWindow(now time.Time, timeToSend string, loc *time.Location) (bool, error) {
	send, err := time.Parse("15:04", timeToSend)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), send.Hour(), send.Minute(), 0, 0, loc)
	return !local.Before(start) && local.Before(start.Add(sendWindow)), nil
}
