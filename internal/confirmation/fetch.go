package confirmation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bookys-sync/internal/model"
)

// FetchOptions controls one fetch cycle.
type FetchOptions struct {
	// ConfigID restricts the cycle to one config; empty means every enabled
	// config of the tenant.
	ConfigID string

	// TargetDate overrides "today" (YYYY-MM-DD, tenant-local) for testing
	// a specific date.
	TargetDate string

	// Immediate schedules stored rows for now instead of the config's
	// computed send time.
	Immediate bool
}

// FetchResult reports what one fetch cycle did.
type FetchResult struct {
	Fetched    int `json:"fetched"`
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
}

// FetchAndStore runs a fetch cycle for a tenant: resolve the adapter, pull
// the appointments each selected config is due to confirm, and queue the
// ones not already present. Per-config fetch errors are logged and isolated;
// they never abort the cycle.
func (s *Service) FetchAndStore(ctx context.Context, tenantID string, opts FetchOptions) (*FetchResult, error) {
	tenant, err := s.tenants.FindByID(tenantID)
	if err != nil {
		return nil, err
	}

	var configs []model.ConfirmationConfig
	if opts.ConfigID != "" {
		cfg, err := s.configs.Get(tenantID, opts.ConfigID)
		if err != nil {
			return nil, err
		}
		configs = []model.ConfirmationConfig{*cfg}
	} else {
		configs, err = s.configs.ListEnabled(tenantID)
		if err != nil {
			return nil, err
		}
	}
	if len(configs) == 0 {
		return nil, ErrNoEnabledConfigs
	}

	adapter := s.resolver.ForTenant(tenant)
	platformName := s.resolver.PlatformForTenant(tenant)
	loc := tenantLocation(tenant.Timezone)

	s.metrics.FetchCycles.Inc()

	result := &FetchResult{}
	for i := range configs {
		cfg := &configs[i]

		today, err := s.cycleStart(opts.TargetDate, loc)
		if err != nil {
			logrus.Errorf("[%s] Bad target date: %v", cfg.Name, err)
			continue
		}

		// A config with daysBefore=1 pulls tomorrow's appointments today.
		appointmentDate := today.AddDate(0, 0, cfg.DaysBeforeAppointment).Format("2006-01-02")
		logrus.Infof("[%s] Today is %s, fetching appointments of %s (%d days ahead)",
			cfg.Name, today.Format("2006-01-02"), appointmentDate, cfg.DaysBeforeAppointment)

		fetched, err := adapter.FetchAppointments(ctx, tenant, cfg, appointmentDate, tenant.Timezone)
		if err != nil {
			logrus.Errorf("[%s] Failed to fetch appointments: %v", cfg.Name, err)
			continue
		}
		result.Fetched += len(fetched)
		s.metrics.AppointmentsFetched.Add(float64(len(fetched)))

		scheduledFor := s.now()
		if !opts.Immediate {
			scheduledFor, err = scheduledTimeFor(appointmentDate, cfg.TimeToSend, cfg.DaysBeforeAppointment, loc)
			if err != nil {
				logrus.Errorf("[%s] Failed to compute send time: %v", cfg.Name, err)
				continue
			}
		}

		for _, apt := range fetched {
			stored, err := s.storeFetched(tenant.ID, cfg.ID, platformName, apt.PlatformAppointmentID, apt.AppointmentData, scheduledFor)
			if err != nil {
				logrus.Errorf("[%s] Failed to store appointment %s: %v", cfg.Name, apt.PlatformAppointmentID, err)
				continue
			}
			if stored {
				result.Stored++
			} else {
				result.Duplicates++
			}
		}
	}

	logrus.Infof("Fetch cycle for tenant %s: %d fetched, %d stored, %d duplicates",
		tenantID, result.Fetched, result.Stored, result.Duplicates)
	return result, nil
}

// cycleStart normalizes the cycle's reference day to tenant-local midnight
// so day arithmetic never drifts across DST or late-evening runs.
func (s *Service) cycleStart(targetDate string, loc *time.Location) (time.Time, error) {
	if targetDate != "" {
		return time.ParseInLocation("2006-01-02", targetDate, loc)
	}
	now := s.now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
}

// storeFetched inserts one fetched appointment unless its dedup key already
// exists. Returns true when a new row was created.
func (s *Service) storeFetched(tenantID, configID, platformName, platformAppointmentID string, data model.NormalizedAppointment, scheduledFor time.Time) (bool, error) {
	exists, err := s.pending.Exists(tenantID, configID, platformName, platformAppointmentID)
	if err != nil {
		return false, err
	}
	if exists {
		logrus.Debugf("Appointment %s already queued, skipping", platformAppointmentID)
		s.metrics.DuplicatesSkipped.Inc()
		return false, nil
	}

	row := &model.PendingConfirmation{
		TenantID:              tenantID,
		ConfigID:              configID,
		Platform:              platformName,
		PlatformAppointmentID: platformAppointmentID,
		AppointmentData:       data,
		Status:                model.StatusPending,
		ScheduledFor:          scheduledFor,
	}
	if err := s.pending.Create(row); err != nil {
		return false, err
	}

	s.metrics.ConfirmationsStored.Inc()
	logrus.Infof("Appointment %s queued for confirmation at %s", platformAppointmentID, scheduledFor.Format(time.RFC3339))
	return true, nil
}
