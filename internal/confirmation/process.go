package confirmation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bookys-sync/internal/ghl"
	"bookys-sync/internal/lease"
	"bookys-sync/internal/model"
)

// ErrTenantBusy is returned by the manual process operations when another
// trigger currently holds the tenant's drain lease.
var ErrTenantBusy = errors.New("tenant queue is already being processed")

// ProcessResult reports what one drain did.
type ProcessResult struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// ProcessDue processes up to limit overdue PENDING rows across all tenants,
// oldest first. This is the hourly backup sweep body; rows are guarded by
// the per-row claim, so it needs no tenant lease.
func (s *Service) ProcessDue(ctx context.Context, limit int) (*ProcessResult, error) {
	rows, err := s.pending.FindDue(s.now(), limit)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Found %d due confirmations to process", len(rows))
	return s.processList(ctx, rows), nil
}

// ProcessPendingNow processes up to one batch of a tenant's PENDING rows,
// ignoring scheduledFor. Used by the manual process endpoint.
func (s *Service) ProcessPendingNow(ctx context.Context, tenantID string) (*ProcessResult, error) {
	return s.withTenantLease(ctx, tenantID, func(ctx context.Context) (*ProcessResult, error) {
		rows, err := s.pending.FindPendingByTenant(tenantID, s.pacing.BatchSize)
		if err != nil {
			return nil, err
		}
		return s.processList(ctx, rows), nil
	})
}

// DrainTenant fully drains a tenant's queue: every currently-PENDING row is
// processed once, in batches. Rows that flip back to PENDING for retry wait
// for a later cycle; the snapshot is taken once so the drain terminates.
func (s *Service) DrainTenant(ctx context.Context, tenantID string) (*ProcessResult, error) {
	return s.withTenantLease(ctx, tenantID, func(ctx context.Context) (*ProcessResult, error) {
		rows, err := s.pending.FindPendingByTenant(tenantID, 0)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Draining %d pending confirmations for tenant %s", len(rows), tenantID)
		return s.processList(ctx, rows), nil
	})
}

// ProcessSelected processes specific confirmations of a tenant. Rows that
// are not PENDING any more lose the claim and are skipped.
func (s *Service) ProcessSelected(ctx context.Context, tenantID string, ids []string) (*ProcessResult, error) {
	return s.withTenantLease(ctx, tenantID, func(ctx context.Context) (*ProcessResult, error) {
		rows, err := s.pending.FindByIDs(tenantID, ids)
		if err != nil {
			return nil, err
		}
		return s.processList(ctx, rows), nil
	})
}

// ReclaimStale returns confirmations stuck in PROCESSING longer than the
// lease timeout to PENDING.
func (s *Service) ReclaimStale(leaseTimeout time.Duration) (int64, error) {
	reclaimed, err := s.pending.ReclaimStale(s.now().Add(-leaseTimeout))
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		logrus.Warnf("Reclaimed %d confirmations from stale processing leases", reclaimed)
		s.metrics.Reclaimed.Add(float64(reclaimed))
	}
	return reclaimed, nil
}

func (s *Service) withTenantLease(ctx context.Context, tenantID string, fn func(ctx context.Context) (*ProcessResult, error)) (*ProcessResult, error) {
	var result *ProcessResult
	var fnErr error

	err := s.locker.WithTenantLock(ctx, tenantID, func(ctx context.Context) error {
		result, fnErr = fn(ctx)
		return fnErr
	})
	if errors.Is(err, lease.ErrHeld) {
		return nil, ErrTenantBusy
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// processList runs the drain loop over a snapshot of rows with the
// configured inter-item and inter-batch delays. A failure on one row never
// aborts the loop; the next row is processed after recording it.
func (s *Service) processList(ctx context.Context, rows []model.PendingConfirmation) *ProcessResult {
	result := &ProcessResult{}

	for i := range rows {
		if ctx.Err() != nil {
			logrus.Warnf("Drain loop interrupted with %d of %d rows processed", i, len(rows))
			break
		}

		status, skipped := s.processOne(ctx, rows[i].ID)
		if skipped {
			continue
		}

		result.Processed++
		switch status {
		case model.StatusCompleted:
			result.Completed++
		case model.StatusFailed:
			result.Failed++
		}

		if i < len(rows)-1 {
			s.sleep(ctx, s.pacing.ItemDelay)
			if (i+1)%s.pacing.BatchSize == 0 {
				s.sleep(ctx, s.pacing.BatchDelay)
			}
		}
	}

	logrus.Infof("Drain finished: %d processed, %d completed, %d failed",
		result.Processed, result.Completed, result.Failed)
	return result
}

// processOne runs the full state machine for a single confirmation. The
// returned status is the row's final state for this attempt; skipped is true
// when another trigger claimed the row first.
func (s *Service) processOne(ctx context.Context, id string) (model.ConfirmationStatus, bool) {
	owner := uuid.NewString()

	won, err := s.pending.Claim(id, owner, s.now())
	if err != nil {
		logrus.Errorf("Failed to claim confirmation %s: %v", id, err)
		return "", true
	}
	if !won {
		logrus.Debugf("Confirmation %s was claimed elsewhere, skipping", id)
		return "", true
	}
	s.metrics.ConfirmationsClaimed.Inc()

	row, err := s.pending.FindByID(id)
	if err != nil {
		logrus.Errorf("Failed to reload confirmation %s after claim: %v", id, err)
		return "", true
	}

	logrus.Infof("Processing confirmation %s (attempt %d)", row.ID, row.Attempts)
	start := s.now()
	defer func() {
		s.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
	}()

	// Intentional pacing before any external call.
	s.sleep(ctx, s.preProcessDelay())

	if err := s.syncToCRM(ctx, row); err != nil {
		s.recordFailure(row, err)
	} else {
		now := s.now()
		row.Status = model.StatusCompleted
		row.ProcessedAt = &now
		row.ErrorMessage = ""
		s.metrics.Completed.Inc()
		logrus.Infof("Confirmation %s completed", row.ID)
	}

	if err := s.pending.Save(row); err != nil {
		logrus.Errorf("Failed to persist confirmation %s outcome: %v", row.ID, err)
	}

	return row.Status, false
}

// syncToCRM performs the fatal part of a confirmation: contact resolution
// and the custom-field update. The source state push is spawned after the
// CRM sync succeeded and never influences the outcome.
func (s *Service) syncToCRM(ctx context.Context, row *model.PendingConfirmation) error {
	tenant, err := s.tenants.FindByID(row.TenantID)
	if err != nil {
		return err
	}
	if !tenant.HasGHLCredentials() {
		return errors.New("tenant has no GoHighLevel credentials configured")
	}

	creds := ghl.Credentials{
		AccessToken: tenant.GHLAccessToken,
		LocationID:  tenant.GHLLocationID,
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	contactID, err := s.ghl.FindOrCreateContact(ctx, creds, row.AppointmentData)
	if err != nil {
		return err
	}

	row.GHLContactID = contactID
	if err := s.pending.Save(row); err != nil {
		return err
	}

	if err := s.ghl.UpdateContactCustomFields(ctx, creds, contactID, row.PlatformAppointmentID, row.AppointmentData); err != nil {
		return err
	}

	s.spawnStatePush(tenant, row)
	return nil
}

// spawnStatePush pushes the tenant's "contacted" state back to the source
// platform in a background task. The result is logged and nothing else;
// a failed push never fails the confirmation.
func (s *Service) spawnStatePush(tenant *model.Tenant, row *model.PendingConfirmation) {
	adapter, ok := s.resolver.ByPlatform(row.Platform)
	if !ok {
		logrus.Warnf("No adapter for platform %q, skipping state push", row.Platform)
		return
	}

	tenantCopy := *tenant
	appointmentID := row.PlatformAppointmentID
	stateID := tenant.ContactedStateID

	s.pushes.Add(1)
	go func() {
		defer s.pushes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := adapter.ConfirmAppointment(ctx, &tenantCopy, appointmentID, stateID); err != nil {
			logrus.Warnf("State push for appointment %s failed: %v", appointmentID, err)
			return
		}
		logrus.Infof("Source state updated for appointment %s", appointmentID)
	}()
}

// recordFailure applies the failure branch of the state machine. Rate-limit
// responses go back to PENDING without consuming the retry budget; real
// failures consume one attempt and are terminal after the third.
func (s *Service) recordFailure(row *model.PendingConfirmation, err error) {
	logrus.Errorf("Confirmation %s failed: %v", row.ID, err)

	if ghl.IsRateLimit(err) {
		row.Status = model.StatusPending
		row.ErrorMessage = "GHL rate limit exceeded - will retry"
		if row.Attempts > 0 {
			row.Attempts--
		}
		s.metrics.RateLimited.Inc()
		return
	}

	row.ErrorMessage = err.Error()
	s.metrics.Failed.Inc()

	if row.Attempts >= model.MaxAttempts {
		row.Status = model.StatusFailed
		logrus.Errorf("Confirmation %s failed terminally after %d attempts", row.ID, row.Attempts)
		return
	}
	row.Status = model.StatusPending
}
