package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"bookys-sync/internal/config"
	"bookys-sync/internal/confirmation"
	"bookys-sync/internal/metrics"
)

// mainSchedule fires the fetch-and-drain cycle every 30 minutes; every
// config's time_to_send lands in exactly one of these windows.
const mainSchedule = "0 */30 * * * *"

// sweepSchedule fires the hourly backup sweep at the top of each hour.
const sweepSchedule = "0 0 * * * *"

// Scheduler manages the periodic confirmation cycles
type Scheduler struct {
	cron         *cron.Cron
	mainEntryID  cron.EntryID
	sweepEntryID cron.EntryID
	config       *config.SchedulerConfig
	service      *confirmation.Service
	metrics      *metrics.Metrics
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	isRunning    bool
	mu           sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, service *confirmation.Service, metrics *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		config:  cfg,
		service: service,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	mainID, err := s.cron.AddFunc(mainSchedule, s.runMainCycle)
	if err != nil {
		return fmt.Errorf("failed to add main cron job: %w", err)
	}
	sweepID, err := s.cron.AddFunc(sweepSchedule, s.runSweep)
	if err != nil {
		return fmt.Errorf("failed to add sweep cron job: %w", err)
	}

	s.mainEntryID = mainID
	s.sweepEntryID = sweepID
	s.cron.Start()
	s.isRunning = true

	logrus.Info("Scheduler started: main cycle every 30 minutes, sweep hourly")
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running operations
	s.cancel()

	// Stop the cron scheduler
	ctx := s.cron.Stop()

	// Wait for running jobs to complete
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	// Let spawned state pushes land before shutdown
	s.service.Wait()

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runMainCycle is the main 30-minute loop body
func (s *Scheduler) runMainCycle() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping cycle")
		return
	}
	s.mu.RUnlock()

	logrus.Info("Starting scheduled confirmation cycle")
	startTime := time.Now()
	s.metrics.SchedulerCycles.Inc()

	if _, err := s.service.RunScheduledCycle(s.ctx); err != nil {
		logrus.Errorf("Scheduled confirmation cycle failed: %v", err)
		return
	}

	logrus.Infof("Scheduled confirmation cycle completed in %v", time.Since(startTime))
}

// runSweep is the hourly backup: it frees rows stuck in PROCESSING and
// drains a batch of overdue PENDING rows regardless of their send window.
func (s *Scheduler) runSweep() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	logrus.Info("Starting confirmation sweep")

	if _, err := s.service.ReclaimStale(s.config.LeaseTimeout); err != nil {
		logrus.Errorf("Failed to reclaim stale confirmations: %v", err)
	}

	result, err := s.service.ProcessDue(s.ctx, s.config.SweepBatchSize)
	if err != nil {
		logrus.Errorf("Confirmation sweep failed: %v", err)
		return
	}

	logrus.Infof("Confirmation sweep completed: %d processed", result.Processed)
}

// RunOnce runs the main cycle once (for manual triggering)
func (s *Scheduler) RunOnce() error {
	logrus.Info("Running confirmation cycle once")
	s.runMainCycle()
	return nil
}

// GetNextRun returns the time of the next scheduled main cycle
func (s *Scheduler) GetNextRun() time.Time {
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.mainEntryID)
	return entry.Next
}

// GetLastRun returns the time of the last main cycle
func (s *Scheduler) GetLastRun() time.Time {
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.mainEntryID)
	return entry.Prev
}

// Wait waits for in-flight jobs to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
