package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	SchedulerCycles      prometheus.Counter
	FetchCycles          prometheus.Counter
	AppointmentsFetched  prometheus.Counter
	ConfirmationsStored  prometheus.Counter
	DuplicatesSkipped    prometheus.Counter
	ConfirmationsClaimed prometheus.Counter
	Completed            prometheus.Counter
	Failed               prometheus.Counter
	RateLimited          prometheus.Counter
	Reclaimed            prometheus.Counter
	ProcessingTime       prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		SchedulerCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_scheduler_cycles_total",
			Help: "Total number of scheduled confirmation cycle triggers",
		}),
		FetchCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_fetch_cycles_total",
			Help: "Total number of per-tenant appointment fetch cycles",
		}),
		AppointmentsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_appointments_fetched_total",
			Help: "Total number of appointments returned by platform adapters",
		}),
		ConfirmationsStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_confirmations_stored_total",
			Help: "Total number of pending confirmations created",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_duplicates_skipped_total",
			Help: "Total number of fetched appointments already queued",
		}),
		ConfirmationsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_confirmations_claimed_total",
			Help: "Total number of confirmations claimed for processing",
		}),
		Completed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_confirmations_completed_total",
			Help: "Total number of confirmations synced into the CRM",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_confirmations_failed_total",
			Help: "Total number of confirmation attempts that failed",
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_rate_limited_total",
			Help: "Total number of confirmations deferred by CRM rate limiting",
		}),
		Reclaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bookys_sync_reclaimed_total",
			Help: "Total number of stuck processing rows returned to pending",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookys_sync_processing_duration_seconds",
			Help:    "Time spent processing one confirmation",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
