package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks batch job runs. All methods are safe to call on a nil receiver.
type Metrics struct {
	Runs        *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Changes     *prometheus.CounterVec
	ItemErrors  *prometheus.CounterVec
	LockSkipped *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_automation_runs_total",
			Help: "Automation job runs, by job and result",
		}, []string{"job", "result"}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustlane_automation_run_duration_seconds",
			Help:    "Wall time of one automation job run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		Changes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_automation_changes_total",
			Help: "Records changed by automation jobs",
		}, []string{"job"}),
		ItemErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_automation_item_failures_total",
			Help: "Items an automation job failed to process",
		}, []string{"job"}),
		LockSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_automation_lock_skipped_total",
			Help: "Scheduled runs skipped because another instance held the lease",
		}, []string{"job"}),
	}
}

// ObserveRun records a finished run. result is "ok" or "error".
func (m *Metrics) ObserveRun(job, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(job, result).Inc()
	m.Duration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddChanges(job string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Changes.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) AddItemFailures(job string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ItemErrors.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) IncrementLockSkipped(job string) {
	if m == nil {
		return
	}
	m.LockSkipped.WithLabelValues(job).Inc()
}
