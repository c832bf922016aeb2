package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification workflow.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	Submitted        prometheus.Counter
	Decisions        *prometheus.CounterVec
	AutoEvaluations  *prometheus.CounterVec
	AutoEvalFailures prometheus.Counter
	QueueDropped     prometheus.Counter
	AutoEvalDuration prometheus.Histogram
	NotifyFailures   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustlane_verification_submitted_total",
			Help: "Total number of verification requests submitted",
		}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_verification_decisions_total",
			Help: "Verification decisions by outcome status and source (admin or auto)",
		}, []string{"status", "source"}),
		AutoEvaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_verification_auto_evaluations_total",
			Help: "Auto-evaluation runs by outcome",
		}, []string{"outcome"}),
		AutoEvalFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustlane_verification_auto_evaluation_failures_total",
			Help: "Auto-evaluation runs that returned an error",
		}),
		QueueDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustlane_verification_queue_dropped_total",
			Help: "Auto-evaluation jobs dropped because the queue was full",
		}),
		AutoEvalDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustlane_verification_auto_evaluation_duration_seconds",
			Help:    "Duration of one auto-evaluation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustlane_verification_notify_failures_total",
			Help: "Verification notifications that could not be handed to the dispatcher",
		}),
	}
}

func (m *Metrics) IncrementSubmitted() {
	if m == nil {
		return
	}
	m.Submitted.Inc()
}

// IncrementDecision records a terminal decision. source is "admin" or "auto".
func (m *Metrics) IncrementDecision(status, source string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(status, source).Inc()
}

// ObserveAutoEvaluation records one auto-evaluation. Call with time.Now() at the start.
func (m *Metrics) ObserveAutoEvaluation(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.AutoEvaluations.WithLabelValues(outcome).Inc()
	m.AutoEvalDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementAutoEvalFailure() {
	if m == nil {
		return
	}
	m.AutoEvalFailures.Inc()
}

func (m *Metrics) IncrementQueueDropped() {
	if m == nil {
		return
	}
	m.QueueDropped.Inc()
}

func (m *Metrics) IncrementNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
