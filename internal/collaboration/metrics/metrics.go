package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts collaboration request answers and lifecycle transitions.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	RequestsSent     prometheus.Counter
	RequestsAnswered *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	RejectedActions  *prometheus.CounterVec
	NotifyFailures   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		RequestsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustlane_collaboration_requests_sent_total",
			Help: "Collaboration requests sent by sponsors",
		}),
		RequestsAnswered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_collaboration_requests_answered_total",
			Help: "Collaboration requests answered by creators, by resulting status",
		}, []string{"status"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_collaboration_transitions_total",
			Help: "Committed collaboration lifecycle transitions",
		}, []string{"action", "to"}),
		RejectedActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_collaboration_rejected_actions_total",
			Help: "Lifecycle actions refused by a role or state guard",
		}, []string{"action", "code"}),
		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustlane_collaboration_notify_failures_total",
			Help: "Collaboration notifications that could not be handed to the dispatcher",
		}),
	}
}

func (m *Metrics) IncrementRequestsSent() {
	if m == nil {
		return
	}
	m.RequestsSent.Inc()
}

func (m *Metrics) IncrementRequestAnswered(status string) {
	if m == nil {
		return
	}
	m.RequestsAnswered.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementTransition(action, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, to).Inc()
}

// IncrementRejectedAction records a guard failure. code is the domain error code.
func (m *Metrics) IncrementRejectedAction(action, code string) {
	if m == nil {
		return
	}
	m.RejectedActions.WithLabelValues(action, code).Inc()
}

func (m *Metrics) IncrementNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
