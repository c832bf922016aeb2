package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks notification fan-out. All methods are safe on a nil receiver.
type Metrics struct {
	Queued     prometheus.Counter
	Dropped    prometheus.Counter
	Delivered  *prometheus.CounterVec
	Failed     *prometheus.CounterVec
	QueueDepth prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Queued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustlane_notifications_queued_total",
			Help: "Notifications accepted by the dispatcher",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustlane_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}),
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_notifications_delivered_total",
			Help: "Notifications delivered per sink",
		}, []string{"sink"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlane_notifications_failed_total",
			Help: "Notifications a sink gave up on after retries",
		}, []string{"sink"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trustlane_notifications_queue_depth",
			Help: "Notifications waiting in the dispatch queue",
		}),
	}
}

func (m *Metrics) IncrementQueued(depth int) {
	if m == nil {
		return
	}
	m.Queued.Inc()
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) IncrementDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *Metrics) IncrementDelivered(sink string) {
	if m == nil {
		return
	}
	m.Delivered.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncrementFailed(sink string) {
	if m == nil {
		return
	}
	m.Failed.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}
