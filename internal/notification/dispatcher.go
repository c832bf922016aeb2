package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"trustlane/internal/notification/metrics"
	"trustlane/internal/notification/models"
	"trustlane/pkg/requestcontext"
)

// ErrQueueFull is returned by Notify when the dispatch queue has no room.
var ErrQueueFull = errors.New("notification queue full")

// Sink is one delivery target for notifications.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *models.Notification) error
}

type job struct {
	ctx          context.Context
	notification *models.Notification
}

// Dispatcher fans notifications out to every sink on a worker pool. Notify
// never blocks; delivery retries with exponential backoff per sink.
type Dispatcher struct {
	queue      chan job
	sinks      []Sink
	workers    int
	maxElapsed time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRetryMaxElapsed bounds how long one sink keeps retrying one notification.
func WithRetryMaxElapsed(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.maxElapsed = d
	}
}

func NewDispatcher(queueSize int, sinks []Sink, opts ...DispatcherOption) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		queue:      make(chan job, queueSize),
		sinks:      sinks,
		workers:    1,
		maxElapsed: 30 * time.Second,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify queues n for delivery. The request's deadline does not carry over;
// its request ID and actor do.
func (d *Dispatcher) Notify(ctx context.Context, n *models.Notification) error {
	select {
	case d.queue <- job{ctx: requestcontext.Detach(ctx), notification: n}:
		d.metrics.IncrementQueued(len(d.queue))
		return nil
	default:
		d.metrics.IncrementDropped()
		return ErrQueueFull
	}
}

// Run delivers queued notifications until ctx is cancelled, then drains
// what is already queued before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					d.drain()
					return nil
				case j := <-d.queue:
					d.dispatch(j.ctx, j.notification)
				}
			}
		})
	}
	return g.Wait()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.queue:
			d.dispatch(j.ctx, j.notification)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, n *models.Notification) {
	d.metrics.SetQueueDepth(len(d.queue))
	for _, sink := range d.sinks {
		if err := d.deliver(ctx, sink, n); err != nil {
			d.metrics.IncrementFailed(sink.Name())
			d.logger.ErrorContext(ctx, "notification delivery failed",
				"sink", sink.Name(),
				"notification_id", n.ID,
				"type", n.Type,
				"user_id", n.UserID,
				"error", err,
			)
			continue
		}
		d.metrics.IncrementDelivered(sink.Name())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, n *models.Notification) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = d.maxElapsed
	return backoff.Retry(func() error {
		return sink.Deliver(ctx, n)
	}, backoff.WithContext(b, ctx))
}

// StoreSink writes notifications to the in-app store users poll.
type StoreSink struct {
	store Store
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string {
	return "store"
}

func (s *StoreSink) Deliver(ctx context.Context, n *models.Notification) error {
	return s.store.Create(ctx, n)
}
