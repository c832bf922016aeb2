// Package worker runs auto-evaluation of verification requests off the
// request path. Submit enqueues the request ID; a fixed pool of goroutines
// evaluates it against the auto-approval rule.
package worker

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"trustlane/internal/verification/models"
	id "trustlane/pkg/domain"
)

// Evaluator is the auto-evaluation entry point, satisfied by the verification service.
type Evaluator interface {
	AutoEvaluate(ctx context.Context, requestID id.VerificationRequestID) (models.Outcome, error)
}

type Worker struct {
	jobs    chan id.VerificationRequestID
	workers int
	delay   time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithWorkers sets the number of concurrent evaluators. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithDelay waits d before evaluating each request.
func WithDelay(d time.Duration) Option {
	return func(w *Worker) {
		w.delay = d
	}
}

func New(queueSize int, opts ...Option) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	w := &Worker{
		jobs:    make(chan id.VerificationRequestID, queueSize),
		workers: 1,
		logger:  slog.New(slog.DiscardHandler),
		tracer:  otel.Tracer("trustlane/verification"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue schedules requestID for evaluation. It never blocks and reports
// false when the queue is full.
func (w *Worker) Enqueue(requestID id.VerificationRequestID) bool {
	select {
	case w.jobs <- requestID:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued, not yet started evaluations.
func (w *Worker) Pending() int {
	return len(w.jobs)
}

// Run evaluates queued requests until ctx is cancelled. Evaluation errors are
// logged and counted; they never stop the pool.
func (w *Worker) Run(ctx context.Context, evaluator Evaluator) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			w.loop(gctx, evaluator)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, evaluator Evaluator) {
	for {
		select {
		case <-ctx.Done():
			return
		case requestID := <-w.jobs:
			if w.delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.delay):
				}
			}
			w.evaluate(ctx, evaluator, requestID)
		}
	}
}

func (w *Worker) evaluate(ctx context.Context, evaluator Evaluator, requestID id.VerificationRequestID) {
	ctx, span := w.tracer.Start(ctx, "verification.auto_evaluate",
		trace.WithAttributes(attribute.String("verification_request_id", requestID.String())))
	defer span.End()

	outcome, err := evaluator.AutoEvaluate(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "auto-evaluation failed")
		w.logger.ErrorContext(ctx, "auto-evaluation failed",
			"verification_request_id", requestID,
			"error", err,
		)
		return
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	w.logger.InfoContext(ctx, "auto-evaluation finished",
		"verification_request_id", requestID,
		"outcome", outcome,
	)
}
