// Package scheduler fires automation jobs on cron specs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"trustlane/internal/automation/metrics"
	"trustlane/internal/automation/models"
	dErrors "trustlane/pkg/domain-errors"
)

// Runner executes one job. A Conflict error means another holder owns its lease.
type Runner interface {
	Run(ctx context.Context, job models.Job) (*models.Summary, error)
}

// Entry binds a job to a cron spec with a leading seconds field.
type Entry struct {
	Job  models.Job
	Spec string
}

type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	entries []Entry
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New validates every spec up front. An entry with an empty spec is skipped.
func New(runner Runner, entries []Entry, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	s := &Scheduler{
		runner: runner,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, e := range entries {
		if e.Spec == "" {
			continue
		}
		if !e.Job.IsValid() {
			return nil, fmt.Errorf("unknown automation job %q", e.Job)
		}
		if _, err := parser.Parse(e.Spec); err != nil {
			return nil, fmt.Errorf("invalid cron spec %q for %s: %w", e.Spec, e.Job, err)
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Entries returns the jobs that will be scheduled.
func (s *Scheduler) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Run schedules every entry and blocks until ctx is cancelled, then waits
// for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, e := range s.entries {
		job := e.Job
		if _, err := s.cron.AddFunc(e.Spec, func() { s.fire(ctx, job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job, err)
		}
	}
	s.logger.InfoContext(ctx, "automation scheduler started", "jobs", len(s.entries))
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("automation scheduler stopped")
	return nil
}

func (s *Scheduler) fire(ctx context.Context, job models.Job) {
	if ctx.Err() != nil {
		return
	}
	summary, err := s.runner.Run(ctx, job)
	switch {
	case dErrors.HasCode(err, dErrors.CodeConflict):
		s.metrics.IncrementLockSkipped(string(job))
		s.logger.InfoContext(ctx, "automation job skipped: lease held elsewhere", "job", job)
	case err != nil:
		s.logger.ErrorContext(ctx, "automation job failed", "job", job, "error", err)
	default:
		s.logger.InfoContext(ctx, "automation job finished",
			"job", job,
			"processed", summary.Processed,
			"changed", summary.Changed(),
			"failures", len(summary.Failures),
		)
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
