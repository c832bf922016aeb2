// Package service runs the batch jobs that keep profile scores honest:
// full score and completion recomputes, the inactivity downgrade and the
// suspicious-profile flagging rule. Every job is safe to re-run; each profile
// is handled in its own transaction and per-item failures are collected in
// the job Summary instead of aborting the run.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"trustlane/internal/automation/metrics"
	"trustlane/internal/automation/models"
	profilemodels "trustlane/internal/profile/models"
	reportmodels "trustlane/internal/report/models"
	"trustlane/internal/trust"
	verificationmodels "trustlane/internal/verification/models"
	"trustlane/pkg/attrs"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	audit "trustlane/pkg/platform/audit"
	"trustlane/pkg/platform/sentinel"
	"trustlane/pkg/requestcontext"
)

const (
	DefaultInactivityDays = 90
	DefaultDecayPercent   = 10
	defaultLeaseTTL       = 10 * time.Minute
)

type ProfileStore interface {
	ListIDs(ctx context.Context) ([]id.ProfileID, error)
	FindByID(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
	FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
	Update(ctx context.Context, p *profilemodels.Profile) error
}

// RequestActivity reads collaboration request history for a profile.
type RequestActivity interface {
	CountAccepted(ctx context.Context, profileID id.ProfileID) (int, error)
	LastRequestActivity(ctx context.Context, profileID id.ProfileID) (time.Time, bool, error)
}

type VerificationReader interface {
	ListByStatus(ctx context.Context, status verificationmodels.Status, limit int) ([]*verificationmodels.Request, error)
}

// Reporter files a report unless one already exists for the profile and category.
type Reporter interface {
	FlagOnce(ctx context.Context, profileID id.ProfileID, reason, category string) (*reportmodels.Report, bool, error)
}

// Locker hands out named leases. Acquire fails with sentinel.ErrLockHeld
// while another holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	profiles       ProfileStore
	activity       RequestActivity
	verifications  VerificationReader
	reporter       Reporter
	tx             TxRunner
	locker         Locker
	leaseTTL       time.Duration
	inactivityDays int
	decayPercent   int
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker makes every run hold a lease named after its job for ttl.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = l
		if ttl > 0 {
			s.leaseTTL = ttl
		}
	}
}

// WithInactivity overrides the downgrade window and decay. Non-positive days are ignored.
func WithInactivity(days, decayPercent int) Option {
	return func(s *Service) {
		if days > 0 {
			s.inactivityDays = days
		}
		if decayPercent >= 0 && decayPercent <= 100 {
			s.decayPercent = decayPercent
		}
	}
}

func New(profiles ProfileStore, activity RequestActivity, verifications VerificationReader, reporter Reporter, tx TxRunner, opts ...Option) (*Service, error) {
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if activity == nil {
		return nil, errors.New("request activity reader is required")
	}
	if verifications == nil {
		return nil, errors.New("verification reader is required")
	}
	if reporter == nil {
		return nil, errors.New("reporter is required")
	}
	if tx == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{
		profiles:       profiles,
		activity:       activity,
		verifications:  verifications,
		reporter:       reporter,
		tx:             tx,
		leaseTTL:       defaultLeaseTTL,
		inactivityDays: DefaultInactivityDays,
		decayPercent:   DefaultDecayPercent,
		logger:         slog.New(slog.DiscardHandler),
		tracer:         otel.Tracer("trustlane/automation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Trigger runs job on behalf of an admin.
func (s *Service) Trigger(ctx context.Context, actor id.Actor, job models.Job) (*models.Summary, error) {
	if !actor.Is(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role")
	}
	return s.Run(ctx, job)
}

// TriggerAll runs every job on behalf of an admin.
func (s *Service) TriggerAll(ctx context.Context, actor id.Actor) ([]*models.Summary, error) {
	if !actor.Is(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role")
	}
	return s.RunAll(ctx)
}

// RunAll runs the four jobs concurrently. Summaries come back in models.Jobs
// order; a job that could not run leaves a nil slot and its error is returned.
func (s *Service) RunAll(ctx context.Context) ([]*models.Summary, error) {
	out := make([]*models.Summary, len(models.Jobs))
	var g errgroup.Group
	for i, job := range models.Jobs {
		g.Go(func() error {
			summary, err := s.Run(ctx, job)
			if err != nil {
				return err
			}
			out[i] = summary
			return nil
		})
	}
	return out, g.Wait()
}

// Run executes one job under its lease. A lease held elsewhere is a Conflict.
func (s *Service) Run(ctx context.Context, job models.Job) (*models.Summary, error) {
	run, err := s.jobFunc(job)
	if err != nil {
		return nil, err
	}
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "automation:"+string(job), s.leaseTTL)
		if err != nil {
			if errors.Is(err, sentinel.ErrLockHeld) {
				return nil, dErrors.Newf(dErrors.CodeConflict, "automation job %s is already running", job)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire automation lease")
		}
		defer func() {
			if err := release(requestcontext.Detach(ctx)); err != nil {
				s.logger.WarnContext(ctx, "failed to release automation lease", "job", job, "error", err)
			}
		}()
	}

	ctx, span := s.tracer.Start(ctx, "automation."+string(job))
	defer span.End()

	start := time.Now()
	summary := models.NewSummary(job, requestcontext.Now(ctx))
	if err := run(ctx, summary); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "automation job failed")
		s.metrics.ObserveRun(string(job), "error", start)
		return nil, err
	}
	summary.FinishedAt = requestcontext.Now(ctx)
	span.SetAttributes(
		attribute.Int("processed", summary.Processed),
		attribute.Int("changed", summary.Changed()),
		attribute.Int("failures", len(summary.Failures)),
	)
	s.metrics.ObserveRun(string(job), "ok", start)
	s.metrics.AddChanges(string(job), summary.Changed())
	s.metrics.AddItemFailures(string(job), len(summary.Failures))

	s.logAudit(ctx, string(audit.EventAutomationRun),
		"job", string(job),
		"processed", summary.Processed,
		"changed", summary.Changed(),
		"failures", len(summary.Failures),
	)
	return summary, nil
}

func (s *Service) jobFunc(job models.Job) (func(context.Context, *models.Summary) error, error) {
	switch job {
	case models.JobRecalculateScores:
		return s.recalculateScores, nil
	case models.JobDowngradeInactive:
		return s.downgradeInactive, nil
	case models.JobFlagSuspicious:
		return s.flagSuspicious, nil
	case models.JobRecalculateCompletion:
		return s.recalculateCompletion, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown automation job %q", job)
	}
}

// RecalculateAllScores recomputes every profile's trust score and persists
// the ones that changed.
func (s *Service) RecalculateAllScores(ctx context.Context) (*models.Summary, error) {
	return s.Run(ctx, models.JobRecalculateScores)
}

// DowngradeInactive decays the score of profiles without collaboration
// request activity inside the inactivity window.
func (s *Service) DowngradeInactive(ctx context.Context) (*models.Summary, error) {
	return s.Run(ctx, models.JobDowngradeInactive)
}

// FlagSuspicious reports profiles that are still REJECTED after a rejected
// verification request.
func (s *Service) FlagSuspicious(ctx context.Context) (*models.Summary, error) {
	return s.Run(ctx, models.JobFlagSuspicious)
}

// RecalculateCompletion recomputes every profile's completion and persists
// the ones that changed.
func (s *Service) RecalculateCompletion(ctx context.Context) (*models.Summary, error) {
	return s.Run(ctx, models.JobRecalculateCompletion)
}

func (s *Service) recalculateScores(ctx context.Context, summary *models.Summary) error {
	return s.eachProfile(ctx, summary, func(txCtx context.Context, p *profilemodels.Profile) (*models.Delta, error) {
		accepted, err := s.activity.CountAccepted(txCtx, p.ID)
		if err != nil {
			return nil, err
		}
		score, err := trust.Score(p, accepted)
		if err != nil {
			return nil, err
		}
		if score == p.TrustScore {
			return nil, nil
		}
		delta := &models.Delta{ProfileID: p.ID, Field: models.FieldTrustScore, Before: p.TrustScore, After: score}
		p.TrustScore = score
		return delta, nil
	})
}

func (s *Service) recalculateCompletion(ctx context.Context, summary *models.Summary) error {
	return s.eachProfile(ctx, summary, func(_ context.Context, p *profilemodels.Profile) (*models.Delta, error) {
		completion := trust.Completion(p)
		if completion == p.ProfileCompletion {
			return nil, nil
		}
		delta := &models.Delta{
			ProfileID: p.ID,
			Field:     models.FieldProfileCompletion,
			Before:    float64(p.ProfileCompletion),
			After:     float64(completion),
		}
		p.ProfileCompletion = completion
		return delta, nil
	})
}

// downgradeInactive treats a profile as inactive when none of its requests
// was updated inside the window, including when it has no requests at all.
// A profile already downgraded inside the window is left alone, so re-runs
// decay a still-inactive profile once per window.
func (s *Service) downgradeInactive(ctx context.Context, summary *models.Summary) error {
	summary.ThresholdDays = s.inactivityDays
	return s.eachProfile(ctx, summary, func(txCtx context.Context, p *profilemodels.Profile) (*models.Delta, error) {
		if p.TrustScore <= 0 {
			return nil, nil
		}
		now := requestcontext.Now(txCtx)
		cutoff := now.AddDate(0, 0, -s.inactivityDays)
		last, ok, err := s.activity.LastRequestActivity(txCtx, p.ID)
		if err != nil {
			return nil, err
		}
		if ok && last.After(cutoff) {
			return nil, nil
		}
		if p.DowngradedAt != nil && p.DowngradedAt.After(cutoff) {
			return nil, nil
		}
		score := trust.Decay(p.TrustScore, s.decayPercent)
		delta := &models.Delta{
			ProfileID: p.ID,
			Field:     models.FieldTrustScore,
			Before:    p.TrustScore,
			After:     score,
			Reason:    "Inactivity",
		}
		p.TrustScore = score
		p.DowngradedAt = &now
		return delta, nil
	})
}

func (s *Service) flagSuspicious(ctx context.Context, summary *models.Summary) error {
	rejected, err := s.verifications.ListByStatus(ctx, verificationmodels.StatusRejected, 0)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rejected verification requests")
	}
	seen := make(map[id.ProfileID]struct{}, len(rejected))
	for _, req := range rejected {
		if _, dup := seen[req.ProfileID]; dup {
			continue
		}
		seen[req.ProfileID] = struct{}{}
		summary.Processed++

		p, err := s.profiles.FindByID(ctx, req.ProfileID)
		if err != nil {
			summary.AddFailure(req.ProfileID, err)
			continue
		}
		if p.VerificationStatus != profilemodels.StatusRejected {
			continue
		}
		report, created, err := s.reporter.FlagOnce(ctx, p.ID,
			reportmodels.RejectedVerificationReason, reportmodels.RejectedVerificationCategory)
		if err != nil {
			summary.AddFailure(p.ID, err)
			continue
		}
		if created {
			summary.AddDelta(models.Delta{
				ProfileID: p.ID,
				Field:     models.FieldReport,
				Reason:    reportmodels.RejectedVerificationCategory,
				ReportID:  report.ID.String(),
			})
		}
	}
	return nil
}

// eachProfile runs apply on every profile, one transaction per profile. apply
// mutates p and returns a delta when p must be persisted.
func (s *Service) eachProfile(ctx context.Context, summary *models.Summary,
	apply func(txCtx context.Context, p *profilemodels.Profile) (*models.Delta, error)) error {
	profileIDs, err := s.profiles.ListIDs(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	for _, profileID := range profileIDs {
		summary.Processed++
		var delta *models.Delta
		err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			p, err := s.profiles.FindByIDForUpdate(txCtx, profileID)
			if err != nil {
				return err
			}
			delta, err = apply(txCtx, p)
			if err != nil || delta == nil {
				return err
			}
			p.UpdatedAt = requestcontext.Now(txCtx)
			return s.profiles.Update(txCtx, p)
		})
		if err != nil {
			s.logger.WarnContext(ctx, "automation item failed",
				"job", summary.Job,
				"profile_id", profileID,
				"error", err,
			)
			summary.AddFailure(profileID, err)
			continue
		}
		if delta != nil {
			summary.AddDelta(*delta)
		}
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
	if s.auditPublisher == nil {
		return
	}
	actorID := ""
	if actor := requestcontext.Actor(ctx); !actor.IsZero() {
		actorID = actor.UserID.String()
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		ActorID:     actorID,
		SubjectType: "automation",
		Subject:     attrs.ExtractString(attributes, "job"),
		Action:      event,
	})
}
