package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	notificationmodels "trustlane/internal/notification/models"
	profilemodels "trustlane/internal/profile/models"
	"trustlane/internal/trust"
	"trustlane/internal/verification/metrics"
	"trustlane/internal/verification/models"
	"trustlane/pkg/attrs"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	audit "trustlane/pkg/platform/audit"
	"trustlane/pkg/platform/sentinel"
	"trustlane/pkg/requestcontext"
)

type RequestStore interface {
	Create(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, requestID id.VerificationRequestID) (*models.Request, error)
	FindByIDForUpdate(ctx context.Context, requestID id.VerificationRequestID) (*models.Request, error)
	FindPendingByProfile(ctx context.Context, profileID id.ProfileID) (*models.Request, error)
	Update(ctx context.Context, r *models.Request) error
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Request, error)
	ListByProfile(ctx context.Context, profileID id.ProfileID) ([]*models.Request, error)
}

type ProfileStore interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
	FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
	Update(ctx context.Context, p *profilemodels.Profile) error
}

// ProfileScorer fully recomputes a profile's completion and score after
// applying mutate. It joins the caller's transaction.
type ProfileScorer interface {
	Recompute(ctx context.Context, profileID id.ProfileID, mutate func(p *profilemodels.Profile)) (*profilemodels.Profile, error)
}

type Notifier interface {
	Notify(ctx context.Context, n *notificationmodels.Notification) error
}

// Queue hands a request to the auto-evaluation worker without blocking.
type Queue interface {
	Enqueue(requestID id.VerificationRequestID) bool
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the verification workflow: submit, auto-evaluate and admin decide.
type Service struct {
	requests       RequestStore
	profiles       ProfileStore
	scorer         ProfileScorer
	tx             TxRunner
	notifier       Notifier
	queue          Queue
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithQueue enables asynchronous auto-evaluation after Submit.
func WithQueue(q Queue) Option {
	return func(s *Service) {
		s.queue = q
	}
}

func New(requests RequestStore, profiles ProfileStore, scorer ProfileScorer, tx TxRunner, opts ...Option) (*Service, error) {
	if requests == nil {
		return nil, errors.New("verification request store is required")
	}
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if scorer == nil {
		return nil, errors.New("profile scorer is required")
	}
	if tx == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{
		requests: requests,
		profiles: profiles,
		scorer:   scorer,
		tx:       tx,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit opens a verification request for the caller's profile and marks the
// profile PENDING. Auto-evaluation is queued after commit.
func (s *Service) Submit(ctx context.Context, actor id.Actor, profileID id.ProfileID, snapshot models.MetricsSnapshot) (*models.Request, error) {
	if !actor.Is(id.RoleCreator) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires CREATOR role")
	}

	var created *models.Request
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.profiles.FindByIDForUpdate(txCtx, profileID)
		if err != nil {
			return wrapProfileErr(err)
		}
		if p.UserID != actor.UserID {
			return dErrors.New(dErrors.CodeForbidden, "only the profile owner can request verification")
		}
		if _, err := s.requests.FindPendingByProfile(txCtx, profileID); err == nil {
			return dErrors.New(dErrors.CodeConflict, "a verification request is already pending for this profile")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check pending verification")
		}

		now := requestcontext.Now(txCtx)
		req := models.NewRequest(id.NewVerificationRequestID(), profileID, snapshot, now)
		if err := s.requests.Create(txCtx, req); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a verification request is already pending for this profile")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification request")
		}
		p.ApplyVerificationStatus(profilemodels.StatusPending, now)
		if err := s.profiles.Update(txCtx, p); err != nil {
			return wrapProfileErr(err)
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementSubmitted()
	s.logAudit(ctx, string(audit.EventVerificationSubmitted),
		"verification_request_id", created.ID,
		"profile_id", profileID,
		"user_id", actor.UserID,
	)
	if s.queue != nil && !s.queue.Enqueue(created.ID) {
		s.metrics.IncrementQueueDropped()
		s.logger.WarnContext(ctx, "auto-evaluation queue full, request left for admin review",
			"verification_request_id", created.ID)
	}
	return created, nil
}

// AutoEvaluate applies the auto-approval rule to a pending request. A match
// verifies the request and profile and adds a flat boost to the current score
// without a full recompute. Terminal requests are left untouched.
func (s *Service) AutoEvaluate(ctx context.Context, requestID id.VerificationRequestID) (models.Outcome, error) {
	start := time.Now()
	var (
		outcome models.Outcome
		profile *profilemodels.Profile
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			return wrapRequestErr(err)
		}
		if req.CanDecide() != nil {
			outcome = models.OutcomeAlreadyDecided
			return nil
		}
		if !req.Snapshot.QualifiesForAutoApproval() {
			outcome = models.OutcomeStillPending
			return nil
		}

		p, err := s.profiles.FindByIDForUpdate(txCtx, req.ProfileID)
		if err != nil {
			return wrapProfileErr(err)
		}
		now := requestcontext.Now(txCtx)
		req.ApplyDecision(models.StatusVerified, "", now)
		if err := s.requests.Update(txCtx, req); err != nil {
			return wrapRequestErr(err)
		}
		p.ApplyVerificationStatus(profilemodels.StatusVerified, now)
		p.TrustScore = trust.Boost(p.TrustScore, trust.AutoVerifyBoost)
		if err := s.profiles.Update(txCtx, p); err != nil {
			return wrapProfileErr(err)
		}
		outcome = models.OutcomeApproved
		profile = p
		return nil
	})
	if err != nil {
		s.metrics.IncrementAutoEvalFailure()
		return "", err
	}
	s.metrics.ObserveAutoEvaluation(string(outcome), start)

	if outcome == models.OutcomeApproved {
		s.metrics.IncrementDecision(string(models.StatusVerified), "auto")
		s.logAudit(ctx, string(audit.EventVerificationAutoApproved),
			"verification_request_id", requestID,
			"profile_id", profile.ID,
			"trust_score", profile.TrustScore,
			"decision", string(models.StatusVerified),
		)
		s.notify(ctx, notificationmodels.New(profile.UserID, notificationmodels.TypeVerificationApproved,
			"Your profile has been verified automatically.", uuid.UUID(requestID), requestcontext.Now(ctx)))
	}
	return outcome, nil
}

// DecisionResult is the decided request and the refreshed profile.
type DecisionResult struct {
	Request *models.Request
	Profile *profilemodels.Profile
}

// Decide records an admin verdict on a pending request. The profile takes the
// decided status, the reason becomes its admin note, and its completion and
// score are fully recomputed.
func (s *Service) Decide(ctx context.Context, actor id.Actor, requestID id.VerificationRequestID, decision models.Decision, reason string) (*DecisionResult, error) {
	if !actor.Is(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role")
	}
	status := decision.Status()
	profileStatus := profilemodels.VerificationStatus(status)

	var result DecisionResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			return wrapRequestErr(err)
		}
		if err := req.CanDecide(); err != nil {
			return err
		}
		if _, err := s.profiles.FindByIDForUpdate(txCtx, req.ProfileID); err != nil {
			return wrapProfileErr(err)
		}
		now := requestcontext.Now(txCtx)
		req.ApplyDecision(status, reason, now)
		if err := s.requests.Update(txCtx, req); err != nil {
			return wrapRequestErr(err)
		}
		p, err := s.scorer.Recompute(txCtx, req.ProfileID, func(p *profilemodels.Profile) {
			p.RecordDecision(profileStatus, reason, now)
		})
		if err != nil {
			return err
		}
		result = DecisionResult{Request: req, Profile: p}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementDecision(string(status), "admin")
	s.logAudit(ctx, string(audit.EventVerificationDecided),
		"verification_request_id", requestID,
		"profile_id", result.Profile.ID,
		"user_id", actor.UserID,
		"decision", string(status),
		"reason", reason,
		"trust_score", result.Profile.TrustScore,
	)
	typ := notificationmodels.TypeVerificationApproved
	message := "Your verification request was approved."
	if status == models.StatusRejected {
		typ = notificationmodels.TypeVerificationRejected
		message = "Your verification request was rejected."
		if reason != "" {
			message = fmt.Sprintf("Your verification request was rejected: %s", reason)
		}
	}
	s.notify(ctx, notificationmodels.New(result.Profile.UserID, typ, message, uuid.UUID(requestID), requestcontext.Now(ctx)))
	return &result, nil
}

func (s *Service) Get(ctx context.Context, requestID id.VerificationRequestID) (*models.Request, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return req, nil
}

// ListPending returns pending requests oldest first for the admin queue.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*models.Request, error) {
	out, err := s.requests.ListByStatus(ctx, models.StatusPending, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending verification requests")
	}
	return out, nil
}

// ListForProfile returns a profile's request history. Creators only see their own.
func (s *Service) ListForProfile(ctx context.Context, actor id.Actor, profileID id.ProfileID) ([]*models.Request, error) {
	if !actor.Is(id.RoleAdmin) {
		p, err := s.profiles.FindByID(ctx, profileID)
		if err != nil {
			return nil, wrapProfileErr(err)
		}
		if p.UserID != actor.UserID {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the profile owner or an admin can list verification requests")
		}
	}
	out, err := s.requests.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification requests")
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, n *notificationmodels.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.metrics.IncrementNotifyFailure()
		s.logger.WarnContext(ctx, "failed to queue verification notification",
			"type", n.Type,
			"user_id", n.UserID,
			"error", err,
		)
	}
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
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		ActorID:     attrs.ExtractString(attributes, "user_id"),
		SubjectType: "verification_request",
		Subject:     attrs.ExtractString(attributes, "verification_request_id"),
		Action:      event,
		Decision:    attrs.ExtractString(attributes, "decision"),
		Reason:      attrs.ExtractString(attributes, "reason"),
	})
}

func wrapRequestErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "verification request not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "verification store failure")
}

func wrapProfileErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "profile store failure")
}
