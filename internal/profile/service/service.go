package service

import (
	"context"
	"errors"
	"log/slog"

	"trustlane/internal/profile/models"
	"trustlane/internal/trust"
	"trustlane/pkg/attrs"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	audit "trustlane/pkg/platform/audit"
	"trustlane/pkg/platform/sentinel"
	"trustlane/pkg/requestcontext"
)

type ProfileStore interface {
	Create(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
	Search(ctx context.Context, filter models.SearchFilter) ([]*models.Profile, error)
}

// AcceptedCounter counts ACCEPTED collaboration requests for a profile.
type AcceptedCounter interface {
	CountAccepted(ctx context.Context, profileID id.ProfileID) (int, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns profile records and is the only writer of their scores.
type Service struct {
	profiles       ProfileStore
	accepted       AcceptedCounter
	tx             TxRunner
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(profiles ProfileStore, accepted AcceptedCounter, tx TxRunner, opts ...Option) (*Service, error) {
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if accepted == nil {
		return nil, errors.New("accepted counter is required")
	}
	if tx == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{
		profiles: profiles,
		accepted: accepted,
		tx:       tx,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create registers the calling creator's profile with scoring fields zeroed.
func (s *Service) Create(ctx context.Context, actor id.Actor, details models.Details) (*models.Profile, error) {
	if !actor.Is(id.RoleCreator) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires CREATOR role")
	}
	p, err := models.NewProfile(id.NewProfileID(), actor.UserID, details, requestcontext.Now(ctx))
	if err != nil {
		return nil, toValidation(err)
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "profile already exists for this user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}
	s.logAudit(ctx, string(audit.EventProfileCreated),
		"profile_id", p.ID,
		"user_id", actor.UserID,
	)
	return p, nil
}

func (s *Service) Get(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return nil, wrapProfileErr(err)
	}
	return p, nil
}

func (s *Service) GetByUser(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	p, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, wrapProfileErr(err)
	}
	return p, nil
}

// UpdateDetails edits the owner's profile and recomputes completion and score.
func (s *Service) UpdateDetails(ctx context.Context, actor id.Actor, profileID id.ProfileID, details models.Details) (*models.Profile, error) {
	var updated *models.Profile
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.profiles.FindByIDForUpdate(txCtx, profileID)
		if err != nil {
			return wrapProfileErr(err)
		}
		if p.UserID != actor.UserID {
			return dErrors.New(dErrors.CodeForbidden, "only the profile owner can edit it")
		}
		if err := p.ApplyDetails(details, requestcontext.Now(txCtx)); err != nil {
			return toValidation(err)
		}
		if err := s.refresh(txCtx, p); err != nil {
			return err
		}
		if err := s.profiles.Update(txCtx, p); err != nil {
			return wrapProfileErr(err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, string(audit.EventProfileUpdated),
		"profile_id", updated.ID,
		"user_id", actor.UserID,
		"trust_score", updated.TrustScore,
	)
	return updated, nil
}

// Recompute locks the profile, applies mutate when non-nil, refreshes
// completion and then score, and persists. Called inside a caller's
// transaction it joins it.
func (s *Service) Recompute(ctx context.Context, profileID id.ProfileID, mutate func(p *models.Profile)) (*models.Profile, error) {
	var updated *models.Profile
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.profiles.FindByIDForUpdate(txCtx, profileID)
		if err != nil {
			return wrapProfileErr(err)
		}
		if mutate != nil {
			mutate(p)
		}
		if err := s.refresh(txCtx, p); err != nil {
			return err
		}
		p.UpdatedAt = requestcontext.Now(txCtx)
		if err := s.profiles.Update(txCtx, p); err != nil {
			return wrapProfileErr(err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Explanation is a profile's current score alongside a fresh derivation of it.
type Explanation struct {
	Profile   *models.Profile
	Breakdown trust.Breakdown
	Level     trust.Level
}

// Explain derives the score from the profile's stored inputs. Breakdown.Score
// can differ from Profile.TrustScore when a flat boost or decay was applied
// since the last full recompute.
func (s *Service) Explain(ctx context.Context, profileID id.ProfileID) (*Explanation, error) {
	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return nil, wrapProfileErr(err)
	}
	count, err := s.accepted.CountAccepted(ctx, profileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count accepted requests")
	}
	b, err := trust.Explain(p, count)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to explain trust score")
	}
	return &Explanation{Profile: p, Breakdown: b, Level: trust.LevelFor(p.TrustScore)}, nil
}

// Search lists creator profiles for sponsors.
func (s *Service) Search(ctx context.Context, filter models.SearchFilter) ([]*models.Profile, error) {
	if filter.MinTrustScore < trust.MinScore || filter.MinTrustScore > trust.MaxScore {
		return nil, dErrors.New(dErrors.CodeValidation, "min_trust_score must be within [0,100]")
	}
	out, err := s.profiles.Search(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search profiles")
	}
	return out, nil
}

func (s *Service) refresh(ctx context.Context, p *models.Profile) error {
	count, err := s.accepted.CountAccepted(ctx, p.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count accepted requests")
	}
	if _, err := trust.Refresh(p, count); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to recompute trust score")
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
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		ActorID:     attrs.ExtractString(attributes, "user_id"),
		SubjectType: "profile",
		Subject:     attrs.ExtractString(attributes, "profile_id"),
		Action:      event,
	})
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

func toValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}
