package service

import (
	"context"
	"errors"
	"log/slog"

	profilemodels "trustlane/internal/profile/models"
	"trustlane/internal/report/models"
	"trustlane/pkg/attrs"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	audit "trustlane/pkg/platform/audit"
	"trustlane/pkg/platform/sentinel"
	"trustlane/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	FindByIDForUpdate(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	Update(ctx context.Context, r *models.Report) error
	List(ctx context.Context, filter models.Filter) ([]*models.Report, error)
	ExistsForProfileReason(ctx context.Context, profileID id.ProfileID, category string) (bool, error)
}

type ProfileReader interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages flagged-profile reports.
type Service struct {
	store          Store
	profiles       ProfileReader
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

func New(store Store, profiles ProfileReader, tx TxRunner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("report store is required")
	}
	if profiles == nil {
		return nil, errors.New("profile reader is required")
	}
	if tx == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{
		store:    store,
		profiles: profiles,
		tx:       tx,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Flag lets an admin or a sponsor report a profile by hand.
func (s *Service) Flag(ctx context.Context, actor id.Actor, profileID id.ProfileID, reason string) (*models.Report, error) {
	if !actor.Is(id.RoleAdmin) && !actor.Is(id.RoleSponsor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN or SPONSOR role")
	}
	if _, err := s.profiles.FindByID(ctx, profileID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	r, err := models.NewReport(id.NewReportID(), profileID, reason, models.SourceManual, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
	}
	s.logAudit(ctx, string(audit.EventReportCreated),
		"report_id", r.ID,
		"profile_id", profileID,
		"user_id", actor.UserID,
		"reason", r.Reason,
	)
	return r, nil
}

// FlagOnce creates an automation report unless one whose reason contains
// category already exists for the profile. created is false when deduplicated.
func (s *Service) FlagOnce(ctx context.Context, profileID id.ProfileID, reason, category string) (r *models.Report, created bool, err error) {
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.store.ExistsForProfileReason(txCtx, profileID, category)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing reports")
		}
		if exists {
			return nil
		}
		r, err = models.NewReport(id.NewReportID(), profileID, reason, models.SourceAutomation, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.store.Create(txCtx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logAudit(ctx, string(audit.EventReportCreated),
			"report_id", r.ID,
			"profile_id", profileID,
			"reason", r.Reason,
		)
	}
	return r, created, nil
}

func (s *Service) Get(ctx context.Context, actor id.Actor, reportID id.ReportID) (*models.Report, error) {
	if !actor.Is(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role")
	}
	r, err := s.store.FindByID(ctx, reportID)
	if err != nil {
		return nil, wrapReportErr(err)
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, actor id.Actor, filter models.Filter) ([]*models.Report, error) {
	if !actor.Is(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role")
	}
	out, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	return out, nil
}

// Review moves a report forward and records the admin's notes.
func (s *Service) Review(ctx context.Context, actor id.Actor, reportID id.ReportID, status models.Status, notes string) (*models.Report, error) {
	if !actor.Is(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role")
	}
	notes, err := models.NormalizeNotes(notes)
	if err != nil {
		return nil, err
	}

	var reviewed *models.Report
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.FindByIDForUpdate(txCtx, reportID)
		if err != nil {
			return wrapReportErr(err)
		}
		if err := r.CanReview(status); err != nil {
			return err
		}
		r.ApplyReview(status, notes, requestcontext.Now(txCtx))
		if err := s.store.Update(txCtx, r); err != nil {
			return wrapReportErr(err)
		}
		reviewed = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, string(audit.EventReportReviewed),
		"report_id", reportID,
		"profile_id", reviewed.ProfileID,
		"user_id", actor.UserID,
		"decision", string(status),
	)
	return reviewed, nil
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
		SubjectType: "report",
		Subject:     attrs.ExtractString(attributes, "report_id"),
		Action:      event,
		Decision:    attrs.ExtractString(attributes, "decision"),
		Reason:      attrs.ExtractString(attributes, "reason"),
	})
}

func wrapReportErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "report store failure")
}
