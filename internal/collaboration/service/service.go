package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trustlane/internal/collaboration/metrics"
	"trustlane/internal/collaboration/models"
	notificationmodels "trustlane/internal/notification/models"
	profilemodels "trustlane/internal/profile/models"
	"trustlane/pkg/attrs"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	audit "trustlane/pkg/platform/audit"
	"trustlane/pkg/platform/sentinel"
	"trustlane/pkg/requestcontext"
)

type Store interface {
	CreateRequest(ctx context.Context, r *models.Request) error
	FindRequestByID(ctx context.Context, requestID id.CollaborationRequestID) (*models.Request, error)
	FindRequestByIDForUpdate(ctx context.Context, requestID id.CollaborationRequestID) (*models.Request, error)
	UpdateRequest(ctx context.Context, r *models.Request) error
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error)

	CreateCollaboration(ctx context.Context, c *models.Collaboration) error
	FindCollaborationByID(ctx context.Context, collaborationID id.CollaborationID) (*models.Collaboration, error)
	FindCollaborationByIDForUpdate(ctx context.Context, collaborationID id.CollaborationID) (*models.Collaboration, error)
	UpdateCollaboration(ctx context.Context, c *models.Collaboration) error
	ListCollaborations(ctx context.Context, filter models.Filter) ([]*models.Collaboration, error)
}

type ProfileReader interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
}

// ProfileScorer fully recomputes a profile's completion and score. It joins
// the caller's transaction.
type ProfileScorer interface {
	Recompute(ctx context.Context, profileID id.ProfileID, mutate func(p *profilemodels.Profile)) (*profilemodels.Profile, error)
}

type Notifier interface {
	Notify(ctx context.Context, n *notificationmodels.Notification) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs collaboration requests and the collaboration lifecycle.
type Service struct {
	store          Store
	profiles       ProfileReader
	scorer         ProfileScorer
	tx             TxRunner
	notifier       Notifier
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

func New(store Store, profiles ProfileReader, scorer ProfileScorer, tx TxRunner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("collaboration store is required")
	}
	if profiles == nil {
		return nil, errors.New("profile reader is required")
	}
	if scorer == nil {
		return nil, errors.New("profile scorer is required")
	}
	if tx == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{
		store:    store,
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

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

// SendRequest invites a verified creator to a sponsor's campaign.
func (s *Service) SendRequest(ctx context.Context, actor id.Actor, inv models.Invitation) (*models.Request, error) {
	if !actor.Is(id.RoleSponsor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires SPONSOR role")
	}

	var created *models.Request
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.profiles.FindByID(txCtx, inv.CreatorProfileID)
		if err != nil {
			return wrapProfileErr(err)
		}
		if !p.IsVerified() {
			return dErrors.New(dErrors.CodeForbidden, "creator must be VERIFIED to receive collaboration requests")
		}
		req, err := models.NewRequest(id.NewCollaborationRequestID(), actor.UserID, p.UserID, inv, requestcontext.Now(txCtx))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		if err := s.store.CreateRequest(txCtx, req); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a request already exists for this campaign and creator")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create collaboration request")
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRequestsSent()
	s.logAudit(ctx, string(audit.EventCollaborationRequested), "collaboration_request",
		"collaboration_request_id", created.ID,
		"campaign_id", created.CampaignID,
		"profile_id", created.CreatorProfileID,
		"user_id", actor.UserID,
	)
	s.notify(ctx, created.CreatorUserID, notificationmodels.TypeRequestSent,
		fmt.Sprintf("New collaboration request for '%s'", created.CampaignName), uuid.UUID(created.ID))
	return created, nil
}

// RespondResult is the answered request and, when accepted, the collaboration it started.
type RespondResult struct {
	Request       *models.Request
	Collaboration *models.View
}

func (s *Service) Accept(ctx context.Context, actor id.Actor, requestID id.CollaborationRequestID) (*RespondResult, error) {
	return s.respond(ctx, actor, requestID, true)
}

func (s *Service) Reject(ctx context.Context, actor id.Actor, requestID id.CollaborationRequestID) (*RespondResult, error) {
	return s.respond(ctx, actor, requestID, false)
}

// respond records the creator's answer. Accepting starts the collaboration and
// recomputes the creator's score in the same transaction.
func (s *Service) respond(ctx context.Context, actor id.Actor, requestID id.CollaborationRequestID, accept bool) (*RespondResult, error) {
	if !actor.Is(id.RoleCreator) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires CREATOR role")
	}

	var result RespondResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.store.FindRequestByIDForUpdate(txCtx, requestID)
		if err != nil {
			return wrapStoreErr(err, "collaboration request")
		}
		if req.CreatorUserID != actor.UserID {
			return dErrors.New(dErrors.CodeForbidden, "can only respond to requests sent to you")
		}
		if err := req.CanRespond(); err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		req.ApplyResponse(accept, now)
		if !accept {
			if err := s.store.UpdateRequest(txCtx, req); err != nil {
				return wrapStoreErr(err, "collaboration request")
			}
			result.Request = req
			return nil
		}

		// Everything that can fail is checked before the first write.
		c, err := models.NewFromRequest(id.NewCollaborationID(), req, now)
		if err != nil {
			return err
		}
		view, err := models.NewView(c)
		if err != nil {
			return err
		}
		if _, err := s.profiles.FindByID(txCtx, req.CreatorProfileID); err != nil {
			return wrapProfileErr(err)
		}
		if err := s.store.CreateCollaboration(txCtx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a collaboration already exists for this request")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create collaboration")
		}
		if err := s.store.UpdateRequest(txCtx, req); err != nil {
			return wrapStoreErr(err, "collaboration request")
		}
		if _, err := s.scorer.Recompute(txCtx, req.CreatorProfileID, nil); err != nil {
			return err
		}
		result.Request = req
		result.Collaboration = view
		return nil
	})
	if err != nil {
		return nil, err
	}

	req := result.Request
	s.metrics.IncrementRequestAnswered(string(req.Status))
	s.logAudit(ctx, string(audit.EventCollaborationRequestReply), "collaboration_request",
		"collaboration_request_id", req.ID,
		"user_id", actor.UserID,
		"decision", string(req.Status),
	)
	if accept {
		s.logAudit(ctx, string(audit.EventCollaborationStarted), "collaboration",
			"collaboration_id", result.Collaboration.Collaboration.ID,
			"collaboration_request_id", req.ID,
			"user_id", actor.UserID,
		)
		s.notify(ctx, req.SponsorID, notificationmodels.TypeRequestAccepted,
			fmt.Sprintf("Your collaboration request for '%s' was accepted", req.CampaignName),
			uuid.UUID(result.Collaboration.Collaboration.ID))
	} else {
		s.notify(ctx, req.SponsorID, notificationmodels.TypeRequestRejected,
			fmt.Sprintf("Your collaboration request for '%s' was declined", req.CampaignName), uuid.UUID(req.ID))
	}
	return &result, nil
}

// GetRequest returns a request to its sponsor, its creator or an admin.
func (s *Service) GetRequest(ctx context.Context, actor id.Actor, requestID id.CollaborationRequestID) (*models.Request, error) {
	req, err := s.store.FindRequestByID(ctx, requestID)
	if err != nil {
		return nil, wrapStoreErr(err, "collaboration request")
	}
	if !actor.Is(id.RoleAdmin) && req.SponsorID != actor.UserID && req.CreatorUserID != actor.UserID {
		return nil, dErrors.New(dErrors.CodeForbidden, "access denied")
	}
	return req, nil
}

// ListRequests returns the actor's sent (sponsor) or received (creator)
// requests. Admins see everything.
func (s *Service) ListRequests(ctx context.Context, actor id.Actor, status models.RequestStatus) ([]*models.Request, error) {
	filter := models.RequestFilter{Status: status}
	switch actor.Role {
	case id.RoleSponsor:
		filter.SponsorID = actor.UserID
	case id.RoleCreator:
		filter.CreatorUserID = actor.UserID
	}
	out, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list collaboration requests")
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Collaborations
// -----------------------------------------------------------------------------

func (s *Service) Get(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID) (*models.View, error) {
	c, err := s.store.FindCollaborationByID(ctx, collaborationID)
	if err != nil {
		return nil, wrapStoreErr(err, "collaboration")
	}
	if !actor.Is(id.RoleAdmin) && !c.IsParty(actor.UserID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a party to this collaboration")
	}
	return models.NewView(c)
}

// List returns the actor's collaborations. Admins see everything.
func (s *Service) List(ctx context.Context, actor id.Actor, status models.Status) ([]*models.View, error) {
	filter := models.Filter{Status: status}
	switch actor.Role {
	case id.RoleSponsor:
		filter.SponsorID = actor.UserID
	case id.RoleCreator:
		filter.CreatorUserID = actor.UserID
	}
	cs, err := s.store.ListCollaborations(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list collaborations")
	}
	out := make([]*models.View, 0, len(cs))
	for _, c := range cs {
		v, err := models.NewView(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SetDeliverables records what the sponsor expects. It is allowed once, from
// ACTIVE; a revision request returns to DELIVERABLES_SET with the set intact.
func (s *Service) SetDeliverables(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, in models.DeliverablesInput) (*models.View, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, collaborationID, models.ActionSetDeliverables, func(c *models.Collaboration, now time.Time) {
		c.ApplyDeliverables(in, now)
	})
}

func (s *Service) SubmitContent(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, links []models.ContentInput) (*models.View, error) {
	links, err := models.NormalizeContent(links)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, collaborationID, models.ActionSubmitContent, func(c *models.Collaboration, now time.Time) {
		c.ApplyContent(links, now)
	})
}

func (s *Service) Approve(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, feedback string) (*models.View, error) {
	feedback, err := models.NormalizeNote("feedback", feedback)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, collaborationID, models.ActionApprove, func(c *models.Collaboration, now time.Time) {
		c.ApplyApproval(feedback, now)
	})
}

func (s *Service) RequestRevision(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, note string) (*models.View, error) {
	note, err := models.NormalizeNote("note", note)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, collaborationID, models.ActionRequestRevision, func(c *models.Collaboration, now time.Time) {
		c.ApplyRevisionRequest(note, now)
	})
}

// Complete releases payment. It is only reachable from CONTENT_APPROVED.
func (s *Service) Complete(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, finalNotes string) (*models.View, error) {
	finalNotes, err := models.NormalizeNote("final_notes", finalNotes)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, collaborationID, models.ActionComplete, func(c *models.Collaboration, now time.Time) {
		c.ApplyCompletion(finalNotes, now)
	})
}

func (s *Service) Cancel(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, reason string) (*models.View, error) {
	reason, err := models.NormalizeNote("reason", reason)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, collaborationID, models.ActionCancel, func(c *models.Collaboration, now time.Time) {
		c.ApplyCancellation(reason, now)
	})
}

// transition locks the collaboration, checks party membership and the action
// guard, applies the change and persists it. Notifications go out after commit.
func (s *Service) transition(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, action models.Action, apply func(c *models.Collaboration, now time.Time)) (*models.View, error) {
	var (
		updated     *models.Collaboration
		from        models.Status
		creatorName string
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.store.FindCollaborationByIDForUpdate(txCtx, collaborationID)
		if err != nil {
			return wrapStoreErr(err, "collaboration")
		}
		if !c.IsParty(actor.UserID) {
			return dErrors.New(dErrors.CodeForbidden, "not a party to this collaboration")
		}
		if err := c.Can(action, actor.Role); err != nil {
			return err
		}
		from = c.Status
		apply(c, requestcontext.Now(txCtx))
		if err := s.store.UpdateCollaboration(txCtx, c); err != nil {
			return wrapStoreErr(err, "collaboration")
		}
		if action == models.ActionSubmitContent {
			if p, err := s.profiles.FindByID(txCtx, c.CreatorProfileID); err == nil {
				creatorName = p.DisplayName
			}
		}
		updated = c
		return nil
	})
	if err != nil {
		if code := dErrors.CodeOf(err); code == dErrors.CodeForbidden || code == dErrors.CodeInvalidTransition {
			s.metrics.IncrementRejectedAction(string(action), string(code))
		}
		return nil, err
	}

	s.metrics.IncrementTransition(string(action), string(updated.Status))
	s.logAudit(ctx, string(audit.EventCollaborationTransitioned), "collaboration",
		"collaboration_id", updated.ID,
		"user_id", actor.UserID,
		"action", string(action),
		"from", string(from),
		"decision", string(updated.Status),
	)
	if action == models.ActionComplete {
		s.logAudit(ctx, string(audit.EventPaymentReleased), "collaboration",
			"collaboration_id", updated.ID,
			"user_id", actor.UserID,
			"decision", string(updated.PaymentStatus),
		)
	}
	s.notifyTransition(ctx, updated, actor.UserID, action, creatorName)
	return models.NewView(updated)
}

// notifyTransition tells the counterparty of actorID about the change.
// Completion notifies both sides.
func (s *Service) notifyTransition(ctx context.Context, c *models.Collaboration, actorID id.UserID, action models.Action, creatorName string) {
	related := uuid.UUID(c.ID)
	name := c.CampaignName
	recipient := c.Counterparty(actorID)
	switch action {
	case models.ActionSetDeliverables:
		s.notify(ctx, recipient, notificationmodels.TypeDeliverablesSet,
			fmt.Sprintf("Deliverables have been set for '%s'", name), related)
	case models.ActionSubmitContent:
		if creatorName == "" {
			creatorName = "creator"
		}
		s.notify(ctx, recipient, notificationmodels.TypeContentSubmitted,
			fmt.Sprintf("Content submitted for '%s' by %s", name, creatorName), related)
	case models.ActionApprove:
		s.notify(ctx, recipient, notificationmodels.TypeContentApproved,
			fmt.Sprintf("Your content for '%s' has been approved!", name), related)
	case models.ActionRequestRevision:
		message := fmt.Sprintf("Revision requested for '%s'", name)
		if c.RevisionNote != "" {
			message += ": " + c.RevisionNote
		}
		s.notify(ctx, recipient, notificationmodels.TypeRevisionRequested, message, related)
	case models.ActionComplete:
		s.notify(ctx, c.CreatorUserID, notificationmodels.TypeCollaborationCompleted,
			fmt.Sprintf("Collaboration for '%s' has been completed! Payment released.", name), related)
		s.notify(ctx, c.SponsorID, notificationmodels.TypeCollaborationCompleted,
			fmt.Sprintf("Collaboration for '%s' has been completed successfully!", name), related)
	case models.ActionCancel:
		message := fmt.Sprintf("Collaboration for '%s' was cancelled", name)
		if c.CancelReason != "" {
			message += ": " + c.CancelReason
		}
		s.notify(ctx, recipient, notificationmodels.TypeCollaborationCancelled, message, related)
	}
}

func (s *Service) notify(ctx context.Context, userID id.UserID, typ notificationmodels.Type, message string, relatedID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	n := notificationmodels.New(userID, typ, message, relatedID, requestcontext.Now(ctx))
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.metrics.IncrementNotifyFailure()
		s.logger.WarnContext(ctx, "failed to queue collaboration notification",
			"type", typ,
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event, subjectType string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
	if s.auditPublisher == nil {
		return
	}
	subject := attrs.ExtractString(attributes, "collaboration_id")
	if subjectType == "collaboration_request" {
		subject = attrs.ExtractString(attributes, "collaboration_request_id")
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		ActorID:     attrs.ExtractString(attributes, "user_id"),
		SubjectType: subjectType,
		Subject:     subject,
		Action:      event,
		Decision:    attrs.ExtractString(attributes, "decision"),
	})
}

func wrapStoreErr(err error, entity string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, entity+" store failure")
}

func wrapProfileErr(err error) error {
	return wrapStoreErr(err, "profile")
}
