package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustlane/internal/collaboration/models"
	"trustlane/internal/collaboration/store"
	notificationmodels "trustlane/internal/notification/models"
	profilemodels "trustlane/internal/profile/models"
	profileservice "trustlane/internal/profile/service"
	profilestore "trustlane/internal/profile/store"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	audit "trustlane/pkg/platform/audit"
	"trustlane/pkg/platform/audit/publisher"
	auditmemory "trustlane/pkg/platform/audit/store/memory"
	"trustlane/pkg/platform/tx"
	"trustlane/pkg/requestcontext"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notificationmodels.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, notification *notificationmodels.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

func (n *recordingNotifier) last() *notificationmodels.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return nil
	}
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type CollaborationServiceSuite struct {
	suite.Suite
	ctx      context.Context
	profiles *profilestore.InMemory
	store    *store.InMemory
	notifier *recordingNotifier
	audit    *auditmemory.InMemoryStore
	service  *Service
	sponsor  id.Actor
	creator  id.Actor
	profile  *profilemodels.Profile
}

func TestCollaborationServiceSuite(t *testing.T) {
	suite.Run(t, new(CollaborationServiceSuite))
}

func (s *CollaborationServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.profiles = profilestore.NewInMemory()
	s.store = store.NewInMemory()
	s.notifier = &recordingNotifier{}
	s.audit = auditmemory.NewInMemoryStore()

	runner := tx.NewInMemory()
	scorer, err := profileservice.New(s.profiles, s.store, runner)
	s.Require().NoError(err)
	svc, err := New(s.store, s.profiles, scorer, runner,
		WithNotifier(s.notifier),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
	)
	s.Require().NoError(err)
	s.service = svc
	s.sponsor = id.Actor{UserID: id.NewUserID(), Role: id.RoleSponsor}
	s.creator = id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
	s.profile = s.newProfile(s.creator, profilemodels.StatusVerified)
}

func (s *CollaborationServiceSuite) newProfile(owner id.Actor, status profilemodels.VerificationStatus) *profilemodels.Profile {
	now := requestcontext.Now(s.ctx)
	p, err := profilemodels.NewProfile(id.NewProfileID(), owner.UserID,
		profilemodels.Details{DisplayName: "Ana", Bio: "travel and food", Category: "lifestyle"}, now)
	s.Require().NoError(err)
	p.ApplyVerificationStatus(status, now)
	s.Require().NoError(s.profiles.Create(s.ctx, p))
	return p
}

func (s *CollaborationServiceSuite) invitation() models.Invitation {
	return models.Invitation{
		CampaignID:       id.NewCampaignID(),
		CampaignName:     "Spring Launch",
		CreatorProfileID: s.profile.ID,
		Message:          "Would love to work with you",
	}
}

func (s *CollaborationServiceSuite) deliverables() models.DeliverablesInput {
	return models.DeliverablesInput{
		Description:  "Two short videos",
		Requirements: []string{"tag the brand"},
		Deadline:     requestcontext.Now(s.ctx).Add(14 * 24 * time.Hour),
	}
}

// startCollaboration sends and accepts a request and returns the ACTIVE collaboration.
func (s *CollaborationServiceSuite) startCollaboration() *models.Collaboration {
	req, err := s.service.SendRequest(s.ctx, s.sponsor, s.invitation())
	s.Require().NoError(err)
	res, err := s.service.Accept(s.ctx, s.creator, req.ID)
	s.Require().NoError(err)
	s.Require().NotNil(res.Collaboration)
	s.notifier.reset()
	return res.Collaboration.Collaboration
}

func (s *CollaborationServiceSuite) advanceTo(status models.Status) *models.Collaboration {
	c := s.startCollaboration()
	steps := []struct {
		reach models.Status
		run   func() error
	}{
		{models.StatusDeliverablesSet, func() error {
			_, err := s.service.SetDeliverables(s.ctx, s.sponsor, c.ID, s.deliverables())
			return err
		}},
		{models.StatusContentSubmitted, func() error {
			_, err := s.service.SubmitContent(s.ctx, s.creator, c.ID, []models.ContentInput{{URL: "https://video.example/1"}})
			return err
		}},
		{models.StatusContentApproved, func() error {
			_, err := s.service.Approve(s.ctx, s.sponsor, c.ID, "")
			return err
		}},
	}
	for _, step := range steps {
		if c.Status == status {
			break
		}
		s.Require().NoError(step.run())
		c.Status = step.reach
	}
	s.notifier.reset()
	return c
}

func (s *CollaborationServiceSuite) TestSendRequest() {
	s.Run("creates a pending request and notifies the creator", func() {
		req, err := s.service.SendRequest(s.ctx, s.sponsor, s.invitation())
		s.Require().NoError(err)
		s.Equal(models.RequestPending, req.Status)
		s.Equal(s.creator.UserID, req.CreatorUserID)
		s.Equal(s.sponsor.UserID, req.SponsorID)

		n := s.notifier.last()
		s.Require().NotNil(n)
		s.Equal(notificationmodels.TypeRequestSent, n.Type)
		s.Equal(s.creator.UserID, n.UserID)
	})

	s.Run("duplicate campaign and creator conflicts", func() {
		inv := s.invitation()
		_, err := s.service.SendRequest(s.ctx, s.sponsor, inv)
		s.Require().NoError(err)
		_, err = s.service.SendRequest(s.ctx, s.sponsor, inv)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unverified creator cannot receive requests", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner, profilemodels.StatusUnverified)
		inv := s.invitation()
		inv.CreatorProfileID = p.ID
		_, err := s.service.SendRequest(s.ctx, s.sponsor, inv)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Contains(err.Error(), "VERIFIED")
	})

	s.Run("only sponsors send requests", func() {
		_, err := s.service.SendRequest(s.ctx, s.creator, s.invitation())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown creator profile", func() {
		inv := s.invitation()
		inv.CreatorProfileID = id.NewProfileID()
		_, err := s.service.SendRequest(s.ctx, s.sponsor, inv)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing campaign name is a validation error", func() {
		inv := s.invitation()
		inv.CampaignName = " "
		_, err := s.service.SendRequest(s.ctx, s.sponsor, inv)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *CollaborationServiceSuite) TestAccept() {
	s.Run("starts an ACTIVE collaboration and refreshes the score", func() {
		req, err := s.service.SendRequest(s.ctx, s.sponsor, s.invitation())
		s.Require().NoError(err)

		res, err := s.service.Accept(s.ctx, s.creator, req.ID)
		s.Require().NoError(err)
		s.Equal(models.RequestAccepted, res.Request.Status)
		s.Require().NotNil(res.Collaboration)
		s.Equal(models.StatusActive, res.Collaboration.Collaboration.Status)
		s.Equal(models.PaymentPending, res.Collaboration.Collaboration.PaymentStatus)
		s.Equal(20, res.Collaboration.Progress)

		stored, err := s.store.FindCollaborationByRequest(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(res.Collaboration.Collaboration.ID, stored.ID)

		p, err := s.profiles.FindByID(s.ctx, s.profile.ID)
		s.Require().NoError(err)
		s.Equal(100, p.ProfileCompletion)
		s.InDelta(82.0, p.TrustScore, 0.001)

		n := s.notifier.last()
		s.Require().NotNil(n)
		s.Equal(notificationmodels.TypeRequestAccepted, n.Type)
		s.Equal(s.sponsor.UserID, n.UserID)
	})

	s.Run("answering twice is an invalid transition", func() {
		req, err := s.service.SendRequest(s.ctx, s.sponsor, s.invitation())
		s.Require().NoError(err)
		_, err = s.service.Reject(s.ctx, s.creator, req.ID)
		s.Require().NoError(err)
		_, err = s.service.Accept(s.ctx, s.creator, req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("another creator cannot answer", func() {
		req, err := s.service.SendRequest(s.ctx, s.sponsor, s.invitation())
		s.Require().NoError(err)
		other := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		_, err = s.service.Accept(s.ctx, other, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown request", func() {
		_, err := s.service.Accept(s.ctx, s.creator, id.NewCollaborationRequestID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing creator profile fails before anything is written", func() {
		inv := s.invitation()
		inv.CreatorProfileID = id.NewProfileID()
		req, err := models.NewRequest(id.NewCollaborationRequestID(), s.sponsor.UserID, s.creator.UserID, inv, requestcontext.Now(s.ctx))
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreateRequest(s.ctx, req))

		_, err = s.service.Accept(s.ctx, s.creator, req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		stored, err := s.store.FindRequestByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.RequestPending, stored.Status)
		_, err = s.store.FindCollaborationByRequest(s.ctx, req.ID)
		s.Error(err)
	})
}

func (s *CollaborationServiceSuite) TestReject() {
	req, err := s.service.SendRequest(s.ctx, s.sponsor, s.invitation())
	s.Require().NoError(err)

	res, err := s.service.Reject(s.ctx, s.creator, req.ID)
	s.Require().NoError(err)
	s.Equal(models.RequestRejected, res.Request.Status)
	s.Nil(res.Collaboration)

	_, err = s.store.FindCollaborationByRequest(s.ctx, req.ID)
	s.Error(err)

	n := s.notifier.last()
	s.Require().NotNil(n)
	s.Equal(notificationmodels.TypeRequestRejected, n.Type)
	s.Equal(s.sponsor.UserID, n.UserID)
}

func (s *CollaborationServiceSuite) TestLifecycle() {
	s.Run("set deliverables moves to 40 and notifies the creator", func() {
		c := s.startCollaboration()
		view, err := s.service.SetDeliverables(s.ctx, s.sponsor, c.ID, s.deliverables())
		s.Require().NoError(err)
		s.Equal(models.StatusDeliverablesSet, view.Collaboration.Status)
		s.Equal(40, view.Progress)
		s.Require().NotNil(view.Collaboration.Deliverables.SetAt)

		s.Equal(1, s.notifier.count())
		n := s.notifier.last()
		s.Equal(notificationmodels.TypeDeliverablesSet, n.Type)
		s.Equal(s.creator.UserID, n.UserID)
		s.Equal("Deliverables have been set for 'Spring Launch'", n.Message)
	})

	s.Run("deliverables cannot be set twice", func() {
		c := s.advanceTo(models.StatusDeliverablesSet)
		in := s.deliverables()
		in.Requirements = []string{"Two reels"}
		_, err := s.service.SetDeliverables(s.ctx, s.sponsor, c.ID, in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		s.Contains(err.Error(), "must be ACTIVE, was DELIVERABLES_SET")

		stored, err := s.store.FindCollaborationByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(s.deliverables().Requirements, stored.Deliverables.Requirements)
	})

	s.Run("submit from ACTIVE is an invalid transition", func() {
		c := s.startCollaboration()
		_, err := s.service.SubmitContent(s.ctx, s.creator, c.ID, []models.ContentInput{{URL: "https://video.example/1"}})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		s.Contains(err.Error(), "must be DELIVERABLES_SET, was ACTIVE")
		s.Zero(s.notifier.count())
	})

	s.Run("submit stamps server time and names the creator", func() {
		c := s.advanceTo(models.StatusDeliverablesSet)
		view, err := s.service.SubmitContent(s.ctx, s.creator, c.ID, []models.ContentInput{
			{URL: "https://video.example/1", Platform: "YouTube"},
		})
		s.Require().NoError(err)
		s.Equal(60, view.Progress)
		s.Require().Len(view.Collaboration.ContentLinks, 1)
		s.Equal(requestcontext.Now(s.ctx), view.Collaboration.ContentLinks[0].SubmittedAt)

		n := s.notifier.last()
		s.Equal(notificationmodels.TypeContentSubmitted, n.Type)
		s.Equal(s.sponsor.UserID, n.UserID)
		s.Equal("Content submitted for 'Spring Launch' by Ana", n.Message)
	})

	s.Run("sponsor cannot submit content", func() {
		c := s.advanceTo(models.StatusDeliverablesSet)
		_, err := s.service.SubmitContent(s.ctx, s.sponsor, c.ID, []models.ContentInput{{URL: "https://video.example/1"}})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Contains(err.Error(), "requires CREATOR role")
	})

	s.Run("revision request returns to DELIVERABLES_SET", func() {
		c := s.advanceTo(models.StatusContentSubmitted)
		view, err := s.service.RequestRevision(s.ctx, s.sponsor, c.ID, "add captions")
		s.Require().NoError(err)
		s.Equal(models.StatusDeliverablesSet, view.Collaboration.Status)
		s.Equal("add captions", view.Collaboration.RevisionNote)
		n := s.notifier.last()
		s.Equal(notificationmodels.TypeRevisionRequested, n.Type)
		s.Equal(s.creator.UserID, n.UserID)
	})

	s.Run("approve records feedback", func() {
		c := s.advanceTo(models.StatusContentSubmitted)
		view, err := s.service.Approve(s.ctx, s.sponsor, c.ID, "great work")
		s.Require().NoError(err)
		s.Equal(80, view.Progress)
		s.Equal("great work", view.Collaboration.ApprovalFeedback)
		s.Require().NotNil(view.Collaboration.ApprovedAt)
		n := s.notifier.last()
		s.Equal(notificationmodels.TypeContentApproved, n.Type)
		s.Equal(s.creator.UserID, n.UserID)
	})

	s.Run("complete only from CONTENT_APPROVED", func() {
		c := s.advanceTo(models.StatusContentSubmitted)
		_, err := s.service.Complete(s.ctx, s.sponsor, c.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		_, err = s.service.Approve(s.ctx, s.sponsor, c.ID, "")
		s.Require().NoError(err)
		s.notifier.reset()

		view, err := s.service.Complete(s.ctx, s.sponsor, c.ID, "thanks")
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, view.Collaboration.Status)
		s.Equal(models.PaymentReleased, view.Collaboration.PaymentStatus)
		s.Require().NotNil(view.Collaboration.CompletedAt)
		s.Equal(100, view.Progress)
		s.Equal(2, s.notifier.count(), "completion notifies both parties")

		_, err = s.service.Cancel(s.ctx, s.sponsor, c.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("cancel sets payment cancelled", func() {
		c := s.advanceTo(models.StatusDeliverablesSet)
		view, err := s.service.Cancel(s.ctx, s.sponsor, c.ID, "budget cut")
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, view.Collaboration.Status)
		s.Equal(models.PaymentCancelled, view.Collaboration.PaymentStatus)
		s.Equal(0, view.Progress)
		s.Nil(view.Collaboration.CompletedAt)
		n := s.notifier.last()
		s.Equal(notificationmodels.TypeCollaborationCancelled, n.Type)
		s.Equal(s.creator.UserID, n.UserID)
		s.Equal("Collaboration for 'Spring Launch' was cancelled: budget cut", n.Message)
	})

	s.Run("outsiders are forbidden", func() {
		c := s.startCollaboration()
		outsider := id.Actor{UserID: id.NewUserID(), Role: id.RoleSponsor}
		_, err := s.service.SetDeliverables(s.ctx, outsider, c.ID, s.deliverables())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("deliverables need a requirement", func() {
		c := s.startCollaboration()
		in := s.deliverables()
		in.Requirements = nil
		_, err := s.service.SetDeliverables(s.ctx, s.sponsor, c.ID, in)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown collaboration", func() {
		_, err := s.service.Approve(s.ctx, s.sponsor, id.NewCollaborationID(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CollaborationServiceSuite) TestTransitionsAreAudited() {
	c := s.advanceTo(models.StatusDeliverablesSet)

	events, err := s.audit.ListBySubject(s.ctx, c.ID.String())
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, string(audit.EventCollaborationStarted))
	s.Contains(actions, string(audit.EventCollaborationTransitioned))
}

func (s *CollaborationServiceSuite) TestNotifierFailureDoesNotFailTransition() {
	c := s.startCollaboration()
	s.notifier.err = errors.New("queue full")
	view, err := s.service.SetDeliverables(s.ctx, s.sponsor, c.ID, s.deliverables())
	s.Require().NoError(err)
	s.Equal(models.StatusDeliverablesSet, view.Collaboration.Status)
}

func (s *CollaborationServiceSuite) TestVisibility() {
	c := s.startCollaboration()

	s.Run("parties and admins can read", func() {
		for _, actor := range []id.Actor{s.sponsor, s.creator, {UserID: id.NewUserID(), Role: id.RoleAdmin}} {
			view, err := s.service.Get(s.ctx, actor, c.ID)
			s.Require().NoError(err)
			s.Equal(c.ID, view.Collaboration.ID)
		}
	})

	s.Run("outsiders cannot read", func() {
		_, err := s.service.Get(s.ctx, id.Actor{UserID: id.NewUserID(), Role: id.RoleSponsor}, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("lists are scoped to the actor", func() {
		mine, err := s.service.List(s.ctx, s.creator, "")
		s.Require().NoError(err)
		s.Len(mine, 1)

		theirs, err := s.service.List(s.ctx, id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}, "")
		s.Require().NoError(err)
		s.Empty(theirs)

		requests, err := s.service.ListRequests(s.ctx, s.sponsor, models.RequestAccepted)
		s.Require().NoError(err)
		s.Len(requests, 1)
	})
}
