package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	notificationmodels "trustlane/internal/notification/models"
	profilemodels "trustlane/internal/profile/models"
	profileservice "trustlane/internal/profile/service"
	profilestore "trustlane/internal/profile/store"
	"trustlane/internal/verification/models"
	"trustlane/internal/verification/store"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/audit/publisher"
	auditmemory "trustlane/pkg/platform/audit/store/memory"
	"trustlane/pkg/platform/tx"
	"trustlane/pkg/requestcontext"
)

type noAccepted struct{}

func (noAccepted) CountAccepted(context.Context, id.ProfileID) (int, error) { return 0, nil }

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

func (n *recordingNotifier) types() []notificationmodels.Type {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notificationmodels.Type, 0, len(n.sent))
	for _, sent := range n.sent {
		out = append(out, sent.Type)
	}
	return out
}

type recordingQueue struct {
	mu       sync.Mutex
	enqueued []id.VerificationRequestID
	full     bool
}

func (q *recordingQueue) Enqueue(requestID id.VerificationRequestID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.enqueued = append(q.enqueued, requestID)
	return true
}

type VerificationServiceSuite struct {
	suite.Suite
	ctx      context.Context
	profiles *profilestore.InMemory
	requests *store.InMemory
	notifier *recordingNotifier
	queue    *recordingQueue
	audit    *auditmemory.InMemoryStore
	service  *Service
	creator  id.Actor
	admin    id.Actor
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.profiles = profilestore.NewInMemory()
	s.requests = store.NewInMemory()
	s.notifier = &recordingNotifier{}
	s.queue = &recordingQueue{}
	s.audit = auditmemory.NewInMemoryStore()

	runner := tx.NewInMemory()
	scorer, err := profileservice.New(s.profiles, noAccepted{}, runner)
	s.Require().NoError(err)
	svc, err := New(s.requests, s.profiles, scorer, runner,
		WithNotifier(s.notifier),
		WithQueue(s.queue),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
	)
	s.Require().NoError(err)
	s.service = svc
	s.creator = id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
	s.admin = id.Actor{UserID: id.NewUserID(), Role: id.RoleAdmin}
}

func (s *VerificationServiceSuite) newProfile(owner id.Actor) *profilemodels.Profile {
	p, err := profilemodels.NewProfile(id.NewProfileID(), owner.UserID,
		profilemodels.Details{DisplayName: "Ana", Bio: "travel and food", Category: "lifestyle"},
		requestcontext.Now(s.ctx))
	s.Require().NoError(err)
	s.Require().NoError(s.profiles.Create(s.ctx, p))
	return p
}

func (s *VerificationServiceSuite) reload(profileID id.ProfileID) *profilemodels.Profile {
	p, err := s.profiles.FindByID(s.ctx, profileID)
	s.Require().NoError(err)
	return p
}

func (s *VerificationServiceSuite) TestSubmit() {
	s.Run("creates a pending request and marks the profile pending", func() {
		p := s.newProfile(s.creator)

		req, err := s.service.Submit(s.ctx, s.creator, p.ID, models.MetricsSnapshot{"followers": 10.0})
		s.Require().NoError(err)
		s.Equal(models.StatusPending, req.Status)
		s.Nil(req.ReviewedAt)
		s.Equal(profilemodels.StatusPending, s.reload(p.ID).VerificationStatus)
		s.Contains(s.queue.enqueued, req.ID)
	})

	s.Run("second submit while pending conflicts", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		_, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.Require().NoError(err)

		_, err = s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		pending, err := s.requests.ListByProfile(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Len(pending, 1)
	})

	s.Run("only the owner may submit", func() {
		p := s.newProfile(id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator})
		_, err := s.service.Submit(s.ctx, s.creator, p.ID, models.MetricsSnapshot{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("sponsors cannot submit", func() {
		p := s.newProfile(s.creator)
		sponsor := id.Actor{UserID: s.creator.UserID, Role: id.RoleSponsor}
		_, err := s.service.Submit(s.ctx, sponsor, p.ID, models.MetricsSnapshot{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown profile is not found", func() {
		_, err := s.service.Submit(s.ctx, s.creator, id.NewProfileID(), models.MetricsSnapshot{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("full queue still succeeds", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		s.queue.full = true
		defer func() { s.queue.full = false }()

		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.Require().NoError(err)
		s.NotContains(s.queue.enqueued, req.ID)
	})
}

func (s *VerificationServiceSuite) TestAutoEvaluate() {
	s.Run("strong metrics verify the request and add twenty points", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{"followers": 1500.0, "engagement_rate": 3.0})
		s.Require().NoError(err)
		before := s.reload(p.ID).TrustScore

		outcome, err := s.service.AutoEvaluate(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.OutcomeApproved, outcome)

		stored, err := s.requests.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, stored.Status)
		s.NotNil(stored.ReviewedAt)

		after := s.reload(p.ID)
		s.Equal(profilemodels.StatusVerified, after.VerificationStatus)
		s.Equal(before+20, after.TrustScore)
		s.Contains(s.notifier.types(), notificationmodels.TypeVerificationApproved)
	})

	s.Run("weak metrics leave the request pending", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{"followers": 500.0, "engagement_rate": 1.0})
		s.Require().NoError(err)

		outcome, err := s.service.AutoEvaluate(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.OutcomeStillPending, outcome)

		stored, err := s.requests.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, stored.Status)
		s.Equal(profilemodels.StatusPending, s.reload(p.ID).VerificationStatus)
	})

	s.Run("decided request is a no-op", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{"followers": 5000.0, "engagement_rate": 9.0})
		s.Require().NoError(err)
		_, err = s.service.Decide(s.ctx, s.admin, req.ID, models.DecisionRejected, "fake followers")
		s.Require().NoError(err)
		rejected := s.reload(p.ID)

		outcome, err := s.service.AutoEvaluate(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.OutcomeAlreadyDecided, outcome)

		after := s.reload(p.ID)
		s.Equal(profilemodels.StatusRejected, after.VerificationStatus)
		s.Equal(rejected.TrustScore, after.TrustScore)
	})

	s.Run("boost is capped at one hundred", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{"followers": 2000.0, "engagement_rate": 4.0})
		s.Require().NoError(err)
		stored := s.reload(p.ID)
		stored.TrustScore = 95
		s.Require().NoError(s.profiles.Update(s.ctx, stored))

		_, err = s.service.AutoEvaluate(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(100.0, s.reload(p.ID).TrustScore)
	})

	s.Run("unknown request is not found", func() {
		_, err := s.service.AutoEvaluate(s.ctx, id.NewVerificationRequestID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *VerificationServiceSuite) TestDecide() {
	s.Run("approval fully recomputes completion and score", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.Require().NoError(err)

		result, err := s.service.Decide(s.ctx, s.admin, req.ID, models.DecisionVerified, "documents checked")
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, result.Request.Status)
		s.Equal("documents checked", result.Request.AdminReason)
		s.Equal(profilemodels.StatusVerified, result.Profile.VerificationStatus)
		s.Equal("documents checked", result.Profile.AdminNote)
		s.Equal(100, result.Profile.ProfileCompletion)
		s.Equal(80.0, result.Profile.TrustScore)
		s.Equal(result.Profile.TrustScore, s.reload(p.ID).TrustScore)
	})

	s.Run("rejection notifies the creator with the reason", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.Require().NoError(err)

		result, err := s.service.Decide(s.ctx, s.admin, req.ID, models.DecisionRejected, "blurry ID")
		s.Require().NoError(err)
		s.Equal(profilemodels.StatusRejected, result.Profile.VerificationStatus)
		s.Equal(30.0, result.Profile.TrustScore)

		last := s.notifier.sent[len(s.notifier.sent)-1]
		s.Equal(notificationmodels.TypeVerificationRejected, last.Type)
		s.Equal(owner.UserID, last.UserID)
		s.Contains(last.Message, "blurry ID")
	})

	s.Run("approval without a reason clears an earlier rejection note", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		first, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.Require().NoError(err)
		_, err = s.service.Decide(s.ctx, s.admin, first.ID, models.DecisionRejected, "blurry ID")
		s.Require().NoError(err)

		second, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.Require().NoError(err)
		s.Equal("blurry ID", s.reload(p.ID).AdminNote)

		result, err := s.service.Decide(s.ctx, s.admin, second.ID, models.DecisionVerified, "")
		s.Require().NoError(err)
		s.Equal(profilemodels.StatusVerified, result.Profile.VerificationStatus)
		s.Empty(result.Profile.AdminNote)
		s.Empty(s.reload(p.ID).AdminNote)
	})

	s.Run("second decision is an invalid transition", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.Require().NoError(err)
		_, err = s.service.Decide(s.ctx, s.admin, req.ID, models.DecisionVerified, "")
		s.Require().NoError(err)

		_, err = s.service.Decide(s.ctx, s.admin, req.ID, models.DecisionRejected, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		s.Contains(dErrors.MessageOf(err), "already decided")
	})

	s.Run("missing profile leaves the request pending", func() {
		req := models.NewRequest(id.NewVerificationRequestID(), id.NewProfileID(), models.MetricsSnapshot{}, requestcontext.Now(s.ctx))
		s.Require().NoError(s.requests.Create(s.ctx, req))

		_, err := s.service.Decide(s.ctx, s.admin, req.ID, models.DecisionVerified, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		stored, err := s.requests.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, stored.Status)
		s.Empty(stored.AdminReason)
	})

	s.Run("unknown request is not found", func() {
		_, err := s.service.Decide(s.ctx, s.admin, id.NewVerificationRequestID(), models.DecisionVerified, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-admins cannot decide", func() {
		_, err := s.service.Decide(s.ctx, s.creator, id.NewVerificationRequestID(), models.DecisionVerified, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("audit records the decision", func() {
		owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
		p := s.newProfile(owner)
		req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
		s.Require().NoError(err)
		_, err = s.service.Decide(s.ctx, s.admin, req.ID, models.DecisionVerified, "ok")
		s.Require().NoError(err)

		events, err := s.audit.ListBySubject(s.ctx, req.ID.String())
		s.Require().NoError(err)
		var decided bool
		for _, e := range events {
			if e.Action == "verification_decided" {
				decided = true
				s.Equal("VERIFIED", e.Decision)
				s.Equal(s.admin.UserID.String(), e.ActorID)
			}
		}
		s.True(decided)
	})
}

// The automatic path adds a flat boost to whatever score the profile holds,
// while the manual path recomputes from scratch. For the same profile and the
// same verified outcome the two paths land on different scores.
func (s *VerificationServiceSuite) TestAutoAndManualApprovalScoreDifferently() {
	autoOwner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
	autoProfile := s.newProfile(autoOwner)
	autoReq, err := s.service.Submit(s.ctx, autoOwner, autoProfile.ID, models.MetricsSnapshot{"followers": 1500.0, "engagement_rate": 3.0})
	s.Require().NoError(err)
	_, err = s.service.AutoEvaluate(s.ctx, autoReq.ID)
	s.Require().NoError(err)

	manualOwner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
	manualProfile := s.newProfile(manualOwner)
	manualReq, err := s.service.Submit(s.ctx, manualOwner, manualProfile.ID, models.MetricsSnapshot{"followers": 1500.0, "engagement_rate": 3.0})
	s.Require().NoError(err)
	_, err = s.service.Decide(s.ctx, s.admin, manualReq.ID, models.DecisionVerified, "")
	s.Require().NoError(err)

	auto := s.reload(autoProfile.ID)
	manual := s.reload(manualProfile.ID)
	s.Equal(profilemodels.StatusVerified, auto.VerificationStatus)
	s.Equal(profilemodels.StatusVerified, manual.VerificationStatus)
	s.Equal(20.0, auto.TrustScore)
	s.Equal(0, auto.ProfileCompletion)
	s.Equal(80.0, manual.TrustScore)
	s.Equal(100, manual.ProfileCompletion)
}

func (s *VerificationServiceSuite) TestNotifierFailureDoesNotFailDecision() {
	owner := id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}
	p := s.newProfile(owner)
	req, err := s.service.Submit(s.ctx, owner, p.ID, models.MetricsSnapshot{})
	s.Require().NoError(err)

	s.notifier.err = errors.New("queue full")
	_, err = s.service.Decide(s.ctx, s.admin, req.ID, models.DecisionVerified, "")
	s.NoError(err)
}

func (s *VerificationServiceSuite) TestListForProfile() {
	p := s.newProfile(s.creator)
	_, err := s.service.Submit(s.ctx, s.creator, p.ID, models.MetricsSnapshot{})
	s.Require().NoError(err)

	s.Run("owner sees own requests", func() {
		out, err := s.service.ListForProfile(s.ctx, s.creator, p.ID)
		s.Require().NoError(err)
		s.Len(out, 1)
	})

	s.Run("admin sees any profile", func() {
		out, err := s.service.ListForProfile(s.ctx, s.admin, p.ID)
		s.Require().NoError(err)
		s.Len(out, 1)
	})

	s.Run("other creators are forbidden", func() {
		_, err := s.service.ListForProfile(s.ctx, id.Actor{UserID: id.NewUserID(), Role: id.RoleCreator}, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("pending queue lists it", func() {
		out, err := s.service.ListPending(s.ctx, 10)
		s.Require().NoError(err)
		s.NotEmpty(out)
	})
}
