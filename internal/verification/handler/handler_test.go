package handler

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	profilemodels "trustlane/internal/profile/models"
	"trustlane/internal/verification/handler/mocks"
	"trustlane/internal/verification/models"
	"trustlane/internal/verification/service"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/middleware/actor"
	"trustlane/pkg/testutil"
)

type VerificationHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	creator id.Actor
	admin   id.Actor
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func (s *VerificationHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.DiscardHandler)

	r := chi.NewRouter()
	r.Use(actor.RequireActor(logger))
	New(s.service, logger).Register(r)
	s.router = r
	s.creator = testutil.NewActor(id.RoleCreator)
	s.admin = testutil.NewActor(id.RoleAdmin)
}

func (s *VerificationHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *VerificationHandlerSuite) TestSubmit() {
	profileID := id.NewProfileID()

	s.Run("returns 201 with the pending request", func() {
		snapshot := models.MetricsSnapshot{"followers": 1500.0, "engagement_rate": 3.0}
		created := models.NewRequest(id.NewVerificationRequestID(), profileID, snapshot, time.Now())
		s.service.EXPECT().Submit(gomock.Any(), s.creator, profileID, snapshot).Return(created, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications", map[string]any{
			"profile_id":       profileID.String(),
			"metrics_snapshot": map[string]any{"followers": 1500, "engagement_rate": 3.0},
		})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.creator))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[RequestResponse](s.T(), rr)
		s.Equal(created.ID.String(), resp.ID)
		s.Equal("PENDING", resp.Status)
		s.Nil(resp.ReviewedAt)
	})

	s.Run("missing profile id is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications", map[string]any{"metrics_snapshot": map[string]any{}})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("duplicate pending request maps to 409", func() {
		s.service.EXPECT().Submit(gomock.Any(), s.creator, profileID, models.MetricsSnapshot{}).
			Return(nil, dErrors.New(dErrors.CodeConflict, "a verification request is already pending for this profile"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications", map[string]any{"profile_id": profileID.String()})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}

func (s *VerificationHandlerSuite) TestDecide() {
	requestID := id.NewVerificationRequestID()
	path := "/verifications/" + requestID.String() + "/decision"

	s.Run("returns the decided request and refreshed profile", func() {
		decided := models.NewRequest(requestID, id.NewProfileID(), nil, time.Now())
		decided.ApplyDecision(models.StatusVerified, "ok", time.Now())
		profile := &profilemodels.Profile{ID: decided.ProfileID, VerificationStatus: profilemodels.StatusVerified, TrustScore: 80, ProfileCompletion: 100}
		s.service.EXPECT().Decide(gomock.Any(), s.admin, requestID, models.DecisionVerified, "ok").
			Return(&service.DecisionResult{Request: decided, Profile: profile}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"decision": "verified", "reason": " ok "})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[DecisionResponse](s.T(), rr)
		s.Equal("VERIFIED", resp.Request.Status)
		s.Equal(80.0, resp.TrustScore)
		s.Equal("VERIFIED", resp.VerificationStatus)
	})

	s.Run("unknown decision is rejected before the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"decision": "MAYBE"})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("already decided maps to 409", func() {
		s.service.EXPECT().Decide(gomock.Any(), s.admin, requestID, models.DecisionRejected, "").
			Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "verification request already decided: must be PENDING, was VERIFIED"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"decision": "REJECTED"})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvalidTransition))
	})
}

func (s *VerificationHandlerSuite) TestAdminRoutes() {
	s.Run("pending list requires admin", func() {
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(testutil.NewRequest(s.T(), http.MethodGet, "/verifications/pending"), s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("pending list passes the limit", func() {
		s.service.EXPECT().ListPending(gomock.Any(), 5).Return([]*models.Request{}, nil)
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(testutil.NewRequest(s.T(), http.MethodGet, "/verifications/pending?limit=5"), s.admin))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[RequestListResponse](s.T(), rr)
		s.Equal(0, resp.Count)
	})

	s.Run("manual evaluation reports the outcome", func() {
		requestID := id.NewVerificationRequestID()
		s.service.EXPECT().AutoEvaluate(gomock.Any(), requestID).Return(models.OutcomeStillPending, nil)
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(
			testutil.NewRequest(s.T(), http.MethodPost, "/verifications/"+requestID.String()+"/evaluate"), s.admin))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[EvaluationResponse](s.T(), rr)
		s.Equal("STILL_PENDING", resp.Outcome)
	})
}

func (s *VerificationHandlerSuite) TestGet() {
	s.Run("invalid id is a 400", func() {
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(testutil.NewRequest(s.T(), http.MethodGet, "/verifications/nope"), s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("lists a profile's requests", func() {
		profileID := id.NewProfileID()
		s.service.EXPECT().ListForProfile(gomock.Any(), s.creator, profileID).
			Return([]*models.Request{models.NewRequest(id.NewVerificationRequestID(), profileID, nil, time.Now())}, nil)
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(
			testutil.NewRequest(s.T(), http.MethodGet, "/verifications?profile_id="+profileID.String()), s.creator))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[RequestListResponse](s.T(), rr)
		s.Equal(1, resp.Count)
	})
}
