package handler

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trustlane/internal/profile/handler/mocks"
	"trustlane/internal/profile/models"
	"trustlane/internal/profile/service"
	"trustlane/internal/trust"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/middleware/actor"
	"trustlane/pkg/testutil"
)

type ProfileHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	creator id.Actor
}

func TestProfileHandlerSuite(t *testing.T) {
	suite.Run(t, new(ProfileHandlerSuite))
}

func (s *ProfileHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.DiscardHandler)

	r := chi.NewRouter()
	r.Use(actor.RequireActor(logger))
	New(s.service, logger).Register(r)
	s.router = r
	s.creator = testutil.NewActor(id.RoleCreator)
}

func (s *ProfileHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ProfileHandlerSuite) TestCreate() {
	s.Run("returns 201 with derived trust level", func() {
		p := &models.Profile{ID: id.NewProfileID(), UserID: s.creator.UserID, DisplayName: "Ana", VerificationStatus: models.StatusUnverified}
		s.service.EXPECT().
			Create(gomock.Any(), s.creator, models.Details{DisplayName: "Ana"}).
			Return(p, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/profiles", map[string]string{"display_name": " Ana "})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.creator))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[ProfileResponse](s.T(), rr)
		s.Equal(p.ID.String(), resp.ID)
		s.Equal(trust.LevelUnverified, resp.TrustLevel)
		s.False(resp.CollaborationReady)
	})

	s.Run("empty body fields are rejected before the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/profiles", map[string]string{})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("malformed JSON is a bad request", func() {
		req := testutil.NewRawRequest(s.T(), http.MethodPost, "/profiles", "{")
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("missing actor is unauthorized", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/profiles", map[string]string{"display_name": "Ana"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("conflict maps to 409", func() {
		s.service.EXPECT().
			Create(gomock.Any(), s.creator, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "profile already exists for this user"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/profiles", map[string]string{"display_name": "Ana"})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}

func (s *ProfileHandlerSuite) TestGet() {
	s.Run("invalid id is a 400", func() {
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(testutil.NewRequest(s.T(), http.MethodGet, "/profiles/not-a-uuid"), s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("not found is a 404", func() {
		profileID := id.NewProfileID()
		s.service.EXPECT().Get(gomock.Any(), profileID).Return(nil, dErrors.New(dErrors.CodeNotFound, "profile not found"))

		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(testutil.NewRequest(s.T(), http.MethodGet, "/profiles/"+profileID.String()), s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("internal errors hide their description", func() {
		profileID := id.NewProfileID()
		s.service.EXPECT().Get(gomock.Any(), profileID).Return(nil, dErrors.New(dErrors.CodeInternal, "db exploded"))

		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(testutil.NewRequest(s.T(), http.MethodGet, "/profiles/"+profileID.String()), s.creator))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(rr.Body.String(), "db exploded")
	})
}

func (s *ProfileHandlerSuite) TestExplain() {
	profileID := id.NewProfileID()
	p := &models.Profile{ID: profileID, TrustScore: 80, ProfileCompletion: 100, VerificationStatus: models.StatusVerified}
	b, err := trust.Explain(p, 0)
	s.Require().NoError(err)
	s.service.EXPECT().Explain(gomock.Any(), profileID).Return(&service.Explanation{Profile: p, Breakdown: b, Level: trust.LevelHigh}, nil)

	rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(testutil.NewRequest(s.T(), http.MethodGet, "/profiles/"+profileID.String()+"/trust"), s.creator))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[TrustExplanationResponse](s.T(), rr)
	s.Equal(80.0, resp.CurrentScore)
	s.Equal(80.0, resp.DerivedScore)
	s.Equal("Profile Completion: 30.0/30 | Verification: 50.0/50 | Collaborations: 0.0/20", resp.Breakdown)
}

func (s *ProfileHandlerSuite) TestSearch() {
	sponsor := testutil.NewActor(id.RoleSponsor)

	s.Run("creators cannot browse other creators", func() {
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(testutil.NewRequest(s.T(), http.MethodGet, "/profiles"), s.creator))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("parses filters", func() {
		s.service.EXPECT().
			Search(gomock.Any(), models.SearchFilter{MinTrustScore: 50, Category: "tech", VerifiedOnly: true, Limit: 10}).
			Return([]*models.Profile{{ID: id.NewProfileID(), TrustScore: 60, VerificationStatus: models.StatusVerified}}, nil)

		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(
			testutil.NewRequest(s.T(), http.MethodGet, "/profiles?min_trust_score=50&category=tech&verified_only=true&limit=10"), sponsor))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[ProfileListResponse](s.T(), rr)
		s.Equal(1, resp.Count)
		s.True(resp.Profiles[0].CollaborationReady)
	})

	s.Run("rejects a non-numeric threshold", func() {
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(
			testutil.NewRequest(s.T(), http.MethodGet, "/profiles?min_trust_score=high"), sponsor))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}
