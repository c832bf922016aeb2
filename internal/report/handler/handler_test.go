package handler

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trustlane/internal/report/handler/mocks"
	"trustlane/internal/report/models"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/middleware/actor"
	"trustlane/pkg/testutil"
)

type ReportHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	admin   id.Actor
}

func TestReportHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReportHandlerSuite))
}

func (s *ReportHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.DiscardHandler)
	r := chi.NewRouter()
	r.Use(actor.RequireActor(logger))
	New(s.service, logger).Register(r)
	s.router = r
	s.admin = testutil.NewActor(id.RoleAdmin)
}

func (s *ReportHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ReportHandlerSuite) newReport() *models.Report {
	r, err := models.NewReport(id.NewReportID(), id.NewProfileID(), "spam", models.SourceManual, time.Now())
	s.Require().NoError(err)
	return r
}

func (s *ReportHandlerSuite) TestList() {
	s.Run("parses the status filter", func() {
		rep := s.newReport()
		s.service.EXPECT().List(gomock.Any(), s.admin, models.Filter{Status: models.StatusPending, Limit: 50}).
			Return([]*models.Report{rep}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/reports?status=pending")
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[ReportListResponse](s.T(), rr)
		s.Equal(1, resp.Count)
		s.Equal(rep.ID.String(), resp.Reports[0].ID)
	})

	s.Run("unknown status is rejected", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/reports?status=closed")
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("non-admin gets 403 from the service", func() {
		sponsor := testutil.NewActor(id.RoleSponsor)
		s.service.EXPECT().List(gomock.Any(), sponsor, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role"))

		req := testutil.NewRequest(s.T(), http.MethodGet, "/reports")
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, sponsor))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}

func (s *ReportHandlerSuite) TestFlag() {
	rep := s.newReport()
	s.service.EXPECT().Flag(gomock.Any(), s.admin, rep.ProfileID, "spam").Return(rep, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/reports", map[string]string{
		"profile_id": rep.ProfileID.String(),
		"reason":     " spam ",
	})
	rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[ReportResponse](s.T(), rr)
	s.Equal("PENDING", resp.Status)
	s.Equal("MANUAL", resp.Source)
}

func (s *ReportHandlerSuite) TestReview() {
	rep := s.newReport()
	path := "/reports/" + rep.ID.String() + "/review"

	s.Run("returns the reviewed report", func() {
		rep.ApplyReview(models.StatusResolved, "done", time.Now())
		s.service.EXPECT().Review(gomock.Any(), s.admin, rep.ID, models.StatusResolved, "done").Return(rep, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"status": "RESOLVED", "admin_notes": "done"})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[ReportResponse](s.T(), rr)
		s.Equal("RESOLVED", resp.Status)
		s.NotNil(resp.ReviewedAt)
	})

	s.Run("missing status is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"admin_notes": "done"})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("already resolved maps to 409", func() {
		s.service.EXPECT().Review(gomock.Any(), s.admin, rep.ID, models.StatusReviewed, "").
			Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "cannot review report: report must be PENDING or REVIEWED, was RESOLVED"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"status": "reviewed"})
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvalidTransition))
	})
}
