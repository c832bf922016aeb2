package handler

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trustlane/internal/automation/handler/mocks"
	"trustlane/internal/automation/models"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/middleware/actor"
	"trustlane/pkg/testutil"
)

type AutomationHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	admin   id.Actor
}

func TestAutomationHandlerSuite(t *testing.T) {
	suite.Run(t, new(AutomationHandlerSuite))
}

func (s *AutomationHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.DiscardHandler)
	r := chi.NewRouter()
	r.Use(actor.RequireActor(logger))
	New(s.service, logger).Register(r)
	s.router = r
	s.admin = testutil.NewActor(id.RoleAdmin)
}

func (s *AutomationHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *AutomationHandlerSuite) TestRun() {
	s.Run("returns the job summary", func() {
		summary := models.NewSummary(models.JobDowngradeInactive, time.Now())
		summary.Processed = 3
		summary.ThresholdDays = 90
		summary.AddDelta(models.Delta{ProfileID: id.NewProfileID(), Field: models.FieldTrustScore, Before: 50, After: 45, Reason: "Inactivity"})
		s.service.EXPECT().Trigger(gomock.Any(), s.admin, models.JobDowngradeInactive).Return(summary, nil)

		req := testutil.NewRequest(s.T(), http.MethodPost, "/automation/jobs/downgrade_inactive/run")
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[models.Summary](s.T(), rr)
		s.Equal(models.JobDowngradeInactive, resp.Job)
		s.Equal(3, resp.Processed)
		s.Equal(90, resp.ThresholdDays)
		s.Require().Len(resp.Deltas, 1)
		s.Equal(45.0, resp.Deltas[0].After)
	})

	s.Run("unknown job is a validation error", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/automation/jobs/reindex/run")
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("a running job maps to 409", func() {
		s.service.EXPECT().Trigger(gomock.Any(), s.admin, models.JobFlagSuspicious).
			Return(nil, dErrors.New(dErrors.CodeConflict, "automation job flag_suspicious is already running"))

		req := testutil.NewRequest(s.T(), http.MethodPost, "/automation/jobs/flag_suspicious/run")
		rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("missing actor is rejected before the service", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/automation/jobs/flag_suspicious/run")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *AutomationHandlerSuite) TestRunAll() {
	summaries := make([]*models.Summary, 0, len(models.Jobs))
	for _, job := range models.Jobs {
		summaries = append(summaries, models.NewSummary(job, time.Now()))
	}
	s.service.EXPECT().TriggerAll(gomock.Any(), s.admin).Return(summaries, nil)

	req := testutil.NewRequest(s.T(), http.MethodPost, "/automation/run-all")
	rr := testutil.DoRequest(s.router, testutil.WithActorHeaders(req, s.admin))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[RunAllResponse](s.T(), rr)
	s.Require().Len(resp.Results, len(models.Jobs))
	s.Equal(models.JobFlagSuspicious, resp.Results[2].Job)
}
