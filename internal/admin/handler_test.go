package admin_test

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"trustlane/internal/admin"
	"trustlane/internal/admin/mocks"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/middleware/actor"
	"trustlane/pkg/testutil"
)

func newRouter(t *testing.T) (http.Handler, *mocks.MockDashboardService) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockDashboardService(ctrl)
	logger := slog.New(slog.DiscardHandler)
	r := chi.NewRouter()
	r.Use(actor.RequireActor(logger))
	admin.NewHandler(svc, logger).Register(r)
	return r, svc
}

func TestHandleDashboard(t *testing.T) {
	t.Run("renders counts", func(t *testing.T) {
		router, svc := newRouter(t)
		caller := testutil.NewActor(id.RoleAdmin)
		svc.EXPECT().Dashboard(gomock.Any(), caller).Return(&admin.Stats{
			ProfilesByStatus:       map[string]int{"VERIFIED": 2, "PENDING": 1},
			TotalProfiles:          3,
			PendingVerifications:   1,
			OpenReports:            4,
			CollaborationsByStatus: map[string]int{"ACTIVE": 5},
			TotalCollaborations:    5,
			GeneratedAt:            time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}, nil)

		req := testutil.NewRequest(t, http.MethodGet, "/admin/dashboard")
		rr := testutil.DoRequest(router, testutil.WithActorHeaders(req, caller))

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[admin.DashboardResponse](t, rr)
		require.NotNil(t, resp)
		assert.Equal(t, 3, resp.Profiles.Total)
		assert.Equal(t, 2, resp.Profiles.ByStatus["VERIFIED"])
		assert.Equal(t, 1, resp.Verifications.Pending)
		assert.Equal(t, 4, resp.Reports.Open)
		assert.Equal(t, 5, resp.Collaborations.ByStatus["ACTIVE"])
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		router, svc := newRouter(t)
		caller := testutil.NewActor(id.RoleCreator)
		svc.EXPECT().Dashboard(gomock.Any(), caller).Return(nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role"))

		req := testutil.NewRequest(t, http.MethodGet, "/admin/dashboard")
		rr := testutil.DoRequest(router, testutil.WithActorHeaders(req, caller))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}
