package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks DashboardService

type DashboardService interface {
	Dashboard(ctx context.Context, actor id.Actor) (*Stats, error)
}

type Handler struct {
	service DashboardService
	logger  *slog.Logger
}

func NewHandler(svc DashboardService, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/dashboard", h.HandleDashboard)
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Dashboard(ctx, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to load dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDashboardResponse(stats))
}
