package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustlane/internal/automation/models"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	Trigger(ctx context.Context, actor id.Actor, job models.Job) (*models.Summary, error)
	TriggerAll(ctx context.Context, actor id.Actor) ([]*models.Summary, error)
}

// Handler exposes on-demand runs of the automation jobs to admins.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/automation", func(r chi.Router) {
		r.Post("/run-all", h.HandleRunAll)
		r.Post("/jobs/{job}/run", h.HandleRun)
	})
}

func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := models.ParseJob(chi.URLParam(r, "job"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.service.Trigger(ctx, requestcontext.Actor(ctx), job)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "automation job failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

type RunAllResponse struct {
	Results []*models.Summary `json:"results"`
}

func (h *Handler) HandleRunAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summaries, err := h.service.TriggerAll(ctx, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "automation run failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RunAllResponse{Results: summaries})
}
