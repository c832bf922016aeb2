package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustlane/internal/verification/models"
	"trustlane/internal/verification/service"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the verification API the handler depends on.
type Service interface {
	Submit(ctx context.Context, actor id.Actor, profileID id.ProfileID, snapshot models.MetricsSnapshot) (*models.Request, error)
	AutoEvaluate(ctx context.Context, requestID id.VerificationRequestID) (models.Outcome, error)
	Decide(ctx context.Context, actor id.Actor, requestID id.VerificationRequestID, decision models.Decision, reason string) (*service.DecisionResult, error)
	Get(ctx context.Context, requestID id.VerificationRequestID) (*models.Request, error)
	ListPending(ctx context.Context, limit int) ([]*models.Request, error)
	ListForProfile(ctx context.Context, actor id.Actor, profileID id.ProfileID) ([]*models.Request, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts verification routes. Callers install actor middleware upstream.
func (h *Handler) Register(r chi.Router) {
	r.Route("/verifications", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Get("/", h.HandleListForProfile)
		r.Get("/pending", h.HandleListPending)
		r.Get("/{requestID}", h.HandleGet)
		r.Post("/{requestID}/decision", h.HandleDecide)
		r.Post("/{requestID}/evaluate", h.HandleEvaluate)
	})
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	created, err := h.service.Submit(ctx, requestcontext.Actor(ctx), req.profileID, req.MetricsSnapshot)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to submit verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *Handler) HandleListForProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := id.ParseProfileID(r.URL.Query().Get("profile_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	requests, err := h.service.ListForProfile(ctx, requestcontext.Actor(ctx), profileID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to list verification requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(requests))
}

const maxPendingLimit = 200

func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requireAdmin(ctx, w) {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxPendingLimit {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxPendingLimit))
			return
		}
		limit = v
	}
	requests, err := h.service.ListPending(ctx, limit)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to list pending verifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(requests))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseVerificationRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.Get(ctx, requestID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to load verification request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := requestcontext.RequestID(ctx)

	requestID, err := id.ParseVerificationRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, reqID)
	if !ok {
		return
	}
	result, err := h.service.Decide(ctx, requestcontext.Actor(ctx), requestID, req.decision, req.Reason)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to decide verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(result))
}

// HandleEvaluate re-runs the auto-approval rule for one request on demand.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requireAdmin(ctx, w) {
		return
	}
	requestID, err := id.ParseVerificationRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	outcome, err := h.service.AutoEvaluate(ctx, requestID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to evaluate verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EvaluationResponse{RequestID: requestID.String(), Outcome: string(outcome)})
}

func requireAdmin(ctx context.Context, w http.ResponseWriter) bool {
	if !requestcontext.Actor(ctx).Is(id.RoleAdmin) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role"))
		return false
	}
	return true
}
