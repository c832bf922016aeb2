package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustlane/internal/profile/models"
	"trustlane/internal/profile/service"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the profile API the handler depends on.
type Service interface {
	Create(ctx context.Context, actor id.Actor, details models.Details) (*models.Profile, error)
	Get(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	GetByUser(ctx context.Context, userID id.UserID) (*models.Profile, error)
	UpdateDetails(ctx context.Context, actor id.Actor, profileID id.ProfileID, details models.Details) (*models.Profile, error)
	Explain(ctx context.Context, profileID id.ProfileID) (*service.Explanation, error)
	Search(ctx context.Context, filter models.SearchFilter) ([]*models.Profile, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts profile routes. Callers install actor middleware upstream.
func (h *Handler) Register(r chi.Router) {
	r.Route("/profiles", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleSearch)
		r.Get("/me", h.HandleGetMine)
		r.Get("/{profileID}", h.HandleGet)
		r.Put("/{profileID}", h.HandleUpdate)
		r.Get("/{profileID}/trust", h.HandleExplain)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.Create(ctx, requestcontext.Actor(ctx), req.details())
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to create profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toProfileResponse(p))
}

func (h *Handler) HandleGetMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.service.GetByUser(ctx, requestcontext.Actor(ctx).UserID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to load own profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Get(ctx, profileID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.UpdateDetails(ctx, requestcontext.Actor(ctx), profileID, req.details())
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	explanation, err := h.service.Explain(ctx, profileID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to explain trust score", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toExplanationResponse(explanation))
}

// HandleSearch lists creators for sponsors and admins.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if requestcontext.Actor(ctx).Is(id.RoleCreator) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "requires SPONSOR or ADMIN role"))
		return
	}
	filter, err := parseSearchFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	profiles, err := h.service.Search(ctx, filter)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to search profiles", err)
		return
	}
	resp := ProfileListResponse{Profiles: make([]ProfileResponse, 0, len(profiles)), Count: len(profiles)}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, toProfileResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

const maxSearchLimit = 100

func parseSearchFilter(r *http.Request) (models.SearchFilter, error) {
	q := r.URL.Query()
	filter := models.SearchFilter{
		Category:     q.Get("category"),
		VerifiedOnly: q.Get("verified_only") == "true",
		Limit:        maxSearchLimit,
	}
	if raw := q.Get("min_trust_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "min_trust_score must be a number")
		}
		filter.MinTrustScore = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxSearchLimit {
			return filter, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxSearchLimit)
		}
		filter.Limit = v
	}
	return filter, nil
}
