package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"trustlane/internal/report/models"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	Flag(ctx context.Context, actor id.Actor, profileID id.ProfileID, reason string) (*models.Report, error)
	Get(ctx context.Context, actor id.Actor, reportID id.ReportID) (*models.Report, error)
	List(ctx context.Context, actor id.Actor, filter models.Filter) ([]*models.Report, error)
	Review(ctx context.Context, actor id.Actor, reportID id.ReportID, status models.Status, notes string) (*models.Report, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleFlag)
		r.Get("/{reportID}", h.HandleGet)
		r.Post("/{reportID}/review", h.HandleReview)
	})
}

const maxListLimit = 200

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.Filter{Limit: 50}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = status
	}
	if raw := q.Get("profile_id"); raw != "" {
		profileID, err := id.ParseProfileID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.ProfileID = profileID
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxListLimit {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxListLimit))
			return
		}
		filter.Limit = v
	}
	reports, err := h.service.List(ctx, requestcontext.Actor(ctx), filter)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to list reports", err)
		return
	}
	out := ReportListResponse{Reports: make([]ReportResponse, 0, len(reports)), Count: len(reports)}
	for _, rep := range reports {
		out.Reports = append(out.Reports, toReportResponse(rep))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FlagRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	created, err := h.service.Flag(ctx, requestcontext.Actor(ctx), req.profileID, req.Reason)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to flag profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toReportResponse(created))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rep, err := h.service.Get(ctx, requestcontext.Actor(ctx), reportID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to load report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReportResponse(rep))
}

func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	rep, err := h.service.Review(ctx, requestcontext.Actor(ctx), reportID, req.status, req.AdminNotes)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to review report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReportResponse(rep))
}

type FlagRequest struct {
	ProfileID string `json:"profile_id"`
	Reason    string `json:"reason"`

	profileID id.ProfileID
}

func (r *FlagRequest) Validate() error {
	profileID, err := id.ParseProfileID(strings.TrimSpace(r.ProfileID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "profile_id must be a valid ID")
	}
	r.profileID = profileID
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

type ReviewRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes"`

	status models.Status
}

func (r *ReviewRequest) Validate() error {
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.status = status
	notes, err := models.NormalizeNotes(r.AdminNotes)
	if err != nil {
		return err
	}
	r.AdminNotes = notes
	return nil
}

type ReportResponse struct {
	ID         string     `json:"id"`
	ProfileID  string     `json:"profile_id"`
	Reason     string     `json:"reason"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	AdminNotes string     `json:"admin_notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

type ReportListResponse struct {
	Reports []ReportResponse `json:"reports"`
	Count   int              `json:"count"`
}

func toReportResponse(r *models.Report) ReportResponse {
	return ReportResponse{
		ID:         r.ID.String(),
		ProfileID:  r.ProfileID.String(),
		Reason:     r.Reason,
		Source:     string(r.Source),
		Status:     string(r.Status),
		AdminNotes: r.AdminNotes,
		CreatedAt:  r.CreatedAt,
		ReviewedAt: r.ReviewedAt,
	}
}
