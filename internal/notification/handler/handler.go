package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"trustlane/internal/notification/models"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	List(ctx context.Context, actor id.Actor, filter models.ListFilter) ([]*models.Notification, error)
	MarkRead(ctx context.Context, actor id.Actor, notificationID id.NotificationID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, actor id.Actor) (int, error)
	UnreadCount(ctx context.Context, actor id.Actor) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/unread-count", h.HandleUnreadCount)
		r.Post("/read-all", h.HandleMarkAllRead)
		r.Post("/{notificationID}/read", h.HandleMarkRead)
	})
}

type NotificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	RelatedID string    `json:"related_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Count         int                    `json:"count"`
}

type CountResponse struct {
	Count int `json:"count"`
}

const maxListLimit = 100

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := models.ListFilter{UnreadOnly: r.URL.Query().Get("unread_only") == "true"}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxListLimit {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxListLimit))
			return
		}
		filter.Limit = v
	}
	notifications, err := h.service.List(ctx, requestcontext.Actor(ctx), filter)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to list notifications", err)
		return
	}
	resp := NotificationListResponse{Notifications: make([]NotificationResponse, 0, len(notifications)), Count: len(notifications)}
	for _, n := range notifications {
		resp.Notifications = append(resp.Notifications, toResponse(n))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.UnreadCount(ctx, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to count notifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.MarkRead(ctx, requestcontext.Actor(ctx), notificationID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to mark notification read", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(n))
}

func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.MarkAllRead(ctx, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to mark notifications read", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: n})
}

func toResponse(n *models.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if n.RelatedID != uuid.Nil {
		resp.RelatedID = n.RelatedID.String()
	}
	return resp
}
