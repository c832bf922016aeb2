package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustlane/internal/collaboration/models"
	"trustlane/internal/collaboration/service"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the collaboration API the handler depends on.
type Service interface {
	SendRequest(ctx context.Context, actor id.Actor, inv models.Invitation) (*models.Request, error)
	Accept(ctx context.Context, actor id.Actor, requestID id.CollaborationRequestID) (*service.RespondResult, error)
	Reject(ctx context.Context, actor id.Actor, requestID id.CollaborationRequestID) (*service.RespondResult, error)
	GetRequest(ctx context.Context, actor id.Actor, requestID id.CollaborationRequestID) (*models.Request, error)
	ListRequests(ctx context.Context, actor id.Actor, status models.RequestStatus) ([]*models.Request, error)

	Get(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID) (*models.View, error)
	List(ctx context.Context, actor id.Actor, status models.Status) ([]*models.View, error)
	SetDeliverables(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, in models.DeliverablesInput) (*models.View, error)
	SubmitContent(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, links []models.ContentInput) (*models.View, error)
	Approve(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, feedback string) (*models.View, error)
	RequestRevision(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, note string) (*models.View, error)
	Complete(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, finalNotes string) (*models.View, error)
	Cancel(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, reason string) (*models.View, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts request and lifecycle routes. Callers install actor middleware upstream.
func (h *Handler) Register(r chi.Router) {
	r.Route("/collaboration-requests", func(r chi.Router) {
		r.Post("/", h.HandleSendRequest)
		r.Get("/", h.HandleListRequests)
		r.Get("/{requestID}", h.HandleGetRequest)
		r.Post("/{requestID}/accept", h.HandleAccept)
		r.Post("/{requestID}/reject", h.HandleReject)
	})
	r.Route("/collaborations", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{collaborationID}", h.HandleGet)
		r.Post("/{collaborationID}/deliverables", h.HandleSetDeliverables)
		r.Post("/{collaborationID}/content", h.HandleSubmitContent)
		r.Post("/{collaborationID}/approve", h.HandleApprove)
		r.Post("/{collaborationID}/revision", h.HandleRequestRevision)
		r.Post("/{collaborationID}/complete", h.HandleComplete)
		r.Post("/{collaborationID}/cancel", h.HandleCancel)
	})
}

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

func (h *Handler) HandleSendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	created, err := h.service.SendRequest(ctx, requestcontext.Actor(ctx), req.invitation)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to send collaboration request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *Handler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.RequestStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "status must be PENDING, ACCEPTED or REJECTED"))
		return
	}
	requests, err := h.service.ListRequests(ctx, requestcontext.Actor(ctx), status)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to list collaboration requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestListResponse(requests))
}

func (h *Handler) HandleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseCollaborationRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.GetRequest(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to load collaboration request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Accept)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Reject)
}

type respondFunc func(ctx context.Context, actor id.Actor, requestID id.CollaborationRequestID) (*service.RespondResult, error)

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fn respondFunc) {
	ctx := r.Context()
	requestID, err := id.ParseCollaborationRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := fn(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to respond to collaboration request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRespondResponse(result))
}

// -----------------------------------------------------------------------------
// Collaborations
// -----------------------------------------------------------------------------

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.Status(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", status))
		return
	}
	views, err := h.service.List(ctx, requestcontext.Actor(ctx), status)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to list collaborations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(views))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaborationID, ok := parseCollaborationID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(ctx, requestcontext.Actor(ctx), collaborationID)
	if err != nil {
		httputil.WriteServiceError(ctx, w, h.logger, "failed to load collaboration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toViewResponse(view))
}

func (h *Handler) HandleSetDeliverables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaborationID, ok := parseCollaborationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DeliverablesRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.SetDeliverables(ctx, requestcontext.Actor(ctx), collaborationID, req.input)
	h.writeTransition(w, r, "failed to set deliverables", view, err)
}

func (h *Handler) HandleSubmitContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaborationID, ok := parseCollaborationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ContentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.SubmitContent(ctx, requestcontext.Actor(ctx), collaborationID, req.links)
	h.writeTransition(w, r, "failed to submit content", view, err)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.noteTransition(w, r, "failed to approve content", h.service.Approve)
}

func (h *Handler) HandleRequestRevision(w http.ResponseWriter, r *http.Request) {
	h.noteTransition(w, r, "failed to request revision", h.service.RequestRevision)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.noteTransition(w, r, "failed to complete collaboration", h.service.Complete)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.noteTransition(w, r, "failed to cancel collaboration", h.service.Cancel)
}

type noteFunc func(ctx context.Context, actor id.Actor, collaborationID id.CollaborationID, note string) (*models.View, error)

// noteTransition handles the lifecycle actions whose body is a single optional note.
func (h *Handler) noteTransition(w http.ResponseWriter, r *http.Request, msg string, fn noteFunc) {
	ctx := r.Context()
	collaborationID, ok := parseCollaborationID(w, r)
	if !ok {
		return
	}
	note := ""
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[NoteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		note = req.Note
	}
	view, err := fn(ctx, requestcontext.Actor(ctx), collaborationID, note)
	h.writeTransition(w, r, msg, view, err)
}

func (h *Handler) writeTransition(w http.ResponseWriter, r *http.Request, msg string, view *models.View, err error) {
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toViewResponse(view))
}

func parseCollaborationID(w http.ResponseWriter, r *http.Request) (id.CollaborationID, bool) {
	collaborationID, err := id.ParseCollaborationID(chi.URLParam(r, "collaborationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CollaborationID{}, false
	}
	return collaborationID, true
}
