package handler

import (
	"time"

	"trustlane/internal/collaboration/models"
	"trustlane/internal/collaboration/service"
)

type RequestResponse struct {
	ID               string    `json:"id"`
	CampaignID       string    `json:"campaign_id"`
	CampaignName     string    `json:"campaign_name"`
	CreatorProfileID string    `json:"creator_profile_id"`
	CreatorUserID    string    `json:"creator_user_id"`
	SponsorID        string    `json:"sponsor_id"`
	Message          string    `json:"message,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type RequestListResponse struct {
	Requests []RequestResponse `json:"requests"`
	Count    int               `json:"count"`
}

type RespondResponse struct {
	Request       RequestResponse `json:"request"`
	Collaboration *ViewResponse   `json:"collaboration,omitempty"`
}

type ViewResponse struct {
	*models.Collaboration
	Progress int `json:"progress"`
}

type ListResponse struct {
	Collaborations []ViewResponse `json:"collaborations"`
	Count          int            `json:"count"`
}

func toRequestResponse(r *models.Request) RequestResponse {
	return RequestResponse{
		ID:               r.ID.String(),
		CampaignID:       r.CampaignID.String(),
		CampaignName:     r.CampaignName,
		CreatorProfileID: r.CreatorProfileID.String(),
		CreatorUserID:    r.CreatorUserID.String(),
		SponsorID:        r.SponsorID.String(),
		Message:          r.Message,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toRequestListResponse(requests []*models.Request) RequestListResponse {
	out := RequestListResponse{Requests: make([]RequestResponse, 0, len(requests)), Count: len(requests)}
	for _, r := range requests {
		out.Requests = append(out.Requests, toRequestResponse(r))
	}
	return out
}

func toRespondResponse(result *service.RespondResult) RespondResponse {
	out := RespondResponse{Request: toRequestResponse(result.Request)}
	if result.Collaboration != nil {
		view := toViewResponse(result.Collaboration)
		out.Collaboration = &view
	}
	return out
}

func toViewResponse(v *models.View) ViewResponse {
	return ViewResponse{Collaboration: v.Collaboration, Progress: v.Progress}
}

func toListResponse(views []*models.View) ListResponse {
	out := ListResponse{Collaborations: make([]ViewResponse, 0, len(views)), Count: len(views)}
	for _, v := range views {
		out.Collaborations = append(out.Collaborations, toViewResponse(v))
	}
	return out
}
