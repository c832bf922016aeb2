package handler

import (
	"time"

	"trustlane/internal/verification/models"
	"trustlane/internal/verification/service"
)

type RequestResponse struct {
	ID              string                 `json:"id"`
	ProfileID       string                 `json:"profile_id"`
	MetricsSnapshot models.MetricsSnapshot `json:"metrics_snapshot"`
	Status          string                 `json:"status"`
	AdminReason     string                 `json:"admin_reason,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	ReviewedAt      *time.Time             `json:"reviewed_at,omitempty"`
}

type RequestListResponse struct {
	Requests []RequestResponse `json:"requests"`
	Count    int               `json:"count"`
}

type DecisionResponse struct {
	Request            RequestResponse `json:"request"`
	ProfileID          string          `json:"profile_id"`
	VerificationStatus string          `json:"verification_status"`
	TrustScore         float64         `json:"trust_score"`
	ProfileCompletion  int             `json:"profile_completion"`
}

type EvaluationResponse struct {
	RequestID string `json:"request_id"`
	Outcome   string `json:"outcome"`
}

func toRequestResponse(r *models.Request) RequestResponse {
	return RequestResponse{
		ID:              r.ID.String(),
		ProfileID:       r.ProfileID.String(),
		MetricsSnapshot: r.Snapshot,
		Status:          string(r.Status),
		AdminReason:     r.AdminReason,
		CreatedAt:       r.CreatedAt,
		ReviewedAt:      r.ReviewedAt,
	}
}

func toListResponse(requests []*models.Request) RequestListResponse {
	resp := RequestListResponse{Requests: make([]RequestResponse, 0, len(requests)), Count: len(requests)}
	for _, r := range requests {
		resp.Requests = append(resp.Requests, toRequestResponse(r))
	}
	return resp
}

func toDecisionResponse(result *service.DecisionResult) DecisionResponse {
	return DecisionResponse{
		Request:            toRequestResponse(result.Request),
		ProfileID:          result.Profile.ID.String(),
		VerificationStatus: string(result.Profile.VerificationStatus),
		TrustScore:         result.Profile.TrustScore,
		ProfileCompletion:  result.Profile.ProfileCompletion,
	}
}
