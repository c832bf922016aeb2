package handler

import (
	"time"

	"trustlane/internal/profile/models"
	"trustlane/internal/profile/service"
	"trustlane/internal/trust"
)

type ProfileResponse struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"user_id"`
	DisplayName        string      `json:"display_name,omitempty"`
	Bio                string      `json:"bio,omitempty"`
	Category           string      `json:"category,omitempty"`
	TrustScore         float64     `json:"trust_score"`
	TrustLevel         trust.Level `json:"trust_level"`
	VerificationStatus string      `json:"verification_status"`
	ProfileCompletion  int         `json:"profile_completion"`
	CollaborationReady bool        `json:"collaboration_ready"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type ProfileListResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
	Count    int               `json:"count"`
}

type TrustExplanationResponse struct {
	ProfileID          string      `json:"profile_id"`
	CurrentScore       float64     `json:"current_score"`
	DerivedScore       float64     `json:"derived_score"`
	TrustLevel         trust.Level `json:"trust_level"`
	ProfileCompletion  int         `json:"profile_completion"`
	VerificationStatus string      `json:"verification_status"`
	CollaborationCount int         `json:"collaboration_count"`
	CompletionPoints   float64     `json:"completion_points"`
	VerificationPoints float64     `json:"verification_points"`
	TrackRecordPoints  float64     `json:"track_record_points"`
	Breakdown          string      `json:"calculation_breakdown"`
}

func toProfileResponse(p *models.Profile) ProfileResponse {
	return ProfileResponse{
		ID:                 p.ID.String(),
		UserID:             p.UserID.String(),
		DisplayName:        p.DisplayName,
		Bio:                p.Bio,
		Category:           p.Category,
		TrustScore:         p.TrustScore,
		TrustLevel:         trust.LevelFor(p.TrustScore),
		VerificationStatus: string(p.VerificationStatus),
		ProfileCompletion:  p.ProfileCompletion,
		CollaborationReady: trust.MeetsCollaborationThreshold(p.TrustScore),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func toExplanationResponse(e *service.Explanation) TrustExplanationResponse {
	return TrustExplanationResponse{
		ProfileID:          e.Profile.ID.String(),
		CurrentScore:       e.Profile.TrustScore,
		DerivedScore:       e.Breakdown.Score,
		TrustLevel:         e.Level,
		ProfileCompletion:  e.Breakdown.ProfileCompletion,
		VerificationStatus: string(e.Breakdown.VerificationStatus),
		CollaborationCount: e.Breakdown.AcceptedCount,
		CompletionPoints:   e.Breakdown.CompletionPoints,
		VerificationPoints: e.Breakdown.VerificationPoints,
		TrackRecordPoints:  e.Breakdown.TrackRecordPoints,
		Breakdown:          e.Breakdown.Summary(),
	}
}
