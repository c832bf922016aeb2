package handler

import (
	"strings"

	"trustlane/internal/verification/models"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
)

// SubmitRequest opens a verification request for a profile with a metrics snapshot.
type SubmitRequest struct {
	ProfileID       string                 `json:"profile_id"`
	MetricsSnapshot models.MetricsSnapshot `json:"metrics_snapshot"`

	profileID id.ProfileID
}

func (r *SubmitRequest) Validate() error {
	profileID, err := id.ParseProfileID(strings.TrimSpace(r.ProfileID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "profile_id must be a valid ID")
	}
	r.profileID = profileID
	if r.MetricsSnapshot == nil {
		r.MetricsSnapshot = models.MetricsSnapshot{}
	}
	return nil
}

type DecisionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`

	decision models.Decision
}

const maxReasonLength = 1000

func (r *DecisionRequest) Validate() error {
	decision, err := models.ParseDecision(r.Decision)
	if err != nil {
		return err
	}
	r.decision = decision
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > maxReasonLength {
		return dErrors.Newf(dErrors.CodeValidation, "reason must be at most %d characters", maxReasonLength)
	}
	return nil
}
