// Package trust computes creator trust scores.
//
// The score is the sum of three bounded contributions, clamped to [0,100]:
//
//	completion     profileCompletion/100 × 30
//	verification   UNVERIFIED 0, PENDING 15, VERIFIED 50, REJECTED 0
//	track record   min(accepted/10, 1) × 20
//
// Every function here is pure. Callers supply the accepted-request count.
package trust

import (
	"fmt"
	"math"

	"trustlane/internal/profile/models"
	dErrors "trustlane/pkg/domain-errors"
)

const (
	MinScore = 0.0
	MaxScore = 100.0

	CompletionWeight  = 30.0
	TrackRecordWeight = 20.0
	// TrackRecordCap is the accepted-request count that earns the full track record weight.
	TrackRecordCap = 10

	PendingPoints  = 15.0
	VerifiedPoints = 50.0

	// AutoVerifyBoost is the flat bump applied when a request is auto-approved.
	AutoVerifyBoost = 20.0

	completionSignal = 25
)

// VerificationPoints returns the verification contribution for status. An
// unknown status is an error, never a silent zero.
func VerificationPoints(status models.VerificationStatus) (float64, error) {
	switch status {
	case models.StatusUnverified:
		return 0, nil
	case models.StatusPending:
		return PendingPoints, nil
	case models.StatusVerified:
		return VerifiedPoints, nil
	case models.StatusRejected:
		return 0, nil
	default:
		return 0, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown verification status %q", string(status))
	}
}

// Breakdown is the full derivation of a score. Score and Explain share it so
// the explanation can never disagree with the stored number.
type Breakdown struct {
	Score              float64                   `json:"score"`
	CompletionPoints   float64                   `json:"completion_points"`
	VerificationPoints float64                   `json:"verification_points"`
	TrackRecordPoints  float64                   `json:"track_record_points"`
	ProfileCompletion  int                       `json:"profile_completion"`
	VerificationStatus models.VerificationStatus `json:"verification_status"`
	AcceptedCount      int                       `json:"accepted_count"`
}

// Summary renders the three contributions for display.
func (b Breakdown) Summary() string {
	return fmt.Sprintf("Profile Completion: %.1f/%.0f | Verification: %.1f/%.0f | Collaborations: %.1f/%.0f",
		b.CompletionPoints, CompletionWeight,
		b.VerificationPoints, VerifiedPoints,
		b.TrackRecordPoints, TrackRecordWeight,
	)
}

// Explain computes the score of p with accepted collaboration requests and
// returns every intermediate value.
func Explain(p *models.Profile, accepted int) (Breakdown, error) {
	verification, err := VerificationPoints(p.VerificationStatus)
	if err != nil {
		return Breakdown{}, err
	}
	if accepted < 0 {
		accepted = 0
	}
	completion := float64(p.ProfileCompletion) / 100 * CompletionWeight
	trackRecord := math.Min(float64(accepted)/TrackRecordCap, 1) * TrackRecordWeight

	return Breakdown{
		Score:              Clamp(completion + verification + trackRecord),
		CompletionPoints:   completion,
		VerificationPoints: verification,
		TrackRecordPoints:  trackRecord,
		ProfileCompletion:  p.ProfileCompletion,
		VerificationStatus: p.VerificationStatus,
		AcceptedCount:      accepted,
	}, nil
}

// Score is Explain without the breakdown.
func Score(p *models.Profile, accepted int) (float64, error) {
	b, err := Explain(p, accepted)
	if err != nil {
		return 0, err
	}
	return b.Score, nil
}

// Completion returns how complete p is, in steps of 25: display name, bio,
// category, and "has a score or has entered verification".
func Completion(p *models.Profile) int {
	completion := 0
	if p.DisplayName != "" {
		completion += completionSignal
	}
	if p.Bio != "" {
		completion += completionSignal
	}
	if p.Category != "" {
		completion += completionSignal
	}
	if p.TrustScore > 0 || p.VerificationStatus != models.StatusUnverified {
		completion += completionSignal
	}
	return completion
}

// Refresh recomputes completion and then score on p in place. It reports
// whether either value changed.
func Refresh(p *models.Profile, accepted int) (bool, error) {
	completion := Completion(p)
	prevCompletion := p.ProfileCompletion
	p.ProfileCompletion = completion

	score, err := Score(p, accepted)
	if err != nil {
		p.ProfileCompletion = prevCompletion
		return false, err
	}
	changed := completion != prevCompletion || score != p.TrustScore
	p.TrustScore = score
	return changed, nil
}

// Boost adds delta to score, capped at MaxScore.
func Boost(score, delta float64) float64 {
	return Clamp(score + delta)
}

// Decay reduces score by percent, floored at MinScore.
func Decay(score float64, percent int) float64 {
	return Clamp(score * (1 - float64(percent)/100))
}

// Clamp bounds score to [MinScore, MaxScore] and rounds to two decimals.
func Clamp(score float64) float64 {
	score = math.Max(MinScore, math.Min(score, MaxScore))
	return math.Round(score*100) / 100
}
