package models

import (
	"encoding/json"
	"strings"
	"time"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
)

// Status is the state of one verification request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further decision can be applied.
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// Decision is an admin's verdict on a pending request.
type Decision string

const (
	DecisionVerified Decision = "VERIFIED"
	DecisionRejected Decision = "REJECTED"
)

func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToUpper(strings.TrimSpace(raw))); d {
	case DecisionVerified, DecisionRejected:
		return d, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "decision must be VERIFIED or REJECTED, got %q", raw)
	}
}

// Status returns the request status the decision produces.
func (d Decision) Status() Status {
	if d == DecisionVerified {
		return StatusVerified
	}
	return StatusRejected
}

// Metric keys read by the auto-approval rule.
const (
	MetricFollowers      = "followers"
	MetricEngagementRate = "engagement_rate"
)

// MetricsSnapshot is the creator-supplied metrics captured at submit time.
// It is never modified after the request is created.
type MetricsSnapshot map[string]any

// Number returns the numeric value at key, or 0 when missing or non-numeric.
func (m MetricsSnapshot) Number(key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func (m MetricsSnapshot) Followers() float64 {
	return m.Number(MetricFollowers)
}

func (m MetricsSnapshot) EngagementRate() float64 {
	return m.Number(MetricEngagementRate)
}

func (m MetricsSnapshot) clone() MetricsSnapshot {
	out := make(MetricsSnapshot, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Auto-approval thresholds. Both must be exceeded strictly.
const (
	AutoApproveMinFollowers      = 1000
	AutoApproveMinEngagementRate = 2.0
)

// QualifiesForAutoApproval applies the automatic verification rule.
func (m MetricsSnapshot) QualifiesForAutoApproval() bool {
	return m.Followers() > AutoApproveMinFollowers && m.EngagementRate() > AutoApproveMinEngagementRate
}

// Request is one verification attempt for a profile.
//
// Invariants:
//   - Snapshot is immutable after construction
//   - Status only moves PENDING → VERIFIED or PENDING → REJECTED
//   - ReviewedAt is set once, by the first terminal decision
//   - at most one PENDING request exists per profile (enforced by the store)
type Request struct {
	ID          id.VerificationRequestID `json:"id"`
	ProfileID   id.ProfileID             `json:"profile_id"`
	Snapshot    MetricsSnapshot          `json:"metrics_snapshot"`
	Status      Status                   `json:"status"`
	AdminReason string                   `json:"admin_reason,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	ReviewedAt  *time.Time               `json:"reviewed_at,omitempty"`
}

func NewRequest(requestID id.VerificationRequestID, profileID id.ProfileID, snapshot MetricsSnapshot, now time.Time) *Request {
	if snapshot == nil {
		snapshot = MetricsSnapshot{}
	}
	return &Request{
		ID:        requestID,
		ProfileID: profileID,
		Snapshot:  snapshot.clone(),
		Status:    StatusPending,
		CreatedAt: now,
	}
}

// CanDecide returns an invalid-transition error once the request is terminal.
func (r *Request) CanDecide() error {
	if r.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"verification request already decided: must be PENDING, was %s", r.Status)
	}
	return nil
}

// ApplyDecision records a terminal outcome. Call CanDecide first.
func (r *Request) ApplyDecision(status Status, reason string, now time.Time) {
	r.Status = status
	r.AdminReason = reason
	if r.ReviewedAt == nil {
		reviewed := now
		r.ReviewedAt = &reviewed
	}
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Snapshot = r.Snapshot.clone()
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

// Outcome reports what AutoEvaluate did.
type Outcome string

const (
	// OutcomeApproved means the rule matched and the request is now VERIFIED.
	OutcomeApproved Outcome = "APPROVED"
	// OutcomeStillPending means the rule did not match; an admin must decide.
	OutcomeStillPending Outcome = "STILL_PENDING"
	// OutcomeAlreadyDecided means the request was terminal and nothing changed.
	OutcomeAlreadyDecided Outcome = "ALREADY_DECIDED"
)
