package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
)

// Status is the review state of a report.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusReviewed Status = "REVIEWED"
	StatusResolved Status = "RESOLVED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusResolved:
		return true
	default:
		return false
	}
}

// ParseStatus accepts any casing of a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "status must be PENDING, REVIEWED or RESOLVED, got %q", raw)
	}
	return s, nil
}

// Source records who raised a report.
type Source string

const (
	SourceAutomation Source = "AUTOMATION"
	SourceManual     Source = "MANUAL"
)

// Reasons raised by automation. The category is the substring used for dedup.
const (
	RejectedVerificationCategory = "Rejected verification"
	RejectedVerificationReason   = RejectedVerificationCategory + " - potential suspicious activity"
)

const (
	maxReasonLength = 500
	maxNotesLength  = 1000
)

// Report flags a profile for admin attention.
type Report struct {
	ID         id.ReportID  `json:"id"`
	ProfileID  id.ProfileID `json:"profile_id"`
	Reason     string       `json:"reason"`
	Source     Source       `json:"source"`
	Status     Status       `json:"status"`
	AdminNotes string       `json:"admin_notes,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
}

func NewReport(reportID id.ReportID, profileID id.ProfileID, reason string, source Source, now time.Time) (*Report, error) {
	reason = strings.TrimSpace(reason)
	switch {
	case profileID.IsNil():
		return nil, dErrors.New(dErrors.CodeValidation, "profile_id is required")
	case reason == "":
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	case utf8.RuneCountInString(reason) > maxReasonLength:
		return nil, dErrors.Newf(dErrors.CodeValidation, "reason must be at most %d characters", maxReasonLength)
	}
	return &Report{
		ID:        reportID,
		ProfileID: profileID,
		Reason:    reason,
		Source:    source,
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}

// IsOpen reports whether the report still needs attention.
func (r *Report) IsOpen() bool {
	return r.Status != StatusResolved
}

// CanReview checks that the report may move to status. Reviews only move
// forward: PENDING to REVIEWED or RESOLVED, REVIEWED to RESOLVED.
func (r *Report) CanReview(status Status) error {
	if status != StatusReviewed && status != StatusResolved {
		return dErrors.Newf(dErrors.CodeValidation, "review status must be REVIEWED or RESOLVED, got %s", status)
	}
	switch r.Status {
	case StatusPending:
		return nil
	case StatusReviewed:
		if status == StatusResolved {
			return nil
		}
		return dErrors.New(dErrors.CodeInvalidTransition, "cannot review report: report must be PENDING, was REVIEWED")
	default:
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot review report: report must be PENDING or REVIEWED, was %s", r.Status)
	}
}

// ApplyReview records an admin review. ReviewedAt is set on the first review only.
func (r *Report) ApplyReview(status Status, notes string, now time.Time) {
	r.Status = status
	if notes != "" {
		r.AdminNotes = notes
	}
	if r.ReviewedAt == nil {
		reviewedAt := now
		r.ReviewedAt = &reviewedAt
	}
}

// NormalizeNotes trims admin notes and bounds their length.
func NormalizeNotes(notes string) (string, error) {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return "", dErrors.Newf(dErrors.CodeValidation, "admin_notes must be at most %d characters", maxNotesLength)
	}
	return notes, nil
}

// Filter narrows report listings. Zero values match everything.
type Filter struct {
	Status    Status
	ProfileID id.ProfileID
	Limit     int
}

func (f Filter) Matches(r *Report) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.ProfileID.IsNil() && r.ProfileID != f.ProfileID {
		return false
	}
	return true
}
