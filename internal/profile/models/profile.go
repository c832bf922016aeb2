package models

import (
	"strings"
	"time"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
)

// VerificationStatus is the profile-level verification state. It becomes
// PENDING on submit and then mirrors the latest terminal decision.
type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "UNVERIFIED"
	StatusPending    VerificationStatus = "PENDING"
	StatusVerified   VerificationStatus = "VERIFIED"
	StatusRejected   VerificationStatus = "REJECTED"
)

func (s VerificationStatus) IsValid() bool {
	switch s {
	case StatusUnverified, StatusPending, StatusVerified, StatusRejected:
		return true
	default:
		return false
	}
}

func (s VerificationStatus) String() string {
	return string(s)
}

// ParseVerificationStatus accepts any casing of a known status.
func ParseVerificationStatus(raw string) (VerificationStatus, error) {
	s := VerificationStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown verification status %q", raw)
	}
	return s, nil
}

// Profile is a creator's scored, verifiable account.
//
// Invariants:
//   - TrustScore is within [0,100] and ProfileCompletion is one of {0,25,50,75,100}
//   - both are written only by the score model, never taken from callers
//   - UserID is immutable; a profile is never deleted
type Profile struct {
	ID                 id.ProfileID       `json:"id"`
	UserID             id.UserID          `json:"user_id"`
	DisplayName        string             `json:"display_name,omitempty"`
	Bio                string             `json:"bio,omitempty"`
	Category           string             `json:"category,omitempty"`
	TrustScore         float64            `json:"trust_score"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	ProfileCompletion  int                `json:"profile_completion"`
	AdminNote          string             `json:"admin_note,omitempty"`
	DowngradedAt       *time.Time         `json:"downgraded_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Details holds the caller-editable fields.
type Details struct {
	DisplayName string
	Bio         string
	Category    string
}

func (d Details) normalize() Details {
	return Details{
		DisplayName: strings.TrimSpace(d.DisplayName),
		Bio:         strings.TrimSpace(d.Bio),
		Category:    strings.TrimSpace(d.Category),
	}
}

// NewProfile creates a profile with every scoring field zeroed.
func NewProfile(profileID id.ProfileID, userID id.UserID, details Details, now time.Time) (*Profile, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile owner is required")
	}
	d := details.normalize()
	if err := validateDetails(d); err != nil {
		return nil, err
	}
	return &Profile{
		ID:                 profileID,
		UserID:             userID,
		DisplayName:        d.DisplayName,
		Bio:                d.Bio,
		Category:           d.Category,
		VerificationStatus: StatusUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// ApplyDetails overwrites the editable fields. Scores are left for the
// caller to refresh.
func (p *Profile) ApplyDetails(details Details, now time.Time) error {
	d := details.normalize()
	if err := validateDetails(d); err != nil {
		return err
	}
	p.DisplayName = d.DisplayName
	p.Bio = d.Bio
	p.Category = d.Category
	p.UpdatedAt = now
	return nil
}

// ApplyVerificationStatus moves the profile to status and leaves the admin
// note as it was.
func (p *Profile) ApplyVerificationStatus(status VerificationStatus, now time.Time) {
	p.VerificationStatus = status
	p.UpdatedAt = now
}

// RecordDecision applies an admin decision. The note always replaces the
// previous one, so an approval without a reason clears an earlier rejection
// reason.
func (p *Profile) RecordDecision(status VerificationStatus, note string, now time.Time) {
	p.ApplyVerificationStatus(status, now)
	p.AdminNote = note
}

func (p *Profile) IsVerified() bool {
	return p.VerificationStatus == StatusVerified
}

const (
	maxDisplayNameLen = 100
	maxBioLen         = 2000
	maxCategoryLen    = 64
)

func validateDetails(d Details) error {
	switch {
	case len(d.DisplayName) > maxDisplayNameLen:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "display name must be %d characters or less", maxDisplayNameLen)
	case len(d.Bio) > maxBioLen:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "bio must be %d characters or less", maxBioLen)
	case len(d.Category) > maxCategoryLen:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "category must be %d characters or less", maxCategoryLen)
	}
	return nil
}

// SearchFilter narrows profile listings for sponsors looking for creators.
type SearchFilter struct {
	MinTrustScore float64
	Category      string
	VerifiedOnly  bool
	Limit         int
}

// Matches reports whether p passes every set filter.
func (f SearchFilter) Matches(p *Profile) bool {
	if p.TrustScore < f.MinTrustScore {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.VerifiedOnly && !p.IsVerified() {
		return false
	}
	return true
}
