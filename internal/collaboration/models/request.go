package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
)

// RequestStatus is the state of a sponsor's collaboration request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestAccepted RequestStatus = "ACCEPTED"
	RequestRejected RequestStatus = "REJECTED"
)

func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected:
		return true
	default:
		return false
	}
}

const (
	maxCampaignNameLength = 200
	maxMessageLength      = 2000
)

// Request is a sponsor's invitation to a creator for one campaign.
//
// Invariants:
//   - at most one request per (campaign, creator profile)
//   - only a PENDING request can be answered, and only once
type Request struct {
	ID               id.CollaborationRequestID `json:"id"`
	CampaignID       id.CampaignID             `json:"campaign_id"`
	CampaignName     string                    `json:"campaign_name"`
	CreatorProfileID id.ProfileID              `json:"creator_profile_id"`
	CreatorUserID    id.UserID                 `json:"creator_user_id"`
	SponsorID        id.UserID                 `json:"sponsor_id"`
	Message          string                    `json:"message,omitempty"`
	Status           RequestStatus             `json:"status"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// Invitation is what a sponsor supplies when sending a request.
type Invitation struct {
	CampaignID       id.CampaignID
	CampaignName     string
	CreatorProfileID id.ProfileID
	Message          string
}

func NewRequest(requestID id.CollaborationRequestID, sponsorID, creatorUserID id.UserID, inv Invitation, now time.Time) (*Request, error) {
	name := strings.TrimSpace(inv.CampaignName)
	message := strings.TrimSpace(inv.Message)
	switch {
	case inv.CampaignID.IsNil():
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "campaign_id is required")
	case inv.CreatorProfileID.IsNil():
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "creator_profile_id is required")
	case name == "":
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "campaign_name is required")
	case utf8.RuneCountInString(name) > maxCampaignNameLength:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "campaign_name must be at most %d characters", maxCampaignNameLength)
	case utf8.RuneCountInString(message) > maxMessageLength:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "message must be at most %d characters", maxMessageLength)
	}
	return &Request{
		ID:               requestID,
		CampaignID:       inv.CampaignID,
		CampaignName:     name,
		CreatorProfileID: inv.CreatorProfileID,
		CreatorUserID:    creatorUserID,
		SponsorID:        sponsorID,
		Message:          message,
		Status:           RequestPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// CanRespond returns an invalid-transition error unless the request is PENDING.
func (r *Request) CanRespond() error {
	if r.Status != RequestPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot respond to request: request must be PENDING, was %s", r.Status)
	}
	return nil
}

// ApplyResponse records the creator's answer. Call CanRespond first.
func (r *Request) ApplyResponse(accept bool, now time.Time) {
	if accept {
		r.Status = RequestAccepted
	} else {
		r.Status = RequestRejected
	}
	r.UpdatedAt = now
}

// RequestFilter narrows request listings. Zero values match everything.
type RequestFilter struct {
	SponsorID     id.UserID
	CreatorUserID id.UserID
	Status        RequestStatus
}

func (f RequestFilter) Matches(r *Request) bool {
	if !f.SponsorID.IsNil() && r.SponsorID != f.SponsorID {
		return false
	}
	if !f.CreatorUserID.IsNil() && r.CreatorUserID != f.CreatorUserID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}
