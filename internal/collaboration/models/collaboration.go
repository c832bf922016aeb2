package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	platformstrings "trustlane/pkg/platform/strings"
)

// Status is the lifecycle state of a collaboration.
type Status string

const (
	StatusActive           Status = "ACTIVE"
	StatusDeliverablesSet  Status = "DELIVERABLES_SET"
	StatusContentSubmitted Status = "CONTENT_SUBMITTED"
	StatusContentApproved  Status = "CONTENT_APPROVED"
	StatusCompleted        Status = "COMPLETED"
	StatusCancelled        Status = "CANCELLED"
)

func (s Status) IsValid() bool {
	_, err := Progress(s)
	return err == nil
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Progress is the display percentage for a state. It is derived, never stored.
func Progress(s Status) (int, error) {
	switch s {
	case StatusActive:
		return 20, nil
	case StatusDeliverablesSet:
		return 40, nil
	case StatusContentSubmitted:
		return 60, nil
	case StatusContentApproved:
		return 80, nil
	case StatusCompleted:
		return 100, nil
	case StatusCancelled:
		return 0, nil
	default:
		return 0, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown collaboration status %q", s)
	}
}

// PaymentStatus tracks the escrowed payment for a collaboration.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentReleased  PaymentStatus = "RELEASED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Action names a lifecycle operation.
type Action string

const (
	ActionSetDeliverables Action = "set_deliverables"
	ActionSubmitContent   Action = "submit_content"
	ActionApprove         Action = "approve"
	ActionRequestRevision Action = "request_revision"
	ActionComplete        Action = "complete"
	ActionCancel          Action = "cancel"
)

type transition struct {
	verb string
	role id.Role
	from []Status
	to   Status
}

var transitions = map[Action]transition{
	ActionSetDeliverables: {
		verb: "set deliverables",
		role: id.RoleSponsor,
		from: []Status{StatusActive},
		to:   StatusDeliverablesSet,
	},
	ActionSubmitContent: {
		verb: "submit content",
		role: id.RoleCreator,
		from: []Status{StatusDeliverablesSet},
		to:   StatusContentSubmitted,
	},
	ActionApprove: {
		verb: "approve content",
		role: id.RoleSponsor,
		from: []Status{StatusContentSubmitted},
		to:   StatusContentApproved,
	},
	ActionRequestRevision: {
		verb: "request revision",
		role: id.RoleSponsor,
		from: []Status{StatusContentSubmitted},
		to:   StatusDeliverablesSet,
	},
	ActionComplete: {
		verb: "complete collaboration",
		role: id.RoleSponsor,
		from: []Status{StatusContentApproved},
		to:   StatusCompleted,
	},
	ActionCancel: {
		verb: "cancel collaboration",
		role: id.RoleSponsor,
		from: []Status{StatusActive, StatusDeliverablesSet, StatusContentSubmitted, StatusContentApproved},
		to:   StatusCancelled,
	},
}

// Deliverables is what the sponsor expects the creator to produce.
type Deliverables struct {
	Description  string     `json:"description,omitempty"`
	Requirements []string   `json:"requirements"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	SetAt        *time.Time `json:"set_at,omitempty"`
}

// ContentLink references one piece of published content.
type ContentLink struct {
	URL         string    `json:"url"`
	Platform    string    `json:"platform,omitempty"`
	Description string    `json:"description,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Collaboration is a paid engagement created when a request is accepted.
//
// Invariants:
//   - exactly one per accepted request
//   - status only moves forward, except CONTENT_SUBMITTED back to DELIVERABLES_SET on revision
//   - PaymentStatus becomes RELEASED only on completion, and CompletedAt is set only then
//   - COMPLETED and CANCELLED are terminal
type Collaboration struct {
	ID               id.CollaborationID        `json:"id"`
	RequestID        id.CollaborationRequestID `json:"request_id"`
	CampaignID       id.CampaignID             `json:"campaign_id"`
	CampaignName     string                    `json:"campaign_name"`
	CreatorProfileID id.ProfileID              `json:"creator_profile_id"`
	CreatorUserID    id.UserID                 `json:"creator_user_id"`
	SponsorID        id.UserID                 `json:"sponsor_id"`
	Status           Status                    `json:"status"`
	PaymentStatus    PaymentStatus             `json:"payment_status"`
	Deliverables     Deliverables              `json:"deliverables"`
	ContentLinks     []ContentLink             `json:"content_links"`
	ApprovalFeedback string                    `json:"approval_feedback,omitempty"`
	ApprovedAt       *time.Time                `json:"approved_at,omitempty"`
	RevisionNote     string                    `json:"revision_note,omitempty"`
	FinalNotes       string                    `json:"final_notes,omitempty"`
	CancelReason     string                    `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
	CompletedAt      *time.Time                `json:"completed_at,omitempty"`
}

// NewFromRequest starts a collaboration for an accepted request.
func NewFromRequest(collaborationID id.CollaborationID, req *Request, now time.Time) (*Collaboration, error) {
	if req.Status != RequestAccepted {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"collaboration requires an ACCEPTED request, was %s", req.Status)
	}
	return &Collaboration{
		ID:               collaborationID,
		RequestID:        req.ID,
		CampaignID:       req.CampaignID,
		CampaignName:     req.CampaignName,
		CreatorProfileID: req.CreatorProfileID,
		CreatorUserID:    req.CreatorUserID,
		SponsorID:        req.SponsorID,
		Status:           StatusActive,
		PaymentStatus:    PaymentPending,
		Deliverables:     Deliverables{Requirements: []string{}},
		ContentLinks:     []ContentLink{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Progress returns the display percentage for the current state.
func (c *Collaboration) Progress() (int, error) {
	return Progress(c.Status)
}

// IsParty reports whether userID is the sponsor or the creator.
func (c *Collaboration) IsParty(userID id.UserID) bool {
	return c.SponsorID == userID || c.CreatorUserID == userID
}

// Counterparty returns the other side of the engagement from userID.
func (c *Collaboration) Counterparty(userID id.UserID) id.UserID {
	if userID == c.SponsorID {
		return c.CreatorUserID
	}
	return c.SponsorID
}

// Can checks that role may perform action from the current state. A role
// mismatch is Forbidden; a wrong source state is InvalidTransition.
func (c *Collaboration) Can(action Action, role id.Role) error {
	t, ok := transitions[action]
	if !ok {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown collaboration action %q", action)
	}
	if role != t.role {
		return dErrors.Newf(dErrors.CodeForbidden, "cannot %s: requires %s role", t.verb, t.role)
	}
	for _, from := range t.from {
		if c.Status == from {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot %s: collaboration must be %s, was %s",
		t.verb, joinStatuses(t.from), c.Status)
}

// ApplyDeliverables overwrites the deliverables and clears submitted content.
func (c *Collaboration) ApplyDeliverables(d DeliverablesInput, now time.Time) {
	deadline := d.Deadline
	setAt := now
	c.Deliverables = Deliverables{
		Description:  d.Description,
		Requirements: append([]string(nil), d.Requirements...),
		Deadline:     &deadline,
		SetAt:        &setAt,
	}
	c.ContentLinks = []ContentLink{}
	c.Status = StatusDeliverablesSet
	c.UpdatedAt = now
}

// ApplyContent records submitted content, stamping each link with now.
func (c *Collaboration) ApplyContent(links []ContentInput, now time.Time) {
	c.ContentLinks = make([]ContentLink, 0, len(links))
	for _, l := range links {
		c.ContentLinks = append(c.ContentLinks, ContentLink{
			URL:         l.URL,
			Platform:    l.Platform,
			Description: l.Description,
			SubmittedAt: now,
		})
	}
	c.Status = StatusContentSubmitted
	c.UpdatedAt = now
}

func (c *Collaboration) ApplyApproval(feedback string, now time.Time) {
	approvedAt := now
	c.ApprovalFeedback = feedback
	c.ApprovedAt = &approvedAt
	c.Status = StatusContentApproved
	c.UpdatedAt = now
}

// ApplyRevisionRequest sends the collaboration back to DELIVERABLES_SET.
// Submitted links are kept for reference until deliverables are set again.
func (c *Collaboration) ApplyRevisionRequest(note string, now time.Time) {
	c.RevisionNote = note
	c.Status = StatusDeliverablesSet
	c.UpdatedAt = now
}

// ApplyCompletion releases payment. CompletedAt is set once.
func (c *Collaboration) ApplyCompletion(finalNotes string, now time.Time) {
	c.FinalNotes = finalNotes
	c.Status = StatusCompleted
	c.PaymentStatus = PaymentReleased
	if c.CompletedAt == nil {
		completedAt := now
		c.CompletedAt = &completedAt
	}
	c.UpdatedAt = now
}

func (c *Collaboration) ApplyCancellation(reason string, now time.Time) {
	c.CancelReason = reason
	c.Status = StatusCancelled
	c.PaymentStatus = PaymentCancelled
	c.UpdatedAt = now
}

// Clone returns a deep copy.
func (c *Collaboration) Clone() *Collaboration {
	cp := *c
	cp.Deliverables.Requirements = append([]string(nil), c.Deliverables.Requirements...)
	cp.Deliverables.Deadline = cloneTime(c.Deliverables.Deadline)
	cp.Deliverables.SetAt = cloneTime(c.Deliverables.SetAt)
	cp.ContentLinks = append([]ContentLink(nil), c.ContentLinks...)
	cp.ApprovedAt = cloneTime(c.ApprovedAt)
	cp.CompletedAt = cloneTime(c.CompletedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func joinStatuses(statuses []Status) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	if len(names) <= 2 {
		return strings.Join(names, " or ")
	}
	return "one of " + strings.Join(names, ", ")
}

const (
	maxDescriptionLength = 2000
	maxNoteLength        = 1000
	maxPlatformLength    = 32
)

// DeliverablesInput is the payload for setting deliverables.
type DeliverablesInput struct {
	Description  string
	Requirements []string
	Deadline     time.Time
}

// Normalize trims and dedupes the input and checks it is complete.
func (d DeliverablesInput) Normalize() (DeliverablesInput, error) {
	d.Description = strings.TrimSpace(d.Description)
	d.Requirements = platformstrings.CleanList(d.Requirements)
	switch {
	case len(d.Requirements) == 0:
		return d, dErrors.New(dErrors.CodeValidation, "requirements must contain at least one item")
	case d.Deadline.IsZero():
		return d, dErrors.New(dErrors.CodeValidation, "deadline is required")
	case utf8.RuneCountInString(d.Description) > maxDescriptionLength:
		return d, dErrors.Newf(dErrors.CodeValidation, "description must be at most %d characters", maxDescriptionLength)
	}
	return d, nil
}

// ContentInput is one submitted content reference. Any client-side timestamp
// is ignored.
type ContentInput struct {
	URL         string
	Platform    string
	Description string
}

// NormalizeContent validates submitted references.
func NormalizeContent(links []ContentInput) ([]ContentInput, error) {
	if len(links) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "content_links must contain at least one item")
	}
	out := make([]ContentInput, 0, len(links))
	for i, l := range links {
		l.URL = strings.TrimSpace(l.URL)
		l.Platform = strings.ToLower(strings.TrimSpace(l.Platform))
		l.Description = strings.TrimSpace(l.Description)
		if err := validateContentURL(l.URL); err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "content_links[%d]: %s", i, err)
		}
		if utf8.RuneCountInString(l.Platform) > maxPlatformLength {
			return nil, dErrors.Newf(dErrors.CodeValidation, "content_links[%d]: platform must be at most %d characters", i, maxPlatformLength)
		}
		if utf8.RuneCountInString(l.Description) > maxNoteLength {
			return nil, dErrors.Newf(dErrors.CodeValidation, "content_links[%d]: description must be at most %d characters", i, maxNoteLength)
		}
		out = append(out, l)
	}
	return out, nil
}

func validateContentURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	return nil
}

// NormalizeNote trims an optional free-text note and bounds its length.
func NormalizeNote(field, note string) (string, error) {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxNoteLength {
		return "", dErrors.Newf(dErrors.CodeValidation, "%s must be at most %d characters", field, maxNoteLength)
	}
	return note, nil
}

// Filter narrows collaboration listings. Zero values match everything.
type Filter struct {
	SponsorID     id.UserID
	CreatorUserID id.UserID
	Status        Status
}

func (f Filter) Matches(c *Collaboration) bool {
	if !f.SponsorID.IsNil() && c.SponsorID != f.SponsorID {
		return false
	}
	if !f.CreatorUserID.IsNil() && c.CreatorUserID != f.CreatorUserID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

// View is a collaboration together with its derived progress.
type View struct {
	Collaboration *Collaboration `json:"collaboration"`
	Progress      int            `json:"progress"`
}

func NewView(c *Collaboration) (*View, error) {
	progress, err := c.Progress()
	if err != nil {
		return nil, err
	}
	return &View{Collaboration: c, Progress: progress}, nil
}
