package models

import (
	"time"

	"github.com/google/uuid"

	id "trustlane/pkg/domain"
)

// Type names the event a notification reports.
type Type string

const (
	TypeRequestSent            Type = "REQUEST_SENT"
	TypeRequestAccepted        Type = "REQUEST_ACCEPTED"
	TypeRequestRejected        Type = "REQUEST_REJECTED"
	TypeDeliverablesSet        Type = "DELIVERABLES_SET"
	TypeContentSubmitted       Type = "CONTENT_SUBMITTED"
	TypeContentApproved        Type = "CONTENT_APPROVED"
	TypeRevisionRequested      Type = "REVISION_REQUESTED"
	TypeCollaborationCompleted Type = "COLLABORATION_COMPLETED"
	TypeCollaborationCancelled Type = "COLLABORATION_CANCELLED"
	TypeVerificationApproved   Type = "VERIFICATION_APPROVED"
	TypeVerificationRejected   Type = "VERIFICATION_REJECTED"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSent, TypeRequestAccepted, TypeRequestRejected,
		TypeDeliverablesSet, TypeContentSubmitted, TypeContentApproved,
		TypeRevisionRequested, TypeCollaborationCompleted, TypeCollaborationCancelled,
		TypeVerificationApproved, TypeVerificationRejected:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	return string(t)
}

// Notification is an in-app message addressed to one user. RelatedID points at
// the collaboration, request or verification the event concerns.
type Notification struct {
	ID        id.NotificationID `json:"id"`
	UserID    id.UserID         `json:"user_id"`
	Type      Type              `json:"type"`
	Message   string            `json:"message"`
	RelatedID uuid.UUID         `json:"related_id"`
	IsRead    bool              `json:"is_read"`
	CreatedAt time.Time         `json:"created_at"`
}

func New(userID id.UserID, typ Type, message string, relatedID uuid.UUID, now time.Time) *Notification {
	return &Notification{
		ID:        id.NewNotificationID(),
		UserID:    userID,
		Type:      typ,
		Message:   message,
		RelatedID: relatedID,
		CreatedAt: now,
	}
}

func (n *Notification) MarkRead() {
	n.IsRead = true
}

// ListFilter narrows a user's notifications.
type ListFilter struct {
	UnreadOnly bool
	Limit      int
}
