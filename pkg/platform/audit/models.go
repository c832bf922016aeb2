package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events that settle disputes later: verification
	// decisions, payment release, cancellations. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers anomaly flags and access violations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity and batch runs. Can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	ActorID     string
	SubjectType string
	Subject     string
	Action      string
	Decision    string
	Reason      string
	RequestID   string
}

type AuditEvent string

const (
	// Verification events
	EventVerificationSubmitted    AuditEvent = "verification_submitted"
	EventVerificationAutoApproved AuditEvent = "verification_auto_approved"
	EventVerificationDecided      AuditEvent = "verification_decided"

	// Collaboration events
	EventCollaborationRequested    AuditEvent = "collaboration_requested"
	EventCollaborationRequestReply AuditEvent = "collaboration_request_answered"
	EventCollaborationStarted      AuditEvent = "collaboration_started"
	EventCollaborationTransitioned AuditEvent = "collaboration_transitioned"
	EventPaymentReleased           AuditEvent = "payment_released"

	// Profile events
	EventProfileCreated AuditEvent = "profile_created"
	EventProfileUpdated AuditEvent = "profile_updated"

	// Report events
	EventReportCreated  AuditEvent = "report_created"
	EventReportReviewed AuditEvent = "report_reviewed"

	// Automation events
	EventAutomationRun AuditEvent = "automation_run"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationAutoApproved: CategoryCompliance,
	EventVerificationDecided:      CategoryCompliance,
	EventCollaborationStarted:     CategoryCompliance,
	EventPaymentReleased:          CategoryCompliance,
	EventReportReviewed:           CategoryCompliance,

	EventReportCreated: CategorySecurity,

	EventVerificationSubmitted:     CategoryOperations,
	EventCollaborationRequested:    CategoryOperations,
	EventCollaborationRequestReply: CategoryOperations,
	EventCollaborationTransitioned: CategoryOperations,
	EventProfileCreated:            CategoryOperations,
	EventProfileUpdated:            CategoryOperations,
	EventAutomationRun:             CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
