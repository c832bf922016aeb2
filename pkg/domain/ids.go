package domain

import (
	"github.com/google/uuid"

	dErrors "trustlane/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so IDs of different entities cannot be
// mixed up at compile time. Construct from external input with the Parse*
// functions; they reject empty, malformed and nil UUIDs.
type (
	// UserID identifies an account (creator, sponsor or admin).
	UserID uuid.UUID
	// ProfileID identifies a creator profile.
	ProfileID uuid.UUID
	// VerificationRequestID identifies a verification request.
	VerificationRequestID uuid.UUID
	// CollaborationRequestID identifies a sponsor-to-creator collaboration request.
	CollaborationRequestID uuid.UUID
	// CollaborationID identifies a paid engagement.
	CollaborationID uuid.UUID
	// CampaignID identifies a sponsor campaign.
	CampaignID uuid.UUID
	// ReportID identifies an admin report.
	ReportID uuid.UUID
	// NotificationID identifies an in-app notification.
	NotificationID uuid.UUID
)

func parseID[T ~[16]byte](s, kind string) (T, error) {
	var zero T
	if s == "" {
		return zero, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return zero, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if u == uuid.Nil {
		return zero, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", kind)
	}
	return T(u), nil
}

func unmarshalID[T ~[16]byte](dst *T, text []byte, kind string) error {
	if len(text) == 0 {
		*dst = T(uuid.Nil)
		return nil
	}
	parsed, err := parseID[T](string(text), kind)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func ParseUserID(s string) (UserID, error) { return parseID[UserID](s, "user ID") }

func NewUserID() UserID { return UserID(uuid.New()) }

func (i UserID) String() string { return uuid.UUID(i).String() }

func (i UserID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i UserID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *UserID) UnmarshalText(text []byte) error { return unmarshalID(i, text, "user ID") }

func ParseProfileID(s string) (ProfileID, error) { return parseID[ProfileID](s, "profile ID") }

func NewProfileID() ProfileID { return ProfileID(uuid.New()) }

func (i ProfileID) String() string { return uuid.UUID(i).String() }

func (i ProfileID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i ProfileID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *ProfileID) UnmarshalText(text []byte) error { return unmarshalID(i, text, "profile ID") }

func ParseVerificationRequestID(s string) (VerificationRequestID, error) {
	return parseID[VerificationRequestID](s, "verification request ID")
}

func NewVerificationRequestID() VerificationRequestID { return VerificationRequestID(uuid.New()) }

func (i VerificationRequestID) String() string { return uuid.UUID(i).String() }

func (i VerificationRequestID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i VerificationRequestID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *VerificationRequestID) UnmarshalText(text []byte) error {
	return unmarshalID(i, text, "verification request ID")
}

func ParseCollaborationRequestID(s string) (CollaborationRequestID, error) {
	return parseID[CollaborationRequestID](s, "collaboration request ID")
}

func NewCollaborationRequestID() CollaborationRequestID { return CollaborationRequestID(uuid.New()) }

func (i CollaborationRequestID) String() string { return uuid.UUID(i).String() }

func (i CollaborationRequestID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i CollaborationRequestID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *CollaborationRequestID) UnmarshalText(text []byte) error {
	return unmarshalID(i, text, "collaboration request ID")
}

func ParseCollaborationID(s string) (CollaborationID, error) {
	return parseID[CollaborationID](s, "collaboration ID")
}

func NewCollaborationID() CollaborationID { return CollaborationID(uuid.New()) }

func (i CollaborationID) String() string { return uuid.UUID(i).String() }

func (i CollaborationID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i CollaborationID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *CollaborationID) UnmarshalText(text []byte) error {
	return unmarshalID(i, text, "collaboration ID")
}

func ParseCampaignID(s string) (CampaignID, error) { return parseID[CampaignID](s, "campaign ID") }

func NewCampaignID() CampaignID { return CampaignID(uuid.New()) }

func (i CampaignID) String() string { return uuid.UUID(i).String() }

func (i CampaignID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i CampaignID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *CampaignID) UnmarshalText(text []byte) error { return unmarshalID(i, text, "campaign ID") }

func ParseReportID(s string) (ReportID, error) { return parseID[ReportID](s, "report ID") }

func NewReportID() ReportID { return ReportID(uuid.New()) }

func (i ReportID) String() string { return uuid.UUID(i).String() }

func (i ReportID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i ReportID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *ReportID) UnmarshalText(text []byte) error { return unmarshalID(i, text, "report ID") }

func ParseNotificationID(s string) (NotificationID, error) {
	return parseID[NotificationID](s, "notification ID")
}

func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

func (i NotificationID) String() string { return uuid.UUID(i).String() }

func (i NotificationID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i NotificationID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *NotificationID) UnmarshalText(text []byte) error {
	return unmarshalID(i, text, "notification ID")
}
