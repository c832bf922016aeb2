package domain

import dErrors "trustlane/pkg/domain-errors"

// Role is the marketplace role of an authenticated actor.
type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleSponsor Role = "SPONSOR"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCreator, RoleSponsor, RoleAdmin:
		return r, nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported role %q", s)
	}
}

// Actor is the authenticated identity handed to the core by the gateway.
type Actor struct {
	UserID UserID
	Role   Role
}

func (a Actor) IsZero() bool {
	return a.UserID.IsNil()
}

func (a Actor) Is(role Role) bool {
	return a.Role == role
}
