package handler

import (
	"strings"

	"trustlane/internal/profile/models"
	dErrors "trustlane/pkg/domain-errors"
)

// ProfileRequest is the body for creating or editing a profile.
type ProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Category    string `json:"category"`
}

func (r *ProfileRequest) Validate() error {
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Bio = strings.TrimSpace(r.Bio)
	r.Category = strings.TrimSpace(r.Category)
	if r.DisplayName == "" && r.Bio == "" && r.Category == "" {
		return dErrors.New(dErrors.CodeValidation, "at least one of display_name, bio or category is required")
	}
	return nil
}

func (r *ProfileRequest) details() models.Details {
	return models.Details{DisplayName: r.DisplayName, Bio: r.Bio, Category: r.Category}
}
