package handler

import (
	"strings"
	"time"

	"trustlane/internal/collaboration/models"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
)

// SendRequest invites a creator profile to a campaign.
type SendRequest struct {
	CampaignID       string `json:"campaign_id"`
	CampaignName     string `json:"campaign_name"`
	CreatorProfileID string `json:"creator_profile_id"`
	Message          string `json:"message"`

	invitation models.Invitation
}

func (r *SendRequest) Validate() error {
	campaignID, err := id.ParseCampaignID(strings.TrimSpace(r.CampaignID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "campaign_id must be a valid ID")
	}
	profileID, err := id.ParseProfileID(strings.TrimSpace(r.CreatorProfileID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "creator_profile_id must be a valid ID")
	}
	if strings.TrimSpace(r.CampaignName) == "" {
		return dErrors.New(dErrors.CodeValidation, "campaign_name is required")
	}
	r.invitation = models.Invitation{
		CampaignID:       campaignID,
		CampaignName:     r.CampaignName,
		CreatorProfileID: profileID,
		Message:          r.Message,
	}
	return nil
}

type DeliverablesRequest struct {
	Description  string    `json:"description"`
	Requirements []string  `json:"requirements"`
	Deadline     time.Time `json:"deadline"`

	input models.DeliverablesInput
}

func (r *DeliverablesRequest) Validate() error {
	in, err := models.DeliverablesInput{
		Description:  r.Description,
		Requirements: r.Requirements,
		Deadline:     r.Deadline,
	}.Normalize()
	if err != nil {
		return err
	}
	r.input = in
	return nil
}

type ContentLinkRequest struct {
	URL         string `json:"url"`
	Platform    string `json:"platform"`
	Description string `json:"description"`
}

// ContentRequest carries submitted content references. Clients cannot set
// submission timestamps.
type ContentRequest struct {
	ContentLinks []ContentLinkRequest `json:"content_links"`

	links []models.ContentInput
}

func (r *ContentRequest) Validate() error {
	in := make([]models.ContentInput, 0, len(r.ContentLinks))
	for _, l := range r.ContentLinks {
		in = append(in, models.ContentInput{URL: l.URL, Platform: l.Platform, Description: l.Description})
	}
	links, err := models.NormalizeContent(in)
	if err != nil {
		return err
	}
	r.links = links
	return nil
}

// NoteRequest is the optional body of approve, revision, complete and cancel.
type NoteRequest struct {
	Note string `json:"note"`
}

func (r *NoteRequest) Validate() error {
	note, err := models.NormalizeNote("note", r.Note)
	if err != nil {
		return err
	}
	r.Note = note
	return nil
}
