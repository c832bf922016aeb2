package adapters

import (
	"context"

	collabmodels "trustlane/internal/collaboration/models"
	profilemodels "trustlane/internal/profile/models"
)

// ProfileCounter is implemented by the profile stores.
type ProfileCounter interface {
	CountByStatus(ctx context.Context) (map[profilemodels.VerificationStatus]int, error)
}

// ProfileStatsAdapter reports profile counts keyed by verification status name.
type ProfileStatsAdapter struct {
	store ProfileCounter
}

func NewProfileStatsAdapter(store ProfileCounter) *ProfileStatsAdapter {
	return &ProfileStatsAdapter{store: store}
}

// ProfilesByStatus always includes every status, zero when absent.
func (a *ProfileStatsAdapter) ProfilesByStatus(ctx context.Context) (map[string]int, error) {
	counts, err := a.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]int{
		string(profilemodels.StatusUnverified): 0,
		string(profilemodels.StatusPending):    0,
		string(profilemodels.StatusVerified):   0,
		string(profilemodels.StatusRejected):   0,
	}
	for status, n := range counts {
		out[string(status)] = n
	}
	return out, nil
}

// CollaborationCounter is implemented by the collaboration stores.
type CollaborationCounter interface {
	CountCollaborationsByStatus(ctx context.Context) (map[collabmodels.Status]int, error)
}

// CollaborationStatsAdapter reports collaboration counts keyed by status name.
type CollaborationStatsAdapter struct {
	store CollaborationCounter
}

func NewCollaborationStatsAdapter(store CollaborationCounter) *CollaborationStatsAdapter {
	return &CollaborationStatsAdapter{store: store}
}

// CollaborationsByStatus always includes every status, zero when absent.
func (a *CollaborationStatsAdapter) CollaborationsByStatus(ctx context.Context) (map[string]int, error) {
	counts, err := a.store.CountCollaborationsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]int{
		string(collabmodels.StatusActive):           0,
		string(collabmodels.StatusDeliverablesSet):  0,
		string(collabmodels.StatusContentSubmitted): 0,
		string(collabmodels.StatusContentApproved):  0,
		string(collabmodels.StatusCompleted):        0,
		string(collabmodels.StatusCancelled):        0,
	}
	for status, n := range counts {
		out[string(status)] = n
	}
	return out, nil
}
