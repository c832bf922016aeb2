package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"trustlane/internal/collaboration/models"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
)

type campaignCreator struct {
	campaign id.CampaignID
	profile  id.ProfileID
}

// InMemory stores collaboration requests and collaborations. It enforces one
// request per (campaign, creator profile) and one collaboration per request.
type InMemory struct {
	mu             sync.RWMutex
	requests       map[id.CollaborationRequestID]*models.Request
	byCampaign     map[campaignCreator]id.CollaborationRequestID
	collaborations map[id.CollaborationID]*models.Collaboration
	byRequest      map[id.CollaborationRequestID]id.CollaborationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		requests:       make(map[id.CollaborationRequestID]*models.Request),
		byCampaign:     make(map[campaignCreator]id.CollaborationRequestID),
		collaborations: make(map[id.CollaborationID]*models.Collaboration),
		byRequest:      make(map[id.CollaborationRequestID]id.CollaborationID),
	}
}

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

func (s *InMemory) CreateRequest(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := campaignCreator{campaign: r.CampaignID, profile: r.CreatorProfileID}
	if _, exists := s.requests[r.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byCampaign[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *r
	s.requests[r.ID] = &cp
	s.byCampaign[key] = r.ID
	return nil
}

func (s *InMemory) FindRequestByID(_ context.Context, requestID id.CollaborationRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemory) FindRequestByIDForUpdate(ctx context.Context, requestID id.CollaborationRequestID) (*models.Request, error) {
	return s.FindRequestByID(ctx, requestID)
}

func (s *InMemory) UpdateRequest(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

// ListRequests returns matching requests, newest first.
func (s *InMemory) ListRequests(_ context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, r := range s.requests {
		if filter.Matches(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountAccepted counts requests the creator profile has accepted.
func (s *InMemory) CountAccepted(_ context.Context, profileID id.ProfileID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		if r.CreatorProfileID == profileID && r.Status == models.RequestAccepted {
			n++
		}
	}
	return n, nil
}

// LastRequestActivity returns the latest UpdatedAt across the profile's
// requests. ok is false when the profile has no requests.
func (s *InMemory) LastRequestActivity(_ context.Context, profileID id.ProfileID) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		last  time.Time
		found bool
	)
	for _, r := range s.requests {
		if r.CreatorProfileID != profileID {
			continue
		}
		if !found || r.UpdatedAt.After(last) {
			last = r.UpdatedAt
			found = true
		}
	}
	return last, found, nil
}

// -----------------------------------------------------------------------------
// Collaborations
// -----------------------------------------------------------------------------

func (s *InMemory) CreateCollaboration(_ context.Context, c *models.Collaboration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collaborations[c.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byRequest[c.RequestID]; exists {
		return sentinel.ErrConflict
	}
	s.collaborations[c.ID] = c.Clone()
	s.byRequest[c.RequestID] = c.ID
	return nil
}

func (s *InMemory) FindCollaborationByID(_ context.Context, collaborationID id.CollaborationID) (*models.Collaboration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collaborations[collaborationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemory) FindCollaborationByIDForUpdate(ctx context.Context, collaborationID id.CollaborationID) (*models.Collaboration, error) {
	return s.FindCollaborationByID(ctx, collaborationID)
}

func (s *InMemory) FindCollaborationByRequest(_ context.Context, requestID id.CollaborationRequestID) (*models.Collaboration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	collaborationID, ok := s.byRequest[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.collaborations[collaborationID].Clone(), nil
}

func (s *InMemory) UpdateCollaboration(_ context.Context, c *models.Collaboration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collaborations[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.collaborations[c.ID] = c.Clone()
	return nil
}

// ListCollaborations returns matching collaborations, newest first.
func (s *InMemory) ListCollaborations(_ context.Context, filter models.Filter) ([]*models.Collaboration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Collaboration
	for _, c := range s.collaborations {
		if filter.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountCollaborationsByStatus returns a count for every status present.
func (s *InMemory) CountCollaborationsByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Status]int)
	for _, c := range s.collaborations {
		out[c.Status]++
	}
	return out, nil
}
