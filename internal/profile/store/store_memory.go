package store

import (
	"context"
	"sort"
	"sync"

	"trustlane/internal/profile/models"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
)

// InMemory keeps profiles in a map guarded by a RWMutex. Reads return copies
// so callers can mutate freely until they call Update.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]models.Profile
	byUser   map[id.UserID]id.ProfileID
}

func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[id.ProfileID]models.Profile),
		byUser:   make(map[id.UserID]id.ProfileID),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byUser[p.UserID]; exists {
		return sentinel.ErrConflict
	}
	s.profiles[p.ID] = *p
	s.byUser[p.UserID] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// FindByIDForUpdate is FindByID; isolation comes from the tx runner's lock.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return s.FindByID(ctx, profileID)
}

func (s *InMemory) FindByUserID(_ context.Context, userID id.UserID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profileID, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.profiles[profileID]
	return &p, nil
}

func (s *InMemory) Update(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.profiles[p.ID] = *p
	return nil
}

// ListIDs returns every profile ID in creation order.
func (s *InMemory) ListIDs(_ context.Context) ([]id.ProfileID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		all = append(all, p)
	}
	sortByCreated(all)
	ids := make([]id.ProfileID, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// Search returns matching profiles, highest trust score first.
func (s *InMemory) Search(_ context.Context, filter models.SearchFilter) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Profile
	for _, p := range s.profiles {
		if filter.Matches(&p) {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrustScore != out[j].TrustScore {
			return out[i].TrustScore > out[j].TrustScore
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[models.VerificationStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.VerificationStatus]int)
	for _, p := range s.profiles {
		counts[p.VerificationStatus]++
	}
	return counts, nil
}

func sortByCreated(profiles []models.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].ID.String() < profiles[j].ID.String()
		}
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
}
