package store

import (
	"context"
	"sort"
	"sync"

	"trustlane/internal/verification/models"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
)

// InMemory stores verification requests and enforces one PENDING request
// per profile on Create.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.VerificationRequestID]*models.Request
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.VerificationRequestID]*models.Request)}
}

func (s *InMemory) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return sentinel.ErrConflict
	}
	if r.Status == models.StatusPending {
		for _, existing := range s.requests {
			if existing.ProfileID == r.ProfileID && existing.Status == models.StatusPending {
				return sentinel.ErrConflict
			}
		}
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.VerificationRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemory) FindByIDForUpdate(ctx context.Context, requestID id.VerificationRequestID) (*models.Request, error) {
	return s.FindByID(ctx, requestID)
}

func (s *InMemory) FindPendingByProfile(_ context.Context, profileID id.ProfileID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.ProfileID == profileID && r.Status == models.StatusPending {
			return r.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

// ListByStatus returns requests in status, oldest first. limit <= 0 means all.
func (s *InMemory) ListByStatus(_ context.Context, status models.Status, limit int) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, r := range s.requests {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	sortOldestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByProfile returns a profile's requests, newest first.
func (s *InMemory) ListByProfile(_ context.Context, profileID id.ProfileID) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, r := range s.requests {
		if r.ProfileID == profileID {
			out = append(out, r.Clone())
		}
	}
	sortOldestFirst(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *InMemory) CountByStatus(_ context.Context, status models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func sortOldestFirst(rs []*models.Request) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID.String() < rs[j].ID.String()
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
