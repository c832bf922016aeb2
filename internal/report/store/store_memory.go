package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"trustlane/internal/report/models"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	reports map[id.ReportID]*models.Report
}

func NewInMemory() *InMemory {
	return &InMemory{reports: make(map[id.ReportID]*models.Report)}
}

func clone(r *models.Report) *models.Report {
	cp := *r
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

func (s *InMemory) Create(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.reports[r.ID] = clone(r)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

func (s *InMemory) FindByIDForUpdate(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	return s.FindByID(ctx, reportID)
}

func (s *InMemory) Update(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.reports[r.ID] = clone(r)
	return nil
}

// List returns matching reports, newest first.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Report
	for _, r := range s.reports {
		if filter.Matches(r) {
			out = append(out, clone(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ExistsForProfileReason reports whether any report on the profile has a
// reason containing category, whatever its status.
func (s *InMemory) ExistsForProfileReason(_ context.Context, profileID id.ProfileID, category string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.ProfileID == profileID && strings.Contains(r.Reason, category) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) CountByStatus(_ context.Context, status models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reports {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}
