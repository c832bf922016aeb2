// Package admin serves the admin dashboard: counts of profiles, pending
// verifications, open reports and collaborations.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/requestcontext"
)

type ProfileStats interface {
	ProfilesByStatus(ctx context.Context) (map[string]int, error)
}

type CollaborationStats interface {
	CollaborationsByStatus(ctx context.Context) (map[string]int, error)
}

type WorkflowStats interface {
	PendingVerifications(ctx context.Context) (int, error)
	OpenReports(ctx context.Context) (int, error)
}

// Stats is one dashboard snapshot. The counts are read independently and
// are not a consistent cut across stores.
type Stats struct {
	ProfilesByStatus       map[string]int `json:"profiles_by_status"`
	TotalProfiles          int            `json:"total_profiles"`
	PendingVerifications   int            `json:"pending_verifications"`
	OpenReports            int            `json:"open_reports"`
	CollaborationsByStatus map[string]int `json:"collaborations_by_status"`
	TotalCollaborations    int            `json:"total_collaborations"`
	GeneratedAt            time.Time      `json:"generated_at"`
}

type Service struct {
	profiles       ProfileStats
	collaborations CollaborationStats
	workflow       WorkflowStats
	logger         *slog.Logger
}

func NewService(profiles ProfileStats, collaborations CollaborationStats, workflow WorkflowStats, logger *slog.Logger) (*Service, error) {
	if profiles == nil || collaborations == nil || workflow == nil {
		return nil, errors.New("admin stats sources are required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		profiles:       profiles,
		collaborations: collaborations,
		workflow:       workflow,
		logger:         logger,
	}, nil
}

// Dashboard gathers every count concurrently.
func (s *Service) Dashboard(ctx context.Context, actor id.Actor) (*Stats, error) {
	if !actor.Is(id.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "requires ADMIN role")
	}
	stats := &Stats{GeneratedAt: requestcontext.Now(ctx)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.profiles.ProfilesByStatus(gctx)
		if err != nil {
			return err
		}
		stats.ProfilesByStatus = counts
		stats.TotalProfiles = sum(counts)
		return nil
	})
	g.Go(func() error {
		counts, err := s.collaborations.CollaborationsByStatus(gctx)
		if err != nil {
			return err
		}
		stats.CollaborationsByStatus = counts
		stats.TotalCollaborations = sum(counts)
		return nil
	})
	g.Go(func() error {
		n, err := s.workflow.PendingVerifications(gctx)
		stats.PendingVerifications = n
		return err
	})
	g.Go(func() error {
		n, err := s.workflow.OpenReports(gctx)
		stats.OpenReports = n
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "failed to build admin dashboard", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dashboard stats")
	}
	return stats, nil
}

func sum(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
