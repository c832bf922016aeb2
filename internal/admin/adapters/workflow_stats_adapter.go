package adapters

import (
	"context"

	reportmodels "trustlane/internal/report/models"
	verificationmodels "trustlane/internal/verification/models"
)

type VerificationCounter interface {
	CountByStatus(ctx context.Context, status verificationmodels.Status) (int, error)
}

type ReportCounter interface {
	CountByStatus(ctx context.Context, status reportmodels.Status) (int, error)
}

// WorkflowStatsAdapter counts the work waiting on admins.
type WorkflowStatsAdapter struct {
	verifications VerificationCounter
	reports       ReportCounter
}

func NewWorkflowStatsAdapter(verifications VerificationCounter, reports ReportCounter) *WorkflowStatsAdapter {
	return &WorkflowStatsAdapter{verifications: verifications, reports: reports}
}

func (a *WorkflowStatsAdapter) PendingVerifications(ctx context.Context) (int, error) {
	return a.verifications.CountByStatus(ctx, verificationmodels.StatusPending)
}

// OpenReports counts reports that are not RESOLVED.
func (a *WorkflowStatsAdapter) OpenReports(ctx context.Context) (int, error) {
	total := 0
	for _, status := range []reportmodels.Status{reportmodels.StatusPending, reportmodels.StatusReviewed} {
		n, err := a.reports.CountByStatus(ctx, status)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
