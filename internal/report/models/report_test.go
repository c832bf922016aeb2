package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
)

func TestNewReport(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("starts pending", func(t *testing.T) {
		r, err := NewReport(id.NewReportID(), id.NewProfileID(), " fake followers ", SourceManual, now)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, r.Status)
		assert.Equal(t, "fake followers", r.Reason)
		assert.True(t, r.IsOpen())
		assert.Nil(t, r.ReviewedAt)
	})

	t.Run("reason is required and bounded", func(t *testing.T) {
		_, err := NewReport(id.NewReportID(), id.NewProfileID(), "  ", SourceManual, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = NewReport(id.NewReportID(), id.NewProfileID(), strings.Repeat("x", maxReasonLength+1), SourceManual, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("automation reason carries its category", func(t *testing.T) {
		assert.True(t, strings.Contains(RejectedVerificationReason, RejectedVerificationCategory))
	})
}

func TestReview(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r, err := NewReport(id.NewReportID(), id.NewProfileID(), "spam", SourceManual, now)
	require.NoError(t, err)

	require.Error(t, r.CanReview(StatusPending), "cannot review back to pending")

	require.NoError(t, r.CanReview(StatusReviewed))
	r.ApplyReview(StatusReviewed, "looking into it", now.Add(time.Hour))
	require.NotNil(t, r.ReviewedAt)
	assert.Equal(t, now.Add(time.Hour), *r.ReviewedAt)

	err = r.CanReview(StatusReviewed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	require.NoError(t, r.CanReview(StatusResolved))
	r.ApplyReview(StatusResolved, "", now.Add(2*time.Hour))
	assert.Equal(t, "looking into it", r.AdminNotes, "empty notes keep the previous notes")
	assert.Equal(t, now.Add(time.Hour), *r.ReviewedAt, "reviewedAt is set once")
	assert.False(t, r.IsOpen())

	err = r.CanReview(StatusResolved)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was RESOLVED")
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("resolved")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, s)

	_, err = ParseStatus("closed")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
