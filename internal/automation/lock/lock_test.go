package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustlane/pkg/platform/sentinel"
)

func TestInMemoryAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("second holder is refused until release", func(t *testing.T) {
		l := NewInMemory()
		release, err := l.Acquire(ctx, "job", time.Minute)
		require.NoError(t, err)

		_, err = l.Acquire(ctx, "job", time.Minute)
		assert.ErrorIs(t, err, sentinel.ErrLockHeld)

		require.NoError(t, release(ctx))
		_, err = l.Acquire(ctx, "job", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewInMemory()
		_, err := l.Acquire(ctx, "a", time.Minute)
		require.NoError(t, err)
		_, err = l.Acquire(ctx, "b", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("expired lease can be taken over", func(t *testing.T) {
		l := NewInMemory()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		staleRelease, err := l.Acquire(ctx, "job", time.Minute)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = l.Acquire(ctx, "job", time.Minute)
		require.NoError(t, err)

		require.NoError(t, staleRelease(ctx))
		_, err = l.Acquire(ctx, "job", time.Minute)
		assert.ErrorIs(t, err, sentinel.ErrLockHeld, "a stale release must not free the new holder's lease")
	})
}
