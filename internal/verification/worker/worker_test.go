package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustlane/internal/verification/models"
	id "trustlane/pkg/domain"
)

type fakeEvaluator struct {
	mu   sync.Mutex
	seen []id.VerificationRequestID
	err  error
	done chan struct{}
}

func (f *fakeEvaluator) AutoEvaluate(_ context.Context, requestID id.VerificationRequestID) (models.Outcome, error) {
	f.mu.Lock()
	f.seen = append(f.seen, requestID)
	f.mu.Unlock()
	f.done <- struct{}{}
	if f.err != nil {
		return "", f.err
	}
	return models.OutcomeStillPending, nil
}

func TestEnqueue_NeverBlocks(t *testing.T) {
	w := New(1)
	assert.True(t, w.Enqueue(id.NewVerificationRequestID()))
	assert.False(t, w.Enqueue(id.NewVerificationRequestID()))
	assert.Equal(t, 1, w.Pending())
}

func TestRun_EvaluatesQueuedRequests(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "evaluation errors keep the pool running", err: errors.New("store down")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			eval := &fakeEvaluator{err: tc.err, done: make(chan struct{}, 4)}
			w := New(4, WithWorkers(2))
			first, second := id.NewVerificationRequestID(), id.NewVerificationRequestID()
			require.True(t, w.Enqueue(first))
			require.True(t, w.Enqueue(second))

			ctx, cancel := context.WithCancel(context.Background())
			runDone := make(chan error, 1)
			go func() { runDone <- w.Run(ctx, eval) }()

			for range 2 {
				select {
				case <-eval.done:
				case <-time.After(2 * time.Second):
					t.Fatal("evaluation did not run")
				}
			}
			cancel()
			require.NoError(t, <-runDone)

			eval.mu.Lock()
			defer eval.mu.Unlock()
			assert.ElementsMatch(t, []id.VerificationRequestID{first, second}, eval.seen)
		})
	}
}

func TestRun_DelayIsCancellable(t *testing.T) {
	eval := &fakeEvaluator{done: make(chan struct{}, 1)}
	w := New(1, WithDelay(time.Hour))
	require.True(t, w.Enqueue(id.NewVerificationRequestID()))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(ctx, eval) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Empty(t, eval.seen)
}
