package tx

import (
	"context"
	"sync"
	"time"

	dErrors "trustlane/pkg/domain-errors"
)

type heldKey struct{ runner *InMemory }

// InMemory serialises callbacks behind a single lock for in-memory stores.
// It gives isolation only. There is no rollback: when a callback returns an
// error, every store write it made before failing stays in place, so callers
// run their reads and checks before the first write. Nested calls on the same
// runner reuse the held lock.
type InMemory struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewInMemory() *InMemory {
	return &InMemory{timeout: defaultTxTimeout}
}

func (t *InMemory) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(heldKey{t}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(context.WithValue(ctx, heldKey{t}, true))
}
