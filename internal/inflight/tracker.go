// Package inflight counts active balance operations. The recovery
// coordinator waits for the count to drain before running a strategy,
// and the fault-tolerant forest decorator increments it around every
// cycle it forwards.
package inflight

import (
	"context"
	"sync"
)

// Tracker counts in-flight balance operations with a counter and
// condition variable. It is an
// owned value shared between the recovery BarrierStrategy and the
// fault-tolerant forest decorator, never a package-level singleton.
type Tracker struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

// New constructs an empty Tracker.
func New() *Tracker {
	t := &Tracker{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Begin registers the start of one balance operation. Callers should
// defer End() immediately after a successful Begin().
func (t *Tracker) Begin() {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()
}

// End registers the completion of one balance operation.
func (t *Tracker) End() {
	t.mu.Lock()
	t.count--
	if t.count < 0 {
		t.count = 0
	}
	if t.count == 0 {
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

// Count returns the current number of in-flight operations.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// AwaitQuiescence blocks until Count() reaches zero or ctx is done. It is
// the primitive the barrier-based recovery strategy uses to pause the
// balancer before running its strategy body.
func (t *Tracker) AwaitQuiescence(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.count > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t.cond.Wait()
	}
	return nil
}
