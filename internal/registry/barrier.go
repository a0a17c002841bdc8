package registry

import (
	"context"
	"errors"
	"sync"
)

// ErrBarrierInterrupted is returned by Barrier.Wait when its context is
// cancelled before every partition arrives. An interrupted barrier is
// fatal for its round: the cancellation propagates back through the
// normal error return and the caller aborts the cycle.
var ErrBarrierInterrupted = errors.New("barrier interrupted")

// Barrier is a reusable, round-keyed rendezvous point: every partition
// must call Arrive for round r, from any goroutine, before any
// partition's Wait for that round returns. Rounds are independent of
// each other, so a slow arrival at round r never blocks a concurrent
// Wait on round r-1 or r+1. Round r happens-before round r+1, nothing
// stronger.
//
// Each round number is cyclic: once all partitions have arrived, the
// round's slot resets and its generation advances, so the next balance
// cycle can reuse the same round numbers. Wait is matched to the
// generation observed by the caller's own Arrive, which is why the two
// calls hand a token between them.
type Barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	slots map[int]*barrierSlot
	total int
}

type barrierSlot struct {
	gen     int
	arrived map[int]struct{}
}

// NewBarrier constructs a Barrier for a cluster of `total` partitions.
func NewBarrier(total int) *Barrier {
	b := &Barrier{
		slots: make(map[int]*barrierSlot),
		total: total,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *Barrier) slotLocked(round int) *barrierSlot {
	s, ok := b.slots[round]
	if !ok {
		s = &barrierSlot{arrived: make(map[int]struct{}, b.total)}
		b.slots[round] = s
	}
	return s
}

// Arrive records that rank has reached round and returns the round's
// current generation, the token Wait matches against. Duplicate arrivals
// of the same rank within a generation (e.g. a retried notification) are
// idempotent. When the last partition arrives, the round's slot resets
// for reuse and every waiter is released.
func (b *Barrier) Arrive(round, rank int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.slotLocked(round)
	gen := s.gen
	s.arrived[rank] = struct{}{}
	if len(s.arrived) >= b.total {
		s.gen++
		s.arrived = make(map[int]struct{}, b.total)
		b.cond.Broadcast()
	}
	return gen
}

// Wait blocks until the generation gen of round completes — every one of
// the `total` partitions has arrived — or ctx is done. gen is the token
// returned by this caller's own Arrive.
func (b *Barrier) Wait(ctx context.Context, round, gen int) error {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.slotLocked(round).gen > gen {
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrBarrierInterrupted
		default:
		}
		b.cond.Wait()
	}
}
