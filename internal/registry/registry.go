package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dreamware/treebalancer/internal/spatialkey"
)

// Registry is one partition's view of the cluster: an immutable view of (my-rank, P, neighbor-set) plus the Barrier
// primitive and pending-refinement bookkeeping. Every partition process
// owns exactly one Registry.
//
// Thread safety: Partitions() returns a defensive copy; PendingRefinements
// and RequestRefinement use an atomic counter; Barrier delegates to the
// shared *Barrier, which has its own locking.
type Registry struct {
	myRank     int
	partitions []Partition
	barrier    *Barrier
	notify     func(round int)

	pending atomic.Int64

	mu            sync.Mutex
	requestedKeys []spatialkey.Key
}

// New constructs a Registry for the partition at myRank within the given
// partition list. barrier is shared across every partition created
// together (the in-process transport constructs one Barrier and hands it
// to every simulated partition's Registry; the HTTP transport's barrier
// broadcasts arrivals over the wire and wraps a private Barrier per
// process). notify, if non-nil, is called by Barrier-driven code after
// recording a local arrival so the transport can propagate it to peers;
// it may be nil for a single-partition (P=1) registry, which never blocks
// on a barrier with more than one participant.
func New(myRank int, partitions []Partition, barrier *Barrier, notify func(round int)) *Registry {
	cp := make([]Partition, len(partitions))
	copy(cp, partitions)
	return &Registry{
		myRank:     myRank,
		partitions: cp,
		barrier:    barrier,
		notify:     notify,
	}
}

// CurrentRank returns this process's rank.
func (r *Registry) CurrentRank() int {
	return r.myRank
}

// PartitionCount returns P, the total number of partitions.
func (r *Registry) PartitionCount() int {
	return len(r.partitions)
}

// Partitions returns a defensive copy of the full partition list.
func (r *Registry) Partitions() []Partition {
	cp := make([]Partition, len(r.partitions))
	copy(cp, r.partitions)
	return cp
}

// Self returns this process's own Partition record.
func (r *Registry) Self() Partition {
	return r.partitions[r.myRank]
}

// Neighbors returns every other rank in the cluster. The registry has no
// geometric notion of face-adjacency on its own (that lives in the
// external Forest/ghost-layer collaborator); it exposes the full peer set
// and leaves filtering by actual spatial adjacency to the caller.
func (r *Registry) Neighbors() []int {
	out := make([]int, 0, len(r.partitions)-1)
	for _, p := range r.partitions {
		if p.Rank != r.myRank {
			out = append(out, p.Rank)
		}
	}
	return out
}

// Barrier blocks until every partition has called Barrier for round, or
// ctx is done. A single-partition registry (P=1) returns immediately:
// there is no peer to wait for.
func (r *Registry) Barrier(ctx context.Context, round int) error {
	if len(r.partitions) <= 1 {
		return nil
	}
	gen := r.barrier.Arrive(round, r.myRank)
	if r.notify != nil {
		r.notify(round)
	}
	return r.barrier.Wait(ctx, round, gen)
}

// RequestRefinement records that the leaf at key needs further
// refinement, incrementing PendingRefinements.
func (r *Registry) RequestRefinement(key spatialkey.Key) {
	r.mu.Lock()
	r.requestedKeys = append(r.requestedKeys, key)
	r.mu.Unlock()
	r.pending.Add(1)
}

// PendingRefinements returns the number of keys requested via
// RequestRefinement that have not yet been cleared by ClearPending.
func (r *Registry) PendingRefinements() int {
	return int(r.pending.Load())
}

// ClearPending resets the pending-refinement count and returns the keys
// that were pending, for a caller (typically the orchestrator, at the end
// of a balance cycle) that wants to consume and clear them atomically.
func (r *Registry) ClearPending() []spatialkey.Key {
	r.mu.Lock()
	keys := r.requestedKeys
	r.requestedKeys = nil
	r.mu.Unlock()
	r.pending.Store(0)
	return keys
}
