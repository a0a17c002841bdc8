// Package shard maps trees onto partition ranks and tracks per-tree
// balancing state. See doc.go for complete package documentation.
package shard

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// State is the operational state of one tree shard, gating which balance
// operations may touch it.
type State string

const (
	// StateActive means the tree accepts rebalances and serves ghost
	// requests normally.
	StateActive State = "active"

	// StateRebalancing means a balance cycle currently holds the tree.
	// Ghost requests still read it; a second concurrent rebalance must
	// wait for the cycle to finish.
	StateRebalancing State = "rebalancing"

	// StateRecovering means the owning partition is running a recovery
	// strategy. The tree serves reads but defers structural changes
	// until recovery completes.
	StateRecovering State = "recovering"
)

// OwnerRank returns the rank that owns treeID in an arena of p
// partitions, by FNV-1a hash of the tree id. Every peer computes the
// same owner for the same tree without coordination, which is what lets
// a refinement request be routed without a directory service. Returns
// -1 when p <= 0.
func OwnerRank(treeID int64, p int) int {
	if p <= 0 {
		return -1
	}
	h := fnv.New32a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(treeID))
	h.Write(buf[:])
	return int(h.Sum32() % uint32(p))
}

// LocalTreeIDs returns, in ascending order, the ids in [0, totalTrees)
// that OwnerRank assigns to myRank. cmd/balancer seeds one tree per
// returned id at startup.
func LocalTreeIDs(totalTrees, p, myRank int) []int64 {
	var out []int64
	for id := int64(0); id < int64(totalTrees); id++ {
		if OwnerRank(id, p) == myRank {
			out = append(out, id)
		}
	}
	return out
}

// Stats counts what balancing has done to one tree shard. Counters are
// atomic so a metrics scrape never blocks a balance cycle.
type Stats struct {
	Rebalances    uint64    // Completed rebalance passes.
	Splits        uint64    // Leaves split across all passes.
	LastRebalance time.Time // Zero if the tree has never been rebalanced.
}

// TreeShard is the bookkeeping record for one locally owned tree: its
// assignment, its current state, and its cumulative balancing stats.
type TreeShard struct {
	id   int64
	rank int

	rebalances atomic.Uint64
	splits     atomic.Uint64

	mu            sync.Mutex
	state         State
	lastRebalance time.Time
}

// NewTreeShard constructs an Active TreeShard for treeID owned by rank.
func NewTreeShard(treeID int64, rank int) *TreeShard {
	return &TreeShard{id: treeID, rank: rank, state: StateActive}
}

// TreeID returns the shard's tree id.
func (t *TreeShard) TreeID() int64 { return t.id }

// Rank returns the rank that owns this shard.
func (t *TreeShard) Rank() int { return t.rank }

// State returns the shard's current state.
func (t *TreeShard) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState moves the shard to state.
func (t *TreeShard) SetState(state State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// RecordRebalance folds one completed rebalance pass into the shard's
// stats.
func (t *TreeShard) RecordRebalance(splits int, at time.Time) {
	t.rebalances.Add(1)
	if splits > 0 {
		t.splits.Add(uint64(splits))
	}
	t.mu.Lock()
	t.lastRebalance = at
	t.mu.Unlock()
}

// Stats returns a snapshot of the shard's counters.
func (t *TreeShard) Stats() Stats {
	t.mu.Lock()
	last := t.lastRebalance
	t.mu.Unlock()
	return Stats{
		Rebalances:    t.rebalances.Load(),
		Splits:        t.splits.Load(),
		LastRebalance: last,
	}
}

// Map holds every TreeShard a partition owns, keyed by tree id.
type Map struct {
	mu     sync.RWMutex
	shards map[int64]*TreeShard
}

// NewMap builds a Map with one Active TreeShard per id in treeIDs, all
// owned by rank.
func NewMap(rank int, treeIDs []int64) *Map {
	shards := make(map[int64]*TreeShard, len(treeIDs))
	for _, id := range treeIDs {
		shards[id] = NewTreeShard(id, rank)
	}
	return &Map{shards: shards}
}

// Get returns the shard for treeID, or nil if this partition doesn't
// own it.
func (m *Map) Get(treeID int64) *TreeShard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shards[treeID]
}

// SetAll moves every shard to state, bracketing a balance cycle or a
// recovery pass.
func (m *Map) SetAll(state State) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shards {
		s.SetState(state)
	}
}

// Len returns the number of locally owned shards.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shards)
}
