package forest

import (
	"context"

	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

// RebalanceResult summarizes one SpatialIndex.Rebalance call.
type RebalanceResult struct {
	SplitCount int  // Leaves subdivided to restore 2:1 balance.
	Converged  bool // True if no further local splits were needed.
}

// SpatialIndex is one octree or tetree owned by this partition. Its
// internal node layout, geometry, and entity storage are entirely the
// implementation's business; the coordinator only ever calls Rebalance
// and reads Leaves/TreeID.
type SpatialIndex interface {
	// TreeID identifies this tree within the owning partition's forest.
	TreeID() int64

	// Leaves returns the current leaf set. Callers must not mutate the
	// returned slice.
	Leaves() []spatialkey.Key

	// Rebalance applies whatever local splits are needed so every pair
	// of sibling leaves differs by at most one refinement level, and
	// reports how many splits it performed.
	Rebalance(ctx context.Context) (RebalanceResult, error)
}

// Forest is the set of trees one partition owns; a partition may own
// more than one tree.
type Forest interface {
	Trees() []SpatialIndex
	TreeCount() int
}

// GhostElement is a read-only copy of a remote leaf, held locally so a
// BalanceChecker can compare local leaves against a neighbor's boundary
// without a network round trip per check.
type GhostElement struct {
	Key       spatialkey.Key
	TreeID    int64
	OwnerRank int
	Content   []byte
}

// BalanceChecker finds 2:1-balance violations between a partition's own
// trees and the ghost layer received from its neighbors. It is injected
// into the orchestrator rather than owned by it, since violation
// geometry is mesh-library-specific.
type BalanceChecker interface {
	FindViolations(trees []SpatialIndex, ghosts []GhostElement) ([]violation.Violation, error)
}
