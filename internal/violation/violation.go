// Package violation defines the record of a 2:1-balance violation exchanged
// between partitions during the butterfly aggregation phase.
package violation

import (
	"github.com/dreamware/treebalancer/internal/spatialkey"
)

// Violation records that a local leaf and a ghost leaf owned by a remote
// partition differ in refinement level by more than one, breaking the
// 2:1-balance invariant. Violations are immutable value records; the
// aggregator copies them across partition boundaries and never mutates a
// field after construction.
type Violation struct {
	LocalKey   spatialkey.Key
	GhostKey   spatialkey.Key
	LocalLevel int
	GhostLevel int
	OwnerRank  int
	TreeID     int64
}

// Key is the dedup key used by the aggregator's map: (local-key,
// ghost-key). The first-seen value wins for every other field.
type Key struct {
	Local spatialkey.Key
	Ghost spatialkey.Key
}

// DedupKey returns v's position in a dedup set.
func (v Violation) DedupKey() Key {
	return Key{Local: v.LocalKey, Ghost: v.GhostKey}
}

// OutOfBalance reports whether the level difference recorded on v still
// exceeds the 2:1 invariant's threshold of one. Constructors of Violation
// are expected to only ever produce violations for which this is true;
// forest.SimpleBalanceChecker uses this method to filter candidate pairs,
// and tests use it to check the invariant.
func (v Violation) OutOfBalance() bool {
	d := v.LocalLevel - v.GhostLevel
	if d < 0 {
		d = -d
	}
	return d > 1
}
