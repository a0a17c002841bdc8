package forest

import (
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

// SimpleBalanceChecker is a reference BalanceChecker. Lacking real mesh
// geometry, it approximates adjacency by ancestry: a local leaf and a
// ghost leaf are treated as neighbors if one is an ancestor of the other
// or they share a common ancestor at the shallower of their two levels,
// which is the cheapest overlap proxy that still produces violations an
// octree's real face-adjacency test would also flag.
type SimpleBalanceChecker struct{}

// FindViolations implements BalanceChecker.
func (SimpleBalanceChecker) FindViolations(trees []SpatialIndex, ghosts []GhostElement) ([]violation.Violation, error) {
	byTree := make(map[int64][]GhostElement)
	for _, g := range ghosts {
		byTree[g.TreeID] = append(byTree[g.TreeID], g)
	}

	var out []violation.Violation
	for _, tree := range trees {
		candidates := byTree[tree.TreeID()]
		if len(candidates) == 0 {
			continue
		}
		for _, local := range tree.Leaves() {
			for _, ghost := range candidates {
				if !related(local, ghost.Key) {
					continue
				}
				v := violation.Violation{
					LocalKey:   local,
					GhostKey:   ghost.Key,
					LocalLevel: local.Level(),
					GhostLevel: ghost.Key.Level(),
					OwnerRank:  ghost.OwnerRank,
					TreeID:     tree.TreeID(),
				}
				if v.OutOfBalance() {
					out = append(out, v)
				}
			}
		}
	}
	return out, nil
}

// Related reports whether a and b share a common ancestor at the
// shallower of their two levels, i.e. one descends from the region the
// other occupies. Exported so transport-layer request handlers can
// select which local leaves to hand back as ghost elements for a given
// set of requested boundary keys without duplicating this adjacency
// proxy.
func Related(a, b spatialkey.Key) bool {
	return related(a, b)
}

func related(a, b spatialkey.Key) bool {
	shallow, deep := a, b
	if b.Level() < a.Level() {
		shallow, deep = b, a
	}
	for deep.Level() > shallow.Level() {
		parent, ok := deep.Parent()
		if !ok {
			return false
		}
		deep = parent
	}
	return deep == shallow
}
