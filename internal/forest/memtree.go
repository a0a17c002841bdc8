package forest

import (
	"context"
	"sort"
	"sync"

	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/storage"
)

// DefaultBranching is the child count InMemoryTree splits a leaf into.
// 8 models an octree. NewInMemoryTree always uses it; there is no option
// to construct an InMemoryTree with a different branching factor.
const DefaultBranching = 8

// InMemoryTree is a reference SpatialIndex: leaves are tracked as a bare
// key set, with per-leaf content delegated to a storage.Store. It
// enforces 2:1 balance among leaves whose regions overlap by ancestry;
// it has no notion of geometric face-adjacency across disjoint subtrees,
// since that requires a real mesh library this package does not attempt
// to be.
type InMemoryTree struct {
	store     storage.Store
	leaves    map[spatialkey.Key]struct{}
	mu        sync.RWMutex
	id        int64
	branching uint8
}

// NewInMemoryTree constructs an empty tree over store.
func NewInMemoryTree(id int64, store storage.Store) *InMemoryTree {
	return &InMemoryTree{
		id:        id,
		store:     store,
		leaves:    make(map[spatialkey.Key]struct{}),
		branching: DefaultBranching,
	}
}

// TreeID implements SpatialIndex.
func (t *InMemoryTree) TreeID() int64 { return t.id }

// AddLeaf inserts key into the leaf set. content, if non-nil, is stored
// against the leaf's canonical byte encoding.
func (t *InMemoryTree) AddLeaf(key spatialkey.Key, content []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves[key] = struct{}{}
	if content != nil {
		return t.store.Put(string(key.Bytes()), content)
	}
	return nil
}

// Leaves implements SpatialIndex.
func (t *InMemoryTree) Leaves() []spatialkey.Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]spatialkey.Key, 0, len(t.leaves))
	for k := range t.leaves {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Rebalance implements SpatialIndex. It repeatedly splits any leaf that
// sits more than one level above another leaf in its own region, until a
// pass performs no splits.
func (t *InMemoryTree) Rebalance(ctx context.Context) (RebalanceResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for {
		select {
		case <-ctx.Done():
			return RebalanceResult{SplitCount: total}, ctx.Err()
		default:
		}

		toSplit := t.findCoarseSiblings()
		if len(toSplit) == 0 {
			break
		}
		for _, k := range toSplit {
			if err := t.splitLocked(k); err != nil {
				return RebalanceResult{SplitCount: total}, err
			}
		}
		total += len(toSplit)
	}
	return RebalanceResult{SplitCount: total, Converged: true}, nil
}

// findCoarseSiblings returns every leaf that is more than one level
// shallower than some other leaf occupying the same region (one is an
// ancestor-region neighbor of the other). Quadratic over the leaf set,
// which a reference tree can afford.
func (t *InMemoryTree) findCoarseSiblings() []spatialkey.Key {
	leaves := make([]spatialkey.Key, 0, len(t.leaves))
	for k := range t.leaves {
		leaves = append(leaves, k)
	}

	var stale []spatialkey.Key
	for _, a := range leaves {
		for _, b := range leaves {
			if b.Level()-a.Level() > 1 && related(a, b) {
				stale = append(stale, a)
				break
			}
		}
	}
	return stale
}

// splitLocked replaces k with its branching children, carrying k's
// stored content forward to child 0 only (a real mesh library would
// re-partition content geometrically; this reference tree has no
// geometry to partition by).
func (t *InMemoryTree) splitLocked(k spatialkey.Key) error {
	content, err := t.store.Get(string(k.Bytes()))
	if err != nil && err != storage.ErrKeyNotFound {
		return err
	}
	delete(t.leaves, k)
	if err == nil {
		_ = t.store.Delete(string(k.Bytes()))
	}
	for i := uint8(0); i < t.branching; i++ {
		child, ok := k.Child(i)
		if !ok {
			continue
		}
		t.leaves[child] = struct{}{}
		if i == 0 && content != nil {
			if err := t.store.Put(string(child.Bytes()), content); err != nil {
				return err
			}
		}
	}
	return nil
}

// InMemoryForest is a reference Forest holding a fixed slice of trees.
type InMemoryForest struct {
	trees []SpatialIndex
}

// NewInMemoryForest constructs a Forest over trees.
func NewInMemoryForest(trees ...SpatialIndex) *InMemoryForest {
	return &InMemoryForest{trees: trees}
}

// Trees implements Forest.
func (f *InMemoryForest) Trees() []SpatialIndex { return f.trees }

// TreeCount implements Forest.
func (f *InMemoryForest) TreeCount() int { return len(f.trees) }
