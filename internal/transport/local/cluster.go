package local

import (
	"fmt"
	"sync"

	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

// ViolationHandler answers an incoming violation-exchange batch from
// partner for round, returning this partition's own accumulated set.
type ViolationHandler func(partner, round int, batch []violation.Violation) ([]violation.Violation, error)

// RefineHandler answers an incoming refinement/ghost-exchange request.
type RefineHandler func(requesterRank, round int, boundaryKeys []spatialkey.Key, treeLevel int) ([]forest.GhostElement, bool, error)

// Cluster is the shared registration point every simulated partition's
// Client dispatches through. One Cluster is constructed per simulated
// deployment (typically once per test).
type Cluster struct {
	mu         sync.RWMutex
	violations map[int]ViolationHandler
	refine     map[int]RefineHandler
}

// NewCluster constructs an empty Cluster.
func NewCluster() *Cluster {
	return &Cluster{
		violations: make(map[int]ViolationHandler),
		refine:     make(map[int]RefineHandler),
	}
}

// Register installs rank's handlers, replacing any previously registered
// for that rank.
func (c *Cluster) Register(rank int, violations ViolationHandler, refine RefineHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.violations[rank] = violations
	c.refine[rank] = refine
}

// Unregister removes rank's handlers, e.g. to simulate a partition
// leaving or failing.
func (c *Cluster) Unregister(rank int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.violations, rank)
	delete(c.refine, rank)
}

func (c *Cluster) violationHandler(rank int) (ViolationHandler, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.violations[rank]
	if !ok || h == nil {
		return nil, fmt.Errorf("local: no violation handler registered for rank %d", rank)
	}
	return h, nil
}

func (c *Cluster) refineHandler(rank int) (RefineHandler, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.refine[rank]
	if !ok || h == nil {
		return nil, fmt.Errorf("local: no refinement handler registered for rank %d", rank)
	}
	return h, nil
}
