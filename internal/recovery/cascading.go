package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/treebalancer/internal/health"
)

// NeighborsOf resolves a partition's immediate neighbors, in the
// topological order recovery should visit them. Injected so
// CascadingStrategy doesn't need to know how topology is represented.
type NeighborsOf func(id uuid.UUID) []uuid.UUID

// CascadingStrategy runs BarrierStrategy recovery for the failed
// partition and then, in order, for each of its immediate
// neighbors. A neighbor failure does not abort the cascade; it is
// recorded and the cascade continues, since isolating the cascade's
// overall success to "did every neighbor individually recover" would
// block recovery of the target partition on unrelated neighbor health.
type CascadingStrategy struct {
	inner     *BarrierStrategy
	neighbors NeighborsOf
}

// NewCascadingStrategy constructs a CascadingStrategy around an existing
// BarrierStrategy (so both share the same in-flight tracker and retry
// configuration) and a neighbor resolver.
func NewCascadingStrategy(inner *BarrierStrategy, neighbors NeighborsOf) *CascadingStrategy {
	return &CascadingStrategy{inner: inner, neighbors: neighbors}
}

func (s *CascadingStrategy) Name() string { return "cascading" }

func (s *CascadingStrategy) Configuration() Config { return s.inner.Configuration() }

func (s *CascadingStrategy) CanRecover(id uuid.UUID, status health.Status) bool {
	return s.inner.CanRecover(id, status)
}

func (s *CascadingStrategy) Recover(ctx context.Context, id uuid.UUID, handler Handler) Result {
	start := time.Now()

	target := s.inner.Recover(ctx, id, handler)
	if !target.Success {
		target.StrategyName = s.Name()
		target.Duration = time.Since(start)
		return target
	}

	neighborFailures := 0
	neighbors := s.neighbors(id)
	for _, n := range neighbors {
		res := s.inner.Recover(ctx, n, handler)
		if !res.Success {
			neighborFailures++
		}
	}

	msg := fmt.Sprintf("target recovered; %d/%d neighbors recovered", len(neighbors)-neighborFailures, len(neighbors))
	return Result{
		PartitionID:  id,
		Duration:     time.Since(start),
		StrategyName: s.Name(),
		Attempts:     target.Attempts,
		Success:      true,
		Message:      msg,
	}
}
