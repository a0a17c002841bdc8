package recovery

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/dreamware/treebalancer/internal/health"
)

// Coordinator reacts to the failure detector's Failed transitions —
// delivered exactly once per transition — by invoking a pluggable
// Strategy. Wire Coordinator.
// HandleFailure as the detector's onFailed callback at construction time.
type Coordinator struct {
	detector *health.Detector
	strategy Strategy
	handler  Handler
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(detector *health.Detector, strategy Strategy, handler Handler) *Coordinator {
	return &Coordinator{detector: detector, strategy: strategy, handler: handler}
}

// HandleFailure runs the coordinator's strategy against id if the
// strategy's CanRecover accepts id's current status. On success the
// detector is returned to Healthy; on failure the partition remains
// Failed and re-armed for another attempt.
func (c *Coordinator) HandleFailure(ctx context.Context, id uuid.UUID) Result {
	status := c.detector.CheckHealth(id)
	if !c.strategy.CanRecover(id, status) {
		return Result{
			PartitionID:  id,
			StrategyName: c.strategy.Name(),
			Success:      false,
			Message:      "strategy does not apply to current status",
		}
	}

	c.detector.MarkRecovering(id)
	result := c.strategy.Recover(ctx, id, c.handler)

	if result.Success {
		c.detector.MarkHealthy(id)
	} else {
		log.Printf("recovery: strategy %s failed for partition %s: %s", result.StrategyName, id, result.Message)
		c.detector.MarkFailed(id)
	}
	return result
}
