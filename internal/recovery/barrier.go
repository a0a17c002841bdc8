package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/treebalancer/internal/health"
	"github.com/dreamware/treebalancer/internal/inflight"
)

// BarrierStrategy waits for every in-flight balance operation to drain
// (via the shared *inflight.Tracker), then invokes Handler.Resync. It
// does not pause the balancer: nothing in this module stops a new cycle
// from starting while the strategy runs, so BarrierStrategy only
// guarantees it never runs Resync concurrently with an in-flight cycle
// that started before it began waiting.
type BarrierStrategy struct {
	tracker *inflight.Tracker
	cfg     Config
}

// NewBarrierStrategy constructs a BarrierStrategy. attempts must be >= 1.
func NewBarrierStrategy(tracker *inflight.Tracker, attempts int, delay time.Duration) *BarrierStrategy {
	if attempts < 1 {
		attempts = 1
	}
	return &BarrierStrategy{tracker: tracker, cfg: Config{Attempts: attempts, Delay: delay}}
}

func (s *BarrierStrategy) Name() string { return "barrier" }

func (s *BarrierStrategy) Configuration() Config { return s.cfg }

func (s *BarrierStrategy) CanRecover(_ uuid.UUID, status health.Status) bool {
	return defaultCanRecover(status)
}

func (s *BarrierStrategy) Recover(ctx context.Context, id uuid.UUID, handler Handler) Result {
	start := time.Now()

	if err := s.tracker.AwaitQuiescence(ctx); err != nil {
		return Result{
			PartitionID:  id,
			Duration:     time.Since(start),
			StrategyName: s.Name(),
			Attempts:     0,
			Success:      false,
			Message:      "timed out waiting for in-flight operations to drain",
			Cause:        err,
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		if attempt > 1 && s.cfg.Delay > 0 {
			select {
			case <-time.After(s.cfg.Delay):
			case <-ctx.Done():
				return Result{
					PartitionID:  id,
					Duration:     time.Since(start),
					StrategyName: s.Name(),
					Attempts:     attempt,
					Success:      false,
					Message:      "recovery cancelled between attempts",
					Cause:        ctx.Err(),
				}
			}
		}

		lastErr = handler.Resync(ctx, id)
		if lastErr == nil {
			return Result{
				PartitionID:  id,
				Duration:     time.Since(start),
				StrategyName: s.Name(),
				Attempts:     attempt,
				Success:      true,
				Message:      fmt.Sprintf("resync succeeded on attempt %d", attempt),
			}
		}
	}

	return Result{
		PartitionID:  id,
		Duration:     time.Since(start),
		StrategyName: s.Name(),
		Attempts:     s.cfg.Attempts,
		Success:      false,
		Message:      "resync failed after exhausting attempts",
		Cause:        lastErr,
	}
}
