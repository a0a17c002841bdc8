package recovery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/treebalancer/internal/health"
)

// NoOpStrategy reports success immediately (or after Config.Delay), never
// touching Handler. For testing only.
type NoOpStrategy struct {
	cfg Config
}

// NewNoOpStrategy constructs a NoOpStrategy with the given delay before
// it reports success.
func NewNoOpStrategy(delay time.Duration) *NoOpStrategy {
	return &NoOpStrategy{cfg: Config{Attempts: 1, Delay: delay}}
}

func (s *NoOpStrategy) Name() string { return "no-op" }

func (s *NoOpStrategy) Configuration() Config { return s.cfg }

func (s *NoOpStrategy) CanRecover(_ uuid.UUID, status health.Status) bool {
	return defaultCanRecover(status)
}

func (s *NoOpStrategy) Recover(ctx context.Context, id uuid.UUID, _ Handler) Result {
	start := time.Now()
	if s.cfg.Delay > 0 {
		select {
		case <-time.After(s.cfg.Delay):
		case <-ctx.Done():
			return Result{
				PartitionID:  id,
				Duration:     time.Since(start),
				StrategyName: s.Name(),
				Attempts:     1,
				Success:      false,
				Message:      "recovery cancelled",
				Cause:        ctx.Err(),
			}
		}
	}
	return Result{
		PartitionID:  id,
		Duration:     time.Since(start),
		StrategyName: s.Name(),
		Attempts:     1,
		Success:      true,
		Message:      "no-op recovery succeeded",
	}
}
