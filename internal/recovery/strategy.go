package recovery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/treebalancer/internal/health"
)

// Handler is whatever a strategy needs to actually repair a partition's
// participation in the cluster — re-establishing its ghost sync, for
// instance. It is injected so strategies stay unit-testable against a
// fake.
type Handler interface {
	// Resync attempts to restore partition id to working order. An error
	// means the attempt failed; it does not necessarily mean the
	// partition is unreachable (a stale generation, a rejected handshake,
	// etc. are also Resync errors).
	Resync(ctx context.Context, id uuid.UUID) error
}

// Config tunes a strategy's retry behavior.
type Config struct {
	Attempts int
	Delay    time.Duration
}

// Result is the outcome of one recovery attempt.
type Result struct {
	PartitionID  uuid.UUID
	Duration     time.Duration
	StrategyName string
	Attempts     int
	Success      bool
	Message      string
	Cause        error
}

// Strategy is the pluggable recovery behavior invoked by Coordinator.
type Strategy interface {
	// CanRecover reports whether this strategy applies to a partition
	// currently in status. The default implementations require status to
	// be Suspected or Failed.
	CanRecover(id uuid.UUID, status health.Status) bool
	// Recover attempts to restore id to service. It never panics and
	// never returns a Go error: every failure mode, including context
	// cancellation, is reported through Result.
	Recover(ctx context.Context, id uuid.UUID, handler Handler) Result
	// Name identifies the strategy in Result.StrategyName and logs.
	Name() string
	// Configuration returns the strategy's tuning parameters.
	Configuration() Config
}

func defaultCanRecover(status health.Status) bool {
	return status == health.Suspected || status == health.Failed
}
