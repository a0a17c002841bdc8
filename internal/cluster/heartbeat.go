package cluster

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HeartbeatSink receives the outcome of each heartbeat probe. The
// failure detector in internal/health satisfies this directly.
type HeartbeatSink interface {
	RecordHeartbeat(id uuid.UUID)
	ReportSyncFailure(id uuid.UUID)
}

// Heartbeater probes every peer's /health endpoint on a fixed interval
// and feeds the outcomes to a HeartbeatSink, turning HTTP liveness into
// the heartbeat stream the failure detector's timeout logic runs on.
// Without it, a detector in an HTTP deployment would only ever hear
// about peers through ghost-sync failures.
type Heartbeater struct {
	members  []MemberInfo
	sink     HeartbeatSink
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeater constructs a Heartbeater probing members every
// interval. Members without an address are skipped (in-process
// partitions heartbeat through their transport instead).
func NewHeartbeater(members []MemberInfo, sink HeartbeatSink, interval time.Duration) *Heartbeater {
	return &Heartbeater{members: members, sink: sink, interval: interval}
}

// Start runs the probe loop until ctx is cancelled or Stop is called.
// Start blocks; run it in its own goroutine.
func (h *Heartbeater) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.wg.Add(1)
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.probeAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the probe loop and waits for it to exit.
func (h *Heartbeater) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}

func (h *Heartbeater) probeAll(ctx context.Context) {
	for _, m := range h.members {
		if m.Addr == "" {
			continue
		}
		if err := GetJSON(ctx, "http://"+m.Addr+"/health", nil); err != nil {
			log.Printf("cluster: heartbeat probe of rank %d failed: %v", m.Rank, err)
			h.sink.ReportSyncFailure(m.ID)
			continue
		}
		h.sink.RecordHeartbeat(m.ID)
	}
}
