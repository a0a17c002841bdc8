package health

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/treebalancer/internal/config"
)

// Status is one state in the PartitionHealth state machine.
type Status int

const (
	// Healthy means heartbeats have been received within the suspect
	// timeout.
	Healthy Status = iota
	// Suspected means elapsed time since the last heartbeat exceeds the
	// suspect timeout but not the failure timeout.
	Suspected
	// Failed means elapsed time since the last heartbeat exceeds the
	// failure timeout.
	Failed
	// Recovering means a recovery strategy is currently running against
	// this partition; the detector defers timeout-based transitions
	// until the strategy reports completion via MarkHealthy.
	Recovering
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Suspected:
		return "suspected"
	case Failed:
		return "failed"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

type partitionState struct {
	lastHeartbeat  time.Time
	status         Status
	failedNotified bool
}

// Detector is process-wide shared state: one Detector is constructed per
// partition process and handed by shared pointer to everything that needs
// to record heartbeats or query health.
type Detector struct {
	cfg      config.FailureDetectionConfig
	onFailed func(id uuid.UUID)

	mu         sync.Mutex
	partitions map[uuid.UUID]*partitionState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Detector. onFailed, if non-nil, is invoked exactly once
// per Failed transition, in its own goroutine, with the detector's lock
// not held — the recovery coordinator's HandleFailure is wired in here.
func New(cfg config.FailureDetectionConfig, onFailed func(id uuid.UUID)) *Detector {
	return &Detector{
		cfg:        cfg,
		onFailed:   onFailed,
		partitions: make(map[uuid.UUID]*partitionState),
	}
}

// Register begins tracking id as Healthy with a heartbeat timestamp of
// now. Call this once per known peer at startup.
func (d *Detector) Register(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.partitions[id]; ok {
		return
	}
	d.partitions[id] = &partitionState{lastHeartbeat: time.Now(), status: Healthy}
}

// Forget stops tracking id, e.g. when a partition permanently leaves the
// cluster.
func (d *Detector) Forget(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.partitions, id)
}

// RecordHeartbeat marks id as Healthy and refreshes its last-heartbeat
// timestamp. A heartbeat always returns a partition to Healthy, even from
// Suspected or Failed.
func (d *Detector) RecordHeartbeat(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.partitions[id]
	if !ok {
		st = &partitionState{}
		d.partitions[id] = st
	}
	st.lastHeartbeat = time.Now()
	st.status = Healthy
	st.failedNotified = false
}

// ReportSyncFailure forces a Healthy partition to Suspected regardless of
// heartbeat freshness. It is a no-op for a partition that
// is already Suspected, Failed, or Recovering — those states are already
// at least as severe.
func (d *Detector) ReportSyncFailure(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.partitions[id]
	if !ok {
		log.Printf("health: sync failure reported for unknown partition %s, ignoring", id)
		return
	}
	if st.status == Healthy {
		st.status = Suspected
	}
}

// MarkRecovering transitions id to Recovering. Called by the recovery
// coordinator before it invokes a strategy, so timeout ticks don't race
// with the strategy's own completion callback.
func (d *Detector) MarkRecovering(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.partitions[id]; ok {
		st.status = Recovering
	}
}

// MarkFailed puts id back into Failed and clears its failed-notified
// flag, so the next CheckHealth call fires the fault callback again.
// The recovery coordinator calls this when a recovery strategy reports
// failure: the partition stays Failed and is re-armed for another
// recovery attempt.
func (d *Detector) MarkFailed(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.partitions[id]; ok {
		st.status = Failed
		st.failedNotified = false
	}
}

// MarkHealthy is the explicit recovery-success callback:
// it returns a partition to Healthy and refreshes its heartbeat timestamp
// regardless of which state it was in.
func (d *Detector) MarkHealthy(id uuid.UUID) {
	d.RecordHeartbeat(id)
}

// CheckHealth evaluates id's status against elapsed time since its last
// heartbeat and returns it. Every call re-evaluates elapsed time (so
// CheckHealth can be polled directly in tests without a running
// background loop), but elapsed time only ever raises the status
// (Healthy → Suspected → Failed): a Suspected set by ReportSyncFailure or
// a Failed set by MarkFailed is kept even while the last heartbeat is
// still fresh. Only RecordHeartbeat or MarkHealthy lowers it. Recovering
// is left untouched until the recovery coordinator calls MarkHealthy or
// MarkFailed. Repeated calls are therefore monotonic: a partition already
// Failed cannot be observed moving back to Suspected or Healthy without
// an intervening heartbeat.
func (d *Detector) CheckHealth(id uuid.UUID) Status {
	d.mu.Lock()
	st, ok := d.partitions[id]
	if !ok {
		d.mu.Unlock()
		return Healthy
	}
	status, justFailed := d.tick(st)
	d.mu.Unlock()

	if justFailed && d.onFailed != nil {
		go d.onFailed(id)
	}
	return status
}

// tick applies the elapsed-time transition rules to st and reports
// whether this call is the transition into Failed (so the caller can
// fire the fault callback exactly once). Must be called with d.mu held.
func (d *Detector) tick(st *partitionState) (Status, bool) {
	if st.status == Recovering {
		return st.status, false
	}

	elapsed := time.Since(st.lastHeartbeat)
	next := Healthy
	switch {
	case elapsed > d.cfg.FailureTimeout:
		next = Failed
	case elapsed > d.cfg.SuspectTimeout:
		next = Suspected
	}
	if next > st.status {
		st.status = next
	}

	justFailed := st.status == Failed && !st.failedNotified
	if justFailed {
		st.failedNotified = true
	}
	return st.status, justFailed
}

// Start runs the background check loop, re-evaluating every known
// partition every cfg.CheckInterval, until ctx is cancelled or Stop is
// called. Start blocks; run it in its own goroutine.
func (d *Detector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.checkAll()
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the background loop and waits for it to exit.
func (d *Detector) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Detector) checkAll() {
	d.mu.Lock()
	ids := make([]uuid.UUID, 0, len(d.partitions))
	for id := range d.partitions {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		d.CheckHealth(id)
	}
}
