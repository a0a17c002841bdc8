package faultadapter

import "github.com/dreamware/treebalancer/internal/inflight"

// Forest is the subset of internal/forest.Forest this decorator forwards
// unchanged. Declared locally so faultadapter doesn't import forest just
// to wrap it.
type Forest interface {
	TreeCount() int
}

// FaultTolerantForest wraps a Forest with begin/end hooks around each
// balance cycle, sharing its Tracker with the recovery coordinator's
// BarrierStrategy. Reads (TreeCount, and whatever else the
// embedded Forest exposes) pass straight through; nothing about the
// wrapped forest's data is altered.
type FaultTolerantForest struct {
	Forest
	tracker *inflight.Tracker
}

// NewFaultTolerantForest wraps f, counting cycles against tracker.
func NewFaultTolerantForest(f Forest, tracker *inflight.Tracker) *FaultTolerantForest {
	return &FaultTolerantForest{Forest: f, tracker: tracker}
}

// BeginCycle marks the start of a balance cycle against the shared
// tracker. cmd/balancer's runCycles calls this before each Balance call
// and calls EndCycle after Balance returns.
func (f *FaultTolerantForest) BeginCycle() {
	f.tracker.Begin()
}

// EndCycle marks the end of a balance cycle. A recovery strategy blocked
// in AwaitQuiescence wakes once the last in-flight cycle calls this.
func (f *FaultTolerantForest) EndCycle() {
	f.tracker.End()
}
