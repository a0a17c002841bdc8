package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is an immutable view of a Metrics instance at a point in time.
// Callers may keep a Snapshot as long as they like; it never changes
// underneath them.
type Snapshot struct {
	RoundsExecuted     uint64
	RefinementsApplied uint64
	RoundDurations     []time.Duration
}

// Metrics is process-wide shared state, held by the orchestrator and
// handed to every component that needs to record a measurement. It is an
// owned value passed by shared handle, never a package-level global.
type Metrics struct {
	roundsExecuted     atomic.Uint64
	refinementsApplied atomic.Uint64

	mu             sync.Mutex
	roundDurations []time.Duration

	roundsExecutedTotal     prometheus.Counter
	refinementsAppliedTotal prometheus.Counter
	roundDurationSeconds    prometheus.Histogram
}

// New constructs a Metrics instance and registers its collectors with reg.
// Pass prometheus.NewRegistry() for an isolated registry (as tests and
// cmd/balancer do) or prometheus.DefaultRegisterer to join the global one.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roundsExecutedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treebalancer_rounds_executed_total",
			Help: "Total refinement rounds executed across all balance cycles.",
		}),
		refinementsAppliedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treebalancer_refinements_applied_total",
			Help: "Total leaf refinements applied across all balance cycles.",
		}),
		roundDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "treebalancer_round_duration_seconds",
			Help:    "Duration of a single refinement round.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.roundsExecutedTotal, m.refinementsAppliedTotal, m.roundDurationSeconds)
	}
	return m
}

// RecordRound registers that one refinement round completed in d.
func (m *Metrics) RecordRound(d time.Duration) {
	m.roundsExecuted.Add(1)
	m.roundsExecutedTotal.Inc()
	m.roundDurationSeconds.Observe(d.Seconds())

	m.mu.Lock()
	m.roundDurations = append(m.roundDurations, d)
	m.mu.Unlock()
}

// RecordRefinements registers that n leaf refinements were applied.
func (m *Metrics) RecordRefinements(n int) {
	if n <= 0 {
		return
	}
	m.refinementsApplied.Add(uint64(n))
	m.refinementsAppliedTotal.Add(float64(n))
}

// Snapshot returns an immutable copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	durations := make([]time.Duration, len(m.roundDurations))
	copy(durations, m.roundDurations)
	m.mu.Unlock()

	return Snapshot{
		RoundsExecuted:     m.roundsExecuted.Load(),
		RefinementsApplied: m.refinementsApplied.Load(),
		RoundDurations:     durations,
	}
}
