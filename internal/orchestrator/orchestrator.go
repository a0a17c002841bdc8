package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/dreamware/treebalancer/internal/aggregator"
	"github.com/dreamware/treebalancer/internal/config"
	"github.com/dreamware/treebalancer/internal/coordinator"
	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/metrics"
	"github.com/dreamware/treebalancer/internal/refinement"
	"github.com/dreamware/treebalancer/internal/registry"
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

// GhostTransport exchanges boundary leaves with one neighbor
// partition. Injected so the HTTP and in-process transports
// can share this orchestrator without it knowing which one is in play.
type GhostTransport interface {
	Exchange(ctx context.Context, neighborRank int, outgoing []forest.GhostElement) ([]forest.GhostElement, error)
}

// FaultAdapter receives ghost-exchange outcomes so the failure detector
// stays in sync. faultadapter.GhostSyncAdapter satisfies
// this interface structurally.
type FaultAdapter interface {
	OnSyncSuccess(rank int)
	OnSyncFailure(rank int, cause error)
}

// BalanceResult is the outcome of one Balance call.
type BalanceResult struct {
	Success        bool
	Refinements    int
	RoundsExecuted int
	Reason         string
	Metrics        metrics.Snapshot

	// PerTreeSplits breaks Phase 1's local refinements down by tree id,
	// so callers tracking per-tree shard stats don't have to re-derive
	// the attribution.
	PerTreeSplits map[int64]int
}

// cycleState is the per-call context Balance publishes atomically so
// concurrent callers never see a half-initialized or stale cycle; it is
// captured per call and cleared on every exit path.
type cycleState struct {
	forest forest.Forest
	ghosts []forest.GhostElement
}

// Orchestrator drives one partition's three-phase balance cycle.
type Orchestrator struct {
	registry  *registry.Registry
	coord     *coordinator.Coordinator
	transport GhostTransport
	exchange  aggregator.Exchange
	checker   forest.BalanceChecker
	fault     FaultAdapter
	metrics   *metrics.Metrics
	cfg       config.BalanceConfiguration
	manager   *refinement.Manager

	cycle atomic.Pointer[cycleState]
}

// New constructs an Orchestrator. coord, exchange, fault, and metrics may
// be nil: a single-partition deployment has no cross-partition phase,
// aggregation, or fault adapter, and tests that don't assert on telemetry
// can skip metrics.
func New(reg *registry.Registry, coord *coordinator.Coordinator, transport GhostTransport, exchange aggregator.Exchange, checker forest.BalanceChecker, fault FaultAdapter, m *metrics.Metrics, cfg config.BalanceConfiguration, manager *refinement.Manager) *Orchestrator {
	return &Orchestrator{
		registry:  reg,
		coord:     coord,
		transport: transport,
		exchange:  exchange,
		checker:   checker,
		fault:     fault,
		metrics:   m,
		cfg:       cfg,
		manager:   manager,
	}
}

// Balance runs one full cycle: local rebalance, ghost exchange, and (if
// more than one partition exists) the cross-partition phase — butterfly
// aggregation of the detected violations for the global view, then
// coordinated refinement rounds over the aggregated boundary set.
func (o *Orchestrator) Balance(ctx context.Context, f forest.Forest) BalanceResult {
	state := &cycleState{forest: f}
	o.cycle.Store(state)
	defer o.cycle.Store(nil)

	modifications, perTree, boundary := o.localBalance(ctx, f)

	ghosts, result := o.ghostExchange(ctx, boundary)
	if result != nil {
		return *result
	}
	state.ghosts = ghosts
	o.cycle.Store(state)

	disputed, checked := o.findViolations(f.Trees(), ghosts)

	if o.coord != nil && o.registry.PartitionCount() > 1 {
		boundaryKeys := boundary
		if checked {
			global := disputed
			if o.exchange != nil {
				merged, err := aggregator.Aggregate(ctx, o.registry.CurrentRank(), o.registry.PartitionCount(), disputed, o.exchange)
				if err != nil {
					return o.failure(fmt.Sprintf("violation aggregation: %v", err))
				}
				global = merged
			}
			boundaryKeys = o.boundaryKeysFrom(disputed, global)
		}

		round, err := o.coord.Coordinate(ctx, o.registry.PartitionCount(), o.cfg.MaxRounds, o.registry, boundaryKeys, 0)
		if err != nil {
			return o.failure(fmt.Sprintf("cross-partition balance: %v", err))
		}
		modifications += round.RefinementsApplied
		if o.metrics != nil && round.RoundsExecuted > 0 {
			perRound := round.TotalDuration / time.Duration(round.RoundsExecuted)
			for i := 0; i < round.RoundsExecuted; i++ {
				o.metrics.RecordRound(perRound)
			}
		}
		return BalanceResult{
			Success:        true,
			Refinements:    modifications,
			RoundsExecuted: round.RoundsExecuted,
			Metrics:        o.snapshot(),
			PerTreeSplits:  perTree,
		}
	}

	return BalanceResult{Success: true, Refinements: modifications, Metrics: o.snapshot(), PerTreeSplits: perTree}
}

// localBalance is Phase 1: rebalance every owned tree, accumulating
// refinements and the resulting boundary leaf set. A single tree's
// failure is logged and skipped; it never aborts the cycle.
func (o *Orchestrator) localBalance(ctx context.Context, f forest.Forest) (int, map[int64]int, []spatialkey.Key) {
	modifications := 0
	perTree := make(map[int64]int)
	var boundary []spatialkey.Key
	for _, tree := range f.Trees() {
		res, err := tree.Rebalance(ctx)
		if err != nil {
			log.Printf("orchestrator: tree %d rebalance failed, continuing: %v", tree.TreeID(), err)
			continue
		}
		modifications += res.SplitCount
		perTree[tree.TreeID()] = res.SplitCount
		if o.metrics != nil {
			o.metrics.RecordRefinements(res.SplitCount)
		}
		boundary = append(boundary, tree.Leaves()...)
	}
	return modifications, perTree, boundary
}

// ghostExchange is Phase 2: send this partition's boundary leaves to
// every neighbor and fold back whatever they send in return. A non-nil
// *BalanceResult return means the cycle must stop here.
func (o *Orchestrator) ghostExchange(ctx context.Context, boundary []spatialkey.Key) ([]forest.GhostElement, *BalanceResult) {
	if o.transport == nil {
		return nil, nil
	}

	outgoing := make([]forest.GhostElement, len(boundary))
	for i, k := range boundary {
		outgoing[i] = forest.GhostElement{Key: k, OwnerRank: o.registry.CurrentRank()}
	}

	var ghosts []forest.GhostElement
	for _, n := range o.registry.Neighbors() {
		incoming, err := o.transport.Exchange(ctx, n, outgoing)
		if err != nil {
			if o.fault != nil {
				o.fault.OnSyncFailure(n, err)
			}
			result := o.failure(fmt.Sprintf("ghost exchange with rank %d: %v", n, err))
			return nil, &result
		}
		if o.fault != nil {
			o.fault.OnSyncSuccess(n)
		}
		ghosts = append(ghosts, incoming...)
	}
	return ghosts, nil
}

// findViolations asks the injected checker which of this cycle's boundary
// leaves dispute balance against the ghost layer just received, recording
// each disputed key against the registry's pending-refinement count.
// checked is false when no checker was injected or the check failed; the
// caller then falls back to the full boundary — a conservative fallback
// that still converges, just with a wider exchange than necessary.
func (o *Orchestrator) findViolations(trees []forest.SpatialIndex, ghosts []forest.GhostElement) ([]violation.Violation, bool) {
	if o.checker == nil {
		return nil, false
	}

	violations, err := o.checker.FindViolations(trees, ghosts)
	if err != nil {
		log.Printf("orchestrator: violation check failed, falling back to full boundary: %v", err)
		return nil, false
	}

	for _, v := range violations {
		o.registry.RequestRefinement(v.LocalKey)
	}
	return violations, true
}

// boundaryKeysFrom reduces the aggregated global violation set to the
// keys this partition should request refinement around: the local key of
// every violation it detected itself, plus the ghost key of any remote
// violation disputing a leaf this partition owns — the information the
// aggregation round exists to surface. Insertion order is kept so peers
// iterating the same global set build the same requests.
func (o *Orchestrator) boundaryKeysFrom(local, global []violation.Violation) []spatialkey.Key {
	mine := make(map[violation.Key]struct{}, len(local))
	for _, v := range local {
		mine[v.DedupKey()] = struct{}{}
	}

	myRank := o.registry.CurrentRank()
	seen := make(map[spatialkey.Key]struct{}, len(global))
	var keys []spatialkey.Key
	for _, v := range global {
		var k spatialkey.Key
		if _, ok := mine[v.DedupKey()]; ok {
			k = v.LocalKey
		} else if v.OwnerRank == myRank {
			k = v.GhostKey
		} else {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func (o *Orchestrator) failure(reason string) BalanceResult {
	return BalanceResult{Success: false, Reason: reason, Metrics: o.snapshot()}
}

func (o *Orchestrator) snapshot() metrics.Snapshot {
	if o.metrics == nil {
		return metrics.Snapshot{}
	}
	return o.metrics.Snapshot()
}
