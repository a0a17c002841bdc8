package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slices"

	"github.com/dreamware/treebalancer/internal/cluster"
	"github.com/dreamware/treebalancer/internal/coordinator"
	"github.com/dreamware/treebalancer/internal/faultadapter"
	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/health"
	"github.com/dreamware/treebalancer/internal/inflight"
	"github.com/dreamware/treebalancer/internal/metrics"
	"github.com/dreamware/treebalancer/internal/orchestrator"
	"github.com/dreamware/treebalancer/internal/paralleldetector"
	"github.com/dreamware/treebalancer/internal/recovery"
	"github.com/dreamware/treebalancer/internal/refinement"
	"github.com/dreamware/treebalancer/internal/registry"
	"github.com/dreamware/treebalancer/internal/shard"
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/storage"
	"github.com/dreamware/treebalancer/internal/transport/httprpc"
	"github.com/dreamware/treebalancer/internal/violation"
)

// server holds every long-lived component one partition process wires
// together: the HTTP surface, the three-phase balance orchestrator, and
// the background health/recovery machinery that runs alongside it.
type server struct {
	cfg          balancerConfig
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	localForest  forest.Forest
	ftForest     *faultadapter.FaultTolerantForest
	shards       *shard.Map
	detector     *health.Detector
	heartbeater  *cluster.Heartbeater
	httprpc      *httprpc.Server

	mu         sync.Mutex
	violations map[violation.Key]violation.Violation
}

// checkerAdapter narrows paralleldetector.Detector's richer signature down
// to forest.BalanceChecker, fixing the context and partition count the
// orchestrator itself doesn't carry.
type checkerAdapter struct {
	detector *paralleldetector.Detector
	reg      *registry.Registry
}

func (a *checkerAdapter) FindViolations(trees []forest.SpatialIndex, ghosts []forest.GhostElement) ([]violation.Violation, error) {
	return a.detector.Detect(context.Background(), trees, ghosts, a.reg.PartitionCount())
}

// newServer wires every component named in balancerConfig together: the
// partition registry and barrier, the failure detector and its recovery
// coordinator, the fault-tolerant forest decorator, and the orchestrator
// that drives one balance cycle end to end.
func newServer(cfg balancerConfig, promReg prometheus.Registerer) (*server, error) {
	partitions := make([]registry.Partition, len(cfg.Peers))
	for i, addr := range cfg.Peers {
		partitions[i] = registry.NewPartition(i, addr)
	}

	barrier := registry.NewBarrier(len(partitions))

	var client *httprpc.Client
	reg := registry.New(cfg.Rank, partitions, barrier, func(round int) {
		if client != nil {
			client.NotifyBarrierArrival(context.Background(), round)
		}
	})
	client = httprpc.NewClient(reg)

	m := metrics.New(promReg)

	var recoveryCoord *recovery.Coordinator
	detector := health.New(cfg.DetectionConfig, func(id uuid.UUID) {
		if recoveryCoord != nil {
			recoveryCoord.HandleFailure(context.Background(), id)
		}
	})
	for _, p := range partitions {
		if p.Rank != cfg.Rank {
			detector.Register(p.ID)
		}
	}

	tracker := inflight.New()
	recoveryCoord = recovery.NewCoordinator(
		detector,
		recovery.NewBarrierStrategy(tracker, 3, cfg.DetectionConfig.HeartbeatInterval),
		resyncHandler{client: client, partitions: partitions},
	)

	ghostSync := faultadapter.NewGhostSyncAdapter(partitions, detector)

	members := make([]cluster.MemberInfo, 0, len(partitions))
	for _, p := range partitions {
		if p.Rank == cfg.Rank {
			continue
		}
		members = append(members, cluster.MemberInfo{Rank: p.Rank, ID: p.ID, Addr: p.Addr})
	}
	heartbeater := cluster.NewHeartbeater(members, detector, cfg.DetectionConfig.HeartbeatInterval)

	refinementManager := refinement.NewManager()
	coord := coordinator.New(cfg.Rank, client.SendRefinementRequest, refinementManager, cfg.BalanceConfig.TimeoutPerRound)

	baseChecker := forest.SimpleBalanceChecker{}
	detectorPool := paralleldetector.New(baseChecker, cfg.MaxWorkers)
	checker := &checkerAdapter{detector: detectorPool, reg: reg}

	treeIDs := shard.LocalTreeIDs(cfg.TotalTrees, len(partitions), cfg.Rank)
	shards := shard.NewMap(cfg.Rank, treeIDs)
	trees := make([]forest.SpatialIndex, len(treeIDs))
	for i, id := range treeIDs {
		trees[i] = forest.NewInMemoryTree(id, storage.NewMemoryStore())
	}
	localForest := forest.NewInMemoryForest(trees...)
	ftForest := faultadapter.NewFaultTolerantForest(localForest, tracker)

	// The exchange publishes this partition's accumulated set into its own
	// per-cycle map before each send, so a peer-initiated round arriving
	// concurrently reads the same set this partition is sending out.
	var srv *server
	exchange := func(ctx context.Context, partner, round int, batch []violation.Violation) ([]violation.Violation, error) {
		srv.mergeViolations(batch)
		return client.ExchangeViolations(ctx, partner, round, batch)
	}

	orch := orchestrator.New(reg, coord, client, exchange, checker, ghostSync, m, cfg.BalanceConfig, refinementManager)

	srv = &server{
		cfg:          cfg,
		registry:     reg,
		orchestrator: orch,
		localForest:  localForest,
		ftForest:     ftForest,
		shards:       shards,
		detector:     detector,
		heartbeater:  heartbeater,
		violations:   make(map[violation.Key]violation.Violation),
	}
	srv.httprpc = httprpc.NewServer(srv.handleViolationsExchange, srv.handleRefinementRequest, func(rank, round int) {
		barrier.Arrive(round, rank)
	})

	go detector.Start(context.Background())

	return srv, nil
}

// beginCycle resets the per-cycle violation set. runCycles calls it at
// the top of every tick, so the set a butterfly exchange replies with
// only ever reflects the cycle in progress, never violations a previous
// cycle's refinement already resolved.
func (s *server) beginCycle() {
	s.mu.Lock()
	s.violations = make(map[violation.Key]violation.Violation)
	s.mu.Unlock()
}

// handleViolationsExchange answers an incoming butterfly round: it folds
// the peer's batch into this cycle's accumulated violation set and hands
// back the union, so both sides converge on the same set within
// ⌈log2 P⌉ rounds regardless of who initiated which round. This
// partition's own findings enter the set through the orchestrator's
// exchange, which publishes each outgoing batch here before sending it.
func (s *server) handleViolationsExchange(_, _ int, batch []violation.Violation) ([]violation.Violation, error) {
	return s.mergeViolations(batch), nil
}

// mergeViolations folds incoming into the current cycle's set and returns
// every violation seen this cycle; the first-seen copy of a dedup key
// wins.
func (s *server) mergeViolations(incoming []violation.Violation) []violation.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range incoming {
		k := v.DedupKey()
		if _, ok := s.violations[k]; !ok {
			s.violations[k] = v
		}
	}
	out := make([]violation.Violation, 0, len(s.violations))
	for _, v := range s.violations {
		out = append(out, v)
	}
	return out
}

// handleRefinementRequest answers a peer's refinement request: every
// local leaf related to one of the requester's boundary keys is handed
// back as a ghost element, along with whether this partition still has
// pending refinements outstanding.
func (s *server) handleRefinementRequest(_, _ int, boundaryKeys []spatialkey.Key, _ int) ([]forest.GhostElement, bool, error) {
	var out []forest.GhostElement
	for _, tree := range s.localForest.Trees() {
		for _, leaf := range tree.Leaves() {
			for _, bk := range boundaryKeys {
				if forest.Related(leaf, bk) {
					out = append(out, forest.GhostElement{Key: leaf, TreeID: tree.TreeID(), OwnerRank: s.registry.CurrentRank()})
					break
				}
			}
		}
	}
	return out, s.registry.PendingRefinements() > 0, nil
}

// handleMembers serves this process's current view of the arena: every
// partition's rank, identity, address, and the local failure detector's
// verdict on it.
func (s *server) handleMembers(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	partitions := s.registry.Partitions()
	members := make([]cluster.MemberInfo, 0, len(partitions))
	for _, p := range partitions {
		m := cluster.MemberInfo{Rank: p.Rank, ID: p.ID, Addr: p.Addr}
		if p.Rank != s.registry.CurrentRank() {
			m.Status = s.detector.CheckHealth(p.ID).String()
			m.LastChecked = now
		}
		members = append(members, m)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(members); err != nil {
		log.Printf("balancer: encoding members reply: %v", err)
	}
}

type resyncHandler struct {
	client     *httprpc.Client
	partitions []registry.Partition
}

// Resync re-checks health against the failed peer; recovery.BarrierStrategy
// treats a successful health probe as confirmation the partition is
// reachable again and safe to mark healthy.
func (h resyncHandler) Resync(ctx context.Context, id uuid.UUID) error {
	idx := slices.IndexFunc(h.partitions, func(p registry.Partition) bool { return p.ID == id })
	if idx < 0 {
		return fmt.Errorf("balancer: no partition registered for id %s", id)
	}
	return h.client.Health(ctx, h.partitions[idx].Rank)
}
