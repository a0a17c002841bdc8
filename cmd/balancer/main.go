// Package main implements the treebalancer partition process: one
// participant in a distributed 2:1-balance refinement protocol over a
// forest of octree/tetree partitions.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│               balancer                   │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                               │
//	│    /balance/violations - butterfly round │
//	│    /balance/refine     - refinement ask   │
//	│    /balance/barrier    - round barrier    │
//	│    /health             - liveness         │
//	│    /metrics            - Prometheus       │
//	├─────────────────────────────────────────┤
//	│  Components:                              │
//	│    registry.Registry   - partition view   │
//	│    health.Detector      - failure detector│
//	│    recovery.Coordinator - recovery         │
//	│    orchestrator.Orchestrator - balance()   │
//	└─────────────────────────────────────────┘
//
// Configuration: environment variables, optionally overlaid with a YAML
// peer list from BALANCER_CONFIG_FILE. See config.go's loadConfig.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamware/treebalancer/internal/shard"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("balancer: loading configuration: %v", err)
	}

	promReg := prometheus.NewRegistry()
	srv, err := newServer(cfg, promReg)
	if err != nil {
		log.Fatalf("balancer: wiring components: %v", err)
	}

	mux := srv.httprpc.Mux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/cluster/members", srv.handleMembers)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("balancer: rank %d (of %d) listening on %s", cfg.Rank, len(cfg.Peers), cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("balancer: listen: %v", err)
		}
	}()

	ctx, cancelCycles := context.WithCancel(context.Background())
	go srv.heartbeater.Start(ctx)
	go runCycles(ctx, srv, cfg)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("balancer: stopping balance cycles")
	cancelCycles()

	log.Println("balancer: stopping heartbeater and failure detector")
	srv.heartbeater.Stop()
	srv.detector.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("balancer: http server shutdown error: %v", err)
	}
	log.Println("balancer: stopped")
}

// runCycles drives one balance cycle per round-timeout tick until ctx is
// done. A real deployment would trigger cycles from mesh-change events
// upstream of this process; lacking one, it free-runs on a timer instead,
// wrapping every cycle in the fault-tolerant forest's begin/end hooks so
// a recovery strategy blocked in inflight.Tracker.AwaitQuiescence knows
// when it's safe to run.
func runCycles(ctx context.Context, srv *server, cfg balancerConfig) {
	ticker := time.NewTicker(cfg.BalanceConfig.TimeoutPerRound)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.beginCycle()
			srv.ftForest.BeginCycle()
			srv.shards.SetAll(shard.StateRebalancing)
			result := srv.orchestrator.Balance(ctx, srv.localForest)
			now := time.Now()
			for id, splits := range result.PerTreeSplits {
				if ts := srv.shards.Get(id); ts != nil {
					ts.RecordRebalance(splits, now)
				}
			}
			srv.shards.SetAll(shard.StateActive)
			srv.ftForest.EndCycle()

			if !result.Success {
				log.Printf("balancer: balance cycle failed: %s", result.Reason)
				continue
			}
			log.Printf("balancer: balance cycle applied %d refinement(s) over %d round(s)", result.Refinements, result.RoundsExecuted)
		}
	}
}
