package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/treebalancer/internal/config"
)

// peerFile is the optional YAML document pointed to by
// BALANCER_CONFIG_FILE, listing every partition's address in rank order
// (this process's own entry may be a bind address or blank if it's only
// ever dialed by rank from peers that share this same file).
type peerFile struct {
	Peers []string `yaml:"peers"`
}

// balancerConfig is this process's fully resolved configuration: which
// rank it is, who its peers are, and the tuning knobs for one balance
// cycle and the failure detector.
type balancerConfig struct {
	Rank            int
	ListenAddr      string
	Peers           []string
	MaxWorkers      int
	TotalTrees      int
	BalanceConfig   config.BalanceConfiguration
	DetectionConfig config.FailureDetectionConfig
}

// loadConfig resolves a balancerConfig from BALANCER_CONFIG_FILE (if set)
// overlaid with environment variables, mirroring the getenv-with-default
// style used throughout this codebase's other entrypoints. Environment
// variables always win over the file, so an operator can override one
// knob without editing the shared peer list.
func loadConfig() (balancerConfig, error) {
	var peers []string
	if path := os.Getenv("BALANCER_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return balancerConfig{}, fmt.Errorf("balancer: reading config file %s: %w", path, err)
		}
		var pf peerFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return balancerConfig{}, fmt.Errorf("balancer: parsing config file %s: %w", path, err)
		}
		peers = pf.Peers
	}
	if raw := os.Getenv("BALANCER_PEERS"); raw != "" {
		peers = strings.Split(raw, ",")
	}
	if len(peers) == 0 {
		peers = []string{""}
	}

	rank := getenvInt("BALANCER_RANK", 0)
	if rank < 0 || rank >= len(peers) {
		return balancerConfig{}, fmt.Errorf("%w: rank %d outside peer list of size %d", config.ErrConfigInvalid, rank, len(peers))
	}

	listenAddr := getenv("BALANCER_LISTEN_ADDR", peers[rank])
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	maxRounds := getenvInt("BALANCER_MAX_ROUNDS", 10)
	roundTimeout := getenvDuration("BALANCER_ROUND_TIMEOUT", 5*time.Second)
	batchSize := getenvInt("BALANCER_BATCH_SIZE", 100)
	threshold := getenvFloat("BALANCER_REFINEMENT_THRESHOLD", 0.2)

	balanceCfg, err := config.NewBalanceConfiguration(maxRounds, roundTimeout, batchSize, threshold)
	if err != nil {
		return balancerConfig{}, err
	}

	heartbeat := getenvDuration("BALANCER_HEARTBEAT_INTERVAL", 500*time.Millisecond)
	suspect := getenvDuration("BALANCER_SUSPECT_TIMEOUT", 2*time.Second)
	failureTimeout := getenvDuration("BALANCER_FAILURE_TIMEOUT", 5*time.Second)
	checkInterval := getenvDuration("BALANCER_HEALTH_CHECK_INTERVAL", 100*time.Millisecond)

	detectionCfg, err := config.NewFailureDetectionConfig(heartbeat, suspect, failureTimeout, checkInterval)
	if err != nil {
		return balancerConfig{}, err
	}

	totalTrees := getenvInt("BALANCER_TOTAL_TREES", 8)
	if totalTrees < 1 {
		return balancerConfig{}, fmt.Errorf("%w: total-trees must be >= 1, got %d", config.ErrConfigInvalid, totalTrees)
	}

	return balancerConfig{
		Rank:            rank,
		ListenAddr:      listenAddr,
		Peers:           peers,
		MaxWorkers:      getenvInt("BALANCER_MAX_WORKERS", 0),
		TotalTrees:      totalTrees,
		BalanceConfig:   balanceCfg,
		DetectionConfig: detectionCfg,
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
