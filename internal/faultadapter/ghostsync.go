package faultadapter

import (
	"log"

	"github.com/google/uuid"

	"github.com/dreamware/treebalancer/internal/health"
	"github.com/dreamware/treebalancer/internal/registry"
)

// GhostSyncAdapter bridges the ghost transport's per-rank callbacks to the
// failure detector, which tracks partitions by their stable UUID rather
// than their (reusable) integer rank.
//
// The rank↔UUID map is filled once at construction and never mutated
// again, so unlike the detector's partition map it needs no locking:
// write-once-at-init, read-many thereafter.
type GhostSyncAdapter struct {
	rankToID map[int]uuid.UUID
	detector *health.Detector
}

// NewGhostSyncAdapter builds the rank↔UUID map from partitions and wires
// it to detector.
func NewGhostSyncAdapter(partitions []registry.Partition, detector *health.Detector) *GhostSyncAdapter {
	m := make(map[int]uuid.UUID, len(partitions))
	for _, p := range partitions {
		m[p.Rank] = p.ID
	}
	return &GhostSyncAdapter{rankToID: m, detector: detector}
}

// OnSyncSuccess reports that a ghost sync with rank completed, marking
// that partition healthy.
func (a *GhostSyncAdapter) OnSyncSuccess(rank int) {
	id, ok := a.rankToID[rank]
	if !ok {
		log.Printf("faultadapter: sync success for unknown rank %d, ignoring", rank)
		return
	}
	a.detector.MarkHealthy(id)
}

// OnSyncFailure reports that a ghost sync with rank failed, forcing that
// partition to Suspected. cause is logged but otherwise only informative
// — it never crashes the transport.
func (a *GhostSyncAdapter) OnSyncFailure(rank int, cause error) {
	id, ok := a.rankToID[rank]
	if !ok {
		log.Printf("faultadapter: sync failure for unknown rank %d (%v), ignoring", rank, cause)
		return
	}
	log.Printf("faultadapter: ghost sync failed with rank %d: %v", rank, cause)
	a.detector.ReportSyncFailure(id)
}
