package wire

import (
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

// WireViolation is the on-wire form of violation.Violation: opaque keys
// are canonicalized bytes (spatialkey.Key.Bytes), so hashing and dedup
// behave identically on every peer.
type WireViolation struct {
	LocalKey   []byte `json:"local_key"`
	GhostKey   []byte `json:"ghost_key"`
	LocalLevel int32  `json:"local_level"`
	GhostLevel int32  `json:"ghost_level"`
	OwnerRank  int32  `json:"owner_rank"`
	TreeID     int64  `json:"tree_id"`
}

// ViolationBatch is the message exchanged each butterfly round: the
// sender's entire accumulated violation set so far.
type ViolationBatch struct {
	RequesterRank int64           `json:"requester_rank"`
	ResponderRank int64           `json:"responder_rank"`
	RoundNumber   int64           `json:"round_number"`
	TimestampMs   int64           `json:"timestamp_ms"`
	Violations    []WireViolation `json:"violations"`
}

// GhostElement is a read-only copy of a remote leaf, carried in a
// RefinementResponse.
type GhostElement struct {
	SpatialKey []byte    `json:"spatial_key"`
	EntityID   string    `json:"entity_id"`
	Content    []byte    `json:"content"`
	Position   [3]float64 `json:"position"`
	OwnerRank  int32     `json:"owner_rank"`
	TreeID     int64     `json:"tree_id"`
}

// RefinementRequest is sent by a partition to its butterfly partner during
// a refinement round.
type RefinementRequest struct {
	RequesterRank   int64    `json:"requester_rank"`
	RequesterTreeID int64    `json:"requester_tree_id"`
	RoundNumber     int64    `json:"round_number"`
	TreeLevel       int32    `json:"tree_level"`
	BoundaryKeys    [][]byte `json:"boundary_keys"`
	TimestampMs     int64    `json:"timestamp_ms"`
}

// RefinementResponse answers a RefinementRequest, matched to it by
// (peer-rank, round-number).
type RefinementResponse struct {
	ResponderRank        int64          `json:"responder_rank"`
	RoundNumber          int64          `json:"round_number"`
	GhostElements        []GhostElement `json:"ghost_elements"`
	MoreRefinementNeeded bool           `json:"more_refinement_needed"`
	TimestampMs          int64          `json:"timestamp_ms"`
}

// BarrierArrival announces that rank has reached round, propagated to
// every peer process by the HTTP transport's notify callback so each
// process's local registry.Barrier can track remote arrivals too.
type BarrierArrival struct {
	Rank  int64 `json:"rank"`
	Round int64 `json:"round"`
}

// ToWire converts an in-process Violation into its wire form.
func ToWire(v violation.Violation) WireViolation {
	return WireViolation{
		LocalKey:   v.LocalKey.Bytes(),
		GhostKey:   v.GhostKey.Bytes(),
		LocalLevel: int32(v.LocalLevel),
		GhostLevel: int32(v.GhostLevel),
		OwnerRank:  int32(v.OwnerRank),
		TreeID:     v.TreeID,
	}
}

// FromWire inverts ToWire.
func FromWire(w WireViolation) (violation.Violation, error) {
	local, err := spatialkey.ParseBytes(w.LocalKey)
	if err != nil {
		return violation.Violation{}, err
	}
	ghost, err := spatialkey.ParseBytes(w.GhostKey)
	if err != nil {
		return violation.Violation{}, err
	}
	return violation.Violation{
		LocalKey:   local,
		GhostKey:   ghost,
		LocalLevel: int(w.LocalLevel),
		GhostLevel: int(w.GhostLevel),
		OwnerRank:  int(w.OwnerRank),
		TreeID:     w.TreeID,
	}, nil
}
