package httprpc

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
	"github.com/dreamware/treebalancer/internal/wire"
)

// ViolationHandler answers a peer's /balance/violations exchange: it
// merges the peer's batch into local state and returns this partition's
// own accumulated set for that round. It is exactly the injected
// aggregator.Exchange primitive's server-side counterpart.
type ViolationHandler func(partner, round int, batch []violation.Violation) ([]violation.Violation, error)

// RefinementHandler answers a peer's /balance/refine request: boundary
// keys in, this partition's matching ghost elements and
// more-refinement-needed flag out.
type RefinementHandler func(requesterRank, round int, boundaryKeys []spatialkey.Key, treeLevel int) ([]forest.GhostElement, bool, error)

// BarrierHandler records that a remote rank has reached round, on this
// process's own barrier. registry.Barrier.Arrive takes (round, rank) and
// returns a generation token, so callers wrap it to fit this signature.
type BarrierHandler func(rank, round int)

// Server wires the balance endpoints to injected handlers. It owns no
// balance state itself.
type Server struct {
	violations ViolationHandler
	refine     RefinementHandler
	barrier    BarrierHandler
}

// NewServer constructs a Server. Any handler may be nil if this process
// never serves that endpoint (e.g. a P=1 deployment never receives
// /balance/violations or /balance/barrier).
func NewServer(violations ViolationHandler, refine RefinementHandler, barrier BarrierHandler) *Server {
	return &Server{violations: violations, refine: refine, barrier: barrier}
}

// Mux builds an *http.ServeMux with /balance/violations, /balance/refine,
// /balance/barrier, and /health registered.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/balance/violations", s.handleViolations)
	mux.HandleFunc("/balance/refine", s.handleRefine)
	mux.HandleFunc("/balance/barrier", s.handleBarrier)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleBarrier(w http.ResponseWriter, r *http.Request) {
	if s.barrier == nil {
		http.Error(w, "barrier not configured", http.StatusServiceUnavailable)
		return
	}
	var arrival wire.BarrierArrival
	if err := json.NewDecoder(r.Body).Decode(&arrival); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.barrier(int(arrival.Rank), int(arrival.Round))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	if s.violations == nil {
		http.Error(w, "violations exchange not configured", http.StatusServiceUnavailable)
		return
	}

	var batch wire.ViolationBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := make([]violation.Violation, 0, len(batch.Violations))
	for _, wv := range batch.Violations {
		v, err := wire.FromWire(wv)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in = append(in, v)
	}

	out, err := s.violations(int(batch.RequesterRank), int(batch.RoundNumber), in)
	if err != nil {
		log.Printf("httprpc: violations handler failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	reply := wire.ViolationBatch{
		ResponderRank: batch.RequesterRank,
		RoundNumber:   batch.RoundNumber,
		Violations:    make([]wire.WireViolation, len(out)),
	}
	for i, v := range out {
		reply.Violations[i] = wire.ToWire(v)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.Printf("httprpc: encoding violations reply failed: %v", err)
	}
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	if s.refine == nil {
		http.Error(w, "refinement requests not configured", http.StatusServiceUnavailable)
		return
	}

	var req wire.RefinementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	keys := make([]spatialkey.Key, 0, len(req.BoundaryKeys))
	for _, b := range req.BoundaryKeys {
		k, err := spatialkey.ParseBytes(b)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		keys = append(keys, k)
	}

	elements, more, err := s.refine(int(req.RequesterRank), int(req.RoundNumber), keys, int(req.TreeLevel))
	if err != nil {
		log.Printf("httprpc: refine handler failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	reply := wire.RefinementResponse{
		RoundNumber:          req.RoundNumber,
		MoreRefinementNeeded: more,
		GhostElements:        make([]wire.GhostElement, len(elements)),
	}
	for i, e := range elements {
		reply.GhostElements[i] = wire.GhostElement{
			SpatialKey: e.Key.Bytes(),
			Content:    e.Content,
			OwnerRank:  int32(e.OwnerRank),
			TreeID:     e.TreeID,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.Printf("httprpc: encoding refine reply failed: %v", err)
	}
}
