package aggregator

import (
	"context"
	"fmt"

	"github.com/dreamware/treebalancer/internal/butterfly"
	"github.com/dreamware/treebalancer/internal/violation"
)

// Exchange sends batch to partner for the given round and blocks until
// that partner's own batch arrives. It is the one collaborator
// Aggregate injects rather than owns, since the actual transport (HTTP,
// in-process channel, or otherwise) is outside this package's concern.
type Exchange func(ctx context.Context, partner, round int, batch []violation.Violation) ([]violation.Violation, error)

// set is an insertion-ordered dedup map: downstream iteration must be
// deterministic across peers, which a bare Go map cannot give by itself.
type set struct {
	index map[violation.Key]int
	order []violation.Violation
}

func newSet() *set {
	return &set{index: make(map[violation.Key]int)}
}

// putIfAbsent inserts v only if its dedup key hasn't been seen; the
// first-seen value wins for every field.
func (s *set) putIfAbsent(v violation.Violation) {
	k := v.DedupKey()
	if _, ok := s.index[k]; ok {
		return
	}
	s.index[k] = len(s.order)
	s.order = append(s.order, v)
}

func (s *set) values() []violation.Violation {
	out := make([]violation.Violation, len(s.order))
	copy(out, s.order)
	return out
}

// Aggregate runs the butterfly aggregation protocol to completion and
// returns the deduplicated union of every partition's local violations.
//
// P == 1 returns local unchanged with no exchange. For P not a power of
// two, ranks with no partner in a given round simply skip it; the
// partner relation's symmetry still guarantees full coverage after
// RequiredRounds(P) rounds.
//
// If exchange returns an error, the round is aborted and the error
// propagates immediately: no partial round's received entries are
// merged, so the caller never observes a torn intermediate state.
func Aggregate(ctx context.Context, myRank, p int, local []violation.Violation, exchange Exchange) ([]violation.Violation, error) {
	merged := newSet()
	for _, v := range local {
		merged.putIfAbsent(v)
	}

	if p <= 1 {
		return merged.values(), nil
	}

	rounds := butterfly.RequiredRounds(p)
	for round := 0; round < rounds; round++ {
		partner := butterfly.Partner(myRank, round, p)
		if partner == butterfly.NoPartner {
			continue
		}

		batch := merged.values()
		received, err := exchange(ctx, partner, round, batch)
		if err != nil {
			return nil, fmt.Errorf("aggregator: round %d exchange with partner %d: %w", round, partner, err)
		}
		for _, v := range received {
			merged.putIfAbsent(v)
		}
	}
	return merged.values(), nil
}
