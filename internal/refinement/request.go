package refinement

import "github.com/dreamware/treebalancer/internal/spatialkey"

// Request is one partition's ask to a specific butterfly partner for a
// given round: "here are my boundary leaves at this level, send back
// whatever of yours overlaps."
type Request struct {
	RequesterRank int
	ResponderRank int
	RoundNumber   int
	TreeLevel     int
	BoundaryKeys  []spatialkey.Key
}

// BuildRequest assembles a Request.
func BuildRequest(requesterRank, responderRank, round int, boundaryKeys []spatialkey.Key, treeLevel int) Request {
	keys := make([]spatialkey.Key, len(boundaryKeys))
	copy(keys, boundaryKeys)
	return Request{
		RequesterRank: requesterRank,
		ResponderRank: responderRank,
		RoundNumber:   round,
		TreeLevel:     treeLevel,
		BoundaryKeys:  keys,
	}
}

// Batch groups requests by ResponderRank, concatenating their boundary
// keys and splitting the concatenation back into chunks of at most
// batchSize keys. Grouping is by ResponderRank alone: requests to the
// same responder for different rounds or tree levels are merged, and
// the first request for each responder supplies RoundNumber and
// TreeLevel.
func Batch(requests []Request, batchSize int) []Request {
	if batchSize <= 0 {
		batchSize = 1
	}

	type group struct {
		requesterRank, responderRank, round, treeLevel int
		keys                                            []spatialkey.Key
	}
	order := make([]int, 0)
	byResponder := make(map[int]*group)

	for _, req := range requests {
		g, ok := byResponder[req.ResponderRank]
		if !ok {
			g = &group{
				requesterRank: req.RequesterRank,
				responderRank: req.ResponderRank,
				round:         req.RoundNumber,
				treeLevel:     req.TreeLevel,
			}
			byResponder[req.ResponderRank] = g
			order = append(order, req.ResponderRank)
		}
		g.keys = append(g.keys, req.BoundaryKeys...)
	}

	var out []Request
	for _, rank := range order {
		g := byResponder[rank]
		if len(g.keys) == 0 {
			out = append(out, Request{
				RequesterRank: g.requesterRank,
				ResponderRank: g.responderRank,
				RoundNumber:   g.round,
				TreeLevel:     g.treeLevel,
			})
			continue
		}
		for start := 0; start < len(g.keys); start += batchSize {
			end := start + batchSize
			if end > len(g.keys) {
				end = len(g.keys)
			}
			out = append(out, Request{
				RequesterRank: g.requesterRank,
				ResponderRank: g.responderRank,
				RoundNumber:   g.round,
				TreeLevel:     g.treeLevel,
				BoundaryKeys:  g.keys[start:end],
			})
		}
	}
	return out
}
