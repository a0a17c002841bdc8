package coordinator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dreamware/treebalancer/internal/butterfly"
	"github.com/dreamware/treebalancer/internal/refinement"
	"github.com/dreamware/treebalancer/internal/registry"
	"github.com/dreamware/treebalancer/internal/spatialkey"
)

// DefaultRequestTimeout bounds how long Coordinate waits for a single
// partner's response before substituting an empty one and moving on,
// when the caller doesn't supply its own deadline.
const DefaultRequestTimeout = 5 * time.Second

// Response is what a round learns from its butterfly partner: how many
// ghost elements it sent back, and whether it believes further
// refinement is still needed on its side.
type Response struct {
	GhostElementsCount   int
	MoreRefinementNeeded bool
}

// RequestSender delivers req to its responder and returns the partner's
// answer. The coordinator injects this rather than owning a transport,
// since HTTP, in-process, or any other wire format can implement it.
type RequestSender func(ctx context.Context, req refinement.Request) (Response, error)

// Phase names the coordinator's state machine position,
// used only for logging; Coordinate never branches on it directly.
type Phase string

const (
	PhaseInit        Phase = "init"
	PhaseRoundActive Phase = "round_active"
	PhaseBarrier     Phase = "barrier"
	PhaseConverged   Phase = "converged"
	PhaseTimedOut    Phase = "timed_out"
)

// Result is the outcome of one Coordinate call.
type Result struct {
	RoundsExecuted     int
	RefinementsApplied int
	Converged          bool
	TotalDuration      time.Duration
}

// Coordinator runs the butterfly refinement protocol for one partition.
type Coordinator struct {
	myRank         int
	send           RequestSender
	manager        *refinement.Manager
	requestTimeout time.Duration
}

// New constructs a Coordinator for myRank. manager may be nil to skip
// RTT tracking (tests that don't care about telemetry). requestTimeout
// bounds each partner request; pass 0 for DefaultRequestTimeout.
func New(myRank int, send RequestSender, manager *refinement.Manager, requestTimeout time.Duration) *Coordinator {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Coordinator{myRank: myRank, send: send, manager: manager, requestTimeout: requestTimeout}
}

// Coordinate runs at most min(⌈log₂ p⌉, maxRounds) refinement rounds
// against reg, requesting boundaryKeys at treeLevel each round. It
// returns as soon as a round's response says no further refinement is
// needed.
func (c *Coordinator) Coordinate(ctx context.Context, p, maxRounds int, reg *registry.Registry, boundaryKeys []spatialkey.Key, treeLevel int) (Result, error) {
	start := time.Now()
	target := butterfly.RequiredRounds(p)
	if maxRounds < target {
		target = maxRounds
	}

	result := Result{}
	phase := PhaseInit

	for r := 1; r <= target; r++ {
		phase = PhaseRoundActive
		result.RoundsExecuted = r

		partner := butterfly.Partner(c.myRank, r-1, p)
		converged := false
		if partner != butterfly.NoPartner {
			req := refinement.BuildRequest(c.myRank, partner, r, boundaryKeys, treeLevel)
			resp := c.runRound(ctx, partner, r, req)
			result.RefinementsApplied += resp.GhostElementsCount
			converged = !resp.MoreRefinementNeeded
		}

		phase = PhaseBarrier
		// Bounded: a peer that already declared convergence stops
		// arriving at later rounds, and an unbounded wait would hang the
		// cycle instead of failing it. The bound is twice the request
		// deadline, because a peer may spend a full request deadline on
		// its own unresponsive partner before it arrives here.
		barrierCtx, cancel := context.WithTimeout(ctx, 2*c.requestTimeout)
		err := reg.Barrier(barrierCtx, r)
		cancel()
		if err != nil {
			return result, fmt.Errorf("coordinator: barrier for round %d: %w", r, err)
		}

		if converged {
			phase = PhaseConverged
			result.Converged = true
			break
		}
	}

	if !result.Converged && result.RoundsExecuted == target && target > 0 {
		phase = PhaseTimedOut
	}
	log.Printf("coordinator: rank %d finished in phase %s after %d round(s), converged=%v", c.myRank, phase, result.RoundsExecuted, result.Converged)

	result.TotalDuration = time.Since(start)
	return result, nil
}

// runRound sends req to partner with a bounded deadline, substituting an
// empty response on timeout or transport error rather than failing the
// round.
func (c *Coordinator) runRound(ctx context.Context, partner, round int, req refinement.Request) Response {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	if c.manager != nil {
		c.manager.TrackRequest(req, time.Now())
	}

	type outcome struct {
		resp Response
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		resp, err := c.send(reqCtx, req)
		ch <- outcome{resp, err}
	}()

	var resp Response
	select {
	case o := <-ch:
		if o.err != nil {
			log.Printf("coordinator: round %d request to partner %d failed: %v", round, partner, o.err)
		} else {
			resp = o.resp
		}
	case <-reqCtx.Done():
		log.Printf("coordinator: round %d request to partner %d timed out after %s", round, partner, c.requestTimeout)
	}

	if c.manager != nil {
		c.manager.TrackResponse(partner, round, time.Now())
	}
	return resp
}
