package local

import (
	"context"

	"github.com/dreamware/treebalancer/internal/coordinator"
	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/refinement"
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

// Client is one partition's view onto a Cluster: every call is dispatched
// to the target rank's registered handler directly, under ctx's
// cancellation.
type Client struct {
	cluster *Cluster
	myRank  int
}

// NewClient constructs a Client for myRank, dispatching through cluster.
func NewClient(cluster *Cluster, myRank int) *Client {
	return &Client{cluster: cluster, myRank: myRank}
}

// ExchangeViolations implements aggregator.Exchange.
func (c *Client) ExchangeViolations(ctx context.Context, partner, round int, batch []violation.Violation) ([]violation.Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := c.cluster.violationHandler(partner)
	if err != nil {
		return nil, err
	}
	return h(c.myRank, round, batch)
}

// SendRefinementRequest implements coordinator.RequestSender.
func (c *Client) SendRefinementRequest(ctx context.Context, req refinement.Request) (coordinator.Response, error) {
	if err := ctx.Err(); err != nil {
		return coordinator.Response{}, err
	}
	h, err := c.cluster.refineHandler(req.ResponderRank)
	if err != nil {
		return coordinator.Response{}, err
	}
	elements, more, err := h(req.RequesterRank, req.RoundNumber, req.BoundaryKeys, req.TreeLevel)
	if err != nil {
		return coordinator.Response{}, err
	}
	return coordinator.Response{GhostElementsCount: len(elements), MoreRefinementNeeded: more}, nil
}

// Exchange implements orchestrator.GhostTransport.
func (c *Client) Exchange(ctx context.Context, neighborRank int, outgoing []forest.GhostElement) ([]forest.GhostElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := c.cluster.refineHandler(neighborRank)
	if err != nil {
		return nil, err
	}
	boundary := make([]spatialkey.Key, len(outgoing))
	for i, g := range outgoing {
		boundary[i] = g.Key
	}
	elements, _, err := h(c.myRank, 0, boundary, 0)
	return elements, err
}
