package httprpc

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dreamware/treebalancer/internal/cluster"
	"github.com/dreamware/treebalancer/internal/coordinator"
	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/refinement"
	"github.com/dreamware/treebalancer/internal/registry"
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
	"github.com/dreamware/treebalancer/internal/wire"
)

// requestTimeout bounds every outbound call this client makes, matching
// the coordinator's own 5s per-request deadline.
const requestTimeout = 5 * time.Second

// Client is the HTTP/JSON RpcClient collaborator. It looks
// up peer addresses in a Registry rather than owning its own address
// book, so it stays in sync with whatever partition list the process was
// started with.
type Client struct {
	registry *registry.Registry
}

// NewClient constructs a Client addressing peers through reg.
func NewClient(reg *registry.Registry) *Client {
	return &Client{registry: reg}
}

func (c *Client) addrForRank(rank int) (string, error) {
	for _, p := range c.registry.Partitions() {
		if p.Rank == rank {
			if p.Addr == "" {
				return "", fmt.Errorf("httprpc: rank %d has no address", rank)
			}
			return p.Addr, nil
		}
	}
	return "", fmt.Errorf("httprpc: no partition registered for rank %d", rank)
}

// postJSON sends body as a JSON POST to url and decodes the JSON
// response into out (skipped if out is nil), bounding the call to the
// per-request deadline even when ctx itself has none.
func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return cluster.PostJSON(ctx, url, body, out)
}

// ExchangeViolations implements aggregator.Exchange: it posts batch to
// partner's /balance/violations endpoint and returns the violations
// partner sends back.
func (c *Client) ExchangeViolations(ctx context.Context, partner, round int, batch []violation.Violation) ([]violation.Violation, error) {
	addr, err := c.addrForRank(partner)
	if err != nil {
		return nil, err
	}

	wireBatch := wire.ViolationBatch{
		RequesterRank: int64(c.registry.CurrentRank()),
		ResponderRank: int64(partner),
		RoundNumber:   int64(round),
		TimestampMs:   time.Now().UnixMilli(),
		Violations:    make([]wire.WireViolation, len(batch)),
	}
	for i, v := range batch {
		wireBatch.Violations[i] = wire.ToWire(v)
	}

	var reply wire.ViolationBatch
	if err := c.postJSON(ctx, "http://"+addr+"/balance/violations", wireBatch, &reply); err != nil {
		return nil, fmt.Errorf("httprpc: exchange violations with rank %d: %w", partner, err)
	}

	out := make([]violation.Violation, 0, len(reply.Violations))
	for _, wv := range reply.Violations {
		v, err := wire.FromWire(wv)
		if err != nil {
			return nil, fmt.Errorf("httprpc: decoding violation from rank %d: %w", partner, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SendRefinementRequest implements coordinator.RequestSender.
func (c *Client) SendRefinementRequest(ctx context.Context, req refinement.Request) (coordinator.Response, error) {
	addr, err := c.addrForRank(req.ResponderRank)
	if err != nil {
		return coordinator.Response{}, err
	}

	boundary := make([][]byte, len(req.BoundaryKeys))
	for i, k := range req.BoundaryKeys {
		boundary[i] = k.Bytes()
	}
	wireReq := wire.RefinementRequest{
		RequesterRank: int64(req.RequesterRank),
		RoundNumber:   int64(req.RoundNumber),
		TreeLevel:     int32(req.TreeLevel),
		BoundaryKeys:  boundary,
		TimestampMs:   time.Now().UnixMilli(),
	}

	var reply wire.RefinementResponse
	if err := c.postJSON(ctx, "http://"+addr+"/balance/refine", wireReq, &reply); err != nil {
		return coordinator.Response{}, fmt.Errorf("httprpc: refinement request to rank %d: %w", req.ResponderRank, err)
	}

	return coordinator.Response{
		GhostElementsCount:   len(reply.GhostElements),
		MoreRefinementNeeded: reply.MoreRefinementNeeded,
	}, nil
}

// Exchange implements orchestrator.GhostTransport by reusing the
// refinement-request wire format to carry boundary leaves and reading
// back the responder's ghost elements.
func (c *Client) Exchange(ctx context.Context, neighborRank int, outgoing []forest.GhostElement) ([]forest.GhostElement, error) {
	addr, err := c.addrForRank(neighborRank)
	if err != nil {
		return nil, err
	}

	boundary := make([][]byte, len(outgoing))
	for i, g := range outgoing {
		boundary[i] = g.Key.Bytes()
	}
	wireReq := wire.RefinementRequest{
		RequesterRank: int64(c.registry.CurrentRank()),
		TimestampMs:   time.Now().UnixMilli(),
		BoundaryKeys:  boundary,
	}

	var reply wire.RefinementResponse
	if err := c.postJSON(ctx, "http://"+addr+"/balance/refine", wireReq, &reply); err != nil {
		return nil, fmt.Errorf("httprpc: ghost exchange with rank %d: %w", neighborRank, err)
	}

	out := make([]forest.GhostElement, 0, len(reply.GhostElements))
	for _, ge := range reply.GhostElements {
		key, err := spatialkey.ParseBytes(ge.SpatialKey)
		if err != nil {
			return nil, fmt.Errorf("httprpc: decoding ghost element from rank %d: %w", neighborRank, err)
		}
		out = append(out, forest.GhostElement{Key: key, TreeID: ge.TreeID, OwnerRank: int(ge.OwnerRank), Content: ge.Content})
	}
	return out, nil
}

// NotifyBarrierArrival broadcasts that this client's rank has reached
// round to every other known peer's /balance/barrier endpoint, so their
// local registry.Barrier instances learn about this rank's
// arrival. Failures are logged, not returned, and a failed notification
// is not resent: a peer that missed it never records this rank's arrival
// for that round, and its Barrier.Wait for the round ends only when its
// context does.
func (c *Client) NotifyBarrierArrival(ctx context.Context, round int) {
	arrival := wire.BarrierArrival{Rank: int64(c.registry.CurrentRank()), Round: int64(round)}
	for _, p := range c.registry.Partitions() {
		if p.Rank == c.registry.CurrentRank() || p.Addr == "" {
			continue
		}
		url := "http://" + p.Addr + "/balance/barrier"
		if err := c.postJSON(ctx, url, arrival, nil); err != nil {
			log.Printf("httprpc: barrier notify to rank %d failed: %v", p.Rank, err)
		}
	}
}

// Health polls a peer's /health endpoint, returning a non-nil error if
// it doesn't answer with 2xx before ctx or the client's own timeout
// expires.
func (c *Client) Health(ctx context.Context, rank int) error {
	addr, err := c.addrForRank(rank)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if err := cluster.GetJSON(ctx, "http://"+addr+"/health", nil); err != nil {
		return fmt.Errorf("httprpc: rank %d health: %w", rank, err)
	}
	return nil
}
