package httprpc

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/refinement"
	"github.com/dreamware/treebalancer/internal/registry"
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

func addrOf(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestClientExchangeViolationsRoundTrip(t *testing.T) {
	remoteViolation := violation.Violation{LocalKey: spatialkey.Root(), GhostKey: spatialkey.Root(), OwnerRank: 7}
	srv := NewServer(func(partner, round int, batch []violation.Violation) ([]violation.Violation, error) {
		assert.Equal(t, 0, partner)
		assert.Equal(t, 1, round)
		assert.Empty(t, batch)
		return []violation.Violation{remoteViolation}, nil
	}, nil, nil)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	reg := registry.New(0, []registry.Partition{
		registry.NewPartition(0, ""),
		registry.NewPartition(1, addrOf(ts)),
	}, registry.NewBarrier(2), nil)
	client := NewClient(reg)

	out, err := client.ExchangeViolations(context.Background(), 1, 1, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 7, out[0].OwnerRank)
}

func TestClientSendRefinementRequestRoundTrip(t *testing.T) {
	srv := NewServer(nil, func(requesterRank, round int, boundaryKeys []spatialkey.Key, treeLevel int) ([]forest.GhostElement, bool, error) {
		assert.Equal(t, 0, requesterRank)
		return []forest.GhostElement{{Key: spatialkey.Root()}, {Key: spatialkey.Root()}}, true, nil
	}, nil)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	reg := registry.New(0, []registry.Partition{
		registry.NewPartition(0, ""),
		registry.NewPartition(1, addrOf(ts)),
	}, registry.NewBarrier(2), nil)
	client := NewClient(reg)

	req := refinement.BuildRequest(0, 1, 1, []spatialkey.Key{spatialkey.Root()}, 0)
	resp, err := client.SendRefinementRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.GhostElementsCount)
	assert.True(t, resp.MoreRefinementNeeded)
}

func TestClientHealthReportsServerStatus(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	reg := registry.New(0, []registry.Partition{
		registry.NewPartition(0, ""),
		registry.NewPartition(1, addrOf(ts)),
	}, registry.NewBarrier(2), nil)
	client := NewClient(reg)

	require.NoError(t, client.Health(context.Background(), 1))
}

func TestClientUnknownRankFails(t *testing.T) {
	reg := registry.New(0, []registry.Partition{registry.NewPartition(0, "")}, registry.NewBarrier(1), nil)
	client := NewClient(reg)
	_, err := client.ExchangeViolations(context.Background(), 9, 0, nil)
	require.Error(t, err)
}

func TestClientNotifyBarrierArrivalReachesPeer(t *testing.T) {
	arrived := make(chan [2]int, 1)
	srv := NewServer(nil, nil, func(rank, round int) {
		arrived <- [2]int{rank, round}
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	reg := registry.New(0, []registry.Partition{
		registry.NewPartition(0, ""),
		registry.NewPartition(1, addrOf(ts)),
	}, registry.NewBarrier(2), nil)
	client := NewClient(reg)

	client.NotifyBarrierArrival(context.Background(), 3)

	select {
	case got := <-arrived:
		assert.Equal(t, [2]int{0, 3}, got)
	case <-time.After(time.Second):
		t.Fatal("barrier notify did not reach peer")
	}
}
