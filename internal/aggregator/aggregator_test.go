package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

func localViolation(rank int) violation.Violation {
	local, _ := spatialkey.Root().Child(uint8(rank % 8))
	ghost, _ := spatialkey.Root().Child(uint8((rank + 1) % 8))
	ghost, _ = ghost.Child(0)
	ghost, _ = ghost.Child(0)
	return violation.Violation{LocalKey: local, GhostKey: ghost, LocalLevel: local.Level(), GhostLevel: ghost.Level(), OwnerRank: rank, TreeID: 1}
}

// inProcessCluster runs a butterfly exchange for p simulated ranks over
// in-memory channels, one round at a time, so every rank's Aggregate
// call can synchronously hand its batch to its partner's matching call.
type inProcessCluster struct {
	p       int
	round   int
	mu      sync.Mutex
	cond    *sync.Cond
	inbox   map[int][]violation.Violation
	pending map[int]bool
}

func newCluster(p int) *inProcessCluster {
	c := &inProcessCluster{p: p, inbox: make(map[int][]violation.Violation), pending: make(map[int]bool)}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *inProcessCluster) exchangeFor(rank int) Exchange {
	return func(_ context.Context, partner, round int, batch []violation.Violation) ([]violation.Violation, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		key := rank<<16 | partner
		c.inbox[key] = batch
		c.pending[rank] = true
		c.cond.Broadcast()

		peerKey := partner<<16 | rank
		for c.inbox[peerKey] == nil {
			c.cond.Wait()
		}
		received := c.inbox[peerKey]
		delete(c.inbox, peerKey)
		return received, nil
	}
}

func TestAggregateSinglePartitionIsNoOp(t *testing.T) {
	local := []violation.Violation{localViolation(0)}
	out, err := Aggregate(context.Background(), 0, 1, local, func(context.Context, int, int, []violation.Violation) ([]violation.Violation, error) {
		t.Fatal("exchange must not be called for P=1")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, local, out)
}

func TestAggregateConvergesAcrossPartitions(t *testing.T) {
	for _, p := range []int{2, 3, 5, 8} {
		p := p
		t.Run("", func(t *testing.T) {
			cluster := newCluster(p)
			var wg sync.WaitGroup
			results := make([][]violation.Violation, p)
			localSets := make([]violation.Violation, p)
			for r := 0; r < p; r++ {
				localSets[r] = localViolation(r)
			}

			for r := 0; r < p; r++ {
				r := r
				wg.Add(1)
				go func() {
					defer wg.Done()
					out, err := Aggregate(context.Background(), r, p, []violation.Violation{localSets[r]}, cluster.exchangeFor(r))
					require.NoError(t, err)
					results[r] = out
				}()
			}
			wg.Wait()

			for r := 0; r < p; r++ {
				assert.Len(t, results[r], p, "rank %d should see every partition's violation", r)
			}
		})
	}
}

func TestAggregatePropagatesExchangeError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Aggregate(context.Background(), 0, 2, nil, func(context.Context, int, int, []violation.Violation) ([]violation.Violation, error) {
		return nil, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestAggregateDedupsByKeyFirstSeenWins(t *testing.T) {
	v := localViolation(0)
	dup := v
	dup.OwnerRank = 999 // same dedup key, different payload

	called := false
	out, err := Aggregate(context.Background(), 0, 2, []violation.Violation{v}, func(_ context.Context, partner, round int, batch []violation.Violation) ([]violation.Violation, error) {
		if !called {
			called = true
			return []violation.Violation{dup}, nil
		}
		return nil, nil
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, v.OwnerRank, out[0].OwnerRank, "first-seen value must win on dedup")
}
