package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/treebalancer/internal/refinement"
	"github.com/dreamware/treebalancer/internal/registry"
	"github.com/dreamware/treebalancer/internal/spatialkey"
)

func newRegistry(rank, p int, barrier *registry.Barrier) *registry.Registry {
	parts := make([]registry.Partition, p)
	for i := 0; i < p; i++ {
		parts[i] = registry.NewPartition(i, "")
	}
	return registry.New(rank, parts, barrier, nil)
}

func TestCoordinateConvergesImmediately(t *testing.T) {
	barrier := registry.NewBarrier(2)
	reg0 := newRegistry(0, 2, barrier)
	reg1 := newRegistry(1, 2, barrier)

	send := func(context.Context, refinement.Request) (Response, error) {
		return Response{GhostElementsCount: 3, MoreRefinementNeeded: false}, nil
	}

	c0 := New(0, send, refinement.NewManager(), 0)
	c1 := New(1, send, refinement.NewManager(), 0)

	var wg sync.WaitGroup
	var res0, res1 Result
	var err0, err1 error
	wg.Add(2)
	go func() {
		defer wg.Done()
		res0, err0 = c0.Coordinate(context.Background(), 2, 10, reg0, nil, 0)
	}()
	go func() {
		defer wg.Done()
		res1, err1 = c1.Coordinate(context.Background(), 2, 10, reg1, nil, 0)
	}()
	wg.Wait()

	require.NoError(t, err0)
	require.NoError(t, err1)
	assert.True(t, res0.Converged)
	assert.True(t, res1.Converged)
	assert.Equal(t, 1, res0.RoundsExecuted)
	assert.Equal(t, 3, res0.RefinementsApplied)
}

func TestCoordinateRunsUntilMaxRounds(t *testing.T) {
	barrier := registry.NewBarrier(2)
	reg0 := newRegistry(0, 2, barrier)
	reg1 := newRegistry(1, 2, barrier)

	send := func(context.Context, refinement.Request) (Response, error) {
		return Response{MoreRefinementNeeded: true}, nil
	}

	c0 := New(0, send, nil, 0)
	c1 := New(1, send, nil, 0)

	var wg sync.WaitGroup
	var res0 Result
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		res0, err = c0.Coordinate(context.Background(), 2, 1, reg0, nil, 0)
		require.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := c1.Coordinate(context.Background(), 2, 1, reg1, nil, 0)
		require.NoError(t, err)
	}()
	wg.Wait()

	assert.False(t, res0.Converged)
	assert.Equal(t, 1, res0.RoundsExecuted)
}

func TestCoordinateSinglePartitionRunsNoRounds(t *testing.T) {
	barrier := registry.NewBarrier(1)
	reg := newRegistry(0, 1, barrier)

	send := func(context.Context, refinement.Request) (Response, error) {
		return Response{}, errors.New("transport down")
	}
	c := New(0, send, nil, 0)

	keys := []spatialkey.Key{spatialkey.Root()}
	res, err := c.Coordinate(context.Background(), 1, 5, reg, keys, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RoundsExecuted, "P=1 has zero required rounds")
}

func TestCoordinateTimesOutSlowPartner(t *testing.T) {
	barrier := registry.NewBarrier(2)
	reg0 := newRegistry(0, 2, barrier)
	reg1 := newRegistry(1, 2, barrier)

	blockSend := func(ctx context.Context, _ refinement.Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	fastSend := func(context.Context, refinement.Request) (Response, error) {
		return Response{MoreRefinementNeeded: false}, nil
	}

	c0 := New(0, blockSend, nil, 100*time.Millisecond)
	c1 := New(1, fastSend, nil, 100*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	var err0, err1 error
	go func() {
		defer wg.Done()
		_, err0 = c0.Coordinate(context.Background(), 2, 10, reg0, nil, 0)
	}()
	go func() {
		defer wg.Done()
		_, err1 = c1.Coordinate(context.Background(), 2, 10, reg1, nil, 0)
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("coordinate did not return within the per-request timeout budget")
	}
	require.NoError(t, err0)
	require.NoError(t, err1)
}

func TestCoordinateZeroMaxRoundsSendsNothing(t *testing.T) {
	barrier := registry.NewBarrier(2)
	reg := newRegistry(0, 2, barrier)

	send := func(context.Context, refinement.Request) (Response, error) {
		t.Fatal("no request may be sent when max rounds is zero")
		return Response{}, nil
	}
	c := New(0, send, nil, 0)

	res, err := c.Coordinate(context.Background(), 2, 0, reg, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RoundsExecuted)
	assert.False(t, res.Converged)
	assert.Equal(t, 0, res.RefinementsApplied)
}

func TestCoordinateConvergedStaysConvergedOnReinvocation(t *testing.T) {
	barrier := registry.NewBarrier(2)
	reg0 := newRegistry(0, 2, barrier)
	reg1 := newRegistry(1, 2, barrier)

	// Topology quiet: partners report nothing left to refine.
	send := func(context.Context, refinement.Request) (Response, error) {
		return Response{GhostElementsCount: 0, MoreRefinementNeeded: false}, nil
	}
	c0 := New(0, send, nil, 0)
	c1 := New(1, send, nil, 0)

	run := func() (Result, Result) {
		var wg sync.WaitGroup
		var res0, res1 Result
		wg.Add(2)
		go func() {
			defer wg.Done()
			var err error
			res0, err = c0.Coordinate(context.Background(), 2, 10, reg0, nil, 0)
			require.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			var err error
			res1, err = c1.Coordinate(context.Background(), 2, 10, reg1, nil, 0)
			require.NoError(t, err)
		}()
		wg.Wait()
		return res0, res1
	}

	first0, first1 := run()
	assert.True(t, first0.Converged)
	assert.True(t, first1.Converged)

	second0, second1 := run()
	assert.True(t, second0.Converged)
	assert.True(t, second1.Converged)
	assert.Equal(t, 0, second0.RefinementsApplied)
	assert.Equal(t, 0, second1.RefinementsApplied)
}
