package paralleldetector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/spatialkey"
	"github.com/dreamware/treebalancer/internal/violation"
)

// countingChecker counts the calls it receives and
// returns one violation per ghost element so tests can assert nothing
// was dropped across chunk boundaries.
type countingChecker struct {
	calls atomic.Int64
	fail  error
}

func (c *countingChecker) FindViolations(_ []forest.SpatialIndex, ghosts []forest.GhostElement) ([]violation.Violation, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	out := make([]violation.Violation, len(ghosts))
	for i, g := range ghosts {
		out[i] = violation.Violation{LocalKey: g.Key, GhostKey: g.Key, OwnerRank: g.OwnerRank}
	}
	return out, nil
}

func makeGhosts(n int) []forest.GhostElement {
	out := make([]forest.GhostElement, n)
	for i := range out {
		out[i] = forest.GhostElement{Key: spatialkey.Root(), OwnerRank: i}
	}
	return out
}

func TestDetectEmptyGhostsShortCircuits(t *testing.T) {
	checker := &countingChecker{}
	d := New(checker, 4)
	out, err := d.Detect(context.Background(), nil, nil, 4)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, checker.calls.Load())
}

func TestDetectMergesAllChunks(t *testing.T) {
	checker := &countingChecker{}
	d := New(checker, 4)
	ghosts := makeGhosts(10)

	out, err := d.Detect(context.Background(), nil, ghosts, 4)
	require.NoError(t, err)
	assert.Len(t, out, 10)
	assert.GreaterOrEqual(t, checker.calls.Load(), int64(1))
}

func TestDetectPropagatesCheckerError(t *testing.T) {
	boom := errors.New("checker exploded")
	checker := &countingChecker{fail: boom}
	d := New(checker, 2)

	_, err := d.Detect(context.Background(), nil, makeGhosts(4), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestCloseAfterDetectCompletes(t *testing.T) {
	checker := &countingChecker{}
	d := New(checker, 2)

	done := make(chan struct{})
	go func() {
		_, _ = d.Detect(context.Background(), nil, makeGhosts(2), 2)
		close(done)
	}()

	<-done
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestDetectRejectsAfterClose(t *testing.T) {
	checker := &countingChecker{}
	d := New(checker, 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	_, err := d.Detect(context.Background(), nil, makeGhosts(2), 2)
	assert.ErrorIs(t, err, ErrDetectorClosed)
}

func TestChunkCountClampsToWorkersAndSize(t *testing.T) {
	assert.Equal(t, 1, chunkCount(0, 4, 10))
	assert.Equal(t, 2, chunkCount(8, 2, 10))
	assert.Equal(t, 3, chunkCount(8, 8, 3))
}
