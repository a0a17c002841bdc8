package faultadapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/treebalancer/internal/inflight"
)

type fakeForest struct{ trees int }

func (f *fakeForest) TreeCount() int { return f.trees }

func TestFaultTolerantForestPassesReadsThrough(t *testing.T) {
	tracker := inflight.New()
	ftf := NewFaultTolerantForest(&fakeForest{trees: 3}, tracker)
	assert.Equal(t, 3, ftf.TreeCount())
}

func TestFaultTolerantForestCyclesDriveTracker(t *testing.T) {
	tracker := inflight.New()
	ftf := NewFaultTolerantForest(&fakeForest{trees: 1}, tracker)

	ftf.BeginCycle()
	assert.Equal(t, 1, tracker.Count())

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, tracker.AwaitQuiescence(ctx))
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("AwaitQuiescence returned before EndCycle")
	default:
	}

	ftf.EndCycle()
	<-done
}
