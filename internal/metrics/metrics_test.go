package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundAndRefinements(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRound(10 * time.Millisecond)
	m.RecordRound(20 * time.Millisecond)
	m.RecordRefinements(3)
	m.RecordRefinements(0) // no-op, never published as a negative delta

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RoundsExecuted)
	assert.Equal(t, uint64(3), snap.RefinementsApplied)
	require.Len(t, snap.RoundDurations, 2)
	assert.Equal(t, 10*time.Millisecond, snap.RoundDurations[0])
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordRound(time.Millisecond)

	snap := m.Snapshot()
	m.RecordRound(time.Millisecond)

	assert.Len(t, snap.RoundDurations, 1, "earlier snapshot must not see later rounds")
}

func TestNewWithNilRegistererDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		m := New(nil)
		m.RecordRound(time.Millisecond)
		m.RecordRefinements(1)
	})
}
