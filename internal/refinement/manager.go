package refinement

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a point-in-time snapshot of the manager's request/response
// counters.
type Metrics struct {
	TotalRequests  uint64
	TotalResponses uint64
	AverageRTTMs   float64
}

// Manager tracks outstanding refinement requests and folds their
// round-trip time into a running average. Every operation is either a
// sync.Map access or an atomic increment, so concurrent rounds never
// contend on a single mutex.
type Manager struct {
	sendTimes      sync.Map // key() -> time.Time
	totalRequests  atomic.Uint64
	totalResponses atomic.Uint64
	rttSumMs       atomic.Uint64
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

func key(responderRank, round int) string {
	return fmt.Sprintf("req-%d-%d", responderRank, round)
}

// TrackRequest records that req was sent at sendTime, and increments the
// total-requests counter.
func (m *Manager) TrackRequest(req Request, sendTime time.Time) {
	m.sendTimes.Store(key(req.ResponderRank, req.RoundNumber), sendTime)
	m.totalRequests.Add(1)
}

// TrackResponse records that a response for (responderRank, round)
// arrived at now, folding its round-trip time into the running average.
// It is a no-op (beyond the total-responses counter) if no matching
// request was tracked — a timed-out request whose empty-response
// substitute is still counted by the coordinator.
func (m *Manager) TrackResponse(responderRank, round int, now time.Time) {
	m.totalResponses.Add(1)
	k := key(responderRank, round)
	v, ok := m.sendTimes.LoadAndDelete(k)
	if !ok {
		return
	}
	sendTime := v.(time.Time)
	rtt := now.Sub(sendTime)
	if rtt < 0 {
		rtt = 0
	}
	m.rttSumMs.Add(uint64(rtt.Milliseconds()))
}

// Snapshot returns the manager's current metrics.
func (m *Manager) Snapshot() Metrics {
	responses := m.totalResponses.Load()
	var avg float64
	if responses > 0 {
		avg = float64(m.rttSumMs.Load()) / float64(responses)
	}
	return Metrics{
		TotalRequests:  m.totalRequests.Load(),
		TotalResponses: responses,
		AverageRTTMs:   avg,
	}
}

// Clear resets all counters and in-flight timestamps.
func (m *Manager) Clear() {
	m.sendTimes.Range(func(k, _ any) bool {
		m.sendTimes.Delete(k)
		return true
	})
	m.totalRequests.Store(0)
	m.totalResponses.Store(0)
	m.rttSumMs.Store(0)
}
