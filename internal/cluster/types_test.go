package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberInfoJSON(t *testing.T) {
	id := uuid.New()
	member := MemberInfo{Rank: 2, ID: id, Addr: "localhost:8082", Status: "healthy"}

	data, err := json.Marshal(member)
	require.NoError(t, err)

	var decoded MemberInfo
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, member.Rank, decoded.Rank)
	assert.Equal(t, member.ID, decoded.ID)
	assert.Equal(t, member.Addr, decoded.Addr)
	assert.Equal(t, member.Status, decoded.Status)
}

func TestMemberInfoOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(MemberInfo{Rank: 0, ID: uuid.New()})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "addr")
	assert.NotContains(t, string(data), "status")
	assert.NotContains(t, string(data), "last_checked")
}

func TestPostJSONRoundTrip(t *testing.T) {
	type echo struct {
		Value string `json:"value"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in echo
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.Value = strings.ToUpper(in.Value)
		require.NoError(t, json.NewEncoder(w).Encode(in))
	}))
	defer srv.Close()

	var out echo
	err := PostJSON(context.Background(), srv.URL, echo{Value: "ping"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "PING", out.Value)
}

func TestPostJSONNilOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, PostJSON(context.Background(), srv.URL, struct{}{}, nil))
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), srv.URL, struct{}{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]int{"n": 7}))
	}))
	defer srv.Close()

	var out map[string]int
	require.NoError(t, GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, 7, out["n"])
}

func TestGetJSONCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, GetJSON(ctx, srv.URL, nil))
}

// recordingSink captures heartbeat outcomes for assertions.
type recordingSink struct {
	mu       sync.Mutex
	beats    map[uuid.UUID]int
	failures map[uuid.UUID]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{beats: make(map[uuid.UUID]int), failures: make(map[uuid.UUID]int)}
}

func (s *recordingSink) RecordHeartbeat(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats[id]++
}

func (s *recordingSink) ReportSyncFailure(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id]++
}

func (s *recordingSink) counts(id uuid.UUID) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beats[id], s.failures[id]
}

func TestHeartbeaterProbesMembers(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	up := MemberInfo{Rank: 1, ID: uuid.New(), Addr: strings.TrimPrefix(healthy.URL, "http://")}
	// No listener on this address: the probe must fail, not hang.
	down := MemberInfo{Rank: 2, ID: uuid.New(), Addr: "127.0.0.1:1"}
	local := MemberInfo{Rank: 0, ID: uuid.New()} // no addr, skipped

	sink := newRecordingSink()
	hb := NewHeartbeater([]MemberInfo{local, up, down}, sink, 20*time.Millisecond)

	go hb.Start(context.Background())
	time.Sleep(120 * time.Millisecond)
	hb.Stop()

	beats, fails := sink.counts(up.ID)
	assert.Greater(t, beats, 0, "reachable member should receive heartbeats")
	assert.Zero(t, fails)

	beats, fails = sink.counts(down.ID)
	assert.Zero(t, beats)
	assert.Greater(t, fails, 0, "unreachable member should be reported")

	beats, fails = sink.counts(local.ID)
	assert.Zero(t, beats)
	assert.Zero(t, fails)
}
