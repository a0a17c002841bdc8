// Package cluster provides partition membership metadata and the HTTP
// plumbing partitions use to talk to each other.
// See doc.go for complete package documentation.
package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// MemberInfo describes one partition process to its peers: who it is,
// where to reach it, and what the local failure detector currently
// thinks of it. It is the payload of the /cluster/members endpoint, so
// an operator (or another partition) can read one process's view of the
// whole arena.
//
// MemberInfo is safe for concurrent read access once built; builders
// assemble a fresh slice per request rather than mutating a shared one.
type MemberInfo struct {
	// Rank is the partition's position in [0, P).
	Rank int `json:"rank"`

	// ID is the partition's stable identity, independent of rank.
	ID uuid.UUID `json:"id"`

	// Addr is where the partition's HTTP transport listens.
	// Format: "host:port". Empty for in-process-only partitions.
	Addr string `json:"addr,omitempty"`

	// Status is the local failure detector's current verdict:
	// "healthy", "suspected", "failed", or "recovering". The empty
	// string means this process doesn't track the member (itself).
	Status string `json:"status,omitempty"`

	// LastChecked records when Status was last computed. Zero if the
	// member has never been health checked.
	LastChecked time.Time `json:"last_checked,omitzero"`
}

// httpClient is the shared client for all cluster communication. The 5s
// timeout keeps a hung peer from stalling a heartbeat or exchange loop
// past the failure detector's own suspect threshold.
var httpClient = &http.Client{Timeout: 5 * time.Second}

// PostJSON sends body as a JSON POST to url and decodes the JSON
// response into out. Pass nil out to discard the response body. A non-2xx
// status is an error.
func PostJSON(ctx context.Context, url string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON sends a GET to url and decodes the JSON response into out.
// Pass nil out when only the status code matters (health probes).
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
