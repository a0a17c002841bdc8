// Package health implements a Φ-style, heartbeat-driven failure
// detector. Each known partition has a
// (last-heartbeat, status) pair; a background worker re-evaluates every
// partition's status every check-interval, and delivers a fault event to
// the recovery coordinator exactly once per Failed transition.
//
// The onFailed callback fires from its own goroutine so it never runs
// under the detector's lock.
package health
