// Package metrics provides monotonic counters for rounds executed and
// refinements applied, plus a histogram
// of per-round durations, with immutable Snapshot semantics.
//
// Every counter is recorded twice: once into a plain atomic field (the
// source of truth for Snapshot, which has no Prometheus dependency and is
// cheap enough to call from a hot path) and once into a
// github.com/prometheus/client_golang collector (the source of truth for
// the /metrics HTTP endpoint exposed by cmd/balancer). The two are updated
// in the same call so they never diverge.
package metrics
