// Package local is an in-process transport: partitions in the same test
// or single-process deployment exchange violations and refinement
// requests through direct function calls registered on a shared Cluster,
// instead of going over HTTP. It implements the same aggregator.Exchange,
// coordinator.RequestSender, and orchestrator.GhostTransport shapes as
// internal/transport/httprpc, without the wire encoding round trip.
package local
