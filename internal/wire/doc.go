// Package wire defines the RPC messages exchanged between partitions
// during balancing: ViolationBatch, RefinementRequest,
// RefinementResponse, and BarrierArrival. Types here carry JSON tags for
// the HTTP/JSON transport (internal/transport/httprpc). The in-process
// transport (internal/transport/local) does not use them; it passes
// violation.Violation values and spatial keys directly.
package wire
