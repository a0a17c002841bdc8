// Package httprpc is the HTTP/JSON transport: endpoints for
// /balance/violations, /balance/refine, /balance/barrier, and /health,
// backed by the internal/wire message types. Client posts JSON bodies
// through internal/cluster's shared helpers, bounding every call with a
// fixed per-request deadline, against peer addresses it looks up in a
// Registry. Server wires the same endpoints to local
// handler functions so a partition process can serve its peers'
// requests.
package httprpc
