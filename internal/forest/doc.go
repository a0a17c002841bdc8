// Package forest declares the external collaborator interfaces this
// module treats as injected: SpatialIndex (one octree/tetree), Forest
// (the set of trees a partition owns), and BalanceChecker (violation
// detection against a ghost layer). Real mesh geometry is out of scope,
// so this package also ships a minimal in-memory reference implementation
// of each interface, used by the orchestrator's tests and by cmd/balancer
// when no richer mesh library is wired in.
package forest
