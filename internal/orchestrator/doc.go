// Package orchestrator implements the three-phase balance orchestrator.
// One Balance call runs three sequential phases —
// local rebalance, ghost exchange, cross-partition butterfly refinement
// — short-circuiting on the first failure and always releasing its
// per-cycle context before returning.
package orchestrator
