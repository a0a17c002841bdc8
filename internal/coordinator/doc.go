// Package coordinator implements the cross-partition refinement
// coordinator. It drives at most min(⌈log₂ P⌉, max_rounds)
// butterfly-paired refinement rounds, barrier-synchronizing every round
// through a registry.Registry, and returns as soon as a round reports no
// further refinement is needed.
//
// There is no central coordinator process: every partition runs this
// same code against a symmetric arena of equal-rank peers. Health
// tracking lives in internal/health and the partition view and barrier
// in internal/registry.
package coordinator
