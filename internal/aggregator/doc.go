// Package aggregator implements the butterfly-pattern violation
// aggregator. Each round it exchanges its
// entire accumulated violation set with a butterfly partner, merges the
// partner's entries with putIfAbsent semantics, and after
// butterfly.RequiredRounds rounds every partition holds the same
// deduplicated union.
package aggregator
