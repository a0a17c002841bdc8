// Package refinement implements the refinement request manager. It
// assembles per-partner requests, groups
// them into partner-addressed batches, and tracks round-trip latency for
// the requests the refinement coordinator sends each round.
package refinement
