// Package registry implements the partition registry collaborator: an
// arena of partition records indexed by rank, a round-keyed
// synchronization barrier, and pending-refinement bookkeeping.
//
// This generalizes a hub-and-spoke coordinator/cluster model (one
// coordinator, many storage nodes, consistent-hash shard assignment)
// into a symmetric arena of equal-rank partitions: the butterfly pattern
// is coordinator-free by construction, so there is no single node that
// owns the registry. Every partition holds its own Registry value,
// populated with the same partition list, and the Barrier is the only
// cross-partition synchronization point.
package registry
