// Package shard assigns trees to partition ranks and tracks the
// balancing state of each locally owned tree.
//
// Assignment is deterministic: OwnerRank hashes a tree id with FNV-1a
// and takes it modulo the partition count, so every peer agrees on who
// owns which tree without a directory service or any coordination
// traffic. A refinement request for a tree can therefore be routed
// straight to its owner by any partition that knows P.
//
// TreeShard and Map are the owning partition's bookkeeping: what state
// each tree is in (active, mid-rebalance, recovering) and how much
// balancing work it has absorbed. cmd/balancer seeds one TreeShard per
// locally assigned tree at startup and brackets every balance cycle
// with Map.SetAll.
package shard
