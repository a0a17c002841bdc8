// Package storage holds the opaque per-leaf payloads the reference
// trees in internal/forest carry alongside their structural key sets.
//
// The Store interface is deliberately small: leaf content is written
// when an entity is attached to a leaf, moved when a rebalance splits
// that leaf, and read when a refinement request from a peer needs the
// leaf's content echoed back as a ghost element. MemoryStore is the one
// shipped implementation; a mesh library embedding this module supplies
// its own Store when leaf payloads live somewhere real (a mesh file, an
// entity database) rather than in process memory.
package storage
