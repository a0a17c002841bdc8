// Package spatialkey provides the default SpatialKey implementation used by
// every reference transport and test in the treebalancer module.
//
// A SpatialKey identifies a leaf in a hierarchical spatial tree (an octree,
// quadtree, or tetrahedral tree). The balancing engine in the parent
// packages never inspects the bits of a key beyond what this package
// exposes: Level, Parent, Child, Bytes, and a total order. Key is a
// concrete struct type that every package in this module uses directly;
// there is no interface through which another key encoding can be
// substituted.
package spatialkey
