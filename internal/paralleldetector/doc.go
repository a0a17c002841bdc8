// Package paralleldetector implements a concurrent violation detector:
// ghost-layer elements are partitioned into min(P, NumCPU)
// chunks, each chunk is checked against the local forest concurrently via
// golang.org/x/sync/errgroup, and results are merged into one
// unordered-across-chunks violation slice.
//
// Detector is a scoped resource: Close drains any in-flight
// Detect calls within a 5s grace period and force-cancels them past that.
package paralleldetector
