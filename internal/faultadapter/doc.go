// Package faultadapter implements two fault adapters: a ghost-sync
// adapter that turns transport callbacks into failure
// detector calls, and a fault-tolerant forest decorator that lets the
// recovery coordinator synchronize with in-flight balance cycles.
package faultadapter
