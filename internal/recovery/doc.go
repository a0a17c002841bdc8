// Package recovery implements a pluggable recovery strategy interface
// and a coordinator that reacts to the
// failure detector's Failed transitions by running a strategy.
//
// Three strategies ship: NoOp (testing only), Barrier (wait via the
// in-flight op tracker for running cycles to drain, then run the strategy
// body; new cycles are not held back from starting meanwhile), and
// Cascading (Barrier recovery for the target plus its immediate
// neighbors, in order). All three are reachable through the single
// Strategy interface.
package recovery
