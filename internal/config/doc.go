// Package config holds the immutable, validated-at-construction tuning
// records for a balance cycle
// (BalanceConfiguration) and for the failure detector
// (FailureDetectionConfig).
//
// Both types are plain value structs — there is nothing to protect with a
// mutex, because neither is ever mutated after construction. The
// constructors are the only way to produce one, and they return
// ErrConfigInvalid before any
// state is published if an argument is out of its documented range.
package config
