package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfigInvalid is the sentinel behind every config validation failure.
// Wrap it with fmt.Errorf("%w: ...", ErrConfigInvalid, ...) so callers can
// test for it with errors.Is regardless of which field failed.
var ErrConfigInvalid = errors.New("config invalid")

// BalanceConfiguration tunes one balance cycle.
type BalanceConfiguration struct {
	MaxRounds           int
	TimeoutPerRound     time.Duration
	BatchSize           int
	RefinementThreshold float64
}

// DefaultBalanceConfiguration returns the documented defaults: 10 max
// rounds, a 5s per-round timeout, a batch size of 100, and a 0.2
// refinement threshold.
func DefaultBalanceConfiguration() BalanceConfiguration {
	cfg, err := NewBalanceConfiguration(10, 5*time.Second, 100, 0.2)
	if err != nil {
		// Unreachable: the defaults are chosen to satisfy every
		// validation rule below.
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return cfg
}

// NewBalanceConfiguration validates its arguments and returns
// ErrConfigInvalid before any state is published if any of them is out
// of range.
func NewBalanceConfiguration(maxRounds int, timeoutPerRound time.Duration, batchSize int, refinementThreshold float64) (BalanceConfiguration, error) {
	if maxRounds < 1 {
		return BalanceConfiguration{}, fmt.Errorf("%w: max-rounds must be >= 1, got %d", ErrConfigInvalid, maxRounds)
	}
	if timeoutPerRound <= 0 {
		return BalanceConfiguration{}, fmt.Errorf("%w: timeout-per-round must be > 0, got %s", ErrConfigInvalid, timeoutPerRound)
	}
	if batchSize < 1 {
		return BalanceConfiguration{}, fmt.Errorf("%w: batch-size must be >= 1, got %d", ErrConfigInvalid, batchSize)
	}
	if refinementThreshold < 0 || refinementThreshold > 1 {
		return BalanceConfiguration{}, fmt.Errorf("%w: refinement-threshold must be in [0,1], got %f", ErrConfigInvalid, refinementThreshold)
	}
	return BalanceConfiguration{
		MaxRounds:           maxRounds,
		TimeoutPerRound:     timeoutPerRound,
		BatchSize:           batchSize,
		RefinementThreshold: refinementThreshold,
	}, nil
}

// FailureDetectionConfig tunes the Φ-style failure detector.
type FailureDetectionConfig struct {
	HeartbeatInterval time.Duration
	SuspectTimeout    time.Duration
	FailureTimeout    time.Duration
	CheckInterval     time.Duration
}

// DefaultFailureDetectionConfig returns the documented defaults: 500ms
// heartbeat interval, 2s suspect timeout, 5s failure timeout, 100ms check
// interval.
func DefaultFailureDetectionConfig() FailureDetectionConfig {
	cfg, err := NewFailureDetectionConfig(500*time.Millisecond, 2*time.Second, 5*time.Second, 100*time.Millisecond)
	if err != nil {
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return cfg
}

// NewFailureDetectionConfig validates that 0 <= heartbeat < suspect <
// failure and that the check
// interval is positive.
func NewFailureDetectionConfig(heartbeat, suspect, failure, checkInterval time.Duration) (FailureDetectionConfig, error) {
	if heartbeat < 0 {
		return FailureDetectionConfig{}, fmt.Errorf("%w: heartbeat-interval must be non-negative, got %s", ErrConfigInvalid, heartbeat)
	}
	if checkInterval <= 0 {
		return FailureDetectionConfig{}, fmt.Errorf("%w: check-interval must be > 0, got %s", ErrConfigInvalid, checkInterval)
	}
	if !(heartbeat < suspect) {
		return FailureDetectionConfig{}, fmt.Errorf("%w: heartbeat-interval (%s) must be < suspect-timeout (%s)", ErrConfigInvalid, heartbeat, suspect)
	}
	if !(suspect < failure) {
		return FailureDetectionConfig{}, fmt.Errorf("%w: suspect-timeout (%s) must be < failure-timeout (%s)", ErrConfigInvalid, suspect, failure)
	}
	return FailureDetectionConfig{
		HeartbeatInterval: heartbeat,
		SuspectTimeout:    suspect,
		FailureTimeout:    failure,
		CheckInterval:     checkInterval,
	}, nil
}
