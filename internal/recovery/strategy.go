package recovery

import "time"

// StrategyKind selects which retry shape a RecoveryStrategy applies.
type StrategyKind int

const (
	StrategyExponentialBackoff StrategyKind = iota
	StrategyFixedDelay
	StrategyNoRetry
	StrategyCircuitBreaker
)

// RecoveryStrategy describes how a failed operation on a given component
// should be retried, if at all.
type RecoveryStrategy struct {
	Kind                    StrategyKind
	MaxAttempts             uint32
	InitialDelay            time.Duration
	MaxDelay                time.Duration
	Delay                   time.Duration // used by StrategyFixedDelay
	CircuitFailureThreshold uint32
	CircuitResetTimeout     time.Duration
}

// DefaultStrategy is applied to any component without a specific override:
// three attempts of exponential backoff from 100ms up to 30s.
func DefaultStrategy() RecoveryStrategy {
	return RecoveryStrategy{
		Kind:         StrategyExponentialBackoff,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// DefaultStrategies returns the node's per-component strategy table.
func DefaultStrategies() map[string]RecoveryStrategy {
	return map[string]RecoveryStrategy{
		"network": {
			Kind:                    StrategyCircuitBreaker,
			CircuitFailureThreshold: 5,
			CircuitResetTimeout:     60 * time.Second,
		},
		"database": {
			Kind:         StrategyExponentialBackoff,
			MaxAttempts:  5,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     10 * time.Second,
		},
		"consensus": {
			Kind: StrategyNoRetry,
		},
		"memory": {
			Kind:        StrategyFixedDelay,
			MaxAttempts: 3,
			Delay:       50 * time.Millisecond,
		},
		"lightning": {
			Kind:         StrategyExponentialBackoff,
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}
}

// backoffDelay returns the exponential backoff delay for a zero-indexed
// attempt, doubling from initial up to a cap of max.
func backoffDelay(initial, max time.Duration, attempt uint32) time.Duration {
	delay := initial
	for i := uint32(0); i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
