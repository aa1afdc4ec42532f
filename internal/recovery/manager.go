package recovery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrorEntry is one record in the rolling error history, used for pattern
// detection across components.
type ErrorEntry struct {
	Error     string
	Category  ErrorCategory
	Component string
	Occurred  time.Time
}

// errorHistory keeps a bounded ring of recent errors plus running counts
// per component and category.
type errorHistory struct {
	mu              sync.Mutex
	entries         []ErrorEntry
	maxEntries      int
	componentCounts map[string]uint32
	categoryCounts  map[ErrorCategory]uint32
}

func newErrorHistory(maxEntries int) *errorHistory {
	return &errorHistory{
		maxEntries:      maxEntries,
		componentCounts: make(map[string]uint32),
		categoryCounts:  make(map[ErrorCategory]uint32),
	}
}

func (h *errorHistory) add(entry ErrorEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.maxEntries {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, entry)
	h.componentCounts[entry.Component]++
	h.categoryCounts[entry.Category]++
}

func (h *errorHistory) recent(component string, limit int) []ErrorEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ErrorEntry, 0, limit)
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if component == "" || h.entries[i].Component == component {
			out = append(out, h.entries[i])
		}
	}
	return out
}

func (h *errorHistory) errorRate(component string, window time.Duration, now time.Time) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, e := range h.entries {
		if e.Component == component && now.Sub(e.Occurred) <= window {
			count++
		}
	}
	if window.Seconds() == 0 {
		return 0
	}
	return float64(count) / window.Seconds()
}

// Metrics summarizes how recovery attempts across the node have fared.
type Metrics struct {
	mu                        sync.Mutex
	TotalAttempts             uint64
	SuccessfulRecoveries      uint64
	FailedRecoveries          uint64
	CircuitBreakerActivations uint64
	averageRecoveryMs         float64
}

func (m *Metrics) recordAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalAttempts++
}

func (m *Metrics) recordSuccess(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SuccessfulRecoveries++
	m.updateAverageLocked(elapsed)
}

func (m *Metrics) recordFailure(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedRecoveries++
	m.updateAverageLocked(elapsed)
}

func (m *Metrics) recordCircuitActivation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CircuitBreakerActivations++
}

// updateAverageLocked folds elapsed into a simple moving average; caller
// must hold m.mu.
func (m *Metrics) updateAverageLocked(elapsed time.Duration) {
	total := m.SuccessfulRecoveries + m.FailedRecoveries
	if total == 0 {
		return
	}
	ms := float64(elapsed.Milliseconds())
	m.averageRecoveryMs += (ms - m.averageRecoveryMs) / float64(total)
}

// Snapshot returns a copy of the metrics safe to read concurrently.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		TotalAttempts:             m.TotalAttempts,
		SuccessfulRecoveries:      m.SuccessfulRecoveries,
		FailedRecoveries:          m.FailedRecoveries,
		CircuitBreakerActivations: m.CircuitBreakerActivations,
		averageRecoveryMs:         m.averageRecoveryMs,
	}
}

// AverageRecoveryMs returns the moving average recovery time in
// milliseconds.
func (m *Metrics) AverageRecoveryMs() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.averageRecoveryMs
}

// ErrCircuitOpen is returned when a component's circuit breaker is open
// and refusing attempts.
type ErrCircuitOpen struct {
	Component string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for component: %s", e.Component)
}

// Manager drives recovery for node components: it classifies errors,
// selects a per-component strategy, and retries failed operations
// accordingly, tracking circuit breaker state and rolling metrics.
type Manager struct {
	mu              sync.Mutex
	strategies      map[string]RecoveryStrategy
	defaultStrategy RecoveryStrategy
	breakers        map[string]*CircuitBreaker
	history         *errorHistory
	metrics         *Metrics
}

// NewManager constructs a Manager with the node's default per-component
// strategy table.
func NewManager() *Manager {
	return &Manager{
		strategies:      DefaultStrategies(),
		defaultStrategy: DefaultStrategy(),
		breakers:        make(map[string]*CircuitBreaker),
		history:         newErrorHistory(1000),
		metrics:         &Metrics{},
	}
}

// SetStrategy overrides the recovery strategy for component.
func (m *Manager) SetStrategy(component string, strategy RecoveryStrategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[component] = strategy
}

func (m *Manager) strategyFor(component string) RecoveryStrategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.strategies[component]; ok {
		return s
	}
	return m.defaultStrategy
}

func (m *Manager) breakerFor(component string, strategy RecoveryStrategy) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[component]
	if !ok {
		threshold := strategy.CircuitFailureThreshold
		if threshold == 0 {
			threshold = 5
		}
		reset := strategy.CircuitResetTimeout
		if reset == 0 {
			reset = 60 * time.Second
		}
		b = NewCircuitBreaker(threshold, reset)
		m.breakers[component] = b
	}
	return b
}

// Metrics returns the manager's recovery metrics.
func (m *Manager) Metrics() *Metrics { return m.metrics }

// RecentErrors returns up to limit of the most recent errors, optionally
// filtered to one component.
func (m *Manager) RecentErrors(component string, limit int) []ErrorEntry {
	return m.history.recent(component, limit)
}

// ErrorRate returns the per-second error rate for component over window.
func (m *Manager) ErrorRate(component string, window time.Duration, now time.Time) float64 {
	return m.history.errorRate(component, window, now)
}

// Operation is a unit of work Recover retries on failure.
type Operation func(ctx context.Context) error

// Recover runs operation for component, applying that component's
// configured recovery strategy, and records the outcome in the error
// history and metrics.
func (m *Manager) Recover(ctx context.Context, component string, op Operation) error {
	start := time.Now()
	m.metrics.recordAttempt()
	strategy := m.strategyFor(component)

	if strategy.Kind == StrategyCircuitBreaker {
		breaker := m.breakerFor(component, strategy)
		if !breaker.CanAttempt(time.Now()) {
			m.metrics.recordCircuitActivation()
			return &ErrCircuitOpen{Component: component}
		}
		err := op(ctx)
		if err != nil {
			breaker.RecordFailure(time.Now())
			m.recordError(component, err, start)
			return err
		}
		breaker.RecordSuccess()
		m.metrics.recordSuccess(time.Since(start))
		return nil
	}

	switch strategy.Kind {
	case StrategyNoRetry:
		err := op(ctx)
		if err != nil {
			m.recordError(component, err, start)
			return err
		}
		m.metrics.recordSuccess(time.Since(start))
		return nil

	case StrategyFixedDelay:
		return m.retryFixedDelay(ctx, component, op, strategy, start)

	default: // StrategyExponentialBackoff
		return m.retryExponentialBackoff(ctx, component, op, strategy, start)
	}
}

func (m *Manager) retryExponentialBackoff(ctx context.Context, component string, op Operation, strategy RecoveryStrategy, start time.Time) error {
	var lastErr error
	for attempt := uint32(0); attempt < strategy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(strategy.InitialDelay, strategy.MaxDelay, attempt-1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			m.metrics.recordSuccess(time.Since(start))
			return nil
		}
		log.Printf("[recovery] %s attempt %d/%d failed: %v", component, attempt+1, strategy.MaxAttempts, lastErr)
	}
	m.recordError(component, lastErr, start)
	return lastErr
}

func (m *Manager) retryFixedDelay(ctx context.Context, component string, op Operation, strategy RecoveryStrategy, start time.Time) error {
	var lastErr error
	for attempt := uint32(0); attempt < strategy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(strategy.Delay):
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			m.metrics.recordSuccess(time.Since(start))
			return nil
		}
		log.Printf("[recovery] %s attempt %d/%d failed: %v", component, attempt+1, strategy.MaxAttempts, lastErr)
	}
	m.recordError(component, lastErr, start)
	return lastErr
}

func (m *Manager) recordError(component string, err error, start time.Time) {
	category := ClassifyError(err, component)
	m.history.add(ErrorEntry{Error: err.Error(), Category: category, Component: component, Occurred: time.Now()})
	m.metrics.recordFailure(time.Since(start))
}
