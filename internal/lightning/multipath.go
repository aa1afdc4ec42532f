package lightning

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// SplitStrategy selects how a multipath payment divides its amount
// across candidate paths.
type SplitStrategy int

const (
	SplitEqual SplitStrategy = iota
	SplitProportionalToCapacity
	SplitMinimizeFees
	SplitMinimizeShards
	SplitMaximizePrivacy
)

// MultiPathConfig bounds how a payment may be split.
type MultiPathConfig struct {
	MinShardSizeMNova uint64
	MaxShards         int
	TimeoutSecs       int64
	RetriesEnabled    bool
	MaxRetries        uint8
}

// DefaultMultiPathConfig matches the network's default shard bounds.
func DefaultMultiPathConfig() MultiPathConfig {
	return MultiPathConfig{
		MinShardSizeMNova: 10_000,
		MaxShards:         16,
		TimeoutSecs:       60,
		RetriesEnabled:    true,
		MaxRetries:        3,
	}
}

// ShardState is a payment shard's lifecycle state.
type ShardState int

const (
	ShardPending ShardState = iota
	ShardInFlight
	ShardCompleted
	ShardFailed
)

func (s ShardState) String() string {
	switch s {
	case ShardPending:
		return "Pending"
	case ShardInFlight:
		return "InFlight"
	case ShardCompleted:
		return "Completed"
	case ShardFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PaymentShard is one leg of a split payment routed over its own path.
type PaymentShard struct {
	PaymentHash [32]byte
	AmountMNova uint64
	Path        Route
	State       ShardState
	Preimage    *[32]byte
	RetryCount  uint8
	LastError   string
}

// MarkInFlight transitions a shard from Pending to InFlight.
func (s *PaymentShard) MarkInFlight() { s.State = ShardInFlight }

// MarkCompleted records the shard's preimage and marks it Completed.
func (s *PaymentShard) MarkCompleted(preimage [32]byte) {
	p := preimage
	s.Preimage = &p
	s.State = ShardCompleted
}

// MarkFailed records the failure reason and marks the shard Failed.
func (s *PaymentShard) MarkFailed(reason string) {
	s.LastError = reason
	s.State = ShardFailed
}

// PrepareRetry resets a failed shard back to Pending and bumps its retry
// counter, used when config.RetriesEnabled and retries remain.
func (s *PaymentShard) PrepareRetry() {
	s.RetryCount++
	s.State = ShardPending
	s.LastError = ""
}

// MultiPathPayment tracks every shard of one logical payment.
type MultiPathPayment struct {
	PaymentHash [32]byte
	TotalAmount uint64
	Shards      []*PaymentShard
	Config      MultiPathConfig
	StartedAt   int64
}

// NewMultiPathPayment constructs an empty payment awaiting its shards.
func NewMultiPathPayment(paymentHash [32]byte, totalAmount uint64, config MultiPathConfig, now time.Time) *MultiPathPayment {
	return &MultiPathPayment{PaymentHash: paymentHash, TotalAmount: totalAmount, Config: config, StartedAt: now.Unix()}
}

// AddShard appends shard to the payment.
func (p *MultiPathPayment) AddShard(shard *PaymentShard) {
	p.Shards = append(p.Shards, shard)
}

// CompletedShards returns the shards in the Completed state.
func (p *MultiPathPayment) CompletedShards() []*PaymentShard {
	return p.shardsInState(ShardCompleted)
}

// FailedShards returns the shards in the Failed state.
func (p *MultiPathPayment) FailedShards() []*PaymentShard {
	return p.shardsInState(ShardFailed)
}

func (p *MultiPathPayment) shardsInState(state ShardState) []*PaymentShard {
	var out []*PaymentShard
	for _, s := range p.Shards {
		if s.State == state {
			out = append(out, s)
		}
	}
	return out
}

// ProgressPercentage reports the fraction of the total amount that has
// completed across all shards.
func (p *MultiPathPayment) ProgressPercentage() float64 {
	if len(p.Shards) == 0 {
		return 0
	}
	var completed uint64
	for _, s := range p.CompletedShards() {
		completed += s.AmountMNova
	}
	return 100 * float64(completed) / float64(p.TotalAmount)
}

// AllShardsComplete reports whether every shard has completed; the
// payment as a whole only succeeds when this is true for all shards.
func (p *MultiPathPayment) AllShardsComplete() bool {
	if len(p.Shards) == 0 {
		return false
	}
	for _, s := range p.Shards {
		if s.State != ShardCompleted {
			return false
		}
	}
	return true
}

// IsTimedOut reports whether the payment has exceeded its configured
// timeout measured from StartedAt.
func (p *MultiPathPayment) IsTimedOut(now time.Time) bool {
	return now.Unix()-p.StartedAt > p.Config.TimeoutSecs
}

// CandidatePath is one path considered for a shard, annotated with the
// capacity available along its bottleneck channel.
type CandidatePath struct {
	Route             Route
	AvailableCapacity uint64
}

// ErrAmountBelowMinShard is returned when a requested split would produce
// at least one shard smaller than MinShardSizeMNova.
var ErrAmountBelowMinShard = fmt.Errorf("payment amount cannot be split without violating the minimum shard size")

// ErrNoCandidatePaths is returned when no path has enough capacity to
// carry a shard at all.
var ErrNoCandidatePaths = fmt.Errorf("no candidate paths with sufficient capacity")

// PlanShards splits totalAmount across candidates according to strategy,
// respecting config.MinShardSizeMNova and config.MaxShards. The payment
// completes only once every planned shard reports Completed; callers
// drive that lifecycle via MultiPathPayment.
func PlanShards(candidates []CandidatePath, totalAmount uint64, strategy SplitStrategy, config MultiPathConfig) ([]uint64, []CandidatePath, error) {
	usable := make([]CandidatePath, 0, len(candidates))
	for _, c := range candidates {
		if c.AvailableCapacity >= config.MinShardSizeMNova {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return nil, nil, ErrNoCandidatePaths
	}

	switch strategy {
	case SplitMinimizeShards:
		sort.Slice(usable, func(i, j int) bool { return usable[i].AvailableCapacity > usable[j].AvailableCapacity })
	case SplitMinimizeFees:
		sort.Slice(usable, func(i, j int) bool { return usable[i].Route.TotalFeeMNova < usable[j].Route.TotalFeeMNova })
	case SplitMaximizePrivacy:
		// Favor more, smaller shards spread across more distinct paths,
		// which is the opposite ordering from MinimizeShards.
		sort.Slice(usable, func(i, j int) bool { return usable[i].AvailableCapacity < usable[j].AvailableCapacity })
	default:
		sort.Slice(usable, func(i, j int) bool { return usable[i].AvailableCapacity > usable[j].AvailableCapacity })
	}

	if len(usable) > config.MaxShards {
		usable = usable[:config.MaxShards]
	}

	var amounts []uint64
	switch strategy {
	case SplitEqual:
		amounts = splitEqual(usable, totalAmount, config)
	case SplitProportionalToCapacity:
		amounts = splitProportional(usable, totalAmount, config)
	case SplitMinimizeShards:
		amounts = splitGreedyFewest(usable, totalAmount, config)
	case SplitMinimizeFees:
		amounts = splitGreedyFewest(usable, totalAmount, config)
	case SplitMaximizePrivacy:
		amounts = splitEqual(usable, totalAmount, config)
	default:
		amounts = splitEqual(usable, totalAmount, config)
	}
	if amounts == nil {
		return nil, nil, ErrAmountBelowMinShard
	}
	return amounts, usable[:len(amounts)], nil
}

func splitEqual(paths []CandidatePath, total uint64, config MultiPathConfig) []uint64 {
	for n := len(paths); n >= 1; n-- {
		share := total / uint64(n)
		remainder := total % uint64(n)
		if share < config.MinShardSizeMNova {
			continue
		}
		amounts := make([]uint64, n)
		for i := range amounts {
			amounts[i] = share
		}
		amounts[n-1] += remainder
		return amounts
	}
	return nil
}

func splitProportional(paths []CandidatePath, total uint64, config MultiPathConfig) []uint64 {
	var capacitySum uint64
	for _, p := range paths {
		capacitySum += p.AvailableCapacity
	}
	if capacitySum == 0 {
		return nil
	}

	amounts := make([]uint64, len(paths))
	var assigned uint64
	for i, p := range paths {
		share := total * p.AvailableCapacity / capacitySum
		amounts[i] = share
		assigned += share
	}
	if len(amounts) > 0 {
		amounts[len(amounts)-1] += total - assigned
	}
	for _, a := range amounts {
		if a < config.MinShardSizeMNova {
			return splitEqual(paths, total, config)
		}
	}
	return amounts
}

// splitGreedyFewest fills shards to their available capacity starting
// from the front of paths (already sorted by the caller) until the total
// is covered, minimizing how many shards the payment uses.
func splitGreedyFewest(paths []CandidatePath, total uint64, config MultiPathConfig) []uint64 {
	amounts := make([]uint64, 0, len(paths))
	remaining := total

	for i, p := range paths {
		if remaining == 0 {
			break
		}
		shardAmount := p.AvailableCapacity
		if shardAmount > remaining {
			shardAmount = remaining
		}
		if shardAmount < config.MinShardSizeMNova {
			if remaining >= config.MinShardSizeMNova {
				shardAmount = config.MinShardSizeMNova
			} else if i == len(paths)-1 {
				return nil
			} else {
				continue
			}
		}
		amounts = append(amounts, shardAmount)
		remaining -= shardAmount
	}
	if remaining > 0 {
		return nil
	}
	return amounts
}

// Coordinator tracks in-flight multipath payments and drives their
// all-or-nothing completion semantics.
type Coordinator struct {
	mu       sync.Mutex
	payments map[[32]byte]*MultiPathPayment
}

// NewCoordinator constructs an empty payment coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{payments: make(map[[32]byte]*MultiPathPayment)}
}

// StartPayment registers payment for tracking.
func (c *Coordinator) StartPayment(payment *MultiPathPayment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payments[payment.PaymentHash] = payment
}

// ErrPaymentNotFound is returned when an operation references an unknown
// payment hash.
var ErrPaymentNotFound = fmt.Errorf("payment not found")

// UpdateShard applies a state transition to one shard of a tracked
// payment. A Failed shard is automatically re-queued for retry when
// config.RetriesEnabled and its retry budget remains.
func (c *Coordinator) UpdateShard(paymentHash [32]byte, shardIndex int, newState ShardState, preimage *[32]byte, failReason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payment, ok := c.payments[paymentHash]
	if !ok {
		return ErrPaymentNotFound
	}
	if shardIndex < 0 || shardIndex >= len(payment.Shards) {
		return fmt.Errorf("shard index %d out of range", shardIndex)
	}
	shard := payment.Shards[shardIndex]

	switch newState {
	case ShardCompleted:
		if preimage == nil {
			return fmt.Errorf("completed shard requires a preimage")
		}
		shard.MarkCompleted(*preimage)
	case ShardFailed:
		shard.MarkFailed(failReason)
		if payment.Config.RetriesEnabled && shard.RetryCount < payment.Config.MaxRetries {
			shard.PrepareRetry()
		}
	case ShardInFlight:
		shard.MarkInFlight()
	default:
		shard.State = newState
	}
	return nil
}

// CompletePayment returns the payment if every shard has completed,
// otherwise reports that it is not yet finished.
func (c *Coordinator) CompletePayment(paymentHash [32]byte) (*MultiPathPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payment, ok := c.payments[paymentHash]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if !payment.AllShardsComplete() {
		return nil, fmt.Errorf("payment %x has not completed all shards", paymentHash)
	}
	return payment, nil
}

// CheckTimeouts returns the hashes of tracked payments whose timeout has
// elapsed without completing.
func (c *Coordinator) CheckTimeouts(now time.Time) [][32]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	var timedOut [][32]byte
	for hash, payment := range c.payments {
		if !payment.AllShardsComplete() && payment.IsTimedOut(now) {
			timedOut = append(timedOut, hash)
		}
	}
	return timedOut
}
