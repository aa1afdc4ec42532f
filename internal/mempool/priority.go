package mempool

import (
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// PriorityWeights tunes the composite score used to order the block
// template. LightningBoost is added flat when an entry carries a channel
// update, rather than weighted, matching the spec's additive formula.
type PriorityWeights struct {
	FeeWeight      float64
	AgeWeight      float64
	EnvWeight      float64
	LightningBoost float64
}

// DefaultPriorityWeights are the spec §4.2 defaults.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{
		FeeWeight:      1.0,
		AgeWeight:      0.1,
		EnvWeight:      0.05,
		LightningBoost: 5000,
	}
}

// RecomputeInterval bounds how often scores are recalculated, default 60s.
const RecomputeInterval = 60 * time.Second

// priorityQueue holds a cached, periodically-recomputed ordering of
// mempool entries. It tolerates stale scores for up to RecomputeInterval
// rather than recomputing on every insertion, to bound churn under load.
type priorityQueue struct {
	weights      PriorityWeights
	maxFeeRate   uint64 // normalization ceiling, tracks the highest fee-rate observed
	lastComputed time.Time
	ordered      []chainhash.Hash
}

func newPriorityQueue(weights PriorityWeights) *priorityQueue {
	return &priorityQueue{weights: weights}
}

func (q *priorityQueue) observe(feeRate uint64) {
	if feeRate > q.maxFeeRate {
		q.maxFeeRate = feeRate
	}
}

func (q *priorityQueue) score(e *entry, now time.Time) float64 {
	norm := 0.0
	if q.maxFeeRate > 0 {
		norm = float64(e.feeRate) / float64(q.maxFeeRate)
	}
	ageMinutes := now.Sub(e.timestamp).Minutes()
	score := q.weights.FeeWeight*norm + q.weights.AgeWeight*ageMinutes + q.weights.EnvWeight*float64(e.envScore)
	if e.isLightningUpdate {
		score += q.weights.LightningBoost
	}
	return score
}

// refresh recomputes the ordering if more than RecomputeInterval has
// elapsed since the last computation, or if forced. Ties are broken first
// by fee-rate, then by age (older first), for a stable ordering across
// refreshes.
func (q *priorityQueue) refresh(entries map[chainhash.Hash]*entry, now time.Time, force bool) {
	if !force && !q.lastComputed.IsZero() && now.Sub(q.lastComputed) < RecomputeInterval {
		return
	}

	type scored struct {
		hash  chainhash.Hash
		score float64
		fee   uint64
		age   time.Time
	}
	list := make([]scored, 0, len(entries))
	for h, e := range entries {
		list = append(list, scored{hash: h, score: q.score(e, now), fee: e.feeRate, age: e.timestamp})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		if list[i].fee != list[j].fee {
			return list[i].fee > list[j].fee
		}
		return list[i].age.Before(list[j].age)
	})

	ordered := make([]chainhash.Hash, len(list))
	for i, s := range list {
		ordered[i] = s.hash
	}
	q.ordered = ordered
	q.lastComputed = now
}

func (q *priorityQueue) order() []chainhash.Hash {
	return q.ordered
}
