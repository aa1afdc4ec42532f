package chain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrCheckpointConflict is returned when a new checkpoint disagrees with an
// already-finalized hash at the same height.
var ErrCheckpointConflict = fmt.Errorf("checkpoint conflicts with a finalized hash at the same height")

// ErrCheckpointHeightRegression is returned when a checkpoint is added at a
// new height below the manager's highest known height (heights must be
// strictly monotone per insertion order). A different hash at an existing
// height is reported as ErrCheckpointConflict instead.
var ErrCheckpointHeightRegression = fmt.Errorf("checkpoint heights must be strictly monotone")

// CheckpointManager stores consensus checkpoints keyed by height with sorted
// iteration, rejecting anything non-monotone or conflicting with a
// finalized hash — distinct from the storage layer's snapshot checkpoints.
type CheckpointManager struct {
	mu          sync.RWMutex
	byHeight    map[uint64]models.Checkpoint
	maxHeight   uint64
	hasAny      bool
}

// NewCheckpointManager constructs an empty checkpoint manager.
func NewCheckpointManager() *CheckpointManager {
	return &CheckpointManager{byHeight: make(map[uint64]models.Checkpoint)}
}

// Add inserts a checkpoint. It is rejected if a checkpoint already exists at
// that height with a different hash (conflict with a finalized checkpoint),
// or if its height is not strictly greater than the highest height already
// recorded (checkpoints arrive in increasing height order as the chain
// advances; out-of-order insertion signals a bug upstream).
func (m *CheckpointManager) Add(cp models.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byHeight[cp.Height]; ok {
		if existing.BlockHash != cp.BlockHash {
			return fmt.Errorf("%w: height %d has %s, got %s", ErrCheckpointConflict, cp.Height, existing.BlockHash, cp.BlockHash)
		}
		return nil // idempotent re-add of the same checkpoint
	}
	if m.hasAny && cp.Height <= m.maxHeight {
		return fmt.Errorf("%w: height %d <= %d", ErrCheckpointHeightRegression, cp.Height, m.maxHeight)
	}
	m.byHeight[cp.Height] = cp
	m.maxHeight = cp.Height
	m.hasAny = true
	return nil
}

// Get returns the checkpoint at a height, if any.
func (m *CheckpointManager) Get(height uint64) (models.Checkpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.byHeight[height]
	return cp, ok
}

// Sorted returns all checkpoints in ascending height order.
func (m *CheckpointManager) Sorted() []models.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Checkpoint, 0, len(m.byHeight))
	for _, cp := range m.byHeight {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out
}

// Highest returns the highest-height checkpoint recorded, if any.
func (m *CheckpointManager) Highest() (models.Checkpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasAny {
		return models.Checkpoint{}, false
	}
	return m.byHeight[m.maxHeight], true
}

// ConflictsWithTrustedHash reports whether candidateHash disagrees with a
// recorded checkpoint at height, used by chain verifiers to detect
// divergence from a trusted history before accepting a reorg.
func (m *CheckpointManager) ConflictsWithTrustedHash(height uint64, candidateHash chainhash.Hash) bool {
	cp, ok := m.Get(height)
	if !ok {
		return false
	}
	return cp.BlockHash != candidateHash
}
