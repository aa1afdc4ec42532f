package chain

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrPowNotMet is returned when a header's hash does not satisfy its target.
var ErrPowNotMet = fmt.Errorf("proof of work not met")

// ErrMerkleMismatch is returned when a block's transactions do not hash to
// the merkle root claimed by its header.
var ErrMerkleMismatch = fmt.Errorf("merkle root mismatch")

// ErrUnknownParent is returned when a block's previous-hash does not match
// any block this validator has accepted.
var ErrUnknownParent = fmt.Errorf("unknown parent block")

// entry is the validator's bookkeeping for one accepted block.
type entry struct {
	header models.BlockHeader
	block  models.Block
}

// Validator accepts/rejects headers and blocks, maintains the best chain,
// and consults the time-warp and weak-subjectivity defenses before
// admitting anything. It holds the UTXO set and applies blocks to it
// atomically on acceptance.
type Validator struct {
	mu sync.RWMutex

	timeWarp   *TimeWarpDetector
	checkpoints *CheckpointManager
	wsc        *WeakSubjectivityManager
	utxos      *UTXOSet

	byHash   map[chainhash.Hash]entry
	byHeight map[uint64]chainhash.Hash
	tip      chainhash.Hash
	tipHeight uint64
	hasTip   bool

	onTipChange func(height uint64, hash chainhash.Hash)
}

// SetTipListener registers a callback invoked every time AcceptBlock
// extends the tip, after the block has been durably applied to the UTXO
// set. Used to publish chain-tip events to subscribers; nil disables it.
func (v *Validator) SetTipListener(fn func(height uint64, hash chainhash.Hash)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onTipChange = fn
}

// NewValidator wires a validator against the given time-warp, checkpoint,
// weak-subjectivity, and UTXO components.
func NewValidator(tw *TimeWarpDetector, cp *CheckpointManager, wsc *WeakSubjectivityManager, utxos *UTXOSet) *Validator {
	return &Validator{
		timeWarp:    tw,
		checkpoints: cp,
		wsc:         wsc,
		utxos:       utxos,
		byHash:      make(map[chainhash.Hash]entry),
		byHeight:    make(map[uint64]chainhash.Hash),
	}
}

// recentTimestamps returns up to n timestamps walking back from the current
// tip, newest first, for feeding the time-warp detector.
func (v *Validator) recentTimestamps(n int) []int64 {
	out := make([]int64, 0, n)
	if !v.hasTip {
		return out
	}
	h := v.tip
	height := v.tipHeight
	for len(out) < n {
		e, ok := v.byHash[h]
		if !ok {
			break
		}
		out = append(out, e.header.TimestampSecs)
		if height == 0 {
			break
		}
		height--
		h = e.header.PrevBlockHash
	}
	return out
}

// ValidateHeader checks proof-of-work and timestamp rules for a header
// whose parent is the current tip. It mutates no chain state; a header that
// passes is recorded in the time-warp detector's timestamp history.
func (v *Validator) ValidateHeader(h models.BlockHeader, currentTime int64) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	hash := h.Hash()
	if !models.HashMeetsTarget(hash, h.DifficultyBits) {
		return ErrPowNotMet
	}

	prev := v.recentTimestamps(100)
	if err := v.timeWarp.Validate(h.TimestampSecs, prev, currentTime); err != nil {
		return err
	}
	return nil
}

// AcceptBlock validates a block's header, proof-of-work, merkle root, and
// parent linkage, applies it to the UTXO set, and extends the tip if it
// builds on the current best chain. Returns the accepted height.
func (v *Validator) AcceptBlock(block models.Block, currentTime int64) (uint64, error) {
	if err := v.ValidateHeader(block.Header, currentTime); err != nil {
		return 0, err
	}

	computedRoot := models.MerkleRoot(block.Transactions)
	if computedRoot != block.Header.MerkleRoot {
		return 0, ErrMerkleMismatch
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	height := block.Header.Height
	if v.hasTip {
		if block.Header.PrevBlockHash != v.tip {
			return 0, ErrUnknownParent
		}
		height = v.tipHeight + 1
		block.Header.Height = height
	}

	if v.checkpoints.ConflictsWithTrustedHash(height, block.Header.Hash()) {
		return 0, ErrCheckpointConflict
	}

	if err := v.utxos.ApplyBlock(height, block.Transactions); err != nil {
		return 0, err
	}

	hash := block.Header.Hash()
	v.byHash[hash] = entry{header: block.Header, block: block}
	v.byHeight[height] = hash
	v.tip = hash
	v.tipHeight = height
	v.hasTip = true

	if v.onTipChange != nil {
		v.onTipChange(height, hash)
	}

	return height, nil
}

// GetBlockByHeight returns the accepted block at a height, if any.
func (v *Validator) GetBlockByHeight(height uint64) (models.Block, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	hash, ok := v.byHeight[height]
	if !ok {
		return models.Block{}, false
	}
	e := v.byHash[hash]
	return e.block, true
}

// GetBlockByHash returns the accepted block with a given hash, if any.
func (v *Validator) GetBlockByHash(hash chainhash.Hash) (models.Block, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.byHash[hash]
	return e.block, ok
}

// TipHeight returns the current best-chain height.
func (v *Validator) TipHeight() (uint64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tipHeight, v.hasTip
}

// CanReorgTo reports whether a reorg whose fork point is at forkHeight is
// permitted, consulting the weak-subjectivity manager.
func (v *Validator) CanReorgTo(forkHeight uint64) bool {
	return v.wsc.CanReorgTo(forkHeight) == nil
}
