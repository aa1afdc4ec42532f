package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SwapChainView adapts Validator to the swap package's NovaChainReader,
// since Validator.TipHeight already returns (uint64, bool) under that name
// for its own callers and cannot satisfy the single-return signature the
// swap monitor expects.
type SwapChainView struct {
	validator *Validator
}

// NewSwapChainView wraps a validator for use by the cross-chain atomic
// swap monitor.
func NewSwapChainView(validator *Validator) *SwapChainView {
	return &SwapChainView{validator: validator}
}

// TipHeight returns the current best-chain height, or 0 before genesis.
func (v *SwapChainView) TipHeight() uint64 {
	height, ok := v.validator.TipHeight()
	if !ok {
		return 0
	}
	return height
}

// HashAtHeight returns the accepted block hash at height, if any.
func (v *SwapChainView) HashAtHeight(height uint64) (chainhash.Hash, bool) {
	block, ok := v.validator.GetBlockByHeight(height)
	if !ok {
		return chainhash.Hash{}, false
	}
	return chainhash.Hash(block.Header.Hash()), true
}
