package bitcoin

import (
	"context"
	"fmt"

	"github.com/supernova-labs/supernova/internal/swap"
)

// SwapChainReader adapts Client to swap.BitcoinChainReader, giving the
// cross-chain atomic swap monitor a live view of the Bitcoin side without
// internal/swap depending on internal/bitcoin directly.
type SwapChainReader struct {
	client *Client
}

// NewSwapChainReader wraps an already-connected client for swap monitoring.
func NewSwapChainReader(client *Client) *SwapChainReader {
	return &SwapChainReader{client: client}
}

// TipHeight returns the Bitcoin node's current block count.
func (r *SwapChainReader) TipHeight(ctx context.Context) (uint64, error) {
	count, err := r.client.RPC.GetBlockCount()
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}

// BlockAtHeight fetches the block at height and flattens each transaction's
// witness stacks, one entry per transaction, for the monitor's preimage
// scan.
func (r *SwapChainReader) BlockAtHeight(ctx context.Context, height uint64) (*swap.BitcoinBlock, error) {
	hash, err := r.client.GetBlockHash(int64(height))
	if err != nil {
		return nil, fmt.Errorf("looking up block hash at height %d: %w", height, err)
	}
	block, err := r.client.GetBlockWithWitnesses(hash)
	if err != nil {
		return nil, fmt.Errorf("fetching block %s: %w", hash, err)
	}

	witnesses := make([][][]byte, len(block.Transactions))
	for i, tx := range block.Transactions {
		var stack [][]byte
		for _, in := range tx.TxIn {
			stack = append(stack, in.Witness...)
		}
		witnesses[i] = stack
	}

	var out [32]byte
	blockHash := block.BlockHash()
	copy(out[:], blockHash[:])

	return &swap.BitcoinBlock{Height: height, Hash: out, Witnesses: witnesses}, nil
}
