package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/supernova-labs/supernova/internal/chain"
)

// ValidatorChainState adapts a chain.Validator and chain.UTXOSet into the
// ChainStateReader a checkpoint needs when it records the chain tip and
// UTXO set fingerprint.
type ValidatorChainState struct {
	validator *chain.Validator
	utxos     *chain.UTXOSet
}

// NewValidatorChainState constructs a ChainStateReader over the node's
// live validator and UTXO set.
func NewValidatorChainState(validator *chain.Validator, utxos *chain.UTXOSet) *ValidatorChainState {
	return &ValidatorChainState{validator: validator, utxos: utxos}
}

// Height returns the current chain tip height, or 0 before genesis.
func (v *ValidatorChainState) Height() uint64 {
	height, ok := v.validator.TipHeight()
	if !ok {
		return 0
	}
	return height
}

// BestBlockHash returns the tip block's hash, or the zero hash before
// genesis.
func (v *ValidatorChainState) BestBlockHash() [32]byte {
	height, ok := v.validator.TipHeight()
	if !ok {
		return [32]byte{}
	}
	block, ok := v.validator.GetBlockByHeight(height)
	if !ok {
		return [32]byte{}
	}
	return [32]byte(block.Header.Hash())
}

// UTXOSetHash returns a deterministic fingerprint of the current UTXO set,
// computed by hashing each outpoint (tx hash and index) with its cleartext
// amount and creation height, in sorted outpoint order; commitments and
// scripts are not included. This is a coarse snapshot check, not a Merkle
// commitment: it only needs to detect drift between a checkpoint and the
// live set, not support proofs.
func (v *ValidatorChainState) UTXOSetHash() [32]byte {
	snapshot := v.utxos.Snapshot()
	keys := make([]string, 0, len(snapshot))
	encoded := make(map[string][]byte, len(snapshot))
	for op, utxo := range snapshot {
		k := fmt.Sprintf("%s:%08x", op.PrevTxHash.String(), op.Index)
		var buf [16]byte
		binary.BigEndian.PutUint64(buf[0:8], utxo.Value.Amount)
		binary.BigEndian.PutUint64(buf[8:16], utxo.Height)
		encoded[k] = buf[:]
		keys = append(keys, k)
	}

	h := sha256.New()
	for _, k := range sortStrings(keys) {
		h.Write([]byte(k))
		h.Write(encoded[k])
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func sortStrings(s []string) []string {
	out := append([]string(nil), s...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// DirectoryDataSource is a DataSource over a plain on-disk data directory
// with nothing buffered in memory that needs an explicit flush.
type DirectoryDataSource struct {
	path string
}

// NewDirectoryDataSource constructs a DataSource rooted at path, creating
// the directory if it does not already exist.
func NewDirectoryDataSource(path string) (*DirectoryDataSource, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return &DirectoryDataSource{path: path}, nil
}

// Flush is a no-op: nothing is buffered outside this directory's files.
func (d *DirectoryDataSource) Flush() error { return nil }

// Path returns the data directory's filesystem path.
func (d *DirectoryDataSource) Path() string { return filepath.Clean(d.path) }
