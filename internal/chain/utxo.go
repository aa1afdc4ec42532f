package chain

import (
	"fmt"
	"sync"

	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrUTXONotFound is returned when a referenced outpoint is absent.
var ErrUTXONotFound = fmt.Errorf("utxo not found")

// ErrUTXOAlreadyExists is returned when a block tries to create an outpoint
// that is already present in the set — each UTXO appears at most once.
var ErrUTXOAlreadyExists = fmt.Errorf("utxo already exists")

// UTXOSet is the full-node view of unspent outputs. Block application is
// atomic across all of a block's transactions: ApplyBlock stages every spend and
// creation in a scratch copy, and only swaps it in once the whole block
// validates, so concurrent readers never observe a partially-applied block.
type UTXOSet struct {
	mu   sync.RWMutex
	byOP map[models.OutPoint]models.UTXO
}

// NewUTXOSet constructs an empty set.
func NewUTXOSet() *UTXOSet {
	return &UTXOSet{byOP: make(map[models.OutPoint]models.UTXO)}
}

// Get returns the UTXO at an outpoint, if unspent.
func (s *UTXOSet) Get(op models.OutPoint) (models.UTXO, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byOP[op]
	return u, ok
}

// Len returns the number of unspent outputs.
func (s *UTXOSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byOP)
}

// ApplyBlock spends every input and creates every output of every
// transaction in the block against a scratch copy, failing the whole
// operation (and touching nothing) if any input is missing or any created
// outpoint already exists.
func (s *UTXOSet) ApplyBlock(height uint64, txs []models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := make(map[models.OutPoint]*models.UTXO, len(s.byOP))
	for k := range s.byOP {
		v := s.byOP[k]
		scratch[k] = &v
	}

	for _, tx := range txs {
		txHash := tx.Hash()
		for _, in := range tx.Inputs {
			if _, ok := scratch[in.Prev]; !ok {
				return fmt.Errorf("%w: %s spending input %s", ErrUTXONotFound, txHash, in.Prev)
			}
			delete(scratch, in.Prev)
		}
		for idx, out := range tx.Outputs {
			op := models.OutPoint{PrevTxHash: txHash, Index: uint32(idx)}
			if _, ok := scratch[op]; ok {
				return fmt.Errorf("%w: %s", ErrUTXOAlreadyExists, op)
			}
			scratch[op] = &models.UTXO{
				Outpoint: op,
				Value: models.UTXOValue{
					Amount:     out.Amount,
					Commitment: out.Commitment,
					Script:     out.Script,
				},
				Height: height,
			}
		}
	}

	next := make(map[models.OutPoint]models.UTXO, len(scratch))
	for k, v := range scratch {
		next[k] = *v
	}
	s.byOP = next
	return nil
}

// Snapshot returns a shallow copy of the current set for readers that need
// a consistent view across multiple lookups (e.g. the integrity verifier).
func (s *UTXOSet) Snapshot() map[models.OutPoint]models.UTXO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.OutPoint]models.UTXO, len(s.byOP))
	for k, v := range s.byOP {
		out[k] = v
	}
	return out
}
