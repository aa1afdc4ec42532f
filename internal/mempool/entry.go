// Package mempool holds the set of candidate transactions waiting for
// confirmation: orphan tracking, ancestor/descendant packages, CPFP, RBF,
// and priority-ordered block templating.
package mempool

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

// InputRef names a previous output a transaction spends, used to index
// orphans by their missing parent.
type InputRef struct {
	PrevTxHash chainhash.Hash
	OutIndex   uint32
}

func inputRefsOf(tx models.Transaction) []InputRef {
	refs := make([]InputRef, len(tx.Inputs))
	for i, in := range tx.Inputs {
		refs[i] = InputRef{PrevTxHash: in.Prev.PrevTxHash, OutIndex: in.Prev.Index}
	}
	return refs
}

// entry is a mempool-resident transaction plus its bookkeeping. Ancestors
// and descendants are kept as hash-only sets rather than owning references
// to other entries, so the pool never has to untangle ownership cycles
// between transactions that mutually reference each other's bookkeeping.
type entry struct {
	tx                models.Transaction
	hash              chainhash.Hash
	timestamp         time.Time
	feeRate           uint64
	size              int
	fee               uint64
	ancestors         map[chainhash.Hash]struct{}
	descendants       map[chainhash.Hash]struct{}
	inputs            []InputRef
	isOrphan          bool
	envScore          uint8
	isLightningUpdate bool
}

func newEntry(tx models.Transaction, feeRate uint64, envScore uint8, isLightningUpdate bool) *entry {
	size := tx.SerializedSize()
	return &entry{
		tx:                tx,
		hash:              tx.Hash(),
		timestamp:         time.Now(),
		feeRate:           feeRate,
		size:              size,
		fee:               feeRate * uint64(size),
		ancestors:         make(map[chainhash.Hash]struct{}),
		descendants:       make(map[chainhash.Hash]struct{}),
		inputs:            inputRefsOf(tx),
		envScore:          envScore,
		isLightningUpdate: isLightningUpdate,
	}
}

func (e *entry) snapshot() models.MempoolEntrySnapshot {
	return models.MempoolEntrySnapshot{
		TxHash:            e.hash,
		Timestamp:         e.timestamp,
		FeeRate:           e.feeRate,
		Size:              e.size,
		Fee:               e.fee,
		AncestorCount:     len(e.ancestors),
		DescendantCount:   len(e.descendants),
		IsOrphan:          e.isOrphan,
		EnvScore:          e.envScore,
		IsLightningUpdate: e.isLightningUpdate,
	}
}
