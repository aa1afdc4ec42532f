package mempool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// orphanPool holds transactions whose inputs reference an unknown parent,
// indexed by the missing (prev_tx_hash, output_index) so a newly arrived
// parent can look up everything waiting on it.
type orphanPool struct {
	byInput  map[InputRef][]chainhash.Hash
	byParent map[chainhash.Hash]map[chainhash.Hash]struct{}
	entries  map[chainhash.Hash]*entry
	maxSize  int
}

func newOrphanPool(maxSize int) *orphanPool {
	return &orphanPool{
		byInput:  make(map[InputRef][]chainhash.Hash),
		byParent: make(map[chainhash.Hash]map[chainhash.Hash]struct{}),
		entries:  make(map[chainhash.Hash]*entry),
		maxSize:  maxSize,
	}
}

// add indexes an orphan by each of its missing inputs, evicting the oldest
// orphan first if the pool is at capacity.
func (p *orphanPool) add(e *entry) {
	if len(p.entries) >= p.maxSize {
		p.evictOldest()
	}
	for _, ref := range e.inputs {
		p.byInput[ref] = append(p.byInput[ref], e.hash)
		byHash, ok := p.byParent[ref.PrevTxHash]
		if !ok {
			byHash = make(map[chainhash.Hash]struct{})
			p.byParent[ref.PrevTxHash] = byHash
		}
		byHash[e.hash] = struct{}{}
	}
	p.entries[e.hash] = e
}

func (p *orphanPool) evictOldest() {
	var oldestHash chainhash.Hash
	var oldest *entry
	for h, e := range p.entries {
		if oldest == nil || e.timestamp.Before(oldest.timestamp) {
			oldest = e
			oldestHash = h
		}
	}
	if oldest != nil {
		p.remove(oldestHash)
	}
}

// remove detaches an orphan from both the index and the entry map, and
// returns it, or nil if it was not present.
func (p *orphanPool) remove(hash chainhash.Hash) *entry {
	e, ok := p.entries[hash]
	if !ok {
		return nil
	}
	delete(p.entries, hash)
	for _, ref := range e.inputs {
		list := p.byInput[ref]
		for i, h := range list {
			if h == hash {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(p.byInput, ref)
		} else {
			p.byInput[ref] = list
		}

		if byHash, ok := p.byParent[ref.PrevTxHash]; ok {
			delete(byHash, hash)
			if len(byHash) == 0 {
				delete(p.byParent, ref.PrevTxHash)
			}
		}
	}
	return e
}

// waitingOn returns the orphan hashes blocked on a specific outpoint.
func (p *orphanPool) waitingOn(ref InputRef) []chainhash.Hash {
	out := make([]chainhash.Hash, len(p.byInput[ref]))
	copy(out, p.byInput[ref])
	return out
}

// waitingOnParent returns every distinct orphan hash blocked on any output
// of parentHash, regardless of output index.
func (p *orphanPool) waitingOnParent(parentHash chainhash.Hash) []chainhash.Hash {
	byHash := p.byParent[parentHash]
	out := make([]chainhash.Hash, 0, len(byHash))
	for h := range byHash {
		out = append(out, h)
	}
	return out
}

func (p *orphanPool) len() int { return len(p.entries) }
