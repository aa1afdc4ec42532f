package mempool

import (
	"log"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

// Config tunes a Manager's limits, matching the spec §4.2 defaults.
type Config struct {
	MaxSize             int
	MinFeeRate          uint64
	EnableRBF           bool
	MinRBFFeeIncreasePct float64
	MaxMemoryBytes      uint64
	ExpirationTime      time.Duration
	Limits              models.MempoolLimits
	Weights             PriorityWeights
}

// DefaultConfig mirrors original_source's MempoolManager::new defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:              50_000,
		MinFeeRate:           1,
		EnableRBF:            true,
		MinRBFFeeIncreasePct: 10.0,
		MaxMemoryBytes:       100 * 1024 * 1024,
		ExpirationTime:       14 * 24 * time.Hour,
		Limits:               models.DefaultMempoolLimits,
		Weights:              DefaultPriorityWeights(),
	}
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	TransactionCount int
	OrphanCount      int
	MemoryUsageBytes uint64
	PriorityQueueSize int
}

// Manager is the complete mempool: main pool, orphan pool, and priority
// queue, guarded by a single mutex. The teacher's poller processes one
// block/tick at a time against shared maps under a lock rather than a
// lock-free concurrent map, and the mempool follows the same discipline
// since all of its invariants (ancestor sets, memory accounting) span
// multiple map operations that must stay atomic together.
type Manager struct {
	mu sync.Mutex

	config      Config
	txs         map[chainhash.Hash]*entry
	orphans     *orphanPool
	queue       *priorityQueue
	memoryUsage uint64
}

// NewManager constructs a mempool manager. The orphan pool is capped at a
// tenth of the main pool's capacity, matching original_source.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config:  cfg,
		txs:     make(map[chainhash.Hash]*entry),
		orphans: newOrphanPool(maxInt(cfg.MaxSize/10, 1)),
		queue:   newPriorityQueue(cfg.Weights),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AddTransaction accepts a transaction into the pool, tagging it orphan if
// any input is unresolved, computing its mempool-only ancestor set
// otherwise, and attempting to reconnect any orphans that were waiting on
// it.
func (m *Manager) AddTransaction(tx models.Transaction, feeRate uint64, envScore uint8, isLightningUpdate bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(tx, feeRate, envScore, isLightningUpdate)
}

func (m *Manager) addLocked(tx models.Transaction, feeRate uint64, envScore uint8, isLightningUpdate bool) error {
	hash := tx.Hash()
	if _, ok := m.txs[hash]; ok {
		return ErrTransactionExists
	}
	if _, ok := m.orphans.entries[hash]; ok {
		return ErrTransactionExists
	}

	e := newEntry(tx, feeRate, envScore, isLightningUpdate)

	if feeRate < m.config.MinFeeRate {
		return &ErrFeeTooLow{Required: m.config.MinFeeRate, Provided: feeRate}
	}

	if m.memoryUsage+uint64(e.size) > m.config.MaxMemoryBytes {
		if !m.evictForMemory(e.size) {
			return &ErrMemoryLimit{Current: m.memoryUsage, Max: m.config.MaxMemoryBytes, TxSize: e.size}
		}
	}

	if missing := m.missingInputs(tx); len(missing) > 0 {
		e.isOrphan = true
		m.orphans.add(e)
		return nil
	}

	m.computeAncestors(e)
	if !m.withinPackageLimits(e) {
		return &ErrInvalidTransaction{Reason: "ancestor/descendant package limits exceeded"}
	}

	m.txs[hash] = e
	m.memoryUsage += uint64(e.size)
	m.updateAncestorDescendants(hash, e.ancestors)
	m.queue.observe(feeRate)
	m.reconnectOrphans(hash)
	return nil
}

// missingInputs reports which of a transaction's inputs reference neither
// an entry already in the main pool nor (by convention here) the UTXO set;
// the manager is wired against the live chain tip by its caller, so this
// layer only ever sees mempool-local unresolved parents.
func (m *Manager) missingInputs(tx models.Transaction) []InputRef {
	var missing []InputRef
	for _, ref := range inputRefsOf(tx) {
		if _, ok := m.txs[ref.PrevTxHash]; !ok {
			missing = append(missing, ref)
		}
	}
	return missing
}

// computeAncestors walks the mempool-only dependency graph transitively,
// following each input back to its mempool parent (if any), never through
// the UTXO set.
func (m *Manager) computeAncestors(e *entry) {
	queue := append([]InputRef(nil), e.inputs...)
	for len(queue) > 0 {
		ref := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		parent, ok := m.txs[ref.PrevTxHash]
		if !ok {
			continue
		}
		if _, seen := e.ancestors[ref.PrevTxHash]; seen {
			continue
		}
		e.ancestors[ref.PrevTxHash] = struct{}{}
		queue = append(queue, parent.inputs...)
	}
}

func (m *Manager) withinPackageLimits(e *entry) bool {
	limits := m.config.Limits
	if len(e.ancestors) > limits.MaxAncestorCount {
		return false
	}
	ancestorSize := e.size
	for h := range e.ancestors {
		if a, ok := m.txs[h]; ok {
			ancestorSize += a.size
		}
	}
	if ancestorSize > limits.MaxAncestorSizeBytes {
		return false
	}
	return true
}

func (m *Manager) updateAncestorDescendants(hash chainhash.Hash, ancestors map[chainhash.Hash]struct{}) {
	for h := range ancestors {
		if a, ok := m.txs[h]; ok {
			a.descendants[hash] = struct{}{}
		}
	}
}

// reconnectOrphans tries every orphan blocked on an output of parentHash;
// entries still missing inputs after the attempt are reinserted.
func (m *Manager) reconnectOrphans(parentHash chainhash.Hash) {
	candidates := m.orphans.waitingOnParent(parentHash)
	for _, orphanHash := range candidates {
		e := m.orphans.remove(orphanHash)
		if e == nil {
			continue
		}
		missing := m.missingInputs(e.tx)
		if len(missing) == 0 {
			e.isOrphan = false
			m.computeAncestors(e)
			if m.withinPackageLimits(e) {
				m.txs[orphanHash] = e
				m.memoryUsage += uint64(e.size)
				m.updateAncestorDescendants(orphanHash, e.ancestors)
				m.queue.observe(e.feeRate)
				log.Printf("[Mempool] reconnected orphan transaction %s", orphanHash)
				continue
			}
		}
		m.orphans.add(e)
	}
}

// evictForMemory removes entries in ascending fee-rate order until
// requiredSize bytes have been freed, reporting whether it succeeded.
func (m *Manager) evictForMemory(requiredSize int) bool {
	type cand struct {
		hash chainhash.Hash
		fee  uint64
		size int
	}
	candidates := make([]cand, 0, len(m.txs))
	for h, e := range m.txs {
		candidates = append(candidates, cand{hash: h, fee: e.feeRate, size: e.size})
	}
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].fee < candidates[i].fee {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			}
		}
	}

	freed := 0
	for _, c := range candidates {
		if freed >= requiredSize {
			break
		}
		if e, ok := m.txs[c.hash]; ok {
			delete(m.txs, c.hash)
			m.memoryUsage -= uint64(e.size)
			freed += e.size
		}
	}
	return freed >= requiredSize
}

// ReplaceTransaction implements RBF: it requires enable_rbf, at least one
// input-sharing conflict with an existing mempool entry, and a replacement
// fee that exceeds the conflicting set's total fee by min_rbf_fee_increase.
// All conflicting transactions (and, transitively, their descendants) are
// removed before the replacement is inserted.
func (m *Manager) ReplaceTransaction(tx models.Transaction, feeRate uint64, envScore uint8, isLightningUpdate bool) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.EnableRBF {
		return nil, ErrRBFDisabled
	}

	newRefs := make(map[InputRef]struct{}, len(tx.Inputs))
	for _, r := range inputRefsOf(tx) {
		newRefs[r] = struct{}{}
	}

	conflicting := make(map[chainhash.Hash]struct{})
	for h, e := range m.txs {
		for _, r := range e.inputs {
			if _, shared := newRefs[r]; shared {
				conflicting[h] = struct{}{}
				break
			}
		}
	}
	if len(conflicting) == 0 {
		return nil, ErrNoConflict
	}

	// Pull in descendants transitively so a replacement also clears any
	// child transactions of what it conflicts with.
	frontier := make([]chainhash.Hash, 0, len(conflicting))
	for h := range conflicting {
		frontier = append(frontier, h)
	}
	for len(frontier) > 0 {
		h := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		e, ok := m.txs[h]
		if !ok {
			continue
		}
		for d := range e.descendants {
			if _, already := conflicting[d]; !already {
				conflicting[d] = struct{}{}
				frontier = append(frontier, d)
			}
		}
	}

	var totalConflictingFee uint64
	for h := range conflicting {
		if e, ok := m.txs[h]; ok {
			totalConflictingFee += e.fee
		}
	}

	size := tx.SerializedSize()
	newFee := feeRate * uint64(size)
	minRequired := uint64(float64(totalConflictingFee) * (1 + m.config.MinRBFFeeIncreasePct/100.0))
	if newFee < minRequired {
		return nil, &ErrFeeTooLow{Required: minRequired, Provided: newFee}
	}

	var replaced *models.Transaction
	for h := range conflicting {
		if e, ok := m.txs[h]; ok {
			if replaced == nil {
				replacedTx := e.tx
				replaced = &replacedTx
			}
			delete(m.txs, h)
			m.memoryUsage -= uint64(e.size)
		}
	}

	if err := m.addLocked(tx, feeRate, envScore, isLightningUpdate); err != nil {
		return nil, err
	}
	return replaced, nil
}

// GetBlockTemplate returns transactions in priority order up to maxBytes,
// skipping anything that has since expired.
func (m *Manager) GetBlockTemplate(maxBytes int) []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.queue.refresh(m.txs, now, false)

	result := make([]models.Transaction, 0)
	currentSize := 0
	for _, hash := range m.queue.order() {
		e, ok := m.txs[hash]
		if !ok {
			continue
		}
		if m.isExpiredLocked(e, now) {
			continue
		}
		if currentSize+e.size > maxBytes {
			break
		}
		result = append(result, e.tx)
		currentSize += e.size
	}
	return result
}

// GetCPFPPackage returns a transaction plus all of its mempool descendants.
func (m *Manager) GetCPFPPackage(hash chainhash.Hash) []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.txs[hash]
	if !ok {
		return nil
	}
	out := []models.Transaction{e.tx}
	for d := range e.descendants {
		if de, ok := m.txs[d]; ok {
			out = append(out, de.tx)
		}
	}
	return out
}

// GetPackageFeeRate computes cpfp_fee_rate(T): (fee(T) + sum descendant
// fees) / (size(T) + sum descendant sizes).
func (m *Manager) GetPackageFeeRate(hash chainhash.Hash) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.txs[hash]
	if !ok {
		return 0, false
	}
	totalFee, totalSize := e.fee, uint64(e.size)
	for d := range e.descendants {
		if de, ok := m.txs[d]; ok {
			totalFee += de.fee
			totalSize += uint64(de.size)
		}
	}
	if totalSize == 0 {
		return 0, true
	}
	return totalFee / totalSize, true
}

func (m *Manager) isExpiredLocked(e *entry, now time.Time) bool {
	return now.Sub(e.timestamp) > m.config.ExpirationTime
}

// RemoveExpired drops every entry older than the configured expiration
// time and returns how many were removed.
func (m *Manager) RemoveExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var toRemove []chainhash.Hash
	for h, e := range m.txs {
		if m.isExpiredLocked(e, now) {
			toRemove = append(toRemove, h)
		}
	}
	for _, h := range toRemove {
		e := m.txs[h]
		delete(m.txs, h)
		m.memoryUsage -= uint64(e.size)
	}
	return len(toRemove)
}

// Stats reports current pool occupancy.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TransactionCount:  len(m.txs),
		OrphanCount:       m.orphans.len(),
		MemoryUsageBytes:  m.memoryUsage,
		PriorityQueueSize: len(m.queue.order()),
	}
}
