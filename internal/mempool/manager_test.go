package mempool

import (
	"testing"

	"github.com/supernova-labs/supernova/pkg/models"
)

func testTx(prevHash [32]byte, amount uint64) models.Transaction {
	return models.Transaction{
		Version: 1,
		Inputs:  []models.TxInput{{Prev: models.OutPoint{PrevTxHash: prevHash, Index: 0}, Sequence: 0xffffffff}},
		Outputs: []models.TxOutput{{Amount: amount}},
	}
}

func TestManager_OrphanHandlingAndReconnect(t *testing.T) {
	m := NewManager(DefaultConfig())

	parent := testTx([32]byte{0}, 100_000_000)
	parentHash := parent.Hash()
	child := testTx(parentHash, 50_000_000)
	if err := m.AddTransaction(child, 10, 50, false); err != nil {
		t.Fatalf("unexpected error adding orphan: %v", err)
	}
	if got := m.Stats().OrphanCount; got != 1 {
		t.Fatalf("expected 1 orphan, got %d", got)
	}

	if err := m.AddTransaction(parent, 10, 50, false); err != nil {
		t.Fatalf("unexpected error adding parent: %v", err)
	}
	if child.Inputs[0].Prev.PrevTxHash != parent.Hash() {
		t.Fatalf("test fixture error: parent hash does not match child's expected parent")
	}

	stats := m.Stats()
	if stats.OrphanCount != 0 {
		t.Fatalf("expected orphan reconnected, got orphan count %d", stats.OrphanCount)
	}
	if stats.TransactionCount != 2 {
		t.Fatalf("expected 2 transactions in pool, got %d", stats.TransactionCount)
	}
}

func TestManager_RejectsDuplicateAndLowFee(t *testing.T) {
	m := NewManager(DefaultConfig())
	tx := testTx([32]byte{9}, 1000)
	if err := m.AddTransaction(tx, 10, 50, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AddTransaction(tx, 10, 50, false); err != ErrTransactionExists {
		t.Fatalf("expected ErrTransactionExists, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.MinFeeRate = 100
	m2 := NewManager(cfg)
	if err := m2.AddTransaction(testTx([32]byte{3}, 1), 1, 50, false); err == nil {
		t.Fatalf("expected low fee rejection")
	}
}

func TestManager_CPFPPackageFeeRate(t *testing.T) {
	m := NewManager(DefaultConfig())
	parent := testTx([32]byte{0}, 100_000_000)
	if err := m.AddTransaction(parent, 1, 50, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parentHash := parent.Hash()

	child := testTx(parentHash, 50_000_000)
	if err := m.AddTransaction(child, 100, 50, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rate, ok := m.GetPackageFeeRate(parentHash)
	if !ok {
		t.Fatalf("expected package fee rate to be found")
	}
	if rate <= 1 {
		t.Fatalf("expected CPFP package rate to exceed the parent's lone rate of 1, got %d", rate)
	}
}

func TestManager_RBFReplacesConflictingTransaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableRBF = true
	cfg.MinRBFFeeIncreasePct = 10.0
	m := NewManager(cfg)

	tx1 := testTx([32]byte{0}, 100_000_000)
	if err := m.AddTransaction(tx1, 10, 50, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx2 := models.Transaction{
		Version: 1,
		Inputs:  []models.TxInput{{Prev: models.OutPoint{PrevTxHash: [32]byte{0}, Index: 0}}},
		Outputs: []models.TxOutput{{Amount: 90_000_000}},
	}
	replaced, err := m.ReplaceTransaction(tx2, 50, 50, false)
	if err != nil {
		t.Fatalf("unexpected RBF error: %v", err)
	}
	if replaced == nil {
		t.Fatalf("expected the original conflicting transaction to be returned")
	}
	if got := m.Stats().TransactionCount; got != 1 {
		t.Fatalf("expected exactly 1 transaction after RBF, got %d", got)
	}
}

func TestManager_MemoryLimitEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMemoryBytes = 400
	m := NewManager(cfg)

	for i := 0; i < 20; i++ {
		tx := testTx([32]byte{byte(i)}, 100_000_000)
		_ = m.AddTransaction(tx, uint64(i), 50, false)
	}
	if got := m.Stats().MemoryUsageBytes; got > cfg.MaxMemoryBytes {
		t.Fatalf("expected memory usage to stay within budget, got %d > %d", got, cfg.MaxMemoryBytes)
	}
}

func TestManager_RemoveExpiredIsZeroForFreshEntries(t *testing.T) {
	m := NewManager(DefaultConfig())
	tx := testTx([32]byte{1}, 100)
	if err := m.AddTransaction(tx, 10, 50, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed := m.RemoveExpired(); removed != 0 {
		t.Fatalf("expected 0 removed for a fresh entry, got %d", removed)
	}
}

func TestManager_GetBlockTemplateRespectsSizeCap(t *testing.T) {
	m := NewManager(DefaultConfig())
	for i := 0; i < 5; i++ {
		tx := testTx([32]byte{byte(i)}, 100_000_000)
		if err := m.AddTransaction(tx, uint64(10+i), 50, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	template := m.GetBlockTemplate(1)
	if len(template) != 0 {
		t.Fatalf("expected an impossibly small size cap to admit nothing, got %d", len(template))
	}

	full := m.GetBlockTemplate(1_000_000)
	if len(full) != 5 {
		t.Fatalf("expected all 5 transactions under a generous cap, got %d", len(full))
	}
}
