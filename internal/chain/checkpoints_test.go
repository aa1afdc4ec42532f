package chain

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

func TestCheckpointManager_MonotoneInsertion(t *testing.T) {
	m := NewCheckpointManager()
	if err := m.Add(models.Checkpoint{Height: 100, BlockHash: chainhash.Hash{1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Add(models.Checkpoint{Height: 200, BlockHash: chainhash.Hash{2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Add(models.Checkpoint{Height: 150, BlockHash: chainhash.Hash{3}}); err == nil {
		t.Fatalf("expected a height below the max to be rejected")
	}
}

func TestCheckpointManager_ConflictDetection(t *testing.T) {
	m := NewCheckpointManager()
	h1 := chainhash.Hash{1}
	h2 := chainhash.Hash{2}
	if err := m.Add(models.Checkpoint{Height: 100, BlockHash: h1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Add(models.Checkpoint{Height: 100, BlockHash: h2}); err == nil {
		t.Fatalf("expected a conflicting hash at an existing height to be rejected")
	}
	if err := m.Add(models.Checkpoint{Height: 100, BlockHash: h1}); err != nil {
		t.Fatalf("re-adding the identical checkpoint must be idempotent: %v", err)
	}
	if !m.ConflictsWithTrustedHash(100, h2) {
		t.Fatalf("expected conflict detection against a finalized hash")
	}
	if m.ConflictsWithTrustedHash(100, h1) {
		t.Fatalf("matching hash must not be flagged as a conflict")
	}
}

func TestCheckpointManager_SortedAndHighest(t *testing.T) {
	m := NewCheckpointManager()
	for _, h := range []uint64{10, 20, 30} {
		if err := m.Add(models.Checkpoint{Height: h}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	sorted := m.Sorted()
	if len(sorted) != 3 || sorted[0].Height != 10 || sorted[2].Height != 30 {
		t.Fatalf("expected ascending height order, got %+v", sorted)
	}
	top, ok := m.Highest()
	if !ok || top.Height != 30 {
		t.Fatalf("expected highest checkpoint at height 30, got %+v", top)
	}
}
