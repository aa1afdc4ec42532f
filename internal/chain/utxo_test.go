package chain

import (
	"testing"

	"github.com/supernova-labs/supernova/pkg/models"
)

func TestUTXOSet_ApplyBlockCreatesAndSpends(t *testing.T) {
	s := NewUTXOSet()

	coinbase := models.Transaction{
		Version: 1,
		Outputs: []models.TxOutput{{Amount: 5000}},
	}
	if err := s.ApplyBlock(1, []models.Transaction{coinbase}); err != nil {
		t.Fatalf("unexpected error applying coinbase: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 utxo after coinbase, got %d", s.Len())
	}

	coinbaseHash := coinbase.Hash()
	spend := models.Transaction{
		Version: 1,
		Inputs:  []models.TxInput{{Prev: models.OutPoint{PrevTxHash: coinbaseHash, Index: 0}}},
		Outputs: []models.TxOutput{{Amount: 4900}},
	}
	if err := s.ApplyBlock(2, []models.Transaction{spend}); err != nil {
		t.Fatalf("unexpected error applying spend: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 utxo after spend+create, got %d", s.Len())
	}
	if _, ok := s.Get(models.OutPoint{PrevTxHash: coinbaseHash, Index: 0}); ok {
		t.Fatalf("spent outpoint must no longer be present")
	}
}

func TestUTXOSet_ApplyBlockRejectsMissingInput(t *testing.T) {
	s := NewUTXOSet()
	spend := models.Transaction{
		Version: 1,
		Inputs:  []models.TxInput{{Prev: models.OutPoint{Index: 0}}},
		Outputs: []models.TxOutput{{Amount: 100}},
	}
	err := s.ApplyBlock(1, []models.Transaction{spend})
	if err == nil {
		t.Fatalf("expected an error spending a nonexistent outpoint")
	}
	if s.Len() != 0 {
		t.Fatalf("a rejected block must leave the set untouched, got len %d", s.Len())
	}
}

func TestUTXOSet_ApplyBlockAtomicOnFailure(t *testing.T) {
	s := NewUTXOSet()
	ok := models.Transaction{Version: 1, Outputs: []models.TxOutput{{Amount: 1}}}
	bad := models.Transaction{
		Version: 1,
		Inputs:  []models.TxInput{{Prev: models.OutPoint{Index: 99}}},
	}
	err := s.ApplyBlock(1, []models.Transaction{ok, bad})
	if err == nil {
		t.Fatalf("expected the block to be rejected")
	}
	if s.Len() != 0 {
		t.Fatalf("a block touching both a valid and an invalid tx must apply atomically (all or nothing), got len %d", s.Len())
	}
}
