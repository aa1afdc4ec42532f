package chain

import (
	"testing"

	"github.com/supernova-labs/supernova/pkg/models"
)

// easiestBits is a difficulty-bits encoding whose exponent is above 32,
// which Target maps to the all-0xff maximum target, so any header hash
// satisfies proof-of-work in these tests.
const easiestBits = uint32(0x21ffffff)

func newTestValidator() *Validator {
	tw := NewTimeWarpDetector(DefaultTimeWarpConfig())
	cp := NewCheckpointManager()
	wsc := NewWeakSubjectivityManager(DefaultWeakSubjectivityConfig())
	utxos := NewUTXOSet()
	return NewValidator(tw, cp, wsc, utxos)
}

func genesisBlock(ts int64) models.Block {
	txs := []models.Transaction{{Version: 1, Outputs: []models.TxOutput{{Amount: 5000}}}}
	h := models.BlockHeader{
		Version:        1,
		TimestampSecs:  ts,
		DifficultyBits: easiestBits,
		MerkleRoot:     models.MerkleRoot(txs),
		Height:         0,
	}
	return models.Block{Header: h, Transactions: txs}
}

func TestValidator_AcceptGenesisAndExtend(t *testing.T) {
	v := newTestValidator()
	base := int64(1_700_000_000)

	gen := genesisBlock(base)
	height, err := v.AcceptBlock(gen, base+10)
	if err != nil {
		t.Fatalf("unexpected error accepting genesis: %v", err)
	}
	if height != 0 {
		t.Fatalf("expected genesis height 0, got %d", height)
	}

	child := models.Block{
		Header: models.BlockHeader{
			Version:        1,
			PrevBlockHash:  gen.Header.Hash(),
			TimestampSecs:  base + 600,
			DifficultyBits: easiestBits,
			MerkleRoot:     models.MerkleRoot(nil),
		},
	}
	height, err = v.AcceptBlock(child, base+700)
	if err != nil {
		t.Fatalf("unexpected error accepting child: %v", err)
	}
	if height != 1 {
		t.Fatalf("expected child height 1, got %d", height)
	}

	tip, ok := v.TipHeight()
	if !ok || tip != 1 {
		t.Fatalf("expected tip height 1, got %d (ok=%v)", tip, ok)
	}
}

func TestValidator_RejectsMerkleMismatch(t *testing.T) {
	v := newTestValidator()
	base := int64(1_700_000_000)
	gen := genesisBlock(base)
	gen.Header.MerkleRoot = models.MerkleRoot(nil) // deliberately wrong
	if _, err := v.AcceptBlock(gen, base+10); err != ErrMerkleMismatch {
		t.Fatalf("expected ErrMerkleMismatch, got %v", err)
	}
}

func TestValidator_RejectsUnknownParent(t *testing.T) {
	v := newTestValidator()
	base := int64(1_700_000_000)
	gen := genesisBlock(base)
	if _, err := v.AcceptBlock(gen, base+10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	orphan := models.Block{
		Header: models.BlockHeader{
			Version:        1,
			TimestampSecs:  base + 600,
			DifficultyBits: easiestBits,
			MerkleRoot:     models.MerkleRoot(nil),
		},
	}
	if _, err := v.AcceptBlock(orphan, base+700); err != ErrUnknownParent {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}
}

func TestValidator_RejectsFutureTimestamp(t *testing.T) {
	v := newTestValidator()
	base := int64(1_700_000_000)
	gen := genesisBlock(base + 1_000_000)
	if _, err := v.AcceptBlock(gen, base); err == nil {
		t.Fatalf("expected a far-future timestamp to be rejected")
	}
}
