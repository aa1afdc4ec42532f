package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/supernova-labs/supernova/pkg/models"
)

type fakeDataSource struct {
	path string
}

func (f *fakeDataSource) Flush() error { return nil }
func (f *fakeDataSource) Path() string { return f.path }

type fakeChainState struct {
	height    uint64
	blockHash [32]byte
	utxoHash  [32]byte
}

func (f *fakeChainState) Height() uint64          { return f.height }
func (f *fakeChainState) BestBlockHash() [32]byte { return f.blockHash }
func (f *fakeChainState) UTXOSetHash() [32]byte   { return f.utxoHash }

func TestCheckpointManager_CreateAndRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "state.db"), []byte("chain-state-bytes"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	data := &fakeDataSource{path: dataDir}
	chain := &fakeChainState{height: 42, blockHash: [32]byte{1}, utxoHash: [32]byte{2}}

	config := DefaultCheckpointConfig()
	config.CheckpointDir = filepath.Join(root, "checkpoints")

	mgr := NewCheckpointManager(data, chain, config)
	if err := os.MkdirAll(config.CheckpointDir, 0o755); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	info, err := mgr.CreateCheckpoint(models.CheckpointManual)
	if err != nil {
		t.Fatalf("unexpected error creating checkpoint: %v", err)
	}
	if info.Height != 42 || !info.Verified {
		t.Fatalf("expected a verified checkpoint at height 42, got %+v", info)
	}

	if err := os.WriteFile(filepath.Join(dataDir, "state.db"), []byte("corrupted-afterwards"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := mgr.RestoreFromCheckpoint(42); err != nil {
		t.Fatalf("unexpected error restoring checkpoint: %v", err)
	}

	restored, err := os.ReadFile(filepath.Join(dataDir, "state.db"))
	if err != nil {
		t.Fatalf("unexpected error reading restored data: %v", err)
	}
	if string(restored) != "chain-state-bytes" {
		t.Fatalf("expected restore to recover original data, got %q", restored)
	}
}

func TestCheckpointManager_CleanupKeepsManualAndRecentRegular(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	os.MkdirAll(dataDir, 0o755)

	data := &fakeDataSource{path: dataDir}
	chain := &fakeChainState{height: 0}

	config := DefaultCheckpointConfig()
	config.CheckpointDir = filepath.Join(root, "checkpoints")
	config.MaxCheckpoints = 2
	os.MkdirAll(config.CheckpointDir, 0o755)

	mgr := NewCheckpointManager(data, chain, config)

	heights := []uint64{10, 20, 30, 40}
	kinds := []models.CheckpointType{models.CheckpointRegular, models.CheckpointRegular, models.CheckpointRegular, models.CheckpointManual}
	for i, h := range heights {
		chain.height = h
		if _, err := mgr.CreateCheckpoint(kinds[i]); err != nil {
			t.Fatalf("unexpected error creating checkpoint at height %d: %v", h, err)
		}
	}

	if err := mgr.cleanupOldCheckpoints(); err != nil {
		t.Fatalf("unexpected error cleaning up: %v", err)
	}

	remaining := mgr.Checkpoints()
	if len(remaining) != 3 {
		t.Fatalf("expected 3 checkpoints to remain (2 regular + 1 manual), got %d", len(remaining))
	}
	for _, info := range remaining {
		if info.Height == 10 {
			t.Fatalf("expected the oldest regular checkpoint to be pruned")
		}
	}
}

func TestCheckpointManager_VerifyQuarantinesCorruptedCheckpoint(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	os.MkdirAll(dataDir, 0o755)
	if err := os.WriteFile(filepath.Join(dataDir, "state.db"), []byte("chain-state-bytes"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	data := &fakeDataSource{path: dataDir}
	chain := &fakeChainState{height: 7}

	config := DefaultCheckpointConfig()
	config.CheckpointDir = filepath.Join(root, "checkpoints")
	os.MkdirAll(config.CheckpointDir, 0o755)

	mgr := NewCheckpointManager(data, chain, config)

	info, err := mgr.CreateCheckpoint(models.CheckpointRegular)
	if err != nil {
		t.Fatalf("unexpected error creating checkpoint: %v", err)
	}
	if !info.Verified {
		t.Fatalf("expected checkpoint to verify cleanly on creation")
	}

	// Flip one byte of one file under data/, simulating on-disk corruption
	// after the checkpoint was taken.
	corruptPath := filepath.Join(config.CheckpointDir, "checkpoint_7", "data", "state.db")
	bytes, err := os.ReadFile(corruptPath)
	if err != nil {
		t.Fatalf("reading checkpoint data file: %v", err)
	}
	bytes[0] ^= 0xFF
	if err := os.WriteFile(corruptPath, bytes, 0o644); err != nil {
		t.Fatalf("corrupting checkpoint data file: %v", err)
	}

	result, err := mgr.VerifyCheckpoints()
	if err != nil {
		t.Fatalf("unexpected error verifying checkpoints: %v", err)
	}
	if result.Verified != 0 || result.Failed != 1 {
		t.Fatalf("expected 1 failed and 0 verified, got %+v", result)
	}

	failedPath := filepath.Join(config.CheckpointDir, "failed", "checkpoint_7")
	if _, err := os.Stat(failedPath); err != nil {
		t.Fatalf("expected corrupted checkpoint moved to %s: %v", failedPath, err)
	}
	if _, err := os.Stat(filepath.Join(config.CheckpointDir, "checkpoint_7")); !os.IsNotExist(err) {
		t.Fatalf("expected original checkpoint directory to be gone")
	}
	if _, ok := mgr.LatestCheckpoint(); ok {
		t.Fatalf("expected no checkpoints to remain after quarantine")
	}
}

type fakeIntegrityStore struct {
	tables []string
	blocks map[uint64]BlockRecord
	tip    uint64
	utxos  []UTXORecord
}

func (f *fakeIntegrityStore) RequiredTablesPresent() ([]string, error) { return f.tables, nil }
func (f *fakeIntegrityStore) BlockAtHeight(height uint64) (BlockRecord, bool, error) {
	b, ok := f.blocks[height]
	return b, ok, nil
}
func (f *fakeIntegrityStore) TipHeight() (uint64, error) { return f.tip, nil }
func (f *fakeIntegrityStore) UTXOSetSize() (int, error)  { return len(f.utxos), nil }
func (f *fakeIntegrityStore) UTXOSample(limit int) ([]UTXORecord, error) {
	if limit < len(f.utxos) {
		return f.utxos[:limit], nil
	}
	return f.utxos, nil
}

func TestBlockchainVerifier_FlagsBrokenPrevHashChain(t *testing.T) {
	store := &fakeIntegrityStore{
		tip: 2,
		blocks: map[uint64]BlockRecord{
			2: {Height: 2, Hash: [32]byte{2}, PrevHash: [32]byte{99}, PowValid: true},
			1: {Height: 1, Hash: [32]byte{1}, PrevHash: [32]byte{0}, PowValid: true},
			0: {Height: 0, Hash: [32]byte{0}, PowValid: true},
		},
	}
	v := NewBlockchainVerifier(store, DefaultIntegrityConfig())
	issues, err := v.Verify()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, issue := range issues {
		if issue.Type == IssueChainInconsistency {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a ChainInconsistency issue for the mismatched prev-hash, got %+v", issues)
	}
}

func TestUTXOVerifier_FlagsDuplicateOutpoint(t *testing.T) {
	dup := [36]byte{1}
	store := &fakeIntegrityStore{
		utxos: []UTXORecord{{Outpoint: dup, Value: 100}, {Outpoint: dup, Value: 200}},
	}
	v := NewUTXOVerifier(store, DefaultIntegrityConfig())
	issues, err := v.Verify()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) == 0 {
		t.Fatalf("expected a duplicate-outpoint issue")
	}
}

func TestCryptoVerifier_FlagsFailedSignature(t *testing.T) {
	store := &fakeIntegrityStore{
		tip: 0,
		blocks: map[uint64]BlockRecord{
			0: {
				Height: 0,
				Transactions: []TxRecord{{
					Txid:       [32]byte{1},
					Signatures: [][]byte{{1, 2, 3}},
					PublicKeys: [][]byte{{4, 5, 6}},
					Messages:   [][]byte{{7, 8, 9}},
				}},
			},
		},
	}
	config := DefaultIntegrityConfig()
	v := NewCryptoVerifier(store, config, func(pub, msg, sig []byte) (bool, error) { return false, nil })
	issues, err := v.Verify()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 1 || issues[0].Type != IssueCryptoVerification {
		t.Fatalf("expected a single CryptoVerification issue, got %+v", issues)
	}
}
