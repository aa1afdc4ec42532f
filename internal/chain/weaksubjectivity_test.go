package chain

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

func TestWeakSubjectivityManager_StartsUnprotected(t *testing.T) {
	m := NewWeakSubjectivityManager(DefaultWeakSubjectivityConfig())
	if m.Protected() {
		t.Fatalf("a freshly constructed manager must be Unprotected")
	}
	if m.Age(time.Now()) != WSCExpired {
		t.Fatalf("an absent checkpoint must classify as Expired")
	}
}

func TestWeakSubjectivityManager_RejectsLowTrust(t *testing.T) {
	m := NewWeakSubjectivityManager(DefaultWeakSubjectivityConfig())
	err := m.Set(models.Checkpoint{Height: 100, Source: models.TrustAutomatic, CreatedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected TrustAutomatic (level 40) to be rejected below the default floor of 60")
	}
}

func TestWeakSubjectivityManager_MonotoneUpgradeOnly(t *testing.T) {
	m := NewWeakSubjectivityManager(DefaultWeakSubjectivityConfig())
	if err := m.Set(models.Checkpoint{Height: 1000, Source: models.TrustHumanOperator, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error installing first checkpoint: %v", err)
	}
	if err := m.Set(models.Checkpoint{Height: 500, Source: models.TrustHardcoded, CreatedAt: time.Now()}); err == nil {
		t.Fatalf("expected a lower-height checkpoint to be rejected as non-monotone")
	}
	if err := m.Set(models.Checkpoint{Height: 2000, Source: models.TrustHardcoded, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("a higher-height checkpoint should be accepted: %v", err)
	}
}

func TestWeakSubjectivityManager_PeerDivergence(t *testing.T) {
	m := NewWeakSubjectivityManager(DefaultWeakSubjectivityConfig())
	want := chainhash.Hash{1, 2, 3}
	if err := m.Set(models.Checkpoint{Height: 100, BlockHash: want, Source: models.TrustHardcoded, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.CheckPeerDivergence(want); err != nil {
		t.Fatalf("matching hash must not diverge: %v", err)
	}
	other := chainhash.Hash{9, 9, 9}
	if err := m.CheckPeerDivergence(other); err == nil {
		t.Fatalf("expected divergence error for mismatched hash")
	}
}

func TestWeakSubjectivityManager_CanReorgTo(t *testing.T) {
	m := NewWeakSubjectivityManager(DefaultWeakSubjectivityConfig())
	if err := m.Set(models.Checkpoint{Height: 5000, Source: models.TrustHardcoded, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.CanReorgTo(4000); err == nil {
		t.Fatalf("expected reorg before the WSC height to be refused")
	}
	if err := m.CanReorgTo(5000); err != nil {
		t.Fatalf("reorg at or after the WSC height must be permitted: %v", err)
	}
}

func TestWeakSubjectivityManager_Aging(t *testing.T) {
	cfg := DefaultWeakSubjectivityConfig()
	m := NewWeakSubjectivityManager(cfg)
	now := time.Now()
	if err := m.Set(models.Checkpoint{Height: 1, Source: models.TrustHardcoded, CreatedAt: now.Add(-31 * 24 * time.Hour)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Age(now); got != WSCExpired {
		t.Fatalf("expected Expired after 31 days, got %s", got)
	}

	m2 := NewWeakSubjectivityManager(cfg)
	if err := m2.Set(models.Checkpoint{Height: 1, Source: models.TrustHardcoded, CreatedAt: now.Add(-25 * 24 * time.Hour)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m2.Age(now); got != WSCNeedsRefresh {
		t.Fatalf("expected NeedsRefresh at 25/30 days, got %s", got)
	}

	m3 := NewWeakSubjectivityManager(cfg)
	if err := m3.Set(models.Checkpoint{Height: 1, Source: models.TrustHardcoded, CreatedAt: now.Add(-1 * time.Hour)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m3.Age(now); got != WSCProtected {
		t.Fatalf("expected Protected shortly after installation, got %s", got)
	}
}

func TestWeakSubjectivityManager_AutoPromote(t *testing.T) {
	cfg := DefaultWeakSubjectivityConfig()
	m := NewWeakSubjectivityManager(cfg)
	if err := m.Set(models.Checkpoint{Height: 100, Source: models.TrustHardcoded, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hashes := map[uint64]chainhash.Hash{2000: {7, 7, 7}}
	hashAt := func(h uint64) (chainhash.Hash, bool) {
		v, ok := hashes[h]
		return v, ok
	}

	// tip - current.Height (100) = 2000, well beyond periodBlocks/2 (1000).
	if err := m.MaybeAutoPromote(2100, hashAt, 2000); err != nil {
		t.Fatalf("unexpected auto-promote error: %v", err)
	}
	if m.Current().Height != 2000 {
		t.Fatalf("expected auto-promotion to height 2000, got %d", m.Current().Height)
	}
	if m.Current().Source != models.TrustAutomatic {
		t.Fatalf("expected TrustAutomatic source after auto-promotion")
	}
}
