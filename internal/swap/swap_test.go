package swap

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

func newTestHTLC(preimage [32]byte, timeout time.Time) models.SupernovaHTLC {
	return models.SupernovaHTLC{
		HashLock: NewHashLock(preimage),
		TimeLock: models.TimeLock{AbsoluteTimeout: timeout.Unix()},
		Amount:   1_000_000,
		State:    models.SwapInitializing,
	}
}

func TestFund_TransitionsToNovaFunded(t *testing.T) {
	var preimage [32]byte
	htlc := newTestHTLC(preimage, time.Now().Add(time.Hour))
	if err := Fund(&htlc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if htlc.State != models.SwapNovaFunded {
		t.Fatalf("expected NovaFunded, got %s", htlc.State)
	}
}

func TestFund_RejectsWrongState(t *testing.T) {
	var preimage [32]byte
	htlc := newTestHTLC(preimage, time.Now().Add(time.Hour))
	htlc.State = models.SwapActive
	if err := Fund(&htlc); err == nil {
		t.Fatalf("expected an error funding a non-Initializing htlc")
	}
}

func TestClaim_SucceedsWithCorrectPreimageBeforeExpiry(t *testing.T) {
	var preimage [32]byte
	preimage[0] = 0x42
	htlc := newTestHTLC(preimage, time.Now().Add(time.Hour))
	htlc.State = models.SwapActive

	if err := Claim(&htlc, preimage, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if htlc.State != models.SwapClaimed {
		t.Fatalf("expected Claimed, got %s", htlc.State)
	}
}

func TestClaim_RejectsWrongPreimage(t *testing.T) {
	var preimage, wrong [32]byte
	preimage[0] = 0x42
	wrong[0] = 0x43
	htlc := newTestHTLC(preimage, time.Now().Add(time.Hour))
	htlc.State = models.SwapActive

	if err := Claim(&htlc, wrong, time.Now()); err != ErrHashMismatch {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
}

func TestClaim_RejectsAfterExpiry(t *testing.T) {
	var preimage [32]byte
	htlc := newTestHTLC(preimage, time.Now().Add(-time.Minute))
	htlc.State = models.SwapActive

	if err := Claim(&htlc, preimage, time.Now()); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRefund_RejectsBeforeExpiry(t *testing.T) {
	var preimage [32]byte
	htlc := newTestHTLC(preimage, time.Now().Add(time.Hour))
	htlc.State = models.SwapActive

	if err := Refund(&htlc, time.Now()); err != ErrNotExpired {
		t.Fatalf("expected ErrNotExpired, got %v", err)
	}
}

func TestRefund_SucceedsAfterExpiry(t *testing.T) {
	var preimage [32]byte
	htlc := newTestHTLC(preimage, time.Now().Add(-time.Minute))
	htlc.State = models.SwapActive

	if err := Refund(&htlc, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if htlc.State != models.SwapRefunded {
		t.Fatalf("expected Refunded, got %s", htlc.State)
	}
}

func TestRefund_RejectsAlreadyFinalState(t *testing.T) {
	var preimage [32]byte
	htlc := newTestHTLC(preimage, time.Now().Add(-time.Minute))
	htlc.State = models.SwapCompleted

	if err := Refund(&htlc, time.Now()); err != ErrAlreadyFinal {
		t.Fatalf("expected ErrAlreadyFinal, got %v", err)
	}
}

func TestBackoffDelay_DoublesUntilCap(t *testing.T) {
	cfg := MonitorConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{10, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := BackoffDelay(cfg, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

type fakeBitcoinReader struct {
	tip   uint64
	block *BitcoinBlock
}

func (f *fakeBitcoinReader) TipHeight(ctx context.Context) (uint64, error) {
	return f.tip, nil
}

func (f *fakeBitcoinReader) BlockAtHeight(ctx context.Context, height uint64) (*BitcoinBlock, error) {
	return f.block, nil
}

type fakeNovaReader struct{}

func (fakeNovaReader) HashAtHeight(height uint64) (chainhash.Hash, bool) {
	return chainhash.Hash{}, false
}

func (fakeNovaReader) TipHeight() uint64 { return 0 }

func TestCrossChainMonitor_AutoClaimsOnPreimageReveal(t *testing.T) {
	var preimage [32]byte
	preimage[0] = 0x7a
	hashLock := NewHashLock(preimage)

	session := &models.SwapSession{
		Setup: models.SwapSetup{SwapID: [32]byte{1}},
		NovaHTLC: models.SupernovaHTLC{
			HashLock: hashLock,
			TimeLock: models.TimeLock{AbsoluteTimeout: time.Now().Add(time.Hour).Unix()},
			State:    models.SwapActive,
		},
	}

	btc := &fakeBitcoinReader{
		tip: 100,
		block: &BitcoinBlock{
			Height:    100,
			Witnesses: [][][]byte{{preimage[:]}},
		},
	}

	cfg := DefaultMonitorConfig()
	monitor := NewCrossChainMonitor(cfg, btc, fakeNovaReader{})
	monitor.AddSwap(session)

	monitor.pollOnce(context.Background(), time.Now())

	if session.NovaHTLC.State != models.SwapClaimed {
		t.Fatalf("expected auto-claim to mark the htlc Claimed, got %s", session.NovaHTLC.State)
	}
	if session.Secret == nil || *session.Secret != preimage {
		t.Fatalf("expected the revealed preimage to be recorded on the session")
	}
}

func TestCrossChainMonitor_AutoRefundsExpiredHTLC(t *testing.T) {
	session := &models.SwapSession{
		Setup: models.SwapSetup{SwapID: [32]byte{2}},
		NovaHTLC: models.SupernovaHTLC{
			TimeLock: models.TimeLock{AbsoluteTimeout: time.Now().Add(-time.Minute).Unix()},
			State:    models.SwapActive,
		},
	}

	btc := &fakeBitcoinReader{tip: 50, block: &BitcoinBlock{Height: 50}}
	cfg := DefaultMonitorConfig()
	monitor := NewCrossChainMonitor(cfg, btc, fakeNovaReader{})
	monitor.AddSwap(session)

	monitor.pollOnce(context.Background(), time.Now())

	if session.NovaHTLC.State != models.SwapRefunded {
		t.Fatalf("expected auto-refund to mark the htlc Refunded, got %s", session.NovaHTLC.State)
	}
}

func TestCrossChainMonitor_FlagsReorgOnHashDivergence(t *testing.T) {
	session := &models.SwapSession{
		Setup: models.SwapSetup{SwapID: [32]byte{3}},
		NovaHTLC: models.SupernovaHTLC{
			TimeLock: models.TimeLock{AbsoluteTimeout: time.Now().Add(time.Hour).Unix()},
			State:    models.SwapActive,
		},
		ConfirmedHeight:    50,
		ConfirmedBlockHash: [32]byte{0xaa},
	}

	btc := &fakeBitcoinReader{tip: 50, block: &BitcoinBlock{Height: 50, Hash: [32]byte{0xbb}}}
	cfg := DefaultMonitorConfig()
	cfg.AutoRefund = false
	monitor := NewCrossChainMonitor(cfg, btc, fakeNovaReader{})
	monitor.AddSwap(session)

	monitor.pollOnce(context.Background(), time.Now())

	if !session.ReorgFlagged {
		t.Fatalf("expected a diverging confirmed block hash to flag a reorg")
	}
}

func TestManager_InitiateAndStatusRoundTrip(t *testing.T) {
	cfg := DefaultMonitorConfig()
	monitor := NewCrossChainMonitor(cfg, &fakeBitcoinReader{}, fakeNovaReader{})
	mgr := NewManager(monitor)

	session, err := mgr.InitiateSwap(InitiateSwapParams{
		BitcoinAmount:  100_000,
		NovaAmount:     500_000,
		TimeoutMinutes: 60,
	}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := mgr.GetSwapStatus(session.Setup.SwapID, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.BitcoinAmount != 100_000 || status.NovaAmount != 500_000 {
		t.Fatalf("expected status to reflect initiate params, got %+v", status)
	}
}

func TestManager_CancelOnlyAllowedBeforeFunding(t *testing.T) {
	mgr := NewManager(nil)
	session, err := mgr.InitiateSwap(InitiateSwapParams{TimeoutMinutes: 30}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := mgr.CancelSwap(session.Setup.SwapID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected cancel to succeed on a just-initiated swap")
	}

	if _, err := mgr.GetSwapStatus(session.Setup.SwapID, time.Now()); err != ErrSwapNotFound {
		t.Fatalf("expected the cancelled swap to be removed, got %v", err)
	}
}
