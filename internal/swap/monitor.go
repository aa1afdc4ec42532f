package swap

import (
	"context"
	"crypto/sha256"
	"log"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

// MonitorConfig tunes the cross-chain monitor's polling and retry
// behavior.
type MonitorConfig struct {
	PollInterval time.Duration
	AutoClaim    bool
	AutoRefund   bool
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
}

// DefaultMonitorConfig matches the reference node's defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval: 10 * time.Second,
		AutoClaim:    true,
		AutoRefund:   true,
		MaxRetries:   5,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// BitcoinBlock is the minimal view of a Bitcoin block the monitor needs:
// its height, hash, and the raw witness stacks of its transactions, which
// may carry a revealed HTLC preimage.
type BitcoinBlock struct {
	Height    uint64
	Hash      [32]byte
	Witnesses [][][]byte // one witness stack per transaction
}

// SwapEventKind tags the event log entries the monitor and RPC emit.
type SwapEventKind int

const (
	EventInitiated SwapEventKind = iota
	EventSecretRevealed
	EventClaimed
	EventRefunded
	EventReorgDetected
	EventRetryExhausted
)

// SwapEvent is one entry in a swap's audit trail.
type SwapEvent struct {
	Kind      SwapEventKind
	SwapID    [32]byte
	Timestamp int64
	Detail    string
}

// BackoffDelay returns the capped exponential backoff delay for the given
// zero-indexed attempt number.
func BackoffDelay(cfg MonitorConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	return delay
}

// BitcoinChainReader is the subset of Bitcoin RPC the monitor needs to
// observe the other chain, satisfied by internal/bitcoin's client.
type BitcoinChainReader interface {
	BlockAtHeight(ctx context.Context, height uint64) (*BitcoinBlock, error)
	TipHeight(ctx context.Context) (uint64, error)
}

// NovaChainReader exposes the local chain's tip, used to evaluate HTLC
// timeouts and detect reorgs on the Supernova side.
type NovaChainReader interface {
	HashAtHeight(height uint64) (chainhash.Hash, bool)
	TipHeight() uint64
}

// CrossChainMonitor polls both chains, matches revealed preimages against
// active sessions, and drives auto-claim/auto-refund.
type CrossChainMonitor struct {
	mu       sync.Mutex
	config   MonitorConfig
	sessions map[[32]byte]*models.SwapSession
	events   map[[32]byte][]SwapEvent
	btc      BitcoinChainReader
	nova     NovaChainReader
	retries  map[[32]byte]int
}

// NewCrossChainMonitor constructs a monitor over the given chain readers.
func NewCrossChainMonitor(cfg MonitorConfig, btc BitcoinChainReader, nova NovaChainReader) *CrossChainMonitor {
	return &CrossChainMonitor{
		config:   cfg,
		sessions: make(map[[32]byte]*models.SwapSession),
		events:   make(map[[32]byte][]SwapEvent),
		btc:      btc,
		nova:     nova,
		retries:  make(map[[32]byte]int),
	}
}

// AddSwap registers a session for monitoring.
func (m *CrossChainMonitor) AddSwap(session *models.SwapSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Setup.SwapID] = session
}

func (m *CrossChainMonitor) recordEvent(swapID [32]byte, kind SwapEventKind, detail string, now time.Time) {
	m.events[swapID] = append(m.events[swapID], SwapEvent{Kind: kind, SwapID: swapID, Timestamp: now.Unix(), Detail: detail})
}

// Events returns the event log for a swap.
func (m *CrossChainMonitor) Events(swapID [32]byte) []SwapEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SwapEvent{}, m.events[swapID]...)
}

// Run polls both chains at config.PollInterval until ctx is cancelled.
func (m *CrossChainMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx, time.Now())
		}
	}
}

func (m *CrossChainMonitor) pollOnce(ctx context.Context, now time.Time) {
	m.checkBitcoinSide(ctx, now)
	m.checkNovaSide(now)
}

// checkBitcoinSide inspects the latest Bitcoin block for a revealed
// preimage matching any active session's hash lock, and auto-claims on
// the Supernova side when found.
func (m *CrossChainMonitor) checkBitcoinSide(ctx context.Context, now time.Time) {
	tip, err := m.btc.TipHeight(ctx)
	if err != nil {
		log.Printf("[swap.monitor] bitcoin tip query failed: %v", err)
		return
	}
	block, err := m.btc.BlockAtHeight(ctx, tip)
	if err != nil {
		log.Printf("[swap.monitor] bitcoin block fetch failed: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkReorgLocked(block, now)

	for _, witness := range block.Witnesses {
		for _, item := range witness {
			if len(item) != 32 {
				continue
			}
			var preimage [32]byte
			copy(preimage[:], item)
			hash := sha256.Sum256(preimage[:])

			for swapID, session := range m.sessions {
				if session.NovaHTLC.HashLock.HashValue != hash {
					continue
				}
				p := preimage
				session.Secret = &p
				m.recordEvent(swapID, EventSecretRevealed, "preimage observed on bitcoin side", now)

				if m.config.AutoClaim && session.NovaHTLC.State == models.SwapActive {
					if err := Claim(&session.NovaHTLC, preimage, now); err == nil {
						session.State = models.SwapClaimed
						m.recordEvent(swapID, EventClaimed, "auto-claimed after preimage reveal", now)
						delete(m.retries, swapID)
					} else {
						m.bumpRetryLocked(swapID, now)
					}
				}
			}
		}
	}
}

// checkReorgLocked compares the block observed for each session's
// recorded confirmation height against the freshly polled block, flagging
// divergence for re-verification before further action.
func (m *CrossChainMonitor) checkReorgLocked(block *BitcoinBlock, now time.Time) {
	for swapID, session := range m.sessions {
		if session.ConfirmedHeight == 0 || session.ConfirmedHeight != block.Height {
			continue
		}
		if session.ConfirmedBlockHash != block.Hash {
			session.ReorgFlagged = true
			m.recordEvent(swapID, EventReorgDetected, "confirmed block hash diverged on re-poll", now)
		}
	}
}

// checkNovaSide refunds any expired HTLC when auto-refund is enabled.
func (m *CrossChainMonitor) checkNovaSide(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.AutoRefund {
		return
	}
	for swapID, session := range m.sessions {
		if !session.NovaHTLC.IsExpired(now) {
			continue
		}
		if err := Refund(&session.NovaHTLC, now); err == nil {
			session.State = models.SwapRefunded
			m.recordEvent(swapID, EventRefunded, "auto-refunded after timeout", now)
			delete(m.retries, swapID)
		}
	}
}

func (m *CrossChainMonitor) bumpRetryLocked(swapID [32]byte, now time.Time) {
	m.retries[swapID]++
	if m.retries[swapID] >= m.config.MaxRetries {
		m.recordEvent(swapID, EventRetryExhausted, "claim retries exhausted", now)
		delete(m.retries, swapID)
	}
}
