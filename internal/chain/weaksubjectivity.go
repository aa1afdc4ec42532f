package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/supernova-labs/supernova/pkg/models"
)

// WSCAge classifies how stale a weak-subjectivity checkpoint has become.
type WSCAge int

const (
	WSCProtected WSCAge = iota
	WSCNeedsRefresh
	WSCExpired
)

func (a WSCAge) String() string {
	switch a {
	case WSCProtected:
		return "Protected"
	case WSCNeedsRefresh:
		return "NeedsRefresh"
	case WSCExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// WeakSubjectivityConfig tunes the §4.1 weak-subjectivity rules.
type WeakSubjectivityConfig struct {
	MinTrustLevel     int
	MaxAge            time.Duration // default 30 days ("Expired" boundary)
	AutoCheckpoint    bool
	Period            time.Duration
	MinConfirmations  uint64 // default 100
}

// DefaultWeakSubjectivityConfig matches spec §4.1 defaults.
func DefaultWeakSubjectivityConfig() WeakSubjectivityConfig {
	return WeakSubjectivityConfig{
		MinTrustLevel:    60,
		MaxAge:           30 * 24 * time.Hour,
		AutoCheckpoint:   true,
		Period:           14 * 24 * time.Hour,
		MinConfirmations: 100,
	}
}

var (
	// ErrUnprotected marks a node that booted without a qualifying WSC.
	ErrUnprotected         = errors.New("node started without a weak-subjectivity checkpoint; running Unprotected")
	ErrWSCTrustTooLow      = errors.New("weak-subjectivity checkpoint trust level below minimum")
	ErrWSCNotMonotone      = errors.New("weak-subjectivity checkpoint height must not regress")
	ErrWSCDivergence       = errors.New("peer chain diverges from weak-subjectivity checkpoint")
	ErrReorgBeforeWSC      = errors.New("reorg fork point precedes the weak-subjectivity checkpoint height")
)

// WeakSubjectivityManager tracks the node's current WSC and enforces
// monotonic upgrades, divergence checks, and reorg-depth limits.
type WeakSubjectivityManager struct {
	config  WeakSubjectivityConfig
	current *models.Checkpoint
	setAt   time.Time
}

// NewWeakSubjectivityManager constructs a manager with no checkpoint
// loaded; the node starts in the Unprotected state until Set succeeds.
func NewWeakSubjectivityManager(cfg WeakSubjectivityConfig) *WeakSubjectivityManager {
	return &WeakSubjectivityManager{config: cfg}
}

// Protected reports whether a qualifying WSC has been loaded.
func (m *WeakSubjectivityManager) Protected() bool {
	return m.current != nil
}

// Set installs a new operator- or DNS-sourced weak-subjectivity checkpoint.
// It is rejected if its trust level is below the configured minimum, or if
// it would regress the currently-installed checkpoint's height (WSCs are
// monotonically upgrading: new.height >= existing.height always). Automatic
// self-promotion goes through promote, which does not enforce the trust
// floor since TrustAutomatic is always below it by construction.
func (m *WeakSubjectivityManager) Set(cp models.Checkpoint) error {
	if cp.Source.TrustLevel() < m.config.MinTrustLevel {
		return fmt.Errorf("%w: %d < %d", ErrWSCTrustTooLow, cp.Source.TrustLevel(), m.config.MinTrustLevel)
	}
	return m.promote(cp)
}

func (m *WeakSubjectivityManager) promote(cp models.Checkpoint) error {
	if m.current != nil && cp.Height < m.current.Height {
		return fmt.Errorf("%w: %d < %d", ErrWSCNotMonotone, cp.Height, m.current.Height)
	}
	m.current = &cp
	m.setAt = time.Now()
	return nil
}

// Current returns the installed checkpoint, or nil if none (Unprotected).
func (m *WeakSubjectivityManager) Current() *models.Checkpoint {
	return m.current
}

// Age classifies the currently installed checkpoint's staleness.
func (m *WeakSubjectivityManager) Age(now time.Time) WSCAge {
	if m.current == nil {
		return WSCExpired
	}
	elapsed := now.Sub(m.current.CreatedAt)
	switch {
	case elapsed > m.config.MaxAge:
		return WSCExpired
	case elapsed > (m.config.MaxAge*2)/3:
		return WSCNeedsRefresh
	default:
		return WSCProtected
	}
}

// CheckPeerDivergence rejects a peer whose claimed hash at our WSC height
// differs from ours.
func (m *WeakSubjectivityManager) CheckPeerDivergence(peerHashAtWSCHeight chainhash.Hash) error {
	if m.current == nil {
		return nil // Unprotected: nothing to check against
	}
	if peerHashAtWSCHeight != m.current.BlockHash {
		return ErrWSCDivergence
	}
	return nil
}

// CanReorgTo reports whether a reorg whose fork point is at forkHeight is
// permitted: the fork point must not precede the WSC height.
func (m *WeakSubjectivityManager) CanReorgTo(forkHeight uint64) error {
	if m.current == nil {
		return nil
	}
	if forkHeight < m.current.Height {
		return ErrReorgBeforeWSC
	}
	return nil
}

// MaybeAutoPromote adopts a new Automatic-trust checkpoint at
// tip-MinConfirmations when auto_checkpoint is enabled and the tip has
// advanced more than Period/2 past the last WSC height.
func (m *WeakSubjectivityManager) MaybeAutoPromote(tipHeight uint64, hashAt func(height uint64) (chainhash.Hash, bool), periodBlocks uint64) error {
	if !m.config.AutoCheckpoint {
		return nil
	}
	if m.current != nil && tipHeight-m.current.Height <= periodBlocks/2 {
		return nil
	}
	if tipHeight < m.config.MinConfirmations {
		return nil
	}
	candidateHeight := tipHeight - m.config.MinConfirmations
	hash, ok := hashAt(candidateHeight)
	if !ok {
		return nil
	}
	return m.promote(models.Checkpoint{
		Height:    candidateHeight,
		BlockHash: hash,
		Source:    models.TrustAutomatic,
		CreatedAt: time.Now(),
	})
}
