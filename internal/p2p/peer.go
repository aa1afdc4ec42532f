package p2p

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrPeerNotFound is returned when an operation references a peer ID that
// is not currently tracked in the table.
var ErrPeerNotFound = fmt.Errorf("peer not found")

// NewSessionID generates a fresh identifier for one connection attempt,
// used to correlate logs, rate-limit state, and PoW challenges across a
// single TCP session even if the remote end reconnects under the same
// PeerID (e.g. after a restart). It is distinct from PeerID: PeerID is the
// peer's long-lived network identity, SessionID is scoped to one socket.
func NewSessionID() string {
	return uuid.NewString()
}

// PeerTable is the node's live view of connected and recently-seen peers,
// keyed by PeerID. It is the shared source of truth that diversity checks,
// eclipse detection, and rotation all read from.
type PeerTable struct {
	mu    sync.RWMutex
	peers map[string]models.PeerRecord
}

// NewPeerTable constructs an empty peer table.
func NewPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[string]models.PeerRecord)}
}

// Register adds or replaces a peer record, stamping FirstSeen if this is
// the first time the peer ID has been seen.
func (t *PeerTable) Register(rec models.PeerRecord) models.PeerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.peers[rec.PeerID]; ok && !existing.FirstSeen.IsZero() {
		rec.FirstSeen = existing.FirstSeen
	} else if rec.FirstSeen.IsZero() {
		rec.FirstSeen = time.Now()
	}
	t.peers[rec.PeerID] = rec
	return rec
}

// Remove drops a peer from the table, e.g. on disconnect or ban.
func (t *PeerTable) Remove(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, peerID)
}

// Get returns the current record for a peer ID.
func (t *PeerTable) Get(peerID string) (models.PeerRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.peers[peerID]
	return rec, ok
}

// All returns a snapshot of every tracked peer, safe to pass to
// CheckDiversity, SubnetEntropy, or SelectForRotation.
func (t *PeerTable) All() []models.PeerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.PeerRecord, 0, len(t.peers))
	for _, rec := range t.peers {
		out = append(out, rec)
	}
	return out
}

// Count returns the number of currently tracked peers.
func (t *PeerTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// TouchUseful marks a peer as having just provided something useful
// (a valid block, a relayed transaction that wasn't already known, a
// timely response to a request), advancing LastUseful and nudging its
// behavior score toward zero.
func (t *PeerTable) TouchUseful(peerID string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.peers[peerID]
	if !ok {
		return ErrPeerNotFound
	}
	rec.LastUseful = now
	if rec.BehaviorScore > 0 {
		rec.BehaviorScore--
	}
	t.peers[peerID] = rec
	return nil
}

// Penalize deducts delta from a peer's behavior score (not below zero) and
// reports whether the score has now fallen below
// models.BehaviorScoreBanThreshold, so the peer should be disconnected and
// banned.
func (t *PeerTable) Penalize(peerID string, delta int) (shouldBan bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.peers[peerID]
	if !ok {
		return false, ErrPeerNotFound
	}
	rec.BehaviorScore -= delta
	if rec.BehaviorScore < 0 {
		rec.BehaviorScore = 0
	}
	t.peers[peerID] = rec
	return rec.BehaviorScore < models.BehaviorScoreBanThreshold, nil
}

// MarkPowCompleted records that a peer has solved its admission
// proof-of-work challenge, per PowGate.Verify succeeding.
func (t *PeerTable) MarkPowCompleted(peerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.peers[peerID]
	if !ok {
		return ErrPeerNotFound
	}
	rec.PowCompleted = true
	t.peers[peerID] = rec
	return nil
}

// Anchors returns the subset of tracked peers flagged as anchor
// connections, which rotation must never select (see SelectForRotation).
func (t *PeerTable) Anchors() []models.PeerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var anchors []models.PeerRecord
	for _, rec := range t.peers {
		if rec.IsAnchor {
			anchors = append(anchors, rec)
		}
	}
	return anchors
}

// ByDirection returns the subset of tracked peers matching the given
// connection direction, used to enforce separate inbound/outbound slot
// limits at the connection manager layer.
func (t *PeerTable) ByDirection(dir models.Direction) []models.PeerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []models.PeerRecord
	for _, rec := range t.peers {
		if rec.Direction == dir {
			out = append(out, rec)
		}
	}
	return out
}
