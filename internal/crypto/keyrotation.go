package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/supernova-labs/supernova/pkg/models"
)

// KeyLifecycleState is where a managed key sits in the rotation state
// machine: Active -> Rotating -> Active (new key), with the displaced key
// entering GracePeriod until its grace window ends, then Expired -- or,
// on emergency rotation, Revoked immediately.
type KeyLifecycleState int

const (
	KeyActive KeyLifecycleState = iota
	KeyRotating
	KeyGracePeriod
	KeyExpired
	KeyRevoked
)

func (s KeyLifecycleState) String() string {
	switch s {
	case KeyActive:
		return "Active"
	case KeyRotating:
		return "Rotating"
	case KeyGracePeriod:
		return "GracePeriod"
	case KeyExpired:
		return "Expired"
	case KeyRevoked:
		return "Revoked"
	default:
		return "Unknown"
	}
}

// RotationTrigger names what caused a rotation, carried through to the
// rotation log and RotationEvent audit trail. The trigger does not select
// between RotateKey and EmergencyRotate; the caller chooses which to call.
type RotationTrigger int

const (
	TriggerTime RotationTrigger = iota
	TriggerBlockHeight
	TriggerManual
	TriggerSecurityIncident
	TriggerQuantumThreatUpgrade
	TriggerKeyCompromise
)

func (t RotationTrigger) String() string {
	switch t {
	case TriggerTime:
		return "Time"
	case TriggerBlockHeight:
		return "BlockHeight"
	case TriggerManual:
		return "Manual"
	case TriggerSecurityIncident:
		return "SecurityIncident"
	case TriggerQuantumThreatUpgrade:
		return "QuantumThreatUpgrade"
	case TriggerKeyCompromise:
		return "KeyCompromise"
	default:
		return "Unknown"
	}
}

// RotationPolicy configures when keys rotate and how long displaced keys
// stay valid.
type RotationPolicy struct {
	IntervalBlocks        uint64
	GracePeriodBlocks     uint64
	AutoRotate            bool
	MaxRetainedKeys       int
	WarningThresholdBlock uint64
	RequireMigrationTx    bool
	EmergencyEnabled      bool
}

// DefaultRotationPolicy matches the reference node's ~1 week rotation
// interval at 10-minute blocks, with a 1-day grace period.
func DefaultRotationPolicy() RotationPolicy {
	return RotationPolicy{
		IntervalBlocks:        1008,
		GracePeriodBlocks:     144,
		AutoRotate:            true,
		MaxRetainedKeys:       5,
		WarningThresholdBlock: 72,
		RequireMigrationTx:    true,
		EmergencyEnabled:      true,
	}
}

// ManagedKeyMetadata tracks a key's position in the rotation lifecycle.
type ManagedKeyMetadata struct {
	KeyID                [32]byte
	State                KeyLifecycleState
	CreatedHeight         uint64
	CreatedTimestamp      int64
	LastRotationHeight    *uint64
	GracePeriodEndHeight  *uint64
	RotationCount         uint32
	OwnerID               string
}

// ManagedKey pairs live key material with its lifecycle metadata and any
// previous keys retained for grace-period verification.
type ManagedKey struct {
	KeyPair       *KeyPair
	Metadata      ManagedKeyMetadata
	PreviousKeys  []PreviousKey
}

// PreviousKey is a displaced key retained for grace-period verification.
type PreviousKey struct {
	KeyPair  *KeyPair
	Metadata ManagedKeyMetadata
}

// MigrationTransaction is the on-chain record of a key rotation.
type MigrationTransaction struct {
	OldPubkeyHash   [32]byte
	NewPubkey       []byte
	NewPubkeyHash   [32]byte
	OldKeySignature []byte
	Timestamp       int64
	TargetHeight    uint64
	GraceEndHeight  uint64
}

// MigrationMessage is the canonical byte string signed by the old key to
// prove ownership of the rotation: old_pubkey_hash || new_pubkey_hash ||
// target_height || timestamp.
func (m MigrationTransaction) MigrationMessage() []byte {
	out := make([]byte, 0, 32+32+8+8)
	out = append(out, m.OldPubkeyHash[:]...)
	out = append(out, m.NewPubkeyHash[:]...)
	out = binary.LittleEndian.AppendUint64(out, m.TargetHeight)
	out = binary.LittleEndian.AppendUint64(out, uint64(m.Timestamp))
	return out
}

// RotationEvent is an audit-log entry for a completed rotation.
type RotationEvent struct {
	KeyID            [32]byte
	Trigger          RotationTrigger
	RotationHeight   uint64
	Timestamp        int64
	PreviousKeyHash  [32]byte
	NewKeyHash       [32]byte
}

// ErrKeyNotFound is returned when a key ID has no managed key registered.
var ErrKeyNotFound = fmt.Errorf("key not found")

// ErrRotationInProgress is returned when rotating a key already Rotating.
var ErrRotationInProgress = fmt.Errorf("rotation already in progress")

// ErrEmergencyDisabled is returned when emergency rotation is attempted
// under a policy that disables it.
var ErrEmergencyDisabled = fmt.Errorf("emergency rotation disabled by policy")

// KeyRotationManager coordinates the rotation lifecycle for a set of
// managed keys, keyed by their current key ID (sha256 of the public key).
type KeyRotationManager struct {
	mu            sync.RWMutex
	policy        RotationPolicy
	keys          map[[32]byte]*ManagedKey
	currentHeight uint64
	events        []RotationEvent
	pending       []MigrationTransaction
	scheme        models.SignatureScheme
	level         models.SecurityLevel
	classical     models.ClassicalScheme
}

// NewKeyRotationManager constructs a manager that generates replacement
// keys using the given scheme/level/classical combination.
func NewKeyRotationManager(policy RotationPolicy, scheme models.SignatureScheme, level models.SecurityLevel, classical models.ClassicalScheme) *KeyRotationManager {
	return &KeyRotationManager{
		policy:    policy,
		keys:      make(map[[32]byte]*ManagedKey),
		scheme:    scheme,
		level:     level,
		classical: classical,
	}
}

func computeKeyID(publicKey []byte) [32]byte {
	return sha256.Sum256(publicKey)
}

// UpdateHeight advances the manager's view of the chain tip, used to
// evaluate whether registered keys are due for rotation.
func (m *KeyRotationManager) UpdateHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentHeight = height
}

// RegisterKey adds an existing key pair under rotation management.
func (m *KeyRotationManager) RegisterKey(ownerID string, kp *KeyPair, now time.Time) [32]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	keyID := computeKeyID(kp.PublicKey)
	m.keys[keyID] = &ManagedKey{
		KeyPair: kp,
		Metadata: ManagedKeyMetadata{
			KeyID:            keyID,
			State:            KeyActive,
			CreatedHeight:    m.currentHeight,
			CreatedTimestamp: now.Unix(),
			OwnerID:          ownerID,
		},
	}
	return keyID
}

// GenerateAndRegister creates a fresh key pair under the manager's
// configured scheme and registers it.
func (m *KeyRotationManager) GenerateAndRegister(ownerID string, now time.Time) ([32]byte, error) {
	kp, err := GenerateKeyPair(m.scheme, m.level, m.classical)
	if err != nil {
		return [32]byte{}, fmt.Errorf("generating key: %w", err)
	}
	return m.RegisterKey(ownerID, kp, now), nil
}

// NeedsRotation reports whether a key has aged past the rotation interval.
func (m *KeyRotationManager) NeedsRotation(keyID [32]byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.policy.AutoRotate {
		return false, nil
	}
	key, ok := m.keys[keyID]
	if !ok {
		return false, ErrKeyNotFound
	}
	if key.Metadata.State != KeyActive {
		return false, nil
	}
	last := key.Metadata.CreatedHeight
	if key.Metadata.LastRotationHeight != nil {
		last = *key.Metadata.LastRotationHeight
	}
	return m.currentHeight-last >= m.policy.IntervalBlocks, nil
}

// RotateKey generates a replacement key, moves the old key to
// GracePeriod, and returns the migration transaction proving the
// handoff.
func (m *KeyRotationManager) RotateKey(keyID [32]byte, trigger RotationTrigger, now time.Time) (MigrationTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[keyID]
	if !ok {
		return MigrationTransaction{}, ErrKeyNotFound
	}
	if key.Metadata.State == KeyRotating {
		return MigrationTransaction{}, ErrRotationInProgress
	}

	newKP, err := GenerateKeyPair(m.scheme, m.level, m.classical)
	if err != nil {
		return MigrationTransaction{}, fmt.Errorf("generating replacement key: %w", err)
	}
	newKeyID := computeKeyID(newKP.PublicKey)
	graceEnd := m.currentHeight + m.policy.GracePeriodBlocks

	migration := MigrationTransaction{
		OldPubkeyHash:  keyID,
		NewPubkey:      newKP.PublicKey,
		NewPubkeyHash:  newKeyID,
		Timestamp:      now.Unix(),
		TargetHeight:   m.currentHeight,
		GraceEndHeight: graceEnd,
	}
	sig, err := Sign(key.KeyPair, migration.MigrationMessage())
	if err != nil {
		return MigrationTransaction{}, fmt.Errorf("signing migration: %w", err)
	}
	migration.OldKeySignature = sig

	oldMetadata := key.Metadata
	oldMetadata.State = KeyGracePeriod
	oldMetadata.GracePeriodEndHeight = &graceEnd
	oldKeyPair := key.KeyPair

	previous := append([]PreviousKey{{KeyPair: oldKeyPair, Metadata: oldMetadata}}, key.PreviousKeys...)
	if len(previous) > m.policy.MaxRetainedKeys {
		previous = previous[:m.policy.MaxRetainedKeys]
	}

	rotationCount := key.Metadata.RotationCount + 1
	last := m.currentHeight
	newManaged := &ManagedKey{
		KeyPair: newKP,
		Metadata: ManagedKeyMetadata{
			KeyID:                newKeyID,
			State:                KeyRotating,
			CreatedHeight:        key.Metadata.CreatedHeight,
			CreatedTimestamp:     key.Metadata.CreatedTimestamp,
			LastRotationHeight:   &last,
			GracePeriodEndHeight: &graceEnd,
			RotationCount:        rotationCount,
			OwnerID:              key.Metadata.OwnerID,
		},
		PreviousKeys: previous,
	}

	delete(m.keys, keyID)
	m.keys[newKeyID] = newManaged

	m.events = append(m.events, RotationEvent{
		KeyID:           keyID,
		Trigger:         trigger,
		RotationHeight:  m.currentHeight,
		Timestamp:       now.Unix(),
		PreviousKeyHash: keyID,
		NewKeyHash:      newKeyID,
	})
	if m.policy.RequireMigrationTx {
		m.pending = append(m.pending, migration)
	}

	log.Printf("[crypto.rotation] rotated key %x -> %x (trigger=%s)", keyID[:8], newKeyID[:8], trigger)
	return migration, nil
}

// CompleteRotation moves a Rotating key to Active once its grace period
// has elapsed, expiring the previous keys it superseded.
func (m *KeyRotationManager) CompleteRotation(keyID [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	if key.Metadata.State != KeyRotating {
		return fmt.Errorf("key %x not in Rotating state", keyID[:8])
	}
	if key.Metadata.GracePeriodEndHeight != nil && m.currentHeight < *key.Metadata.GracePeriodEndHeight {
		return nil
	}

	key.Metadata.State = KeyActive
	key.Metadata.GracePeriodEndHeight = nil
	for i := range key.PreviousKeys {
		key.PreviousKeys[i].Metadata.State = KeyExpired
	}
	log.Printf("[crypto.rotation] rotation completed for key %x", keyID[:8])
	return nil
}

// EmergencyRotate rotates a key and immediately activates the replacement,
// skipping the grace period and revoking (not merely expiring) the old key.
func (m *KeyRotationManager) EmergencyRotate(keyID [32]byte, trigger RotationTrigger, now time.Time) (MigrationTransaction, error) {
	if !m.policy.EmergencyEnabled {
		return MigrationTransaction{}, ErrEmergencyDisabled
	}
	log.Printf("[crypto.rotation] emergency rotation for key %x due to %s", keyID[:8], trigger)

	migration, err := m.RotateKey(keyID, trigger, now)
	if err != nil {
		return MigrationTransaction{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.keys[migration.NewPubkeyHash]; ok {
		key.Metadata.State = KeyActive
		key.Metadata.GracePeriodEndHeight = nil
		for i := range key.PreviousKeys {
			key.PreviousKeys[i].Metadata.State = KeyRevoked
		}
	}
	return migration, nil
}

// VerifyWithRotation verifies a signature against a key ID, falling back
// to any GracePeriod previous key of the same owner whose grace window
// still covers the current height.
func (m *KeyRotationManager) VerifyWithRotation(keyID [32]byte, message, signature []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[keyID]
	if !ok {
		return false, ErrKeyNotFound
	}

	if key.Metadata.State == KeyActive || key.Metadata.State == KeyRotating {
		if ok, _ := Verify(key.KeyPair, message, signature); ok {
			return true, nil
		}
	}

	for _, prev := range key.PreviousKeys {
		if prev.Metadata.State != KeyGracePeriod {
			continue
		}
		if prev.Metadata.GracePeriodEndHeight == nil || m.currentHeight > *prev.Metadata.GracePeriodEndHeight {
			continue
		}
		if ok, _ := Verify(prev.KeyPair, message, signature); ok {
			return true, nil
		}
	}
	return false, nil
}

// GetKey returns a copy of a managed key's current metadata, or false if
// unregistered.
func (m *KeyRotationManager) GetKey(keyID [32]byte) (ManagedKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[keyID]
	if !ok {
		return ManagedKey{}, false
	}
	return *key, true
}

// KeysNeedingRotation lists every Active key past its rotation interval.
func (m *KeyRotationManager) KeysNeedingRotation() []([32]byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []([32]byte)
	for id, key := range m.keys {
		if key.Metadata.State != KeyActive {
			continue
		}
		last := key.Metadata.CreatedHeight
		if key.Metadata.LastRotationHeight != nil {
			last = *key.Metadata.LastRotationHeight
		}
		if m.currentHeight-last >= m.policy.IntervalBlocks {
			out = append(out, id)
		}
	}
	return out
}

// PendingMigrations returns migration transactions awaiting confirmation.
func (m *KeyRotationManager) PendingMigrations() []MigrationTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MigrationTransaction{}, m.pending...)
}

// ConfirmMigration removes a migration transaction from the pending set
// once it is known to be included on-chain. Confirming the same migration
// twice is a no-op, keeping rotation idempotent under replay.
func (m *KeyRotationManager) ConfirmMigration(txHash [32]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := m.pending[:0]
	for _, tx := range m.pending {
		if migrationHash(tx) != txHash {
			filtered = append(filtered, tx)
		}
	}
	m.pending = filtered
}

func migrationHash(tx MigrationTransaction) [32]byte {
	h := sha256.New()
	h.Write(tx.OldPubkeyHash[:])
	h.Write(tx.NewPubkeyHash[:])
	var heightBuf, tsBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], tx.TargetHeight)
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(tx.Timestamp))
	h.Write(heightBuf[:])
	h.Write(tsBuf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Events returns up to limit of the most recent rotation events.
func (m *KeyRotationManager) Events(limit int) []RotationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := len(m.events) - limit
	if start < 0 {
		start = 0
	}
	return append([]RotationEvent{}, m.events[start:]...)
}
