// Package swap implements hash-time-locked cross-chain swaps between
// Supernova and Bitcoin: the HTLC state machine, a poll-based monitor that
// watches both chains for secret reveal or timeout, and the RPC surface
// that drives them.
package swap

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrHashMismatch is returned when a claim's preimage does not hash to
// the HTLC's committed hash lock.
var ErrHashMismatch = fmt.Errorf("preimage does not match hash lock")

// ErrNotExpired is returned when a refund is attempted before the
// absolute timeout.
var ErrNotExpired = fmt.Errorf("htlc has not expired")

// ErrExpired is returned when a claim is attempted after the absolute
// timeout has already passed.
var ErrExpired = fmt.Errorf("htlc has already expired")

// ErrNotRefundable is returned when a refund is attempted from a state
// that cannot transition to Refunded.
var ErrNotRefundable = fmt.Errorf("htlc is not in a refundable state")

// ErrAlreadyFinal is returned when an operation targets an HTLC already
// in an irreversible terminal state.
var ErrAlreadyFinal = fmt.Errorf("htlc already in a final state")

// NewHashLock derives a hash lock from a freshly generated preimage.
func NewHashLock(preimage [32]byte) models.HashLock {
	hash := sha256.Sum256(preimage[:])
	p := preimage
	return models.HashLock{HashValue: hash, Preimage: &p}
}

// VerifyPreimage reports whether preimage opens the hash lock.
func VerifyPreimage(lock models.HashLock, preimage [32]byte) bool {
	hash := sha256.Sum256(preimage[:])
	return hash == lock.HashValue
}

// Fund transitions a freshly created HTLC from Initializing to
// NovaFunded once the lock amount has been committed.
func Fund(htlc *models.SupernovaHTLC) error {
	if htlc.State != models.SwapInitializing {
		return fmt.Errorf("cannot fund htlc in state %s", htlc.State)
	}
	htlc.State = models.SwapNovaFunded
	return nil
}

// Claim reveals preimage and transitions an Active HTLC to Claimed,
// provided the hash matches and the timeout has not passed.
func Claim(htlc *models.SupernovaHTLC, preimage [32]byte, now time.Time) error {
	if htlc.State != models.SwapActive {
		return fmt.Errorf("cannot claim htlc in state %s", htlc.State)
	}
	if !VerifyPreimage(htlc.HashLock, preimage) {
		return ErrHashMismatch
	}
	if now.Unix() >= htlc.TimeLock.AbsoluteTimeout {
		return ErrExpired
	}
	p := preimage
	htlc.HashLock.Preimage = &p
	htlc.State = models.SwapClaimed
	return nil
}

// refundableStates are the only states a swap may transition out of via
// refund; Refunded and Completed are irreversible terminal states.
var refundableStates = map[models.SwapState]bool{
	models.SwapNovaFunded: true,
	models.SwapBothFunded: true,
	models.SwapActive:     true,
	models.SwapFailed:     true,
}

// Refund transitions an expired, refundable HTLC to Refunded.
func Refund(htlc *models.SupernovaHTLC, now time.Time) error {
	if htlc.State == models.SwapRefunded || htlc.State == models.SwapCompleted {
		return ErrAlreadyFinal
	}
	if now.Unix() < htlc.TimeLock.AbsoluteTimeout {
		return ErrNotExpired
	}
	if !refundableStates[htlc.State] {
		return ErrNotRefundable
	}
	htlc.State = models.SwapRefunded
	return nil
}
