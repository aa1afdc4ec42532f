package models

import "time"

// SwapState is the atomic-swap HTLC state machine.
type SwapState int

const (
	SwapInitializing SwapState = iota
	SwapNovaFunded
	SwapBothFunded
	SwapActive
	SwapClaimed
	SwapRefunded
	SwapCompleted
	SwapFailed
)

func (s SwapState) String() string {
	switch s {
	case SwapInitializing:
		return "Initializing"
	case SwapNovaFunded:
		return "NovaFunded"
	case SwapBothFunded:
		return "BothFunded"
	case SwapActive:
		return "Active"
	case SwapClaimed:
		return "Claimed"
	case SwapRefunded:
		return "Refunded"
	case SwapCompleted:
		return "Completed"
	case SwapFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// HashLock binds an HTLC to the preimage of a SHA-256 digest.
type HashLock struct {
	HashValue [32]byte
	Preimage  *[32]byte // known only to the party that generated it
}

// TimeLock bounds how long an HTLC stays claimable before it can be
// refunded.
type TimeLock struct {
	AbsoluteTimeout int64 // unix seconds
	RelativeTimeout uint64
	GracePeriod     uint64
}

// ParticipantInfo identifies one side of a swap.
type ParticipantInfo struct {
	PublicKey     []byte
	Address       string
	RefundAddress string
}

// FeeStructure is the fee schedule attached to an HTLC.
type FeeStructure struct {
	ClaimFee   uint64
	RefundFee  uint64
	ServiceFee *uint64
}

// SupernovaHTLC is the Supernova-side leg of a cross-chain swap.
type SupernovaHTLC struct {
	HTLCID      [32]byte
	Initiator   ParticipantInfo
	Participant ParticipantInfo
	HashLock    HashLock
	TimeLock    TimeLock
	Amount      uint64
	Fees        FeeStructure
	State       SwapState
}

// IsExpired reports whether the HTLC's absolute timeout has passed.
func (h SupernovaHTLC) IsExpired(now time.Time) bool {
	return now.Unix() >= h.TimeLock.AbsoluteTimeout
}

// BitcoinHTLCReference is a pointer to the Bitcoin-side leg of a swap,
// tracked by the monitor rather than owned by this node.
type BitcoinHTLCReference struct {
	Txid          string
	Vout          uint32
	ScriptPubkey  []byte
	Amount        uint64
	TimeoutHeight uint64
	Address       string
}

// SwapSetup is the immutable configuration agreed at swap initiation.
type SwapSetup struct {
	SwapID         [32]byte
	BitcoinAmount  uint64
	NovaAmount     uint64
	TimeoutMinutes uint32
}

// SwapSession is the full mutable state of one in-flight swap.
type SwapSession struct {
	Setup     SwapSetup
	Secret    *[32]byte
	NovaHTLC  SupernovaHTLC
	BTCHTLC   BitcoinHTLCReference
	State     SwapState
	CreatedAt int64
	UpdatedAt int64

	ConfirmedHeight    uint64
	ConfirmedBlockHash [32]byte
	ReorgFlagged       bool
}

// SwapAmounts reports both legs of a swap for event logging.
type SwapAmounts struct {
	BitcoinSats uint64
	NovaUnits   uint64
}
