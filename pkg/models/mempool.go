package models

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MempoolEntrySnapshot is the externally-visible shape of a mempool entry,
// used for stats reporting and tests. The mutable working copy
// (internal/mempool.entry) stores ancestors/descendants as bare hash sets
// rather than owning references, per the cyclic-ownership redesign.
type MempoolEntrySnapshot struct {
	TxHash            chainhash.Hash
	Timestamp         time.Time
	FeeRate           uint64 // fee per byte, smallest unit
	Size              int
	Fee               uint64
	AncestorCount     int
	DescendantCount   int
	IsOrphan          bool
	EnvScore          uint8
	IsLightningUpdate bool
}

// MempoolLimits bounds ancestor/descendant package sizes, shared by the
// mempool manager and its tests.
type MempoolLimits struct {
	MaxAncestorCount     int
	MaxAncestorSizeBytes int
	MaxDescendantCount   int
	MaxDescendantSize    int
}

// DefaultMempoolLimits mirrors Bitcoin Core's historical 25-tx / 101kB
// package caps, named explicitly by spec §3/§8.
var DefaultMempoolLimits = MempoolLimits{
	MaxAncestorCount:     25,
	MaxAncestorSizeBytes: 101 * 1000,
	MaxDescendantCount:   25,
	MaxDescendantSize:    101 * 1000,
}
