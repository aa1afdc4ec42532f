package models

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TrustSource ranks how a checkpoint was obtained, from most to least
// authoritative.
type TrustSource int

const (
	TrustHardcoded    TrustSource = iota // 100
	TrustHumanOperator                   // 80
	TrustDNS                             // 60
	TrustAutomatic                        // 40
)

// TrustLevel returns the numeric trust level in [0,100] for a source.
func (s TrustSource) TrustLevel() int {
	switch s {
	case TrustHardcoded:
		return 100
	case TrustHumanOperator:
		return 80
	case TrustDNS:
		return 60
	case TrustAutomatic:
		return 40
	default:
		return 0
	}
}

// Checkpoint pins a height to a block hash with a trust provenance.
type Checkpoint struct {
	Height    uint64
	BlockHash chainhash.Hash
	Source    TrustSource
	CreatedAt time.Time
	Name      string // optional human label
}

// CheckpointType classifies why a storage snapshot was taken.
type CheckpointType int

const (
	CheckpointRegular CheckpointType = iota
	CheckpointPreOperation
	CheckpointManual
	CheckpointDebug
	CheckpointPreUpgrade
	CheckpointShutdown
)

func (t CheckpointType) String() string {
	switch t {
	case CheckpointRegular:
		return "Regular"
	case CheckpointPreOperation:
		return "PreOperation"
	case CheckpointManual:
		return "Manual"
	case CheckpointDebug:
		return "Debug"
	case CheckpointPreUpgrade:
		return "PreUpgrade"
	case CheckpointShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// CheckpointInfo is the JSON payload persisted as checkpoint_info.json.
type CheckpointInfo struct {
	Height    uint64            `json:"height"`
	BlockHash string            `json:"block_hash"`
	Timestamp int64             `json:"timestamp"`
	Type      CheckpointType    `json:"type"`
	UTXOHash  string            `json:"utxo_hash"`
	DataHash  string            `json:"data_hash"`
	SizeBytes int64             `json:"size_bytes"`
	Verified  bool              `json:"verified"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
