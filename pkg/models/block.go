// Package models holds the data types shared across Supernova's chain,
// mempool, P2P, storage, and swap subsystems.
package models

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockHeader is the fixed-size, content-addressed header of a Block.
type BlockHeader struct {
	Version        int32
	PrevBlockHash  chainhash.Hash
	MerkleRoot     chainhash.Hash
	TimestampSecs  int64
	DifficultyBits uint32
	Nonce          uint64
	Height         uint64
}

// Hash returns the double-SHA-256 content hash of the header, used as the
// block's identity and as the PrevBlockHash of its child.
func (h BlockHeader) Hash() chainhash.Hash {
	buf := make([]byte, 0, 4+32+32+8+4+8+8)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Version))
	buf = append(buf, h.PrevBlockHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.TimestampSecs))
	buf = binary.LittleEndian.AppendUint32(buf, h.DifficultyBits)
	buf = binary.LittleEndian.AppendUint64(buf, h.Nonce)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return chainhash.Hash(second)
}

// Block is a header plus its transactions.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// MerkleRoot computes the merkle root over the block's transaction hashes,
// duplicating the last element on odd counts until a single root remains.
func MerkleRoot(txs []Transaction) chainhash.Hash {
	if len(txs) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		level[i] = tx.Hash()
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

func hashPair(a, b chainhash.Hash) chainhash.Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return chainhash.Hash(second)
}

// Target converts a compact difficulty-bits encoding (Bitcoin-style nBits)
// into the 256-bit target a header hash must not exceed.
func Target(bits uint32) [32]byte {
	exponent := bits >> 24
	mantissa := bits & 0x007fffff
	var target [32]byte
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		binary.BigEndian.PutUint32(target[28:32], mantissa)
		return target
	}
	shift := int(exponent) - 3
	if shift > 29 {
		// Degenerate bits field; treat as maximum target (always passes) rather
		// than panicking on the slice index below.
		for i := range target {
			target[i] = 0xff
		}
		return target
	}
	offset := 32 - 3 - shift
	target[offset] = byte(mantissa >> 16)
	target[offset+1] = byte(mantissa >> 8)
	target[offset+2] = byte(mantissa)
	return target
}

// HashMeetsTarget reports whether a header hash (big-endian numeric value)
// is at or below the target implied by its difficulty bits.
func HashMeetsTarget(hash chainhash.Hash, bits uint32) bool {
	target := Target(bits)
	// chainhash.Hash is stored internally little-endian (Bitcoin convention);
	// compare as big-endian integers by walking from the most-significant byte.
	// Target is already big-endian, so hash is read from index 31 down while
	// target is read from index 0 up.
	for i := 0; i < 32; i++ {
		hb, tb := hash[31-i], target[i]
		if hb < tb {
			return true
		}
		if hb > tb {
			return false
		}
	}
	return true // exactly equal
}
