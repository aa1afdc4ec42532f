// Package wire implements the node's binary encodings for the proof and
// commitment types exchanged over the P2P and RPC interfaces.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrTruncated is returned when a buffer ends before a complete value has
// been decoded.
var ErrTruncated = fmt.Errorf("wire: truncated buffer")

// ErrProofTooLarge guards against a corrupt or hostile length prefix
// forcing an unbounded allocation.
var ErrProofTooLarge = fmt.Errorf("wire: proof length exceeds maximum")

// maxProofBytes bounds a single proof's encoded size; no real Bulletproof
// or zk-SNARK envelope the node produces approaches this.
const maxProofBytes = 16 * 1024 * 1024

// EncodeZeroKnowledgeProof serializes a proof envelope as
// [proof_type:1][proof_len:4 BE][proof][public_input_count:1]
// ([input_len:4 BE][input] ...).
func EncodeZeroKnowledgeProof(envelope models.ProofEnvelope) []byte {
	buf := make([]byte, 0, 1+4+len(envelope.ProofBytes)+1)
	buf = append(buf, byte(envelope.ProofType))

	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(envelope.ProofBytes)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, envelope.ProofBytes...)

	buf = append(buf, byte(len(envelope.PublicInputs)))
	for _, input := range envelope.PublicInputs {
		binary.BigEndian.PutUint32(lenBytes[:], uint32(len(input)))
		buf = append(buf, lenBytes[:]...)
		buf = append(buf, input...)
	}
	return buf
}

// DecodeZeroKnowledgeProof parses the encoding produced by
// EncodeZeroKnowledgeProof, returning the envelope and the number of bytes
// consumed.
func DecodeZeroKnowledgeProof(data []byte) (models.ProofEnvelope, int, error) {
	if len(data) < 5 {
		return models.ProofEnvelope{}, 0, ErrTruncated
	}
	proofType := models.ProofType(data[0])
	proofLen := binary.BigEndian.Uint32(data[1:5])
	if proofLen > maxProofBytes {
		return models.ProofEnvelope{}, 0, ErrProofTooLarge
	}
	offset := 5
	if len(data) < offset+int(proofLen) {
		return models.ProofEnvelope{}, 0, ErrTruncated
	}
	proofBytes := append([]byte(nil), data[offset:offset+int(proofLen)]...)
	offset += int(proofLen)

	if len(data) < offset+1 {
		return models.ProofEnvelope{}, 0, ErrTruncated
	}
	inputCount := int(data[offset])
	offset++

	inputs := make([][]byte, 0, inputCount)
	for i := 0; i < inputCount; i++ {
		if len(data) < offset+4 {
			return models.ProofEnvelope{}, 0, ErrTruncated
		}
		inputLen := binary.BigEndian.Uint32(data[offset : offset+4])
		if inputLen > maxProofBytes {
			return models.ProofEnvelope{}, 0, ErrProofTooLarge
		}
		offset += 4
		if len(data) < offset+int(inputLen) {
			return models.ProofEnvelope{}, 0, ErrTruncated
		}
		inputs = append(inputs, append([]byte(nil), data[offset:offset+int(inputLen)]...))
		offset += int(inputLen)
	}

	return models.ProofEnvelope{ProofType: proofType, ProofBytes: proofBytes, PublicInputs: inputs}, offset, nil
}

// EncodeBulletproofRangeProof serializes a bitLength-bounded range proof as
// [bit_length:1][proof_data]. The envelope's public inputs are dropped: a
// Bulletproof range proof carries its bit length as its only out-of-band
// input, which this format pins in the header byte instead.
func EncodeBulletproofRangeProof(bitLength uint8, proofData []byte) []byte {
	buf := make([]byte, 0, 1+len(proofData))
	buf = append(buf, bitLength)
	buf = append(buf, proofData...)
	return buf
}

// DecodeBulletproofRangeProof parses the encoding produced by
// EncodeBulletproofRangeProof.
func DecodeBulletproofRangeProof(data []byte) (bitLength uint8, proofData []byte, err error) {
	if len(data) < 1 {
		return 0, nil, ErrTruncated
	}
	bitLength = data[0]
	proofData = append([]byte(nil), data[1:]...)
	return bitLength, proofData, nil
}

// EncodeCommitment serializes a commitment as [kind:1][bytes:32].
func EncodeCommitment(c models.Commitment) []byte {
	buf := make([]byte, 0, 33)
	buf = append(buf, byte(c.Kind))
	buf = append(buf, c.Bytes[:]...)
	return buf
}

// DecodeCommitment parses the encoding produced by EncodeCommitment.
func DecodeCommitment(data []byte) (models.Commitment, int, error) {
	if len(data) < 33 {
		return models.Commitment{}, 0, ErrTruncated
	}
	var c models.Commitment
	c.Kind = models.CommitmentKind(data[0])
	copy(c.Bytes[:], data[1:33])
	return c, 33, nil
}
