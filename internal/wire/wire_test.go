package wire

import (
	"bytes"
	"testing"

	"github.com/supernova-labs/supernova/pkg/models"
)

func TestZeroKnowledgeProof_RoundTrip(t *testing.T) {
	envelope := models.ProofEnvelope{
		ProofType:    models.ProofTypeBulletproof,
		ProofBytes:   []byte{0x01, 0x02, 0x03, 0x04},
		PublicInputs: [][]byte{{0xAA, 0xBB}, {0xCC}},
	}
	encoded := EncodeZeroKnowledgeProof(envelope)

	decoded, n, err := DecodeZeroKnowledgeProof(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("expected to consume the entire buffer, consumed %d of %d", n, len(encoded))
	}
	if decoded.ProofType != envelope.ProofType {
		t.Fatalf("proof type mismatch: got %v want %v", decoded.ProofType, envelope.ProofType)
	}
	if !bytes.Equal(decoded.ProofBytes, envelope.ProofBytes) {
		t.Fatalf("proof bytes mismatch")
	}
	if len(decoded.PublicInputs) != len(envelope.PublicInputs) {
		t.Fatalf("expected %d public inputs, got %d", len(envelope.PublicInputs), len(decoded.PublicInputs))
	}
	for i := range envelope.PublicInputs {
		if !bytes.Equal(decoded.PublicInputs[i], envelope.PublicInputs[i]) {
			t.Fatalf("public input %d mismatch", i)
		}
	}
}

func TestZeroKnowledgeProof_EmptyInputs(t *testing.T) {
	envelope := models.ProofEnvelope{ProofType: models.ProofTypeSchnorr, ProofBytes: []byte{0x01}}
	encoded := EncodeZeroKnowledgeProof(envelope)

	decoded, _, err := DecodeZeroKnowledgeProof(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded.PublicInputs) != 0 {
		t.Fatalf("expected no public inputs, got %d", len(decoded.PublicInputs))
	}
}

func TestDecodeZeroKnowledgeProof_RejectsTruncatedBuffer(t *testing.T) {
	envelope := models.ProofEnvelope{ProofType: models.ProofTypeRangeProof, ProofBytes: []byte{1, 2, 3, 4, 5}}
	encoded := EncodeZeroKnowledgeProof(envelope)

	for i := 0; i < 5; i++ {
		if _, _, err := DecodeZeroKnowledgeProof(encoded[:i]); err != ErrTruncated {
			t.Fatalf("expected ErrTruncated at length %d, got %v", i, err)
		}
	}
}

func TestBulletproofRangeProof_RoundTrip(t *testing.T) {
	proofData := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	encoded := EncodeBulletproofRangeProof(64, proofData)

	bitLength, decoded, err := DecodeBulletproofRangeProof(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bitLength != 64 {
		t.Fatalf("expected bit length 64, got %d", bitLength)
	}
	if !bytes.Equal(decoded, proofData) {
		t.Fatalf("proof data mismatch")
	}
}

func TestDecodeBulletproofRangeProof_RejectsEmptyBuffer(t *testing.T) {
	if _, _, err := DecodeBulletproofRangeProof(nil); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestCommitment_RoundTrip(t *testing.T) {
	c := models.Commitment{Kind: models.CommitmentPedersen}
	c.Bytes[0] = 0x42
	c.Bytes[31] = 0x99

	encoded := EncodeCommitment(c)
	decoded, n, err := DecodeCommitment(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 33 {
		t.Fatalf("expected to consume 33 bytes, consumed %d", n)
	}
	if decoded != c {
		t.Fatalf("commitment mismatch: got %+v want %+v", decoded, c)
	}
}

func TestDecodeCommitment_RejectsShortBuffer(t *testing.T) {
	if _, _, err := DecodeCommitment(make([]byte, 32)); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
