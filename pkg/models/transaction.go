package models

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OutPoint identifies a previous transaction output.
type OutPoint struct {
	PrevTxHash chainhash.Hash
	Index      uint32
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.PrevTxHash, o.Index)
}

// TxInput references a spent output plus the witness authorizing the spend.
type TxInput struct {
	Prev     OutPoint
	Witness  []byte
	Sequence uint32
}

// TxOutput carries either a cleartext amount or, for confidential
// transactions, a Pedersen commitment with a range proof.
type TxOutput struct {
	Amount     uint64 // cleartext value in the smallest unit; 0 when Commitment != nil
	Script     []byte
	Commitment *Commitment    `json:"commitment,omitempty"`
	RangeProof *ProofEnvelope `json:"rangeProof,omitempty"`
}

// IsConfidential reports whether the output hides its value behind a
// commitment rather than carrying it in cleartext.
func (o TxOutput) IsConfidential() bool {
	return o.Commitment != nil
}

// Transaction is the base, content-addressed transaction shape shared by
// plain, quantum-signed, and confidential variants.
type Transaction struct {
	Version  int32
	Inputs   []TxInput
	Outputs  []TxOutput
	LockTime uint32

	// Quantum carries the extended quantum-signed envelope when non-nil.
	// A transaction is either plain, quantum-signed, or both signed *and*
	// confidential; the tag is carried by which pointers are set rather
	// than a separate enum, following the closed-tagged-variant guidance
	// without an "isinstance" style discriminator.
	Quantum *QuantumEnvelope `json:"quantum,omitempty"`
}

// QuantumEnvelope is the extended-transaction variant that attaches a
// post-quantum signature to an otherwise ordinary transaction.
type QuantumEnvelope struct {
	Scheme         SignatureScheme
	SecurityLevel  SecurityLevel
	SignatureBytes []byte
}

// Hash returns the transaction's content-addressed identity. Identity is
// computed over the fields that persist across re-signing: version,
// inputs (outpoint + sequence, never witness), outputs, and lock time.
// This keeps a transaction's hash stable if only its witness/signature
// changes, matching the "identity persists across signatures" invariant.
func (t Transaction) Hash() chainhash.Hash {
	buf := make([]byte, 0, 128)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.Version))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.Prev.PrevTxHash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Prev.Index)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Amount)
		buf = append(buf, out.Script...)
		if out.Commitment != nil {
			buf = append(buf, out.Commitment.Bytes[:]...)
		}
	}
	buf = binary.LittleEndian.AppendUint32(buf, t.LockTime)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return chainhash.Hash(second)
}

// SerializedSize estimates the on-wire byte size of the transaction for
// mempool fee-rate and package-size accounting.
func (t Transaction) SerializedSize() int {
	size := 4 + 4 + 4 + 4 // version, input count, output count, locktime
	for _, in := range t.Inputs {
		size += 32 + 4 + 4 + len(in.Witness)
	}
	for _, out := range t.Outputs {
		size += 8 + len(out.Script)
		if out.Commitment != nil {
			size += 32
		}
		if out.RangeProof != nil {
			size += len(out.RangeProof.ProofBytes)
		}
	}
	if t.Quantum != nil {
		size += len(t.Quantum.SignatureBytes) + 2
	}
	return size
}
