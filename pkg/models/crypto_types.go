package models

// SignatureScheme is the closed set of signature algorithms a Supernova key
// or signature can use. Hybrid schemes additionally pin a classical
// algorithm via ClassicalScheme.
type SignatureScheme int

const (
	SchemeDilithium SignatureScheme = iota
	SchemeFalcon
	SchemeSphincs
	SchemeHybrid
)

func (s SignatureScheme) String() string {
	switch s {
	case SchemeDilithium:
		return "Dilithium"
	case SchemeFalcon:
		return "Falcon"
	case SchemeSphincs:
		return "Sphincs"
	case SchemeHybrid:
		return "Hybrid"
	default:
		return "Unknown"
	}
}

// ClassicalScheme is the classical half of a Hybrid signature.
type ClassicalScheme int

const (
	ClassicalSecp256k1 ClassicalScheme = iota
	ClassicalEd25519
)

func (c ClassicalScheme) String() string {
	if c == ClassicalEd25519 {
		return "Ed25519"
	}
	return "Secp256k1"
}

// SecurityLevel is a NIST post-quantum security category. The spec
// deliberately does not prescribe concrete parameter sets beyond this.
type SecurityLevel int

const (
	SecurityLevel1 SecurityLevel = 1
	SecurityLevel3 SecurityLevel = 3
	SecurityLevel5 SecurityLevel = 5
)

// CommitmentKind distinguishes the group construction used by a Commitment.
type CommitmentKind int

const (
	CommitmentPedersen CommitmentKind = iota
	CommitmentElGamal
)

// Commitment is a 32-byte group element binding a hidden value.
type Commitment struct {
	Kind  CommitmentKind
	Bytes [32]byte
}

// ProofType is the closed set of range/validity proof encodings an envelope
// may carry.
type ProofType int

const (
	ProofTypeRangeProof ProofType = iota
	ProofTypeSchnorr
	ProofTypeBulletproof
	ProofTypeZkSnark
)

// ProofEnvelope is the self-describing container for a range or validity
// proof: a type tag, the opaque proof bytes, and the public inputs the
// verifier checks the proof against.
type ProofEnvelope struct {
	ProofType    ProofType
	ProofBytes   []byte
	PublicInputs [][]byte
}
