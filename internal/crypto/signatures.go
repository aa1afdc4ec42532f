package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	circlsign "github.com/cloudflare/circl/sign"
	"github.com/supernova-labs/supernova/pkg/models"
)

const (
	secp256k1PublicKeySize  = 33 // compressed
	secp256k1PrivateKeySize = 32
	secp256k1SignatureSize  = 64 // compact signature encoding
)

// ErrSignatureMismatch is returned when a signature's byte length doesn't
// match what its declared scheme/level pins.
var ErrSignatureMismatch = fmt.Errorf("signature size does not match scheme pin")

// ErrHybridVerificationFailed is returned when either half of a hybrid
// signature fails to verify; both halves must succeed for acceptance.
var ErrHybridVerificationFailed = fmt.Errorf("hybrid signature verification failed")

// KeyPair is an opaque, scheme-tagged key pair. PublicKey/PrivateKey are
// raw bytes in each scheme's native marshaled form; for the Secp256k1
// hybrid, the PQ half's bytes are followed by the classical half's bytes.
type KeyPair struct {
	Scheme        models.SignatureScheme
	SecurityLevel models.SecurityLevel
	Classical     models.ClassicalScheme
	PublicKey     []byte
	PrivateKey    []byte
}

// GenerateKeyPair produces a fresh key pair for the given scheme.
func GenerateKeyPair(scheme models.SignatureScheme, level models.SecurityLevel, classical models.ClassicalScheme) (*KeyPair, error) {
	if scheme == models.SchemeHybrid && classical == models.ClassicalSecp256k1 {
		return generateHybridSecp256k1(level)
	}

	s, ok, err := resolveScheme(scheme, level, classical)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnsupportedScheme
	}
	pub, priv, err := s.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating %s key: %w", scheme, err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}
	return &KeyPair{Scheme: scheme, SecurityLevel: level, Classical: classical, PublicKey: pubBytes, PrivateKey: privBytes}, nil
}

func generateHybridSecp256k1(level models.SecurityLevel) (*KeyPair, error) {
	pqScheme, _, err := resolveScheme(models.SchemeDilithium, level, models.ClassicalSecp256k1)
	if err != nil {
		return nil, err
	}
	pqPub, pqPriv, err := pqScheme.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating dilithium half: %w", err)
	}
	pqPubBytes, err := pqPub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	pqPrivBytes, err := pqPriv.MarshalBinary()
	if err != nil {
		return nil, err
	}

	classicalPriv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating secp256k1 half: %w", err)
	}
	classicalPub := classicalPriv.PubKey().SerializeCompressed()
	classicalPrivBytes := classicalPriv.Serialize()

	return &KeyPair{
		Scheme:        models.SchemeHybrid,
		SecurityLevel: level,
		Classical:     models.ClassicalSecp256k1,
		PublicKey:     append(append([]byte{}, pqPubBytes...), classicalPub...),
		PrivateKey:    append(append([]byte{}, pqPrivBytes...), classicalPrivBytes...),
	}, nil
}

// Sign produces a signature over message using kp. For the Secp256k1
// hybrid, the PQ signature is written behind a 4-byte big-endian length
// prefix and the classical signature follows it, so Verify can split them
// back apart.
func Sign(kp *KeyPair, message []byte) ([]byte, error) {
	if kp.Scheme == models.SchemeHybrid && kp.Classical == models.ClassicalSecp256k1 {
		return signHybridSecp256k1(kp, message)
	}

	s, ok, err := resolveScheme(kp.Scheme, kp.SecurityLevel, kp.Classical)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnsupportedScheme
	}
	priv, err := s.UnmarshalBinaryPrivateKey(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling private key: %w", err)
	}
	return s.Sign(priv, message, nil), nil
}

func signHybridSecp256k1(kp *KeyPair, message []byte) ([]byte, error) {
	pqScheme, _, err := resolveScheme(models.SchemeDilithium, kp.SecurityLevel, kp.Classical)
	if err != nil {
		return nil, err
	}
	pqPrivLen := pqScheme.PrivateKeySize()
	if len(kp.PrivateKey) < pqPrivLen+secp256k1PrivateKeySize {
		return nil, ErrSignatureMismatch
	}
	pqPriv, err := pqScheme.UnmarshalBinaryPrivateKey(kp.PrivateKey[:pqPrivLen])
	if err != nil {
		return nil, fmt.Errorf("unmarshaling dilithium half: %w", err)
	}
	pqSig := pqScheme.Sign(pqPriv, message, nil)

	classicalPriv, _ := btcec.PrivKeyFromBytes(kp.PrivateKey[pqPrivLen : pqPrivLen+secp256k1PrivateKeySize])
	digest := sha256.Sum256(message)
	classicalSig := ecdsa.Sign(classicalPriv, digest[:])

	return concatLengthPrefixed(pqSig, classicalSig.Serialize()), nil
}

// Verify checks a signature over message against kp's public key. Hybrid
// signatures require both halves to verify.
func Verify(kp *KeyPair, message, signature []byte) (bool, error) {
	if kp.Scheme == models.SchemeHybrid && kp.Classical == models.ClassicalSecp256k1 {
		return verifyHybridSecp256k1(kp, message, signature)
	}

	s, ok, err := resolveScheme(kp.Scheme, kp.SecurityLevel, kp.Classical)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrUnsupportedScheme
	}
	pub, err := s.UnmarshalBinaryPublicKey(kp.PublicKey)
	if err != nil {
		return false, fmt.Errorf("unmarshaling public key: %w", err)
	}
	return s.Verify(pub, message, signature, nil), nil
}

func verifyHybridSecp256k1(kp *KeyPair, message, signature []byte) (bool, error) {
	pqScheme, _, err := resolveScheme(models.SchemeDilithium, kp.SecurityLevel, kp.Classical)
	if err != nil {
		return false, err
	}
	pqPubLen := pqScheme.PublicKeySize()
	if len(kp.PublicKey) < pqPubLen+secp256k1PublicKeySize {
		return false, ErrSignatureMismatch
	}
	pqPub, err := pqScheme.UnmarshalBinaryPublicKey(kp.PublicKey[:pqPubLen])
	if err != nil {
		return false, fmt.Errorf("unmarshaling dilithium public half: %w", err)
	}
	classicalPub, err := btcec.ParsePubKey(kp.PublicKey[pqPubLen : pqPubLen+secp256k1PublicKeySize])
	if err != nil {
		return false, fmt.Errorf("parsing secp256k1 public half: %w", err)
	}

	pqSig, classicalSigBytes, err := splitLengthPrefixed(signature)
	if err != nil {
		return false, err
	}
	classicalSig, err := ecdsa.ParseDERSignature(classicalSigBytes)
	if err != nil {
		// also accept compact-serialized signatures produced by Sign above
		parsed, perr := ecdsa.ParseSignature(classicalSigBytes)
		if perr != nil {
			return false, fmt.Errorf("parsing secp256k1 signature: %w", err)
		}
		classicalSig = parsed
	}

	digest := sha256.Sum256(message)
	pqOK := pqScheme.Verify(pqPub, message, pqSig, nil)
	classicalOK := classicalSig.Verify(digest[:], classicalPub)
	if !pqOK || !classicalOK {
		return false, ErrHybridVerificationFailed
	}
	return true, nil
}

// concatLengthPrefixed packs two byte slices with a 4-byte big-endian
// length prefix on the first, so the boundary can be recovered exactly.
func concatLengthPrefixed(a, b []byte) []byte {
	out := make([]byte, 4+len(a)+len(b))
	out[0] = byte(len(a) >> 24)
	out[1] = byte(len(a) >> 16)
	out[2] = byte(len(a) >> 8)
	out[3] = byte(len(a))
	copy(out[4:], a)
	copy(out[4+len(a):], b)
	return out
}

func splitLengthPrefixed(data []byte) (a, b []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("hybrid signature too short")
	}
	aLen := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	if len(data) < 4+aLen {
		return nil, nil, fmt.Errorf("hybrid signature length prefix out of range")
	}
	return data[4 : 4+aLen], data[4+aLen:], nil
}

var _ circlsign.Scheme // referenced only for doc clarity of the resolveScheme return type
