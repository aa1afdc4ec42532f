// Package crypto implements Supernova's uniform post-quantum/hybrid
// signing surface, Pedersen commitments with range proofs, and key
// rotation with grace periods.
package crypto

import (
	"fmt"

	circlsign "github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/schemes"
	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrUnsupportedScheme is returned for a (scheme, security_level) pair
// with no registered backing algorithm.
var ErrUnsupportedScheme = fmt.Errorf("unsupported signature scheme/security level combination")

// circlSchemeName maps a (SignatureScheme, SecurityLevel) pair to the
// name circl's scheme registry expects. Hybrid(Ed25519) resolves directly
// to circl's combined EdDilithium schemes; Hybrid(Secp256k1) has no circl
// counterpart and is composed manually in signatures.go from a bare
// Dilithium scheme plus btcec/v2's ECDSA.
func circlSchemeName(scheme models.SignatureScheme, level models.SecurityLevel, classical models.ClassicalScheme) (string, error) {
	switch scheme {
	case models.SchemeDilithium:
		switch level {
		case models.SecurityLevel1:
			return "Dilithium2", nil
		case models.SecurityLevel3:
			return "Dilithium3", nil
		case models.SecurityLevel5:
			return "Dilithium5", nil
		}
	case models.SchemeFalcon:
		return "Falcon-512", nil
	case models.SchemeSphincs:
		switch level {
		case models.SecurityLevel1:
			return "SPHINCS+-SHA2-128f-simple", nil
		case models.SecurityLevel3:
			return "SPHINCS+-SHA2-192f-simple", nil
		case models.SecurityLevel5:
			return "SPHINCS+-SHA2-256f-simple", nil
		}
	case models.SchemeHybrid:
		if classical == models.ClassicalEd25519 {
			switch level {
			case models.SecurityLevel1:
				return "Ed25519-Dilithium2", nil
			case models.SecurityLevel3, models.SecurityLevel5:
				return "Ed448-Dilithium3", nil
			}
		}
		// Hybrid(Secp256k1) is assembled manually; see hybridSecp256k1Scheme.
		if classical == models.ClassicalSecp256k1 {
			return "", nil
		}
	}
	return "", ErrUnsupportedScheme
}

// resolveScheme returns the circl sign.Scheme backing a given signature
// scheme/level, or ok=false for the manually-composed Secp256k1 hybrid.
func resolveScheme(scheme models.SignatureScheme, level models.SecurityLevel, classical models.ClassicalScheme) (circlsign.Scheme, bool, error) {
	name, err := circlSchemeName(scheme, level, classical)
	if err != nil {
		return nil, false, err
	}
	if name == "" {
		return nil, false, nil
	}
	s := schemes.ByName(name)
	if s == nil {
		return nil, false, fmt.Errorf("%w: circl has no registered scheme %q", ErrUnsupportedScheme, name)
	}
	return s, true, nil
}

// KeySizes reports the exact public-key, secret-key, and signature sizes
// pinned by a (scheme, security_level) pair, used to reject any mismatch
// before attempting to parse key or signature material.
type KeySizes struct {
	PublicKeyBytes  int
	PrivateKeyBytes int
	SignatureBytes  int
}

// Sizes returns the pinned sizes for scheme/level/classical, or an error
// if the combination is not supported.
func Sizes(scheme models.SignatureScheme, level models.SecurityLevel, classical models.ClassicalScheme) (KeySizes, error) {
	if scheme == models.SchemeHybrid && classical == models.ClassicalSecp256k1 {
		pqScheme, _, err := resolveScheme(models.SchemeDilithium, level, classical)
		if err != nil {
			return KeySizes{}, err
		}
		return KeySizes{
			PublicKeyBytes:  pqScheme.PublicKeySize() + secp256k1PublicKeySize,
			PrivateKeyBytes: pqScheme.PrivateKeySize() + secp256k1PrivateKeySize,
			SignatureBytes:  pqScheme.SignatureSize() + secp256k1SignatureSize,
		}, nil
	}

	s, _, err := resolveScheme(scheme, level, classical)
	if err != nil {
		return KeySizes{}, err
	}
	return KeySizes{
		PublicKeyBytes:  s.PublicKeySize(),
		PrivateKeyBytes: s.PrivateKeySize(),
		SignatureBytes:  s.SignatureSize(),
	}, nil
}
