package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/supernova-labs/supernova/pkg/models"
)

// pedersenGenerators holds the two independent secp256k1 base points used
// for commitments: G is the curve's standard generator, H is derived from
// it by hash-to-curve so no party knows the discrete log relating them.
type pedersenGenerators struct {
	curve *btcec.KoblitzCurve
	gx, gy *big.Int
	hx, hy *big.Int
}

var generators = buildGenerators()

func buildGenerators() pedersenGenerators {
	curve := btcec.S256()
	gx, gy := curve.Params().Gx, curve.Params().Gy

	hx, hy := hashToPoint(curve, append(compressPoint(curve, gx, gy), []byte("h_generator")...))
	return pedersenGenerators{curve: curve, gx: gx, gy: gy, hx: hx, hy: hy}
}

// hashToPoint derives a point on curve from seed via try-and-increment:
// hash the seed with an incrementing counter until the digest is a valid
// x-coordinate, i.e. x^3 + 7 is a quadratic residue mod p.
func hashToPoint(curve *btcec.KoblitzCurve, seed []byte) (*big.Int, *big.Int) {
	p := curve.Params().P
	for counter := uint32(0); ; counter++ {
		h := sha256.New()
		h.Write(seed)
		h.Write([]byte{byte(counter >> 24), byte(counter >> 16), byte(counter >> 8), byte(counter)})
		digest := h.Sum(nil)

		x := new(big.Int).SetBytes(digest)
		x.Mod(x, p)

		ySq := new(big.Int).Exp(x, big.NewInt(3), p)
		ySq.Add(ySq, big.NewInt(7))
		ySq.Mod(ySq, p)

		y := new(big.Int).ModSqrt(ySq, p)
		if y == nil {
			continue
		}
		return x, y
	}
}

// compressPoint encodes a point the same way a compressed secp256k1 public
// key would, used only as hash-to-curve seed material.
func compressPoint(curve *btcec.KoblitzCurve, x, y *big.Int) []byte {
	out := make([]byte, 33)
	if y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xBytes := x.Bytes()
	copy(out[33-len(xBytes):], xBytes)
	return out
}

// BlindingFactor is a scalar in [1, n) hiding a committed value.
type BlindingFactor [32]byte

// GenerateBlindingFactor draws a uniformly random nonzero scalar.
func GenerateBlindingFactor() (BlindingFactor, error) {
	var out BlindingFactor
	n := generators.curve.Params().N
	for {
		if _, err := rand.Read(out[:]); err != nil {
			return BlindingFactor{}, fmt.Errorf("reading randomness: %w", err)
		}
		v := new(big.Int).SetBytes(out[:])
		if v.Sign() != 0 && v.Cmp(n) < 0 {
			return out, nil
		}
	}
}

// CommitPedersen computes commit(v, r) = v*H + r*G over secp256k1, storing
// the resulting point's x-coordinate as the commitment value. The y
// coordinate is intentionally dropped: Supernova commitments are opened by
// revealing (value, blinding), not by point recovery, so only the
// discrete-log-hiding x-coordinate needs to round-trip.
func CommitPedersen(value uint64, blinding BlindingFactor) models.Commitment {
	curve := generators.curve

	vH_x, vH_y := curve.ScalarMult(generators.hx, generators.hy, new(big.Int).SetUint64(value).Bytes())
	rG_x, rG_y := curve.ScalarMult(generators.gx, generators.gy, blinding[:])
	cx, _ := curve.Add(vH_x, vH_y, rG_x, rG_y)

	var out models.Commitment
	out.Kind = models.CommitmentPedersen
	xBytes := cx.Bytes()
	copy(out.Bytes[32-len(xBytes):], xBytes)
	return out
}

// VerifyOpening reports whether (value, blinding) opens commitment, i.e.
// recomputing commit(value, blinding) yields the same x-coordinate.
func VerifyOpening(commitment models.Commitment, value uint64, blinding BlindingFactor) bool {
	if commitment.Kind != models.CommitmentPedersen {
		return false
	}
	recomputed := CommitPedersen(value, blinding)
	return recomputed.Bytes == commitment.Bytes
}

// CommitSum returns the commitment to the sum of values under the sum of
// blindings (mod n), the point that adding the individual commitments
// would yield; callers use this to check that transaction inputs and
// outputs balance. Because commitments here are truncated to x-only form,
// it recomputes from the supplied (value, blinding) pairs rather than
// adding the commitment points themselves.
func CommitSum(values []uint64, blindings []BlindingFactor) (models.Commitment, error) {
	if len(values) != len(blindings) {
		return models.Commitment{}, fmt.Errorf("values and blindings length mismatch")
	}
	var total uint64
	n := generators.curve.Params().N
	accR := new(big.Int)
	for i, v := range values {
		total += v
		accR.Add(accR, new(big.Int).SetBytes(blindings[i][:]))
	}
	accR.Mod(accR, n)

	var sumR BlindingFactor
	rBytes := accR.Bytes()
	copy(sumR[32-len(rBytes):], rBytes)

	return CommitPedersen(total, sumR), nil
}
