package swap

import (
	"fmt"

	"github.com/supernova-labs/supernova/internal/crypto"
	"github.com/supernova-labs/supernova/pkg/models"
)

// ConfidentialSwapParams requests a swap whose Nova-side amount is hidden
// behind a Pedersen commitment instead of carried in the clear.
type ConfidentialSwapParams struct {
	Setup          models.SwapSetup
	BlindedAmount  uint64
	Blinding       crypto.BlindingFactor
	RangeBitLength int
}

// ConfidentialSwapInfo is the public record of a confidential swap: the
// commitment and its accompanying range proof, never the blinded amount.
type ConfidentialSwapInfo struct {
	SwapID     [32]byte
	Commitment models.Commitment
	RangeProof models.ProofEnvelope
}

// ErrRangeProofGeneration wraps a failure to build the opening range proof
// for a confidential swap.
var ErrRangeProofGeneration = fmt.Errorf("failed to generate range proof for confidential swap")

// NewConfidentialSwap commits to params.BlindedAmount and attaches a
// bulletproof-shaped range proof attesting the amount fits in
// RangeBitLength bits without revealing it.
func NewConfidentialSwap(params ConfidentialSwapParams) (ConfidentialSwapInfo, error) {
	commitment := crypto.CommitPedersen(params.BlindedAmount, params.Blinding)

	proof, err := crypto.CreateBulletproof(params.BlindedAmount, params.Blinding, uint8(params.RangeBitLength), commitment)
	if err != nil {
		return ConfidentialSwapInfo{}, fmt.Errorf("%w: %v", ErrRangeProofGeneration, err)
	}

	return ConfidentialSwapInfo{
		SwapID:     params.Setup.SwapID,
		Commitment: commitment,
		RangeProof: proof,
	}, nil
}

// VerifyConfidentialSwap checks a counterparty's confidential swap
// disclosure without learning the blinded amount.
func VerifyConfidentialSwap(info ConfidentialSwapInfo) bool {
	return crypto.VerifyProof(info.Commitment, info.RangeProof)
}

// ZKSwapParams requests a swap whose correctness (commitment opens to a
// value matching the public swap amount) is attested by a proof rather
// than by revealing the blinding factor to the counterparty.
type ZKSwapParams struct {
	Setup    models.SwapSetup
	Amount   uint64
	Blinding crypto.BlindingFactor
}

// ZKSwapInfo is the public disclosure for a zero-knowledge swap: a
// commitment to the amount plus a simple bit-decomposition range proof,
// published so the counterparty can verify without learning the blinding.
type ZKSwapInfo struct {
	SwapID     [32]byte
	Commitment models.Commitment
	Proof      models.ProofEnvelope
}

// NewZKSwap builds the public disclosure for a zero-knowledge swap.
func NewZKSwap(params ZKSwapParams, randSource func([]byte) error) (ZKSwapInfo, error) {
	commitment := crypto.CommitPedersen(params.Amount, params.Blinding)

	proof, err := crypto.CreateSimpleRangeProof(params.Amount, params.Blinding, 64, commitment, randSource)
	if err != nil {
		return ZKSwapInfo{}, fmt.Errorf("%w: %v", ErrRangeProofGeneration, err)
	}

	return ZKSwapInfo{SwapID: params.Setup.SwapID, Commitment: commitment, Proof: proof}, nil
}

// VerifyZKSwap checks a zero-knowledge swap disclosure.
func VerifyZKSwap(info ZKSwapInfo) bool {
	return crypto.VerifyProof(info.Commitment, info.Proof)
}

// PrivacyMetrics summarizes how much of a node's swap activity used a
// privacy-preserving variant, surfaced over RPC for operators.
type PrivacyMetrics struct {
	TotalSwaps        uint64
	ConfidentialSwaps uint64
	ZKSwaps           uint64
	PlaintextSwaps    uint64
}

// RecordSwapKind increments the metric bucket matching the kind of swap
// just completed.
func (p *PrivacyMetrics) RecordSwapKind(confidential, zk bool) {
	p.TotalSwaps++
	switch {
	case confidential:
		p.ConfidentialSwaps++
	case zk:
		p.ZKSwaps++
	default:
		p.PlaintextSwaps++
	}
}
