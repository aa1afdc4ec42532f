// Package p2p implements the peer-connection defense core: diversity
// admission, eclipse-attack detection, peer rotation, PoW-gated inbound
// admission, and the windowed rate limiter guarding API and protocol
// endpoints.
package p2p

import (
	"fmt"
	"math"

	"github.com/supernova-labs/supernova/pkg/models"
)

// DiversityConfig tunes the admission-time diversity checks of §4.3.
type DiversityConfig struct {
	MinConnectionsForDiversity int
	MaxSubnetPercentage        float64
	MaxASNPercentage           float64
	MaxInboundPercentage       float64
}

// DefaultDiversityConfig matches the spec defaults.
func DefaultDiversityConfig() DiversityConfig {
	return DiversityConfig{
		MinConnectionsForDiversity: 8,
		MaxSubnetPercentage:        15.0,
		MaxASNPercentage:           25.0,
		MaxInboundPercentage:       67.0,
	}
}

// ErrDiversityExceeded is returned when admitting a candidate would push a
// subnet, ASN, or inbound-direction share over its configured ceiling.
type ErrDiversityExceeded struct {
	Dimension string
	Percent   float64
	Limit     float64
}

func (e *ErrDiversityExceeded) Error() string {
	return fmt.Sprintf("%s diversity exceeded: %.1f%% > limit %.1f%%", e.Dimension, e.Percent, e.Limit)
}

// CheckDiversity evaluates whether admitting candidate alongside the
// existing peer set would violate subnet, ASN, or inbound-fraction caps.
// Below MinConnectionsForDiversity peers the check is skipped entirely —
// diversity ratios are meaningless over a tiny sample.
func CheckDiversity(cfg DiversityConfig, existing []models.PeerRecord, candidate models.PeerRecord) error {
	if len(existing) < cfg.MinConnectionsForDiversity {
		return nil
	}

	total := float64(len(existing) + 1)

	subnetCount := 1
	asnCount := 1
	inboundCount := 0
	if candidate.Direction == models.DirectionInbound {
		inboundCount++
	}
	for _, p := range existing {
		if p.Subnet == candidate.Subnet {
			subnetCount++
		}
		if p.ASN == candidate.ASN {
			asnCount++
		}
		if p.Direction == models.DirectionInbound {
			inboundCount++
		}
	}

	if pct := 100 * float64(subnetCount) / total; pct > cfg.MaxSubnetPercentage {
		return &ErrDiversityExceeded{Dimension: "subnet", Percent: pct, Limit: cfg.MaxSubnetPercentage}
	}
	if pct := 100 * float64(asnCount) / total; pct > cfg.MaxASNPercentage {
		return &ErrDiversityExceeded{Dimension: "asn", Percent: pct, Limit: cfg.MaxASNPercentage}
	}
	if pct := 100 * float64(inboundCount) / total; pct > cfg.MaxInboundPercentage {
		return &ErrDiversityExceeded{Dimension: "inbound", Percent: pct, Limit: cfg.MaxInboundPercentage}
	}
	return nil
}

// SubnetEntropy computes the Shannon entropy (in bits, normalized to
// [0,1] by the log of the distinct-subnet count) of the subnet
// distribution across peers, used by the eclipse detector's diversity
// collapse indicator.
func SubnetEntropy(peers []models.PeerRecord) float64 {
	if len(peers) == 0 {
		return 1.0
	}
	counts := make(map[string]int)
	for _, p := range peers {
		counts[p.Subnet]++
	}
	if len(counts) <= 1 {
		return 0.0
	}
	total := float64(len(peers))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	maxEntropy := math.Log2(float64(len(counts)))
	if maxEntropy == 0 {
		return 0.0
	}
	return entropy / maxEntropy
}
