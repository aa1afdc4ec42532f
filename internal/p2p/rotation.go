package p2p

import (
	"sort"
	"time"

	"github.com/supernova-labs/supernova/pkg/models"
)

// RotationConfig tunes periodic and attack-triggered peer rotation.
type RotationConfig struct {
	Interval   time.Duration // default 1h
	Percentage float64       // fraction of non-anchor peers rotated, default 0.1
}

// DefaultRotationConfig matches the spec §4.3 defaults.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{Interval: 1 * time.Hour, Percentage: 0.1}
}

// SelectForRotation picks which peers to disconnect: anchors are never
// rotated; candidates are chosen by lowest behavior score first, and
// peers on over-represented subnets are preferred over equally-scored
// peers on well-distributed ones.
func SelectForRotation(peers []models.PeerRecord, pct float64) []models.PeerRecord {
	subnetCounts := make(map[string]int)
	var candidates []models.PeerRecord
	for _, p := range peers {
		subnetCounts[p.Subnet]++
		if !p.IsAnchor {
			candidates = append(candidates, p)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].BehaviorScore != candidates[j].BehaviorScore {
			return candidates[i].BehaviorScore < candidates[j].BehaviorScore
		}
		return subnetCounts[candidates[i].Subnet] > subnetCounts[candidates[j].Subnet]
	})

	n := int(float64(len(candidates)) * pct)
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n]
}

// Rotator decides when a rotation pass is due: on its configured interval,
// or immediately when an eclipse attack has been declared.
type Rotator struct {
	config   RotationConfig
	lastSpin time.Time
}

// NewRotator constructs a rotator that fires on first call.
func NewRotator(cfg RotationConfig) *Rotator {
	return &Rotator{config: cfg}
}

// Due reports whether a rotation pass should run now.
func (r *Rotator) Due(now time.Time, attackDeclared bool) bool {
	if attackDeclared {
		return true
	}
	if r.lastSpin.IsZero() {
		return true
	}
	return now.Sub(r.lastSpin) >= r.config.Interval
}

// MarkRotated records that a rotation pass just ran.
func (r *Rotator) MarkRotated(now time.Time) {
	r.lastSpin = now
}
