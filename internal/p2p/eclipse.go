package p2p

// EclipseIndicators is the continuous set of positive/negative observations
// feeding the eclipse-attack declaration in §4.3. Each field is an
// independently-evaluated boolean signal.
type EclipseIndicators struct {
	ConnectionFlooding        bool
	PeerAdvertisementConverge bool // a peer advertised by >70% of our peers
	TransactionCensorship     bool
	ConflictingChainViews     bool
	DiversityCollapse         bool // subnet Shannon entropy < 0.3
	CoordinatedBehavior       bool
}

// count returns how many of the six indicators are currently positive.
func (i EclipseIndicators) count() int {
	n := 0
	for _, v := range []bool{
		i.ConnectionFlooding,
		i.PeerAdvertisementConverge,
		i.TransactionCensorship,
		i.ConflictingChainViews,
		i.DiversityCollapse,
		i.CoordinatedBehavior,
	} {
		if v {
			n++
		}
	}
	return n
}

// PeerAdvertisementConvergence reports whether more than 70% of our peers
// have advertised the same candidate peer, a classic eclipse-setup signal.
func PeerAdvertisementConvergence(advertisingPeers, totalPeers int) bool {
	if totalPeers == 0 {
		return false
	}
	return float64(advertisingPeers)/float64(totalPeers) > 0.70
}

// DiversityCollapsed reports whether subnet entropy has dropped below the
// 0.3 collapse threshold.
func DiversityCollapsed(entropy float64) bool {
	return entropy < 0.3
}

// EclipseDetector accumulates indicators and declares an attack once the
// fraction of positive indicators meets the configured threshold.
type EclipseDetector struct {
	Threshold float64 // fraction in [0,1], default 0.5
}

// NewEclipseDetector constructs a detector with the spec's default 50%
// threshold.
func NewEclipseDetector() *EclipseDetector {
	return &EclipseDetector{Threshold: 0.5}
}

// Evaluate reports whether the given indicator snapshot crosses the
// detector's declaration threshold.
func (d *EclipseDetector) Evaluate(ind EclipseIndicators) bool {
	const totalIndicators = 6
	fraction := float64(ind.count()) / float64(totalIndicators)
	return fraction >= d.Threshold
}
