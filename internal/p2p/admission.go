package p2p

import (
	"fmt"
	"sync"
	"time"

	"github.com/supernova-labs/supernova/pkg/models"
)

// ErrBanned is returned when an entity identified by peer ID, IP, subnet,
// or ASN is currently under an active ban.
type ErrBanned struct {
	Key     string
	Expires time.Time
}

func (e *ErrBanned) Error() string {
	return fmt.Sprintf("%s is banned until %s", e.Key, e.Expires.Format(time.RFC3339))
}

// BanList tracks bans keyed by an arbitrary identity dimension (peer ID,
// IP, subnet, or ASN string) with expiry.
type BanList struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

// NewBanList constructs an empty ban list.
func NewBanList() *BanList {
	return &BanList{expires: make(map[string]time.Time)}
}

// Ban bans a key until now+duration.
func (b *BanList) Ban(key string, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expires[key] = time.Now().Add(duration)
}

// Check returns an error if key is currently banned, clearing the entry
// first if the ban has lapsed.
func (b *BanList) Check(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.expires[key]
	if !ok {
		return nil
	}
	if time.Now().After(until) {
		delete(b.expires, key)
		return nil
	}
	return &ErrBanned{Key: key, Expires: until}
}

// floodWindow is 60 seconds per §4.3; more than 10 connection events from
// the same subnet within the window triggers a 1-hour IP ban.
const (
	floodWindow        = 60 * time.Second
	floodEventLimit    = 10
	floodBanDuration   = 1 * time.Hour
)

// FloodDetector counts recent connection events per subnet and signals
// when a subnet should be banned for flooding.
type FloodDetector struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewFloodDetector constructs an empty flood detector.
func NewFloodDetector() *FloodDetector {
	return &FloodDetector{events: make(map[string][]time.Time)}
}

// RecordAndCheck records a connection event for a subnet and reports
// whether it has now exceeded the flood threshold within the window.
func (f *FloodDetector) RecordAndCheck(subnet string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-floodWindow)
	events := f.events[subnet]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	f.events[subnet] = kept

	return len(kept) > floodEventLimit
}

// Admitter wires together bans, flood detection, and the diversity check
// into the single admission decision made for each incoming connection.
type Admitter struct {
	bans      *BanList
	flood     *FloodDetector
	diversity DiversityConfig

	onRejected func(candidate models.PeerRecord, reason string)
}

// NewAdmitter constructs an admitter with the given diversity
// configuration; bans and flood detection are always enabled.
func NewAdmitter(diversity DiversityConfig) *Admitter {
	return &Admitter{
		bans:      NewBanList(),
		flood:     NewFloodDetector(),
		diversity: diversity,
	}
}

// SetRejectionListener registers a callback invoked whenever Admit refuses
// a candidate peer, e.g. to publish eclipse-prevention alerts to
// subscribers; nil disables it.
func (a *Admitter) SetRejectionListener(fn func(candidate models.PeerRecord, reason string)) {
	a.onRejected = fn
}

// Admit runs the full ordered admission pipeline against a candidate peer
// and the existing peer set: ban check, flood detector, diversity check.
func (a *Admitter) Admit(existing []models.PeerRecord, candidate models.PeerRecord) error {
	if err := a.admit(existing, candidate); err != nil {
		if a.onRejected != nil {
			a.onRejected(candidate, err.Error())
		}
		return err
	}
	return nil
}

func (a *Admitter) admit(existing []models.PeerRecord, candidate models.PeerRecord) error {
	for _, key := range []string{candidate.PeerID, candidate.IP, candidate.Subnet, fmt.Sprintf("asn:%d", candidate.ASN)} {
		if key == "" {
			continue
		}
		if err := a.bans.Check(key); err != nil {
			return err
		}
	}

	if a.flood.RecordAndCheck(candidate.Subnet) {
		a.bans.Ban(candidate.IP, floodBanDuration)
		return &ErrBanned{Key: candidate.IP, Expires: time.Now().Add(floodBanDuration)}
	}

	return CheckDiversity(a.diversity, existing, candidate)
}
