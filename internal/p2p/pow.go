package p2p

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// ErrChallengeExpired is returned when a solution arrives after the
// challenge's 5-minute window has elapsed.
var ErrChallengeExpired = fmt.Errorf("pow challenge expired")

// ErrChallengeNotFound is returned when solving a peer that was never
// issued a challenge, or whose challenge was already consumed.
var ErrChallengeNotFound = fmt.Errorf("no outstanding pow challenge for peer")

// ErrSolutionInvalid is returned when a solution does not meet the
// required leading-zero-bit difficulty.
var ErrSolutionInvalid = fmt.Errorf("pow solution does not meet required difficulty")

const challengeTTL = 5 * time.Minute

// Challenge is a proof-of-work admission challenge issued to one inbound
// peer. One challenge is outstanding per peer at a time.
type Challenge struct {
	Nonce      [32]byte
	Difficulty int // required leading zero bits
	IssuedAt   time.Time
}

// PowGate issues and verifies proof-of-work challenges for inbound
// connection admission when require_pow_challenge is enabled.
type PowGate struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

// NewPowGate constructs an empty challenge gate.
func NewPowGate() *PowGate {
	return &PowGate{challenges: make(map[string]Challenge)}
}

// Issue generates a fresh 32-byte nonce and records the challenge for a
// peer, replacing any challenge already outstanding for it.
func (g *PowGate) Issue(peerID string, difficulty int) (Challenge, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Challenge{}, fmt.Errorf("generating pow nonce: %w", err)
	}
	c := Challenge{Nonce: nonce, Difficulty: difficulty, IssuedAt: time.Now()}

	g.mu.Lock()
	g.challenges[peerID] = c
	g.mu.Unlock()
	return c, nil
}

// Verify checks a peer's proposed solution against its outstanding
// challenge, consuming the challenge whether it succeeds or fails.
func (g *PowGate) Verify(peerID string, solution []byte) error {
	g.mu.Lock()
	c, ok := g.challenges[peerID]
	if ok {
		delete(g.challenges, peerID)
	}
	g.mu.Unlock()

	if !ok {
		return ErrChallengeNotFound
	}
	if time.Since(c.IssuedAt) > challengeTTL {
		return ErrChallengeExpired
	}

	digest := sha256.Sum256(append(append([]byte{}, c.Nonce[:]...), solution...))
	if leadingZeroBits(digest[:]) < c.Difficulty {
		return ErrSolutionInvalid
	}
	return nil
}

// leadingZeroBits counts the number of leading zero bits across a byte
// slice, used to measure proof-of-work difficulty.
func leadingZeroBits(b []byte) int {
	count := 0
	for _, byt := range b {
		if byt == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if byt&(1<<uint(bit)) != 0 {
				return count
			}
			count++
		}
	}
	return count
}
