// Package lightning implements the payment channel fabric's green routing
// path search and multipath payment splitter.
package lightning

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// NodeID identifies a Lightning node by its public key hash.
type NodeID [20]byte

// Node is a routing graph vertex annotated with the environmental data
// that green routing optimizes against.
type Node struct {
	ID               NodeID
	RenewablePercent float64 // 0..100
	CarbonIntensity  float64 // grams CO2 per kWh, lower is greener
	GreenCertified   bool
	CarbonNegative   bool
}

// Channel is a routing graph edge: a payment channel between two nodes
// with a fee schedule, capacity, and observed reliability.
type Channel struct {
	ChannelID     chainhash.Hash
	From, To      NodeID
	CapacityMNova uint64
	BaseFeeMNova  uint64
	FeeRatePPM    uint64
	SuccessRate   float64 // 0..1, from recent payment history
}

// FeeMNova returns the fee for routing amountMNova across the channel.
func (c Channel) FeeMNova(amountMNova uint64) uint64 {
	return c.BaseFeeMNova + (amountMNova*c.FeeRatePPM)/1_000_000
}

// Graph is an adjacency-list channel graph over Lightning nodes.
type Graph struct {
	nodes    map[NodeID]Node
	channels map[NodeID][]Channel
}

// NewGraph constructs an empty routing graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeID]Node), channels: make(map[NodeID][]Channel)}
}

// AddNode registers or updates a node's environmental metadata.
func (g *Graph) AddNode(n Node) {
	g.nodes[n.ID] = n
}

// AddChannel adds a directed edge from the channel's From node. Lightning
// channels are bidirectional in practice, so callers typically add both
// directions with their own fee schedules.
func (g *Graph) AddChannel(c Channel) {
	g.channels[c.From] = append(g.channels[c.From], c)
}

// Node looks up a node's metadata.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Neighbors returns the outgoing channels from id.
func (g *Graph) Neighbors(id NodeID) []Channel {
	return g.channels[id]
}
