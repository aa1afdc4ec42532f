package lightning

import (
	"container/heap"
	"fmt"
)

// RoutingWeights tunes the relative influence of fee, carbon, renewable
// share, and reliability in the edge cost function.
type RoutingWeights struct {
	Fee         float64
	Carbon      float64
	Renewable   float64
	Reliability float64
}

// DefaultRoutingWeights favors carbon and renewable share roughly as
// strongly as fees, consistent with the network's green-routing mandate.
func DefaultRoutingWeights() RoutingWeights {
	return RoutingWeights{Fee: 1.0, Carbon: 1.0, Renewable: 1.0, Reliability: 0.5}
}

// RoutingConstraints bounds the paths green routing is willing to return.
type RoutingConstraints struct {
	MaxRouteLength      int
	MaxCarbonPerRoute   float64
	MinRenewablePercent float64
}

// DefaultRoutingConstraints matches the network's default route bounds.
func DefaultRoutingConstraints() RoutingConstraints {
	return RoutingConstraints{MaxRouteLength: 10, MaxCarbonPerRoute: 1000, MinRenewablePercent: 0}
}

// greenDivisorBonus rewards certified-green and carbon-negative nodes by
// dividing their hop cost, so routes prefer them without being forced
// through them.
func greenDivisorBonus(n Node) float64 {
	bonus := 1.0
	if n.GreenCertified {
		bonus *= 1.25
	}
	if n.CarbonNegative {
		bonus *= 1.5
	}
	return bonus
}

func normalizeFee(fee uint64, maxFee uint64) float64 {
	if maxFee == 0 {
		return 0
	}
	return float64(fee) / float64(maxFee)
}

// Route is a sequence of channels from a sender to a final recipient.
type Route struct {
	Hops          []Channel
	TotalFeeMNova uint64
	TotalCarbon   float64
	AvgRenewable  float64
}

// ErrNoRoute is returned when no path satisfies the requested constraints.
var ErrNoRoute = fmt.Errorf("no route satisfies the requested constraints")

type routingCandidate struct {
	node         NodeID
	cost         float64
	hops         []Channel
	carbon       float64
	renewableSum float64
	index        int
}

type candidateHeap []*routingCandidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].cost < h[j].cost }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *candidateHeap) Push(x interface{}) {
	c := x.(*routingCandidate)
	c.index = len(*h)
	*h = append(*h, c)
}
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// FindRoute runs a modified Dijkstra search from source to dest over g,
// minimizing w_fee*norm(fee) + w_carbon*carbon_weight - w_renewable*renewable%
// + w_reliability*(1-success_rate) per hop, with green-certified and
// carbon-negative nodes receiving a divisor bonus on their hop cost. A
// route is only returned if it satisfies constraints on length, total
// carbon, and average renewable share.
func FindRoute(g *Graph, source, dest NodeID, amountMNova uint64, weights RoutingWeights, constraints RoutingConstraints) (Route, error) {
	const maxFeeNormalization = 10_000 // mNova, calibrates norm(fee) to roughly [0,1]

	dist := map[NodeID]*routingCandidate{
		source: {node: source, cost: 0},
	}
	pq := &candidateHeap{dist[source]}
	heap.Init(pq)
	visited := make(map[NodeID]bool)

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*routingCandidate)
		if visited[current.node] {
			continue
		}
		visited[current.node] = true

		if current.node == dest {
			route := buildRoute(current, amountMNova)
			if !SatisfiesConstraints(route, constraints) {
				continue
			}
			return route, nil
		}
		if len(current.hops) >= constraints.MaxRouteLength {
			continue
		}

		for _, ch := range g.Neighbors(current.node) {
			if ch.CapacityMNova < amountMNova {
				continue
			}
			toNode, ok := g.Node(ch.To)
			if !ok {
				continue
			}

			fee := ch.FeeMNova(amountMNova)
			carbonWeight := toNode.CarbonIntensity
			hopCost := weights.Fee*normalizeFee(fee, maxFeeNormalization) +
				weights.Carbon*carbonWeight -
				weights.Renewable*(toNode.RenewablePercent/100) +
				weights.Reliability*(1-ch.SuccessRate)

			hopCost /= greenDivisorBonus(toNode)

			newCarbon := current.carbon + carbonWeight
			if newCarbon > constraints.MaxCarbonPerRoute {
				continue
			}

			next := &routingCandidate{
				node:         ch.To,
				cost:         current.cost + hopCost,
				hops:         append(append([]Channel{}, current.hops...), ch),
				carbon:       newCarbon,
				renewableSum: current.renewableSum + toNode.RenewablePercent,
			}

			existing, seen := dist[ch.To]
			if !seen || next.cost < existing.cost {
				dist[ch.To] = next
				heap.Push(pq, next)
			}
		}
	}

	return Route{}, ErrNoRoute
}

func buildRoute(c *routingCandidate, amountMNova uint64) Route {
	var totalFee uint64
	for _, hop := range c.hops {
		totalFee += hop.FeeMNova(amountMNova)
	}
	avgRenewable := 0.0
	if len(c.hops) > 0 {
		avgRenewable = c.renewableSum / float64(len(c.hops))
	}
	return Route{
		Hops:          c.hops,
		TotalFeeMNova: totalFee,
		TotalCarbon:   c.carbon,
		AvgRenewable:  avgRenewable,
	}
}

// SatisfiesConstraints re-checks a computed route against constraints,
// used after the fact (e.g. when a route is cached or supplied externally).
func SatisfiesConstraints(route Route, constraints RoutingConstraints) bool {
	if len(route.Hops) > constraints.MaxRouteLength {
		return false
	}
	if route.TotalCarbon > constraints.MaxCarbonPerRoute {
		return false
	}
	if route.AvgRenewable < constraints.MinRenewablePercent {
		return false
	}
	return true
}
