package lightning

import (
	"testing"
	"time"
)

func mkNode(id byte, renewable, carbon float64, green, negative bool) Node {
	var nodeID NodeID
	nodeID[0] = id
	return Node{ID: nodeID, RenewablePercent: renewable, CarbonIntensity: carbon, GreenCertified: green, CarbonNegative: negative}
}

func mkChannel(from, to byte, capacity, baseFee, feeRate uint64, successRate float64) Channel {
	var f, t NodeID
	f[0], t[0] = from, to
	return Channel{From: f, To: t, CapacityMNova: capacity, BaseFeeMNova: baseFee, FeeRatePPM: feeRate, SuccessRate: successRate}
}

func TestFindRoute_PrefersGreenPathOverCheaperDirtyPath(t *testing.T) {
	g := NewGraph()
	g.AddNode(mkNode(1, 0, 0, false, false))   // source
	g.AddNode(mkNode(2, 10, 900, false, false)) // dirty, low renewable
	g.AddNode(mkNode(3, 95, 20, true, true))    // green, carbon-negative

	g.AddChannel(mkChannel(1, 2, 1_000_000, 10, 1000, 0.99))
	g.AddChannel(mkChannel(2, 4, 1_000_000, 10, 1000, 0.99))
	g.AddChannel(mkChannel(1, 3, 1_000_000, 50, 1000, 0.99))
	g.AddChannel(mkChannel(3, 4, 1_000_000, 50, 1000, 0.99))
	g.AddNode(mkNode(4, 0, 0, false, false))

	var src, dest NodeID
	src[0], dest[0] = 1, 4

	route, err := FindRoute(g, src, dest, 10_000, DefaultRoutingWeights(), DefaultRoutingConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route.Hops) != 2 {
		t.Fatalf("expected a two-hop route, got %d hops", len(route.Hops))
	}
	if route.Hops[0].To[0] != 3 {
		t.Fatalf("expected the green path through node 3, routed through %v instead", route.Hops[0].To)
	}
}

func TestFindRoute_NoRouteWhenCapacityInsufficient(t *testing.T) {
	g := NewGraph()
	g.AddNode(mkNode(1, 0, 0, false, false))
	g.AddNode(mkNode(2, 0, 0, false, false))
	g.AddChannel(mkChannel(1, 2, 100, 1, 100, 0.9))

	var src, dest NodeID
	src[0], dest[0] = 1, 2

	_, err := FindRoute(g, src, dest, 10_000, DefaultRoutingWeights(), DefaultRoutingConstraints())
	if err != ErrNoRoute {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestFindRoute_RespectsMaxRouteLength(t *testing.T) {
	g := NewGraph()
	for i := byte(1); i <= 5; i++ {
		g.AddNode(mkNode(i, 50, 100, false, false))
	}
	g.AddChannel(mkChannel(1, 2, 1_000_000, 1, 10, 0.99))
	g.AddChannel(mkChannel(2, 3, 1_000_000, 1, 10, 0.99))
	g.AddChannel(mkChannel(3, 4, 1_000_000, 1, 10, 0.99))
	g.AddChannel(mkChannel(4, 5, 1_000_000, 1, 10, 0.99))

	var src, dest NodeID
	src[0], dest[0] = 1, 5

	constraints := RoutingConstraints{MaxRouteLength: 2, MaxCarbonPerRoute: 100000, MinRenewablePercent: 0}
	_, err := FindRoute(g, src, dest, 1000, DefaultRoutingWeights(), constraints)
	if err != ErrNoRoute {
		t.Fatalf("expected ErrNoRoute for a path exceeding max route length, got %v", err)
	}
}

func TestSatisfiesConstraints(t *testing.T) {
	route := Route{Hops: make([]Channel, 3), TotalCarbon: 500, AvgRenewable: 40}
	ok := RoutingConstraints{MaxRouteLength: 5, MaxCarbonPerRoute: 1000, MinRenewablePercent: 30}
	if !SatisfiesConstraints(route, ok) {
		t.Fatalf("expected route to satisfy constraints")
	}
	tooStrict := RoutingConstraints{MaxRouteLength: 5, MaxCarbonPerRoute: 1000, MinRenewablePercent: 50}
	if SatisfiesConstraints(route, tooStrict) {
		t.Fatalf("expected route to fail the renewable-share constraint")
	}
}

func candidatesForSplitTests() []CandidatePath {
	return []CandidatePath{
		{Route: Route{TotalFeeMNova: 100}, AvailableCapacity: 50_000},
		{Route: Route{TotalFeeMNova: 50}, AvailableCapacity: 30_000},
		{Route: Route{TotalFeeMNova: 10}, AvailableCapacity: 20_000},
	}
}

func TestPlanShards_Equal(t *testing.T) {
	config := DefaultMultiPathConfig()
	amounts, paths, err := PlanShards(candidatesForSplitTests(), 90_000, SplitEqual, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(amounts) != len(paths) {
		t.Fatalf("amounts/paths length mismatch")
	}
	var total uint64
	for _, a := range amounts {
		total += a
	}
	if total != 90_000 {
		t.Fatalf("expected shards to sum to the total amount, got %d", total)
	}
}

func TestPlanShards_ProportionalToCapacity(t *testing.T) {
	config := DefaultMultiPathConfig()
	amounts, _, err := PlanShards(candidatesForSplitTests(), 100_000, SplitProportionalToCapacity, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var total uint64
	for _, a := range amounts {
		total += a
	}
	if total != 100_000 {
		t.Fatalf("expected shards to sum to the total amount, got %d", total)
	}
	if amounts[0] <= amounts[len(amounts)-1] {
		t.Fatalf("expected the highest-capacity path to receive the largest shard")
	}
}

func TestPlanShards_MinimizeShardsUsesFewestPaths(t *testing.T) {
	config := DefaultMultiPathConfig()
	config.MinShardSizeMNova = 1000
	amounts, _, err := PlanShards(candidatesForSplitTests(), 40_000, SplitMinimizeShards, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(amounts) != 1 {
		t.Fatalf("expected a single shard to cover the amount from the largest-capacity path, got %d shards", len(amounts))
	}
}

func TestPlanShards_RejectsWhenBelowMinShardSize(t *testing.T) {
	config := DefaultMultiPathConfig()
	config.MinShardSizeMNova = 1_000_000
	_, _, err := PlanShards(candidatesForSplitTests(), 90_000, SplitEqual, config)
	if err == nil {
		t.Fatalf("expected an error when the split would violate the minimum shard size")
	}
}

func TestPlanShards_NoCandidatesWithSufficientCapacity(t *testing.T) {
	config := DefaultMultiPathConfig()
	config.MinShardSizeMNova = 1_000_000
	_, _, err := PlanShards(candidatesForSplitTests(), 40_000, SplitEqual, config)
	if err != ErrAmountBelowMinShard && err != ErrNoCandidatePaths {
		t.Fatalf("expected a shard-size-related error, got %v", err)
	}
}

func TestPaymentShard_Lifecycle(t *testing.T) {
	shard := &PaymentShard{PaymentHash: [32]byte{1}, AmountMNova: 1000}
	if shard.State != ShardPending {
		t.Fatalf("expected a new shard to start Pending")
	}
	shard.MarkInFlight()
	if shard.State != ShardInFlight {
		t.Fatalf("expected InFlight after MarkInFlight")
	}
	shard.MarkFailed("route exhausted")
	if shard.State != ShardFailed || shard.LastError == "" {
		t.Fatalf("expected Failed state with a recorded reason")
	}
	shard.PrepareRetry()
	if shard.State != ShardPending || shard.RetryCount != 1 {
		t.Fatalf("expected PrepareRetry to reset to Pending and bump the retry count")
	}
	var preimage [32]byte
	preimage[0] = 0xAB
	shard.MarkCompleted(preimage)
	if shard.State != ShardCompleted || shard.Preimage == nil || *shard.Preimage != preimage {
		t.Fatalf("expected Completed state with the recorded preimage")
	}
}

func TestMultiPathPayment_ProgressAndCompletion(t *testing.T) {
	config := DefaultMultiPathConfig()
	payment := NewMultiPathPayment([32]byte{2}, 1000, config, time.Now())
	payment.AddShard(&PaymentShard{AmountMNova: 400, State: ShardPending})
	payment.AddShard(&PaymentShard{AmountMNova: 600, State: ShardPending})

	if payment.AllShardsComplete() {
		t.Fatalf("expected payment to be incomplete with no shards finished")
	}

	payment.Shards[0].MarkCompleted([32]byte{0xAA})
	if got := payment.ProgressPercentage(); got != 40 {
		t.Fatalf("expected 40%% progress after the first shard completes, got %v", got)
	}

	payment.Shards[1].MarkCompleted([32]byte{0xBB})
	if !payment.AllShardsComplete() {
		t.Fatalf("expected payment to be complete once every shard has completed")
	}
}

func TestMultiPathPayment_IsTimedOut(t *testing.T) {
	config := DefaultMultiPathConfig()
	config.TimeoutSecs = 30
	start := time.Now()
	payment := NewMultiPathPayment([32]byte{3}, 1000, config, start)

	if payment.IsTimedOut(start.Add(10 * time.Second)) {
		t.Fatalf("expected payment not to be timed out before its deadline")
	}
	if !payment.IsTimedOut(start.Add(40 * time.Second)) {
		t.Fatalf("expected payment to be timed out past its deadline")
	}
}

func TestCoordinator_UpdateShardRetriesFailedShard(t *testing.T) {
	config := DefaultMultiPathConfig()
	config.RetriesEnabled = true
	config.MaxRetries = 2

	payment := NewMultiPathPayment([32]byte{4}, 1000, config, time.Now())
	payment.AddShard(&PaymentShard{AmountMNova: 1000, State: ShardInFlight})

	coord := NewCoordinator()
	coord.StartPayment(payment)

	if err := coord.UpdateShard([32]byte{4}, 0, ShardFailed, nil, "peer offline"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Shards[0].State != ShardPending {
		t.Fatalf("expected the failed shard to be re-queued for retry, got state %s", payment.Shards[0].State)
	}
	if payment.Shards[0].RetryCount != 1 {
		t.Fatalf("expected retry count to be incremented")
	}
}

func TestCoordinator_CompletePaymentRequiresAllShards(t *testing.T) {
	config := DefaultMultiPathConfig()
	payment := NewMultiPathPayment([32]byte{5}, 1000, config, time.Now())
	payment.AddShard(&PaymentShard{AmountMNova: 500, State: ShardCompleted})
	payment.AddShard(&PaymentShard{AmountMNova: 500, State: ShardInFlight})

	coord := NewCoordinator()
	coord.StartPayment(payment)

	if _, err := coord.CompletePayment([32]byte{5}); err == nil {
		t.Fatalf("expected completion to fail while a shard is still in flight")
	}

	payment.Shards[1].MarkCompleted([32]byte{0xCC})
	done, err := coord.CompletePayment([32]byte{5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.PaymentHash != payment.PaymentHash {
		t.Fatalf("expected the completed payment to be returned")
	}
}

func TestCoordinator_CheckTimeouts(t *testing.T) {
	config := DefaultMultiPathConfig()
	config.TimeoutSecs = 10
	start := time.Now()

	expired := NewMultiPathPayment([32]byte{6}, 1000, config, start)
	expired.AddShard(&PaymentShard{AmountMNova: 1000, State: ShardInFlight})

	fresh := NewMultiPathPayment([32]byte{7}, 1000, config, start)
	fresh.AddShard(&PaymentShard{AmountMNova: 1000, State: ShardInFlight})

	coord := NewCoordinator()
	coord.StartPayment(expired)
	coord.StartPayment(fresh)

	later := start.Add(20 * time.Second)
	timedOut := coord.CheckTimeouts(later)
	if len(timedOut) != 1 || timedOut[0] != expired.PaymentHash {
		t.Fatalf("expected only the expired payment to be reported, got %v", timedOut)
	}
}
