package solver

import (
	"math"
	"sort"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// lineGroup puts n deliveries on a line east of the depot, 12 travel minutes
// apart at 50 km/h under the scaled euclidean metric.
func lineGroup(t *testing.T, n int) []*dispatch.Delivery {
	t.Helper()
	out := make([]*dispatch.Delivery, 0, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		out = append(out, testDelivery(t, id, dispatch.Point{Lng: 0.1 * float64(i+1)}, 1))
	}
	return out
}

func coversAllStops(t *testing.T, plan *dispatch.Plan, n int) {
	t.Helper()
	if len(plan.Sequence) != n {
		t.Fatalf("sequence length: got %d, want %d", len(plan.Sequence), n)
	}
	seen := append([]int(nil), plan.Sequence...)
	sort.Ints(seen)
	for i, node := range seen {
		if node != i+1 {
			t.Fatalf("sequence %v does not cover nodes 1..%d", plan.Sequence, n)
		}
	}
}

func TestCheapestInsertion_RoutesLineOptimally(t *testing.T) {
	// GIVEN three collinear stops with wide windows
	group := lineGroup(t, 3)
	r := NewCheapestInsertionRouting(50, dispatch.MetricEuclidean)

	plan, err := r.Route(group, dispatch.Point{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	// THEN the route visits each stop once at the optimal 72-minute tour
	coversAllStops(t, plan, 3)
	if plan.TotalPenalty != 0 {
		t.Errorf("penalty: got %d, want 0", plan.TotalPenalty)
	}
	if math.Abs(plan.TotalRouteTime-72) > 1e-9 {
		t.Errorf("route time: got %v, want 72", plan.TotalRouteTime)
	}
}

func TestCheapestInsertion_SingleStop(t *testing.T) {
	group := lineGroup(t, 1)
	r := NewCheapestInsertionRouting(50, dispatch.MetricEuclidean)

	plan, err := r.Route(group, dispatch.Point{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if math.Abs(plan.TotalRouteTime-24) > 1e-9 {
		t.Errorf("out-and-back: got %v, want 24", plan.TotalRouteTime)
	}
}

func TestCheapestInsertion_EmptyGroupRejected(t *testing.T) {
	r := NewCheapestInsertionRouting(50, dispatch.MetricEuclidean)
	if _, err := r.Route(nil, dispatch.Point{}); err == nil {
		t.Error("expected error for empty group")
	}
}

func TestBRKGARouting_DeterministicUnderSeed(t *testing.T) {
	group := lineGroup(t, 5)

	route := func() []int {
		b := NewBRKGARouting(50, dispatch.MetricEuclidean, 11)
		plan, err := b.Route(group, dispatch.Point{})
		if err != nil {
			t.Fatalf("Route: %v", err)
		}
		return plan.Sequence
	}
	first, second := route(), route()

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sequences diverge at %d: %v vs %v", i, first, second)
		}
	}
}

func TestBRKGARouting_ConcurrentGroupsMatchSequential(t *testing.T) {
	// GIVEN one strategy instance and two disjoint groups
	b := NewBRKGARouting(50, dispatch.MetricEuclidean, 11)
	east := lineGroup(t, 4)
	west := make([]*dispatch.Delivery, 0, 4)
	for i := 0; i < 4; i++ {
		id := "w" + string(rune('1'+i))
		west = append(west, testDelivery(t, id, dispatch.Point{Lng: -0.1 * float64(i + 1)}, 1))
	}

	wantEast, err := b.Route(east, dispatch.Point{})
	if err != nil {
		t.Fatalf("Route east: %v", err)
	}
	wantWest, err := b.Route(west, dispatch.Point{})
	if err != nil {
		t.Fatalf("Route west: %v", err)
	}

	// WHEN both groups solve at the same time, as a fleet-wide pass runs them
	var gotEast, gotWest *dispatch.Plan
	var g errgroup.Group
	g.Go(func() error {
		var err error
		gotEast, err = b.Route(east, dispatch.Point{})
		return err
	})
	g.Go(func() error {
		var err error
		gotWest, err = b.Route(west, dispatch.Point{})
		return err
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Route: %v", err)
	}

	// THEN each plan is identical to its sequential solve
	assertSameSequence(t, "east", wantEast.Sequence, gotEast.Sequence)
	assertSameSequence(t, "west", wantWest.Sequence, gotWest.Sequence)
}

func assertSameSequence(t *testing.T, label string, want, got []int) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: lengths differ: %v vs %v", label, want, got)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("%s: sequences diverge at %d: %v vs %v", label, i, want, got)
		}
	}
}

func TestBRKGARouting_FindsZeroPenaltyRoute(t *testing.T) {
	// GIVEN four stops with generous windows, the GA plus local search must
	// land on a penalty-free route covering every stop
	group := lineGroup(t, 4)
	b := NewBRKGARouting(50, dispatch.MetricEuclidean, 5)

	plan, err := b.Route(group, dispatch.Point{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	coversAllStops(t, plan, 4)
	if plan.TotalPenalty != 0 {
		t.Errorf("penalty: got %d, want 0", plan.TotalPenalty)
	}
	// local search leaves no 2-opt improvement: on a line the best tour is 96
	if math.Abs(plan.TotalRouteTime-96) > 1e-9 {
		t.Errorf("route time: got %v, want 96", plan.TotalRouteTime)
	}
}
