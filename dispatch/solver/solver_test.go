package solver

import (
	"math"
	"testing"
	"time"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

func TestNew_TwoStageFamily(t *testing.T) {
	tests := []struct {
		clustering dispatch.ClusteringAlgorithm
		routing    dispatch.RoutingAlgorithm
	}{
		{dispatch.ClusteringCKMeans, dispatch.RoutingBRKGA},
		{dispatch.ClusteringCKMeans, dispatch.RoutingGreedy},
		{dispatch.ClusteringGreedy, dispatch.RoutingBRKGA},
		{dispatch.ClusteringGreedy, dispatch.RoutingGreedy},
	}
	for _, tt := range tests {
		t.Run(string(tt.clustering)+"/"+string(tt.routing), func(t *testing.T) {
			cfg := dispatch.DefaultSimulationConfig()
			cfg.ClusteringAlgo = tt.clustering
			cfg.RoutingAlgo = tt.routing

			s, err := New(cfg, dispatch.NewPartitionedRNG(42))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if s.IsHybrid() {
				t.Error("two-stage tokens produced a hybrid solver")
			}
			if s.TwoStage() == nil {
				t.Error("two-stage planner missing")
			}
		})
	}
}

func TestNew_HybridFamily(t *testing.T) {
	for _, algo := range []dispatch.HybridAlgorithm{
		dispatch.HybridGreedyInsertion,
		dispatch.HybridBRKGA,
		dispatch.HybridManual,
	} {
		t.Run(string(algo), func(t *testing.T) {
			cfg := dispatch.DefaultSimulationConfig()
			cfg.HybridAlgo = algo

			s, err := New(cfg, dispatch.NewPartitionedRNG(42))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !s.IsHybrid() {
				t.Error("hybrid token produced a two-stage solver")
			}
			if s.Hybrid() == nil {
				t.Error("hybrid planner missing")
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := dispatch.DefaultSimulationConfig()
	if _, err := New(cfg, dispatch.NewPartitionedRNG(42)); err == nil {
		t.Error("empty selection must be rejected")
	}

	cfg.ClusteringAlgo = "dbscan"
	cfg.RoutingAlgo = dispatch.RoutingGreedy
	if _, err := New(cfg, dispatch.NewPartitionedRNG(42)); err == nil {
		t.Error("unknown clustering token must be rejected")
	}
}

func TestTwoStagePass_StableVehicleChoice(t *testing.T) {
	// GIVEN a single ready delivery over a wide idle fleet, repeated runs
	// under one seed must commit to the same vehicle every time
	run := func() int {
		cfg := dispatch.DefaultSimulationConfig()
		cfg.ClusteringAlgo = dispatch.ClusteringGreedy
		cfg.RoutingAlgo = dispatch.RoutingGreedy

		s, err := New(cfg, dispatch.NewPartitionedRNG(42))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		fleet := make([]*dispatch.Vehicle, 0, 8)
		for id := 1; id <= 8; id++ {
			fleet = append(fleet, dispatch.NewVehicle(id, 10))
		}
		start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		sys, err := dispatch.NewSystem(cfg, s, fleet, dispatch.Point{}, start)
		if err != nil {
			t.Fatalf("NewSystem: %v", err)
		}
		d, err := dispatch.NewDelivery("o1", dispatch.Point{Lng: 0.1}, 1, 5, 60, start)
		if err != nil {
			t.Fatalf("NewDelivery: %v", err)
		}
		if err := sys.AddNewDelivery(d); err != nil {
			t.Fatalf("AddNewDelivery: %v", err)
		}
		sys.AdvanceTime(5)

		notifs, err := sys.RoutingDecisionLogic()
		if err != nil {
			t.Fatalf("RoutingDecisionLogic: %v", err)
		}
		if len(notifs) != 1 {
			t.Fatalf("notifications: got %d, want 1", len(notifs))
		}
		rec, ok := notifs[0].Data.(dispatch.DispatchRecord)
		if !ok {
			t.Fatalf("notification payload: %T", notifs[0].Data)
		}
		return rec.VehicleID
	}

	for i := 0; i < 20; i++ {
		if got := run(); got != 1 {
			t.Fatalf("run %d dispatched vehicle %d, want 1", i, got)
		}
	}
}

func TestCommittedRoute_MatchesEvaluator(t *testing.T) {
	// GIVEN a two-stop route committed without a JIT shift
	cfg := dispatch.DefaultSimulationConfig()
	cfg.HybridAlgo = dispatch.HybridGreedyInsertion
	cfg.UrgentReadyCountThreshold = 0

	s, err := New(cfg, dispatch.NewPartitionedRNG(42))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	sys, err := dispatch.NewSystem(cfg, s, []*dispatch.Vehicle{dispatch.NewVehicle(1, 10)}, dispatch.Point{}, start)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	byID := make(map[string]*dispatch.Delivery, 2)
	for _, spec := range []struct {
		id  string
		lng float64
	}{{"a", 0.1}, {"b", 0.2}} {
		d, err := dispatch.NewDelivery(spec.id, dispatch.Point{Lng: spec.lng}, 1, 5, 120, start)
		if err != nil {
			t.Fatalf("NewDelivery %s: %v", spec.id, err)
		}
		if err := sys.AddNewDelivery(d); err != nil {
			t.Fatalf("AddNewDelivery %s: %v", spec.id, err)
		}
		byID[spec.id] = d
	}
	sys.AdvanceTime(5)

	notifs, err := sys.RoutingDecisionLogic()
	if err != nil {
		t.Fatalf("RoutingDecisionLogic: %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(notifs))
	}
	rec := notifs[0].Data.(dispatch.DispatchRecord)

	// WHEN recomputing the cost function over the committed visit order
	ordered := make([]*dispatch.Delivery, 0, len(rec.DeliveryIDs))
	nodes := make(map[int]*dispatch.Delivery, len(rec.DeliveryIDs))
	seq := make([]int, 0, len(rec.DeliveryIDs))
	for i, id := range rec.DeliveryIDs {
		d := byID[id]
		if d == nil {
			t.Fatalf("unknown delivery %s in committed route", id)
		}
		ordered = append(ordered, d)
		nodes[i+1] = d
		seq = append(seq, i+1)
	}
	travel := dispatch.TravelTimes(dispatch.Point{}, ordered, cfg.AvgSpeedKmh, dispatch.MetricEuclidean)
	ready, deadline, ref := dispatch.MinuteOffsets(nodes)
	ev, err := dispatch.EvaluateSequence(seq, travel, ready, deadline, dispatch.ServiceOffsets(nodes), 0)
	if err != nil {
		t.Fatalf("EvaluateSequence: %v", err)
	}

	// THEN the stored totals and instants equal the fresh evaluation
	if ev.TotalPenalty != rec.TotalPenalty {
		t.Errorf("penalty: stored %d, recomputed %d", rec.TotalPenalty, ev.TotalPenalty)
	}
	if math.Abs(ev.TotalRouteTime-rec.TotalRouteTime) > 1e-9 {
		t.Errorf("route time: stored %v, recomputed %v", rec.TotalRouteTime, ev.TotalRouteTime)
	}
	if want := dispatch.MinutesAfter(ref, ev.StartTime); !rec.StartTime.Equal(want) {
		t.Errorf("start: stored %s, recomputed %s", rec.StartTime, want)
	}
	if want := rec.StartTime.Add(time.Duration(ev.TotalRouteTime * float64(time.Minute))); !rec.ReturnDepot.Equal(want) {
		t.Errorf("return: stored %s, recomputed %s", rec.ReturnDepot, want)
	}
}

func TestNew_TwoStageEndToEnd(t *testing.T) {
	// GIVEN the greedy/greedy pair over a small line instance
	cfg := dispatch.DefaultSimulationConfig()
	cfg.ClusteringAlgo = dispatch.ClusteringGreedy
	cfg.RoutingAlgo = dispatch.RoutingGreedy

	s, err := New(cfg, dispatch.NewPartitionedRNG(42))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	deliveries := lineGroup(t, 3)
	vehicles := []*dispatch.Vehicle{dispatch.NewVehicle(1, 10)}

	// WHEN clustering then routing the single group
	groups := s.TwoStage().Cluster(deliveries, vehicles, dispatch.Point{})
	if len(groups[1]) != 3 {
		t.Fatalf("cluster: got %d deliveries, want 3", len(groups[1]))
	}
	plan, err := s.TwoStage().Route(groups[1], dispatch.Point{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	// THEN the plan covers the whole group without penalty
	if len(plan.Sequence) != 3 || plan.TotalPenalty != 0 {
		t.Errorf("plan: seq=%v penalty=%d", plan.Sequence, plan.TotalPenalty)
	}
}
