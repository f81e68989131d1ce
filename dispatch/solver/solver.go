// Package solver holds the concrete optimization strategies behind the
// dispatch core's Solver variant: clustering and per-vehicle routing for the
// two-stage family, and fleet-wide hybrids that assign and order in one pass.
package solver

import (
	"fmt"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// ClusteringStrategy assigns deliveries to vehicles under capacity.
// Deliveries that fit nowhere are left out of the returned groups.
type ClusteringStrategy interface {
	Cluster(deliveries []*dispatch.Delivery, vehicles []*dispatch.Vehicle, depot dispatch.Point) map[int][]*dispatch.Delivery
}

// RoutingStrategy orders one vehicle's deliveries into a plan.
type RoutingStrategy interface {
	Route(group []*dispatch.Delivery, depot dispatch.Point) (*dispatch.Plan, error)
}

// twoStage composes a clustering and a routing strategy into the core's
// TwoStagePlanner contract.
type twoStage struct {
	clustering ClusteringStrategy
	routing    RoutingStrategy
}

func (t *twoStage) Cluster(deliveries []*dispatch.Delivery, vehicles []*dispatch.Vehicle, depot dispatch.Point) map[int][]*dispatch.Delivery {
	return t.clustering.Cluster(deliveries, vehicles, depot)
}

func (t *twoStage) Route(group []*dispatch.Delivery, depot dispatch.Point) (*dispatch.Plan, error) {
	return t.routing.Route(group, depot)
}

// New maps a validated configuration to a solver instance. The RNG feeds the
// metaheuristics so runs are reproducible under a master seed.
func New(cfg dispatch.SimulationConfig, rng *dispatch.PartitionedRNG) (dispatch.Solver, error) {
	if err := cfg.Validate(); err != nil {
		return dispatch.Solver{}, err
	}
	metric := dispatch.MetricEuclidean

	if cfg.IsHybrid() {
		var h dispatch.HybridPlanner
		switch cfg.HybridAlgo {
		case dispatch.HybridGreedyInsertion:
			h = NewGreedyInsertionHybrid(cfg.AvgSpeedKmh, metric)
		case dispatch.HybridBRKGA:
			h = NewBRKGAHybrid(cfg.AvgSpeedKmh, metric, rng.Get(dispatch.SubsystemHybrid))
		case dispatch.HybridManual:
			h = NewManualHybrid(cfg.AvgSpeedKmh, dispatch.MetricHaversine)
		default:
			return dispatch.Solver{}, fmt.Errorf("solver: unknown hybrid algorithm %q", cfg.HybridAlgo)
		}
		return dispatch.NewHybridSolver(h), nil
	}

	var c ClusteringStrategy
	switch cfg.ClusteringAlgo {
	case dispatch.ClusteringCKMeans:
		c = NewCKMeansClustering(metric, rng.Get(dispatch.SubsystemClustering))
	case dispatch.ClusteringGreedy:
		c = NewGreedyClustering(metric)
	default:
		return dispatch.Solver{}, fmt.Errorf("solver: unknown clustering algorithm %q", cfg.ClusteringAlgo)
	}

	var r RoutingStrategy
	switch cfg.RoutingAlgo {
	case dispatch.RoutingBRKGA:
		r = NewBRKGARouting(cfg.AvgSpeedKmh, metric, rng.Seed(dispatch.SubsystemRouting))
	case dispatch.RoutingGreedy:
		r = NewCheapestInsertionRouting(cfg.AvgSpeedKmh, metric)
	default:
		return dispatch.Solver{}, fmt.Errorf("solver: unknown routing algorithm %q", cfg.RoutingAlgo)
	}

	return dispatch.NewTwoStageSolver(&twoStage{clustering: c, routing: r}), nil
}
