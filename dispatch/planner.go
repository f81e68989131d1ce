// The solver contract: a tagged variant over the two solver families.
// Concrete strategies live in dispatch/solver and never mutate core state;
// they receive snapshot copies and return Plans.

package dispatch

// TwoStagePlanner is the clustering -> routing family. Cluster assigns
// deliveries to vehicles under capacity; Route orders one vehicle's group.
type TwoStagePlanner interface {
	Cluster(deliveries []*Delivery, vehicles []*Vehicle, depot Point) map[int][]*Delivery
	Route(group []*Delivery, depot Point) (*Plan, error)
}

// HybridPlanner assigns and orders in one pass across the whole fleet.
type HybridPlanner interface {
	Solve(deliveries []*Delivery, vehicles []*Vehicle, depot Point) (map[int]*Plan, error)
}

// Solver is the tagged variant the orchestrator dispatches on: exactly one
// of the two fields is set.
type Solver struct {
	twoStage TwoStagePlanner
	hybrid   HybridPlanner
}

// NewTwoStageSolver wraps a clustering+routing pair.
func NewTwoStageSolver(p TwoStagePlanner) Solver {
	return Solver{twoStage: p}
}

// NewHybridSolver wraps a hybrid strategy.
func NewHybridSolver(h HybridPlanner) Solver {
	return Solver{hybrid: h}
}

// IsHybrid reports which family the solver belongs to.
func (s Solver) IsHybrid() bool { return s.hybrid != nil }

// TwoStage returns the two-stage planner (nil for hybrid solvers).
func (s Solver) TwoStage() TwoStagePlanner { return s.twoStage }

// Hybrid returns the hybrid planner (nil for two-stage solvers).
func (s Solver) Hybrid() HybridPlanner { return s.hybrid }

// Zero reports whether no family is configured.
func (s Solver) Zero() bool { return s.twoStage == nil && s.hybrid == nil }
