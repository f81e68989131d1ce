// Fleet-wide greedy insertion: assignment and ordering in one pass.

package solver

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// GreedyInsertionHybrid repeatedly commits the (delivery, vehicle, position)
// triple that increases total penalty the least, with route time as the
// tie-break, until nothing fits.
type GreedyInsertionHybrid struct {
	speed  float64
	metric dispatch.DistanceMetric
}

// NewGreedyInsertionHybrid returns the fleet-wide insertion strategy.
func NewGreedyInsertionHybrid(speed float64, metric dispatch.DistanceMetric) *GreedyInsertionHybrid {
	return &GreedyInsertionHybrid{speed: speed, metric: metric}
}

// insertionCost is the lexicographic (penalty increase, time increase) pair.
type insertionCost struct {
	penalty int
	minutes float64
}

func (c insertionCost) lessThan(o insertionCost) bool {
	if c.penalty != o.penalty {
		return c.penalty < o.penalty
	}
	return c.minutes < o.minutes
}

func (h *GreedyInsertionHybrid) Solve(deliveries []*dispatch.Delivery, vehicles []*dispatch.Vehicle, depot dispatch.Point) (map[int]*dispatch.Plan, error) {
	if len(deliveries) == 0 || len(vehicles) == 0 {
		return nil, nil
	}
	p := newProblem(deliveries, depot, h.speed, h.metric)

	vehicleIDs := make([]int, 0, len(vehicles))
	remaining := make(map[int]int, len(vehicles))
	routes := make(map[int][]int, len(vehicles))
	routeEval := make(map[int]dispatch.Evaluation, len(vehicles))
	for _, v := range vehicles {
		vehicleIDs = append(vehicleIDs, v.ID)
		remaining[v.ID] = v.Capacity
	}
	sort.Ints(vehicleIDs)

	unassigned := p.nodeIndices()

	for len(unassigned) > 0 {
		bestCost := insertionCost{penalty: math.MaxInt, minutes: math.Inf(1)}
		bestNode, bestVid, bestPos := -1, -1, -1

		for _, node := range unassigned {
			size := p.nodes[node].Size
			for _, vid := range vehicleIDs {
				if remaining[vid] < size {
					continue
				}
				route := routes[vid]
				base := routeEval[vid]
				for pos := 0; pos <= len(route); pos++ {
					cand := insertAt(route, pos, node)
					ev, err := p.evaluate(cand)
					if err != nil {
						continue
					}
					cost := insertionCost{
						penalty: ev.TotalPenalty - base.TotalPenalty,
						minutes: ev.TotalRouteTime - base.TotalRouteTime,
					}
					if cost.lessThan(bestCost) {
						bestCost = cost
						bestNode, bestVid, bestPos = node, vid, pos
					}
				}
			}
		}

		if bestNode < 0 {
			logrus.Debugf("greedy insertion: %d deliveries left unassigned", len(unassigned))
			break
		}
		routes[bestVid] = insertAt(routes[bestVid], bestPos, bestNode)
		remaining[bestVid] -= p.nodes[bestNode].Size
		if ev, err := p.evaluate(routes[bestVid]); err == nil {
			routeEval[bestVid] = ev
		}
		unassigned = removeNode(unassigned, bestNode)
	}

	plans := make(map[int]*dispatch.Plan, len(routes))
	for vid, seq := range routes {
		if len(seq) == 0 {
			continue
		}
		plan, err := p.plan(seq)
		if err != nil {
			return nil, err
		}
		plans[vid] = plan
	}
	return plans, nil
}

func removeNode(nodes []int, node int) []int {
	out := nodes[:0]
	for _, n := range nodes {
		if n != node {
			out = append(out, n)
		}
	}
	return out
}
