// Cheapest-insertion routing for a single vehicle.

package solver

import (
	"fmt"
	"math"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// CheapestInsertionRouting seeds a route with the delivery nearest the depot
// and grows it by the classic cheapest-insertion rule.
type CheapestInsertionRouting struct {
	speed  float64
	metric dispatch.DistanceMetric
}

// NewCheapestInsertionRouting returns the greedy routing heuristic.
func NewCheapestInsertionRouting(speed float64, metric dispatch.DistanceMetric) *CheapestInsertionRouting {
	return &CheapestInsertionRouting{speed: speed, metric: metric}
}

func (r *CheapestInsertionRouting) Route(group []*dispatch.Delivery, depot dispatch.Point) (*dispatch.Plan, error) {
	if len(group) == 0 {
		return nil, fmt.Errorf("cheapest insertion: empty group")
	}
	p := newProblem(group, depot, r.speed, r.metric)
	seq := cheapestInsertionOrder(p)
	return p.plan(seq)
}

// cheapestInsertionOrder builds a visit order over the problem's node
// indices: seed with the node nearest the depot, then repeatedly insert the
// (node, position) pair with the smallest detour T[u,k] + T[k,v] - T[u,v].
func cheapestInsertionOrder(p *problem) []int {
	unvisited := p.nodeIndices()

	first := 0
	best := math.Inf(1)
	for i, n := range unvisited {
		if t := p.travel.At(depotIndex, n); t < best {
			best = t
			first = i
		}
	}
	seq := []int{unvisited[first]}
	unvisited = append(unvisited[:first], unvisited[first+1:]...)

	for len(unvisited) > 0 {
		bestCost := math.Inf(1)
		bestIdx, bestPos := -1, -1
		for ki, k := range unvisited {
			tour := append([]int{depotIndex}, seq...)
			tour = append(tour, depotIndex)
			for i := 0; i < len(tour)-1; i++ {
				u, v := tour[i], tour[i+1]
				cost := p.travel.At(u, k) + p.travel.At(k, v) - p.travel.At(u, v)
				if cost < bestCost {
					bestCost = cost
					bestIdx = ki
					bestPos = i
				}
			}
		}
		seq = insertAt(seq, bestPos, unvisited[bestIdx])
		unvisited = append(unvisited[:bestIdx], unvisited[bestIdx+1:]...)
	}
	return seq
}

func insertAt(seq []int, pos, node int) []int {
	out := make([]int, 0, len(seq)+1)
	out = append(out, seq[:pos]...)
	out = append(out, node)
	out = append(out, seq[pos:]...)
	return out
}
