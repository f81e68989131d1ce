// Manual hybrid: slack-ordered assignment with depot-proximity grouping.

package solver

import (
	"sort"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// ManualHybrid sorts deliveries by slack (deadline window minus depot travel
// time), serves the most urgent first on the largest vehicles, and fills each
// route with further deliveries whose depot travel time stays within
// maxTravelTime minutes.
type ManualHybrid struct {
	speed         float64
	metric        dispatch.DistanceMetric
	maxTravelTime float64
}

// NewManualHybrid returns the manual assignment strategy. Grouping radius
// defaults to 8 travel minutes.
func NewManualHybrid(speed float64, metric dispatch.DistanceMetric) *ManualHybrid {
	return &ManualHybrid{speed: speed, metric: metric, maxTravelTime: 8.0}
}

func (h *ManualHybrid) Solve(deliveries []*dispatch.Delivery, vehicles []*dispatch.Vehicle, depot dispatch.Point) (map[int]*dispatch.Plan, error) {
	if len(deliveries) == 0 || len(vehicles) == 0 {
		return nil, nil
	}
	p := newProblem(deliveries, depot, h.speed, h.metric)

	type enriched struct {
		node       int
		travelTime float64
		slack      float64
	}
	pool := make([]enriched, 0, len(p.nodes))
	for _, node := range p.nodeIndices() {
		tt := p.travel.At(depotIndex, node)
		pool = append(pool, enriched{
			node:       node,
			travelTime: tt,
			slack:      float64(p.nodes[node].Window) - tt,
		})
	}
	// Most urgent first.
	sort.SliceStable(pool, func(a, b int) bool { return pool[a].slack < pool[b].slack })

	fleet := append([]*dispatch.Vehicle(nil), vehicles...)
	sort.SliceStable(fleet, func(a, b int) bool { return fleet[a].Capacity > fleet[b].Capacity })

	assigned := make(map[int]bool, len(pool))
	routes := make(map[int][]int, len(fleet))

	for _, v := range fleet {
		remaining := v.Capacity
		for _, seed := range pool {
			if remaining == 0 {
				break
			}
			if assigned[seed.node] || p.nodes[seed.node].Size > remaining {
				continue
			}
			routes[v.ID] = append(routes[v.ID], seed.node)
			assigned[seed.node] = true
			remaining -= p.nodes[seed.node].Size

			for _, cand := range pool {
				if remaining == 0 {
					break
				}
				if assigned[cand.node] || cand.travelTime > h.maxTravelTime || p.nodes[cand.node].Size > remaining {
					continue
				}
				routes[v.ID] = append(routes[v.ID], cand.node)
				assigned[cand.node] = true
				remaining -= p.nodes[cand.node].Size
			}
		}
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
