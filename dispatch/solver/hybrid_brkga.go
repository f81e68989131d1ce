// Hybrid BRKGA: a priority chromosome over deliveries decoded by fleet-wide
// cheapest insertion.

package solver

import (
	"math"
	"math/rand"
	"sort"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

const (
	// Scalarized insertion cost inside the decoder.
	hybridPenaltyWeight = 1000.0
	// Charged per delivery the decoder cannot place anywhere.
	unassignedPenalty = 100000
)

// BRKGAHybrid evolves delivery priorities; the decoder inserts deliveries in
// priority order at the cheapest feasible position across the whole fleet.
type BRKGAHybrid struct {
	speed  float64
	metric dispatch.DistanceMetric
	rng    *rand.Rand
	params brkgaParams
}

// NewBRKGAHybrid returns the hybrid GA with its standard parameters.
func NewBRKGAHybrid(speed float64, metric dispatch.DistanceMetric, rng *rand.Rand) *BRKGAHybrid {
	return &BRKGAHybrid{
		speed:  speed,
		metric: metric,
		rng:    rng,
		params: brkgaParams{
			popSize:        50,
			eliteFrac:      0.3,
			mutantFrac:     0.15,
			bias:           0.7,
			maxGens:        70,
			noImproveLimit: 15,
		},
	}
}

func (h *BRKGAHybrid) Solve(deliveries []*dispatch.Delivery, vehicles []*dispatch.Vehicle, depot dispatch.Point) (map[int]*dispatch.Plan, error) {
	if len(deliveries) == 0 || len(vehicles) == 0 {
		return nil, nil
	}
	p := newProblem(deliveries, depot, h.speed, h.metric)

	vehicleIDs := make([]int, 0, len(vehicles))
	capacities := make(map[int]int, len(vehicles))
	for _, v := range vehicles {
		vehicleIDs = append(vehicleIDs, v.ID)
		capacities[v.ID] = v.Capacity
	}
	sort.Ints(vehicleIDs)

	bestKeys := runBRKGA(h.rng, len(deliveries), h.params, func(keys []float64) dispatch.Evaluation {
		routes := h.decode(p, keys, vehicleIDs, capacities)
		return h.fitness(p, routes)
	})

	routes := h.decode(p, bestKeys, vehicleIDs, capacities)
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

// decode sorts deliveries by priority key and inserts each at the position
// across all vehicles minimizing 1000*penalty + route time. Deliveries with
// no feasible slot are skipped.
func (h *BRKGAHybrid) decode(p *problem, keys []float64, vehicleIDs []int, capacities map[int]int) map[int][]int {
	order := decodeKeys(keys, p.nodeIndices())

	routes := make(map[int][]int, len(vehicleIDs))
	routeCost := make(map[int]float64, len(vehicleIDs))
	remaining := make(map[int]int, len(vehicleIDs))
	for _, vid := range vehicleIDs {
		remaining[vid] = capacities[vid]
	}

	for _, node := range order {
		size := p.nodes[node].Size
		bestVid, bestPos := -1, -1
		bestIncrease := math.Inf(1)
		for _, vid := range vehicleIDs {
			if remaining[vid] < size {
				continue
			}
			route := routes[vid]
			for pos := 0; pos <= len(route); pos++ {
				cand := insertAt(route, pos, node)
				ev, err := p.evaluate(cand)
				if err != nil {
					continue
				}
				cost := hybridPenaltyWeight*float64(ev.TotalPenalty) + ev.TotalRouteTime
				if increase := cost - routeCost[vid]; increase < bestIncrease {
					bestIncrease = increase
					bestVid, bestPos = vid, pos
				}
			}
		}
		if bestVid < 0 {
			continue
		}
		routes[bestVid] = insertAt(routes[bestVid], bestPos, node)
		remaining[bestVid] -= size
		if ev, err := p.evaluate(routes[bestVid]); err == nil {
			routeCost[bestVid] = hybridPenaltyWeight*float64(ev.TotalPenalty) + ev.TotalRouteTime
		}
	}
	return routes
}

// fitness sums route penalties and times, charging a fixed penalty for every
// delivery the decoder left out.
func (h *BRKGAHybrid) fitness(p *problem, routes map[int][]int) dispatch.Evaluation {
	placed := 0
	total := dispatch.Evaluation{}
	for _, seq := range routes {
		if len(seq) == 0 {
			continue
		}
		placed += len(seq)
		if ev, err := p.evaluate(seq); err == nil {
			total.TotalPenalty += ev.TotalPenalty
			total.TotalRouteTime += ev.TotalRouteTime
		}
	}
	total.TotalPenalty += (len(p.nodes) - placed) * unassignedPenalty
	return total
}
