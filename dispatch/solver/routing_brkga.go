// BRKGA routing for a single vehicle: random-key chromosomes decoded by
// sorting, lexicographic (penalty, route time) fitness, followed by local
// search refinement.

package solver

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// brkgaParams groups the GA knobs shared by the routing and hybrid variants.
type brkgaParams struct {
	popSize        int
	eliteFrac      float64
	mutantFrac     float64
	bias           float64
	maxGens        int
	noImproveLimit int
}

// BRKGARouting orders one vehicle's deliveries with a biased random-key GA.
// Route calls for different groups may run concurrently, so the strategy
// holds a base seed and derives an independent stream per group instead of
// sharing one generator.
type BRKGARouting struct {
	speed  float64
	metric dispatch.DistanceMetric
	seed   int64
	params brkgaParams
}

// NewBRKGARouting returns the BRKGA routing strategy with its standard
// parameters.
func NewBRKGARouting(speed float64, metric dispatch.DistanceMetric, seed int64) *BRKGARouting {
	return &BRKGARouting{
		speed:  speed,
		metric: metric,
		seed:   seed,
		params: brkgaParams{
			popSize:        60,
			eliteFrac:      0.2,
			mutantFrac:     0.1,
			bias:           0.7,
			maxGens:        200,
			noImproveLimit: 40,
		},
	}
}

func (b *BRKGARouting) Route(group []*dispatch.Delivery, depot dispatch.Point) (*dispatch.Plan, error) {
	if len(group) == 0 {
		return nil, fmt.Errorf("brkga: empty group")
	}
	p := newProblem(group, depot, b.speed, b.metric)
	nodeIDs := p.nodeIndices()

	evalKeys := func(keys []float64) (dispatch.Evaluation, []int) {
		seq := decodeKeys(keys, nodeIDs)
		ev, _ := p.evaluate(seq)
		return ev, seq
	}

	rng := rand.New(rand.NewSource(b.groupSeed(group)))
	bestKeys := runBRKGA(rng, len(nodeIDs), b.params, func(keys []float64) dispatch.Evaluation {
		ev, _ := evalKeys(keys)
		return ev
	})

	_, seq := evalKeys(bestKeys)

	// Local search passes in fixed order, each sweeping to a fixed point.
	evalSeq := func(s []int) dispatch.Evaluation {
		ev, _ := p.evaluate(s)
		return ev
	}
	seq, _ = twoOpt(seq, evalSeq)
	seq, _ = orOpt(seq, 3, evalSeq)
	seq, _ = relocate(seq, evalSeq)

	return p.plan(seq)
}

// groupSeed derives the stream for one group from the base seed and the
// sorted delivery ids, so the outcome does not depend on which goroutine
// solves the group first.
func (b *BRKGARouting) groupSeed(group []*dispatch.Delivery) int64 {
	ids := make([]string, len(group))
	for i, d := range group {
		ids[i] = d.ID
	}
	sort.Strings(ids)
	h := fnv.New64a()
	for _, id := range ids {
		_, _ = h.Write([]byte(id))
	}
	return b.seed ^ int64(h.Sum64())
}

// decodeKeys sorts node ids by their random key to produce a visit order.
func decodeKeys(keys []float64, nodeIDs []int) []int {
	order := make([]int, len(nodeIDs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return keys[order[a]] < keys[order[b]] })
	seq := make([]int, len(nodeIDs))
	for i, idx := range order {
		seq[i] = nodeIDs[idx]
	}
	return seq
}

// runBRKGA evolves random-key chromosomes of the given length and returns the
// best chromosome found under the lexicographic fitness.
func runBRKGA(rng *rand.Rand, n int, params brkgaParams, fitness func([]float64) dispatch.Evaluation) []float64 {
	randomChrom := func() []float64 {
		keys := make([]float64, n)
		for i := range keys {
			keys[i] = rng.Float64()
		}
		return keys
	}

	type scored struct {
		keys []float64
		ev   dispatch.Evaluation
	}
	score := func(keys []float64) scored { return scored{keys: keys, ev: fitness(keys)} }

	pop := make([]scored, params.popSize)
	for i := range pop {
		pop[i] = score(randomChrom())
	}
	sortPop := func() {
		sort.SliceStable(pop, func(a, b int) bool { return pop[a].ev.BetterThan(pop[b].ev) })
	}
	sortPop()

	best := pop[0]
	eliteSize := max(1, int(float64(params.popSize)*params.eliteFrac))
	mutantSize := max(1, int(float64(params.popSize)*params.mutantFrac))
	noImprove := 0

	for gen := 0; gen < params.maxGens; gen++ {
		elites := pop[:eliteSize]
		nonElites := pop[eliteSize:]

		next := make([]scored, 0, params.popSize)
		next = append(next, elites...)
		for len(next) < params.popSize-mutantSize {
			parentE := elites[rng.Intn(len(elites))]
			var parentO scored
			if len(nonElites) > 0 {
				parentO = nonElites[rng.Intn(len(nonElites))]
			} else {
				parentO = score(randomChrom())
			}
			child := make([]float64, n)
			for i := 0; i < n; i++ {
				if rng.Float64() < params.bias {
					child[i] = parentE.keys[i]
				} else {
					child[i] = parentO.keys[i]
				}
			}
			next = append(next, score(child))
		}
		for len(next) < params.popSize {
			next = append(next, score(randomChrom()))
		}
		pop = next
		sortPop()

		if pop[0].ev.BetterThan(best.ev) {
			best = pop[0]
			noImprove = 0
		} else {
			noImprove++
		}
		if noImprove >= params.noImproveLimit {
			break
		}
	}
	return best.keys
}
