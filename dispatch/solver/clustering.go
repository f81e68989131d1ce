// Clustering strategies: capacitated k-means and greedy sequential
// assignment. Both map vehicle ids to delivery groups; deliveries that fit
// nowhere stay unassigned for the next routing pass.

package solver

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// GreedyClustering orders deliveries by decreasing depot distance and packs
// each into the first vehicle with room.
type GreedyClustering struct {
	metric dispatch.DistanceMetric
}

// NewGreedyClustering returns the sequential-assignment heuristic.
func NewGreedyClustering(metric dispatch.DistanceMetric) *GreedyClustering {
	return &GreedyClustering{metric: metric}
}

func (g *GreedyClustering) Cluster(deliveries []*dispatch.Delivery, vehicles []*dispatch.Vehicle, depot dispatch.Point) map[int][]*dispatch.Delivery {
	if len(deliveries) == 0 || len(vehicles) == 0 {
		return nil
	}
	distances := dispatch.DepotDistances(depot, deliveries, g.metric)

	order := make([]int, len(deliveries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return distances[order[a]] > distances[order[b]]
	})

	remaining := make(map[int]int, len(vehicles))
	for _, v := range vehicles {
		remaining[v.ID] = v.Capacity
	}
	groups := make(map[int][]*dispatch.Delivery)
	for _, idx := range order {
		d := deliveries[idx]
		for _, v := range vehicles {
			if remaining[v.ID] >= d.Size {
				groups[v.ID] = append(groups[v.ID], d)
				remaining[v.ID] -= d.Size
				break
			}
		}
	}
	return groups
}

// CKMeansClustering runs capacity-constrained k-means: k-means++ seeding,
// a capacitated point-to-center assignment, and size-weighted center updates
// until the centers settle.
type CKMeansClustering struct {
	metric   dispatch.DistanceMetric
	rng      *rand.Rand
	maxIters int
	tol      float64
}

// NewCKMeansClustering returns the capacitated k-means strategy.
func NewCKMeansClustering(metric dispatch.DistanceMetric, rng *rand.Rand) *CKMeansClustering {
	return &CKMeansClustering{metric: metric, rng: rng, maxIters: 20, tol: 1e-4}
}

type point2 struct{ x, y float64 }

func (c *CKMeansClustering) Cluster(deliveries []*dispatch.Delivery, vehicles []*dispatch.Vehicle, depot dispatch.Point) map[int][]*dispatch.Delivery {
	if len(deliveries) == 0 || len(vehicles) == 0 {
		return nil
	}
	k := len(vehicles)
	if len(deliveries) < k {
		k = len(deliveries)
	}

	points := make([]point2, len(deliveries))
	weights := make([]int, len(deliveries))
	total := 0
	for i, d := range deliveries {
		points[i] = point2{x: d.Point.Lng, y: d.Point.Lat}
		weights[i] = d.Size
		total += d.Size
	}

	// Per-cluster capacity: the mean vehicle capacity, lifted so the
	// instance stays feasible in aggregate.
	capSum := 0
	for _, v := range vehicles {
		capSum += v.Capacity
	}
	capacity := capSum / len(vehicles)
	if need := (total + k - 1) / k; need > capacity {
		logrus.Debugf("ckmeans: lifting cluster capacity from %d to %d", capacity, need)
		capacity = need
	}

	centers := kMeansPlusPlus(points, k, c.rng)
	var assign []int
	for iter := 0; iter < c.maxIters; iter++ {
		assign = capacitatedAssignment(points, weights, centers, capacity)

		next := make([]point2, k)
		moved := 0.0
		for j := 0; j < k; j++ {
			var sx, sy float64
			w := 0
			for i, a := range assign {
				if a != j {
					continue
				}
				sx += points[i].x * float64(weights[i])
				sy += points[i].y * float64(weights[i])
				w += weights[i]
			}
			if w == 0 {
				// Empty cluster: take the point with the largest summed
				// distance to all centers.
				next[j] = points[farthestSumPoint(points, centers)]
			} else {
				next[j] = point2{x: sx / float64(w), y: sy / float64(w)}
			}
			moved += math.Hypot(next[j].x-centers[j].x, next[j].y-centers[j].y)
		}
		centers = next
		if moved < c.tol {
			break
		}
	}
	assign = capacitatedAssignment(points, weights, centers, capacity)

	groups := make(map[int][]*dispatch.Delivery)
	for i, cluster := range assign {
		if cluster < 0 {
			continue
		}
		vid := vehicles[cluster].ID
		groups[vid] = append(groups[vid], deliveries[i])
	}
	return groups
}

// kMeansPlusPlus seeds k centers with the standard D^2 weighting.
func kMeansPlusPlus(points []point2, k int, rng *rand.Rand) []point2 {
	centers := make([]point2, 0, k)
	centers = append(centers, points[rng.Intn(len(points))])
	for len(centers) < k {
		d2 := make([]float64, len(points))
		sum := 0.0
		for i, p := range points {
			best := math.Inf(1)
			for _, c := range centers {
				if d := sq(p.x-c.x) + sq(p.y-c.y); d < best {
					best = d
				}
			}
			d2[i] = best
			sum += best
		}
		if sum == 0 {
			centers = append(centers, points[rng.Intn(len(points))])
			continue
		}
		r := rng.Float64() * sum
		for i, d := range d2 {
			r -= d
			if r <= 0 {
				centers = append(centers, points[i])
				break
			}
		}
		if r > 0 {
			centers = append(centers, points[len(points)-1])
		}
	}
	return centers
}

// capacitatedAssignment solves the binary assignment greedily by regret:
// points whose best and second-best centers differ the most commit first,
// each to the nearest center with remaining capacity. Points that fit
// nowhere are returned as -1 (unassigned).
func capacitatedAssignment(points []point2, weights []int, centers []point2, capacity int) []int {
	type cand struct {
		point  int
		regret float64
	}
	dist := make([][]float64, len(points))
	order := make([]cand, len(points))
	for i, p := range points {
		dist[i] = make([]float64, len(centers))
		best, second := math.Inf(1), math.Inf(1)
		for j, c := range centers {
			d := math.Hypot(p.x-c.x, p.y-c.y)
			dist[i][j] = d
			if d < best {
				second = best
				best = d
			} else if d < second {
				second = d
			}
		}
		if math.IsInf(second, 1) {
			second = best
		}
		order[i] = cand{point: i, regret: second - best}
	}
	sort.SliceStable(order, func(a, b int) bool { return order[a].regret > order[b].regret })

	remaining := make([]int, len(centers))
	for j := range remaining {
		remaining[j] = capacity
	}
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}
	for _, c := range order {
		i := c.point
		bestJ := -1
		bestD := math.Inf(1)
		for j := range centers {
			if remaining[j] >= weights[i] && dist[i][j] < bestD {
				bestD = dist[i][j]
				bestJ = j
			}
		}
		if bestJ >= 0 {
			assign[i] = bestJ
			remaining[bestJ] -= weights[i]
		}
	}
	return assign
}

func farthestSumPoint(points []point2, centers []point2) int {
	bestIdx, bestSum := 0, -1.0
	for i, p := range points {
		sum := 0.0
		for _, c := range centers {
			sum += math.Hypot(p.x-c.x, p.y-c.y)
		}
		if sum > bestSum {
			bestSum = sum
			bestIdx = i
		}
	}
	return bestIdx
}

func sq(v float64) float64 { return v * v }
