// The route evaluator: the authoritative cost function for every solver and
// for the JIT dispatch-delay policy.

package dispatch

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	// Lateness is charged in 5-minute blocks of 100 penalty units each.
	latenessBlockMinutes = 5.0
	penaltyPerBlock      = 100
)

// Evaluation is the result of evaluating one visit sequence, all times in
// minutes relative to a shared zero carried by the caller.
type Evaluation struct {
	ArrivalTimes   []float64 // arrival at each position of the sequence
	Penalties      []int     // lateness penalty at each position
	TotalPenalty   int
	TotalRouteTime float64 // departure to depot return
	StartTime      float64 // max ready instant over the sequence
}

// LatenessPenalty converts an arrival past the deadline into penalty units:
// ceil(lateness / 5 min) blocks at 100 units per block.
func LatenessPenalty(arrival, deadline float64) int {
	lateness := arrival - deadline
	if lateness <= 0 {
		return 0
	}
	blocks := int(math.Ceil(lateness / latenessBlockMinutes))
	return blocks * penaltyPerBlock
}

// EvaluateSequence computes arrival times, per-stop penalties, total penalty
// and total route time for a visit order.
//
// seq holds node indices into the travel-time table; ready and deadline map
// each node to minute instants relative to a shared zero; service maps nodes
// to on-site minutes (nil means zero everywhere); depot is the distinguished
// depot index of the travel table. A vehicle departs no earlier than the
// latest ready instant across the sequence.
func EvaluateSequence(seq []int, travel *mat.Dense, ready, deadline map[int]float64, service map[int]float64, depot int) (Evaluation, error) {
	if len(seq) == 0 {
		return Evaluation{}, fmt.Errorf("evaluate: empty sequence")
	}
	start := math.Inf(-1)
	for _, node := range seq {
		r, ok := ready[node]
		if !ok {
			return Evaluation{}, fmt.Errorf("evaluate: node %d has no ready instant", node)
		}
		if r > start {
			start = r
		}
	}

	ev := Evaluation{
		ArrivalTimes: make([]float64, 0, len(seq)),
		Penalties:    make([]int, 0, len(seq)),
		StartTime:    start,
	}

	clock := start + travel.At(depot, seq[0])
	for i, node := range seq {
		if i > 0 {
			prev := seq[i-1]
			clock += serviceAt(service, prev) + travel.At(prev, node)
		}
		pen := LatenessPenalty(clock, deadline[node])
		ev.ArrivalTimes = append(ev.ArrivalTimes, clock)
		ev.Penalties = append(ev.Penalties, pen)
		ev.TotalPenalty += pen
	}
	last := seq[len(seq)-1]
	clock += serviceAt(service, last) + travel.At(last, depot)
	ev.TotalRouteTime = clock - start
	return ev, nil
}

func serviceAt(service map[int]float64, node int) float64 {
	if service == nil {
		return 0
	}
	return service[node]
}

// Lexicographic fitness: penalty first, route time as tie-break.

// BetterThan reports whether e is a strict lexicographic improvement over o.
func (e Evaluation) BetterThan(o Evaluation) bool {
	if e.TotalPenalty != o.TotalPenalty {
		return e.TotalPenalty < o.TotalPenalty
	}
	return e.TotalRouteTime < o.TotalRouteTime
}

// MinuteOffsets converts the ready and deadline instants of the given node
// map into minutes relative to the earliest instant observed, returning that
// reference instant alongside. Plans carry the reference so minute offsets
// can be converted back to absolute UTC time at the boundary.
func MinuteOffsets(nodes map[int]*Delivery) (ready, deadline map[int]float64, ref time.Time) {
	ready = make(map[int]float64, len(nodes))
	deadline = make(map[int]float64, len(nodes))
	for _, d := range nodes {
		if ref.IsZero() || d.ReadyAt.Before(ref) {
			ref = d.ReadyAt
		}
		if d.Deadline.Before(ref) {
			ref = d.Deadline
		}
	}
	for idx, d := range nodes {
		ready[idx] = d.ReadyAt.Sub(ref).Minutes()
		deadline[idx] = d.Deadline.Sub(ref).Minutes()
	}
	return ready, deadline, ref
}

// ServiceOffsets collects per-node service minutes for the evaluator.
func ServiceOffsets(nodes map[int]*Delivery) map[int]float64 {
	out := make(map[int]float64, len(nodes))
	for idx, d := range nodes {
		out[idx] = d.ServiceMinutes
	}
	return out
}

// MinutesAfter converts a minute offset back into an absolute instant.
func MinutesAfter(ref time.Time, minutes float64) time.Time {
	return ref.Add(time.Duration(minutes * float64(time.Minute)))
}
