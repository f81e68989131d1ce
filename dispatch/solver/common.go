package solver

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

// problem is the shared minute-relative view of one routing subproblem: the
// depot at index 0, deliveries at 1..n, and the evaluator inputs derived
// from them.
type problem struct {
	travel   *mat.Dense
	nodes    map[int]*dispatch.Delivery
	ready    map[int]float64
	deadline map[int]float64
	service  map[int]float64
	ref      time.Time // reference instant the minute offsets are anchored to
}

// newProblem builds the travel table and minute offsets for a delivery set.
func newProblem(deliveries []*dispatch.Delivery, depot dispatch.Point, speed float64, metric dispatch.DistanceMetric) *problem {
	nodes := make(map[int]*dispatch.Delivery, len(deliveries))
	for i, d := range deliveries {
		nodes[i+1] = d
	}
	ready, deadline, ref := dispatch.MinuteOffsets(nodes)
	return &problem{
		travel:   dispatch.TravelTimes(depot, deliveries, speed, metric),
		nodes:    nodes,
		ready:    ready,
		deadline: deadline,
		service:  dispatch.ServiceOffsets(nodes),
		ref:      ref,
	}
}

const depotIndex = 0

// evaluate runs the authoritative evaluator on a visit order.
func (p *problem) evaluate(seq []int) (dispatch.Evaluation, error) {
	return dispatch.EvaluateSequence(seq, p.travel, p.ready, p.deadline, p.service, depotIndex)
}

// plan converts a visit order into an absolute-time plan.
func (p *problem) plan(seq []int) (*dispatch.Plan, error) {
	ev, err := p.evaluate(seq)
	if err != nil {
		return nil, err
	}
	nodes := make(map[int]*dispatch.Delivery, len(seq))
	for _, node := range seq {
		nodes[node] = p.nodes[node]
	}
	return dispatch.NewPlan(seq, nodes, ev, p.ref), nil
}

// nodeIndices lists the delivery node indices (1..n) in insertion order.
func (p *problem) nodeIndices() []int {
	out := make([]int, 0, len(p.nodes))
	for i := 1; i <= len(p.nodes); i++ {
		out = append(out, i)
	}
	return out
}
