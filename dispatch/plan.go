package dispatch

import (
	"time"
)

// Plan is the artifact every solver returns for one vehicle: a visit order
// over node indices, the deliveries behind those indices, and the evaluated
// timeline converted to absolute UTC instants. RefTime is the zero instant
// the minute-relative evaluation was anchored to.
type Plan struct {
	Sequence       []int                 `json:"sequence"`
	NodeMap        map[int]*Delivery     `json:"-"`
	StartTime      time.Time             `json:"start_datetime"`
	ReturnDepot    time.Time             `json:"return_depot"`
	Arrivals       map[int]time.Time     `json:"arrivals_map"`
	Penalties      map[int]int           `json:"penalties_map"`
	TotalPenalty   int                   `json:"total_penalty"`
	TotalRouteTime float64               `json:"total_route_time"`
	RefTime        time.Time             `json:"ref_time"`
}

// NewPlan converts a minute-relative evaluation into an absolute-time plan.
// nodes must cover every index in seq.
func NewPlan(seq []int, nodes map[int]*Delivery, ev Evaluation, ref time.Time) *Plan {
	start := MinutesAfter(ref, ev.StartTime)
	p := &Plan{
		Sequence:       append([]int(nil), seq...),
		NodeMap:        nodes,
		StartTime:      start,
		ReturnDepot:    start.Add(time.Duration(ev.TotalRouteTime * float64(time.Minute))),
		Arrivals:       make(map[int]time.Time, len(seq)),
		Penalties:      make(map[int]int, len(seq)),
		TotalPenalty:   ev.TotalPenalty,
		TotalRouteTime: ev.TotalRouteTime,
		RefTime:        ref,
	}
	for i, node := range seq {
		p.Arrivals[node] = MinutesAfter(ref, ev.ArrivalTimes[i])
		p.Penalties[node] = ev.Penalties[i]
	}
	return p
}

// Deliveries returns the plan's deliveries in visit order.
func (p *Plan) Deliveries() []*Delivery {
	out := make([]*Delivery, 0, len(p.Sequence))
	for _, node := range p.Sequence {
		out = append(out, p.NodeMap[node])
	}
	return out
}

// TotalSize sums the sizes of all deliveries on the plan.
func (p *Plan) TotalSize() int {
	total := 0
	for _, d := range p.Deliveries() {
		total += d.Size
	}
	return total
}

// MinSlack returns the smallest (deadline - arrival) over the plan's stops in
// minutes. Negative slack means at least one stop already arrives late under
// the ASAP timeline.
func (p *Plan) MinSlack() float64 {
	min := 0.0
	first := true
	for node, arrival := range p.Arrivals {
		slack := p.NodeMap[node].Deadline.Sub(arrival).Minutes()
		if first || slack < min {
			min = slack
			first = false
		}
	}
	return min
}

// Shift delays the whole plan timeline: departure, return and every arrival.
// Penalties are unchanged by construction, since Shift is only applied with
// delays that keep every arrival within its deadline slack.
func (p *Plan) Shift(delay time.Duration) {
	if delay <= 0 {
		return
	}
	p.StartTime = p.StartTime.Add(delay)
	p.ReturnDepot = p.ReturnDepot.Add(delay)
	for node, arrival := range p.Arrivals {
		p.Arrivals[node] = arrival.Add(delay)
	}
}
