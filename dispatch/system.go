// The dispatch core: delivery/vehicle state machines, event handlers, the
// routing-decision orchestrator and the JIT dispatch-delay policy.
//
// The core is single-writer. All mutations of the event queue, the delivery
// and vehicle tables and the monitor happen on the caller's goroutine; the
// HTTP adapter serializes access behind its own locks. Solvers only ever see
// snapshot copies.

package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Admission errors, exposed so callers can map them without string matching.
var (
	ErrDuplicateDelivery = errors.New("delivery id already known")
	ErrUnknownDelivery   = errors.New("delivery not active")
)

// NotificationType labels the envelopes the adapter broadcasts to clients.
type NotificationType string

const (
	NotifyNewDelivery       NotificationType = "new_delivery"
	NotifyDriverDispatched  NotificationType = "driver_dispatched"
	NotifyFullRoutesUpdate  NotificationType = "full_routes_update"
	NotifyDriverReturned    NotificationType = "driver_returned"
	NotifyDeliveryCompleted NotificationType = "delivery_completed"
)

// Notification is an observable state change the adapter may push out.
type Notification struct {
	Type NotificationType `json:"type"`
	Data any              `json:"data"`
}

// DispatchRecord describes one committed route for broadcast.
type DispatchRecord struct {
	VehicleID      int       `json:"vehicle_id"`
	DeliveryIDs    []string  `json:"delivery_ids"`
	StartTime      time.Time `json:"start_datetime"`
	ReturnDepot    time.Time `json:"return_depot"`
	TotalPenalty   int       `json:"total_penalty"`
	TotalRouteTime float64   `json:"total_route_time"`
	UsedJIT        bool      `json:"used_jit"`
	DelayMinutes   float64   `json:"delay_minutes"`
}

// RouteStatus is one vehicle's entry in a full routes snapshot.
type RouteStatus struct {
	VehicleID    int           `json:"vehicle_id"`
	Status       VehicleStatus `json:"status"`
	CurrentRoute []*Delivery   `json:"current_route"`
	RouteEndTime *time.Time    `json:"route_end_time,omitempty"`
}

// System owns the simulation clock, the event queue, the delivery and
// vehicle tables and the monitor.
type System struct {
	Config         SimulationConfig
	SimulationTime time.Time
	Depot          Point

	Vehicles            map[int]*Vehicle
	ActiveDeliveries    map[string]*Delivery
	CompletedDeliveries map[string]*Delivery
	CancelledCount      int

	Events  *EventQueue
	Monitor *Monitor

	// EventsDrained counts every event popped off the queue over the
	// system's lifetime, whether or not handling it produced a notification.
	EventsDrained int

	solver Solver
}

// NewSystem initializes the core with a validated configuration, a solver of
// the matching family, a non-empty fleet and the depot origin. start is the
// initial simulation instant (interpreted as UTC).
func NewSystem(cfg SimulationConfig, solver Solver, vehicles []*Vehicle, depot Point, start time.Time) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if solver.Zero() {
		return nil, fmt.Errorf("system: no solver configured")
	}
	if solver.IsHybrid() != cfg.IsHybrid() {
		return nil, fmt.Errorf("system: solver family does not match configuration")
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("system: cannot start without vehicles")
	}
	table := make(map[int]*Vehicle, len(vehicles))
	for _, v := range vehicles {
		if _, dup := table[v.ID]; dup {
			return nil, fmt.Errorf("system: duplicate vehicle id %d", v.ID)
		}
		table[v.ID] = v
	}
	return &System{
		Config:              cfg,
		SimulationTime:      start.UTC(),
		Depot:               depot,
		Vehicles:            table,
		ActiveDeliveries:    make(map[string]*Delivery),
		CompletedDeliveries: make(map[string]*Delivery),
		Events:              NewEventQueue(),
		Monitor:             NewMonitor(),
		solver:              solver,
	}, nil
}

// AddNewDelivery admits a delivery: records it in the active table and
// schedules its creation, ready and pickup-deadline events.
func (s *System) AddNewDelivery(d *Delivery) error {
	if _, exists := s.ActiveDeliveries[d.ID]; exists {
		return fmt.Errorf("delivery %s: %w", d.ID, ErrDuplicateDelivery)
	}
	if _, exists := s.CompletedDeliveries[d.ID]; exists {
		return fmt.Errorf("delivery %s: %w", d.ID, ErrDuplicateDelivery)
	}
	s.ActiveDeliveries[d.ID] = d
	s.Events.Schedule(Event{Type: EventOrderCreated, Timestamp: d.CreatedAt, DeliveryID: d.ID})
	s.Events.Schedule(Event{Type: EventOrderReady, Timestamp: d.ReadyAt, DeliveryID: d.ID})
	s.Events.Schedule(Event{Type: EventPickupDeadline, Timestamp: d.Deadline, DeliveryID: d.ID})
	s.Monitor.DeliveriesCreated++
	logrus.Debugf("[%s] delivery %s admitted (ready %s, deadline %s)",
		s.clock(), d.ID, d.ReadyAt.Format("15:04"), d.Deadline.Format("15:04"))
	return nil
}

// CancelDelivery cancels a delivery that has not been dispatched yet.
func (s *System) CancelDelivery(id string) error {
	d, ok := s.ActiveDeliveries[id]
	if !ok {
		return fmt.Errorf("delivery %s: %w", id, ErrUnknownDelivery)
	}
	if err := d.TransitionTo(StatusCancelled); err != nil {
		return err
	}
	delete(s.ActiveDeliveries, id)
	s.CancelledCount++
	return nil
}

// AdvanceTime moves the simulation clock forward and drains every event due
// by the new instant. Returns the new time and the notifications produced.
func (s *System) AdvanceTime(minutes int) (time.Time, []Notification) {
	if minutes > 0 {
		s.SimulationTime = s.SimulationTime.Add(time.Duration(minutes) * time.Minute)
	}
	return s.SimulationTime, s.ProcessEventsDue()
}

// ProcessEventsDue drains all events whose timestamp is at or before the
// current simulation time, in (timestamp, id) order.
func (s *System) ProcessEventsDue() []Notification {
	var out []Notification
	for {
		ev := s.Events.PopIfDue(s.SimulationTime)
		if ev == nil {
			return out
		}
		s.EventsDrained++
		out = append(out, s.handleEvent(ev)...)
	}
}

// handleEvent applies one event. Stale or cancelled subjects silently skip;
// an unknown vehicle on a return event is logged and skipped, never fatal.
func (s *System) handleEvent(ev *Event) []Notification {
	switch ev.Type {
	case EventOrderCreated:
		logrus.Infof("[%s] order %s created", s.clock(), ev.DeliveryID)

	case EventOrderReady:
		d := s.ActiveDeliveries[ev.DeliveryID]
		if d != nil && d.Status == StatusPending {
			if err := d.TransitionTo(StatusReady); err == nil {
				logrus.Infof("[%s] order %s ready for pickup", s.clock(), d.ID)
			}
		}

	case EventPickupDeadline:
		d := s.ActiveDeliveries[ev.DeliveryID]
		if d != nil && !d.MarkedLate && (d.Status == StatusPending || d.Status == StatusReady) {
			d.MarkedLate = true
			s.Monitor.DeliveriesLate++
			logrus.Warnf("[%s] order %s missed its pickup deadline", s.clock(), d.ID)
		}

	case EventExpectedDelivery:
		d := s.ActiveDeliveries[ev.DeliveryID]
		if d != nil && d.Status == StatusDispatched {
			if err := d.TransitionTo(StatusDelivered); err != nil {
				logrus.Errorf("[%s] %v", s.clock(), err)
				return nil
			}
			delete(s.ActiveDeliveries, d.ID)
			s.CompletedDeliveries[d.ID] = d
			s.Monitor.DeliveriesCompleted++
			logrus.Infof("[%s] order %s delivered", s.clock(), d.ID)
			return []Notification{{Type: NotifyDeliveryCompleted, Data: d.Clone()}}
		}

	case EventVehicleReturn:
		v := s.Vehicles[ev.VehicleID]
		if v == nil {
			logrus.Errorf("[%s] return event for unknown vehicle %d, skipping", s.clock(), ev.VehicleID)
			return nil
		}
		v.CompleteRoute()
		logrus.Infof("[%s] vehicle %d returned to depot", s.clock(), v.ID)
		return []Notification{{Type: NotifyDriverReturned, Data: v.Clone()}}
	}
	return nil
}

// RoutingDecisionLogic runs one orchestration pass: gather eligible
// deliveries and idle vehicles, classify urgency, solve, apply the JIT delay
// and commit the resulting routes.
func (s *System) RoutingDecisionLogic() ([]Notification, error) {
	eligible := lo.Filter(lo.Values(s.ActiveDeliveries), func(d *Delivery, _ int) bool {
		if d.Status == StatusReady {
			return true
		}
		return s.Config.GatherPending && d.Status == StatusPending
	})
	available := lo.Filter(lo.Values(s.Vehicles), func(v *Vehicle, _ int) bool {
		return v.Status == VehicleIdle
	})
	if len(eligible) == 0 || len(available) == 0 {
		return nil, nil
	}
	// lo.Values walks maps in random order; solvers must see a stable view so
	// identical runs under one seed commit identical routes.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	sort.Slice(available, func(i, j int) bool { return available[i].ID < available[j].ID })

	urgent := lo.CountBy(eligible, func(d *Delivery) bool {
		return d.Deadline.Sub(s.SimulationTime).Minutes() < s.Config.UrgencyWindowMinutes
	})
	useJIT := urgent == 0 && len(eligible) <= s.Config.UrgentReadyCountThreshold
	logrus.Debugf("[%s] routing pass: %d eligible, %d idle vehicles, %d urgent, jit=%v",
		s.clock(), len(eligible), len(available), urgent, useJIT)

	plans, err := s.solve(eligible, available)
	if err != nil {
		return nil, err
	}

	var out []Notification
	for _, vid := range sortedKeys(plans) {
		if n := s.commitPlan(vid, plans[vid], useJIT); n != nil {
			out = append(out, *n)
		}
	}
	return out, nil
}

// solve invokes the configured solver family on snapshot copies of the
// eligible deliveries and available vehicles.
func (s *System) solve(eligible []*Delivery, available []*Vehicle) (map[int]*Plan, error) {
	deliveries := lo.Map(eligible, func(d *Delivery, _ int) *Delivery { return d.Clone() })
	vehicles := lo.Map(available, func(v *Vehicle, _ int) *Vehicle { return v.Clone() })

	if s.solver.IsHybrid() {
		return s.solver.Hybrid().Solve(deliveries, vehicles, s.Depot)
	}

	groups := s.solver.TwoStage().Cluster(deliveries, vehicles, s.Depot)

	// Route each non-empty group off the core goroutine; results are merged
	// and applied back on the caller.
	plans := make(map[int]*Plan, len(groups))
	var mu sync.Mutex
	var g errgroup.Group
	for vid, group := range groups {
		if len(group) == 0 {
			continue
		}
		vid, group := vid, group
		g.Go(func() error {
			plan, err := s.solver.TwoStage().Route(group, s.Depot)
			if err != nil {
				return fmt.Errorf("routing vehicle %d: %w", vid, err)
			}
			mu.Lock()
			plans[vid] = plan
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// commitPlan applies the JIT policy to one plan and mutates vehicle and
// delivery state. A plan that references a vehicle or delivery no longer in a
// committable state is dropped whole; its deliveries stay eligible for the
// next pass.
func (s *System) commitPlan(vehicleID int, plan *Plan, useJIT bool) *Notification {
	if plan == nil || len(plan.Sequence) == 0 {
		return nil
	}
	vehicle := s.Vehicles[vehicleID]
	if vehicle == nil || vehicle.Status != VehicleIdle {
		logrus.Warnf("[%s] dropping plan for vehicle %d: not idle", s.clock(), vehicleID)
		return nil
	}
	if plan.TotalSize() > vehicle.Capacity {
		logrus.Warnf("[%s] dropping plan for vehicle %d: load %d exceeds capacity %d",
			s.clock(), vehicleID, plan.TotalSize(), vehicle.Capacity)
		return nil
	}

	// Resolve snapshot stops back to live deliveries before mutating anything.
	live := make([]*Delivery, 0, len(plan.Sequence))
	for _, node := range plan.Sequence {
		snap, ok := plan.NodeMap[node]
		if !ok {
			logrus.Warnf("[%s] dropping plan for vehicle %d: node %d missing from node map",
				s.clock(), vehicleID, node)
			return nil
		}
		d := s.ActiveDeliveries[snap.ID]
		if d == nil || !s.dispatchable(d) {
			logrus.Warnf("[%s] dropping plan for vehicle %d: delivery %s no longer eligible",
				s.clock(), vehicleID, snap.ID)
			return nil
		}
		live = append(live, d)
	}

	delay := 0.0
	if useJIT {
		usable := (plan.MinSlack() - s.Config.DispatchDelayBufferMinutes) * s.Config.SlackUsageRatio
		if usable > 0 {
			plan.Shift(time.Duration(usable * float64(time.Minute)))
			delay = usable
		}
	}

	routeIDs := make([]string, 0, len(live))
	for i, node := range plan.Sequence {
		d := live[i]
		if d.Status == StatusPending {
			// GatherPending mode: promote through READY so the transition
			// chain stays monotone.
			if err := d.TransitionTo(StatusReady); err != nil {
				logrus.Errorf("[%s] %v", s.clock(), err)
				continue
			}
		}
		if err := d.TransitionTo(StatusDispatched); err != nil {
			logrus.Errorf("[%s] %v", s.clock(), err)
			continue
		}
		vid := vehicleID
		d.AssignedVehicleID = &vid
		s.Events.Schedule(Event{Type: EventExpectedDelivery, Timestamp: plan.Arrivals[node], DeliveryID: d.ID})
		routeIDs = append(routeIDs, d.ID)
	}

	vehicle.BeginRoute(routeIDs, plan.ReturnDepot)
	s.Events.Schedule(Event{Type: EventVehicleReturn, Timestamp: plan.ReturnDepot, VehicleID: vehicleID})
	s.Monitor.PenaltyIncurred += plan.TotalPenalty
	s.Monitor.RouteTimeMinutes += plan.TotalRouteTime

	logrus.Infof("[%s] vehicle %d dispatched with %d stops, departs %s, back %s (jit delay %.1f min)",
		s.clock(), vehicleID, len(routeIDs),
		plan.StartTime.Format("15:04"), plan.ReturnDepot.Format("15:04"), delay)

	return &Notification{Type: NotifyDriverDispatched, Data: DispatchRecord{
		VehicleID:      vehicleID,
		DeliveryIDs:    routeIDs,
		StartTime:      plan.StartTime,
		ReturnDepot:    plan.ReturnDepot,
		TotalPenalty:   plan.TotalPenalty,
		TotalRouteTime: plan.TotalRouteTime,
		UsedJIT:        useJIT && delay > 0,
		DelayMinutes:   delay,
	}}
}

func (s *System) dispatchable(d *Delivery) bool {
	if d.Status == StatusReady {
		return true
	}
	return s.Config.GatherPending && d.Status == StatusPending
}

// RoutesSnapshot returns the current route of every vehicle, with delivery
// details resolved, ordered by vehicle id.
func (s *System) RoutesSnapshot() []RouteStatus {
	out := make([]RouteStatus, 0, len(s.Vehicles))
	for _, vid := range sortedKeys(s.Vehicles) {
		v := s.Vehicles[vid]
		route := make([]*Delivery, 0, len(v.CurrentRoute))
		for _, id := range v.CurrentRoute {
			if d := s.lookupDelivery(id); d != nil {
				route = append(route, d.Clone())
			}
		}
		rs := RouteStatus{VehicleID: v.ID, Status: v.Status, CurrentRoute: route}
		if v.RouteEndTime != nil {
			t := *v.RouteEndTime
			rs.RouteEndTime = &t
		}
		out = append(out, rs)
	}
	return out
}

// VehiclesSnapshot lists the fleet ordered by id.
func (s *System) VehiclesSnapshot() []*Vehicle {
	out := make([]*Vehicle, 0, len(s.Vehicles))
	for _, vid := range sortedKeys(s.Vehicles) {
		out = append(out, s.Vehicles[vid].Clone())
	}
	return out
}

// ActiveCount returns the number of deliveries not yet delivered or
// cancelled.
func (s *System) ActiveCount() int { return len(s.ActiveDeliveries) }

func (s *System) lookupDelivery(id string) *Delivery {
	if d, ok := s.ActiveDeliveries[id]; ok {
		return d
	}
	return s.CompletedDeliveries[id]
}

func (s *System) clock() string {
	return s.SimulationTime.Format("15:04")
}

func sortedKeys[V any](m map[int]V) []int {
	keys := lo.Keys(m)
	sort.Ints(keys)
	return keys
}
