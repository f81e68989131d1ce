package dispatch

import (
	"fmt"
	"time"
)

// DeliveryStatus tracks a delivery through its lifecycle. Transitions are
// monotone along PENDING -> READY -> DISPATCHED -> DELIVERED, with CANCELLED
// as a terminal alternative reachable from PENDING or READY.
type DeliveryStatus string

const (
	StatusPending    DeliveryStatus = "pending"
	StatusReady      DeliveryStatus = "ready"
	StatusDispatched DeliveryStatus = "dispatched"
	StatusDelivered  DeliveryStatus = "delivered"
	StatusCancelled  DeliveryStatus = "cancelled"
)

// validTransitions encodes the delivery state machine.
var validTransitions = map[DeliveryStatus][]DeliveryStatus{
	StatusPending:    {StatusReady, StatusCancelled},
	StatusReady:      {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// Delivery is a single delivery request. Preparation and Window are durations
// in minutes relative to creation: the delivery becomes ready for pickup
// Preparation minutes after CreatedAt, and its deadline falls Window minutes
// after it is ready.
type Delivery struct {
	ID          string `json:"id"`
	Point       Point  `json:"point"`
	Size        int    `json:"size"`
	Preparation int    `json:"preparation"`
	Window      int    `json:"time"`

	CreatedAt time.Time `json:"created_at"`
	ReadyAt   time.Time `json:"ready_at"`
	Deadline  time.Time `json:"deadline"`

	Status            DeliveryStatus `json:"status"`
	AssignedVehicleID *int           `json:"assigned_vehicle_id,omitempty"`

	// MarkedLate is a monotone latch: set once when the deadline passes
	// before dispatch, never cleared.
	MarkedLate bool `json:"marked_late"`

	// ServiceMinutes is the on-site handling time at the stop.
	ServiceMinutes float64 `json:"-"`
}

// NewDelivery builds a delivery created at the given instant, deriving the
// absolute ready and deadline instants from the minute durations.
func NewDelivery(id string, pt Point, size, preparation, window int, createdAt time.Time) (*Delivery, error) {
	if id == "" {
		return nil, fmt.Errorf("delivery id must not be empty")
	}
	if size <= 0 {
		return nil, fmt.Errorf("delivery %s: size must be positive, got %d", id, size)
	}
	if preparation <= 0 {
		return nil, fmt.Errorf("delivery %s: preparation must be positive, got %d", id, preparation)
	}
	if window <= 0 {
		return nil, fmt.Errorf("delivery %s: time window must be positive, got %d", id, window)
	}
	createdAt = createdAt.UTC()
	ready := createdAt.Add(time.Duration(preparation) * time.Minute)
	return &Delivery{
		ID:          id,
		Point:       pt,
		Size:        size,
		Preparation: preparation,
		Window:      window,
		CreatedAt:   createdAt,
		ReadyAt:     ready,
		Deadline:    ready.Add(time.Duration(window) * time.Minute),
		Status:      StatusPending,
	}, nil
}

// TransitionTo advances the delivery status, rejecting any move the state
// machine does not allow.
func (d *Delivery) TransitionTo(next DeliveryStatus) error {
	for _, allowed := range validTransitions[d.Status] {
		if allowed == next {
			d.Status = next
			return nil
		}
	}
	return fmt.Errorf("delivery %s: invalid status transition %s -> %s", d.ID, d.Status, next)
}

// Terminal reports whether the delivery has reached a final state.
func (d *Delivery) Terminal() bool {
	return d.Status == StatusDelivered || d.Status == StatusCancelled
}

// Clone returns a copy for handing to solvers. Solvers work on snapshots and
// never see the live delivery table.
func (d *Delivery) Clone() *Delivery {
	cp := *d
	if d.AssignedVehicleID != nil {
		v := *d.AssignedVehicleID
		cp.AssignedVehicleID = &v
	}
	return &cp
}
