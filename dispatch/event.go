package dispatch

import (
	"fmt"
	"time"
)

// EventType discriminates scheduled simulation events. Handlers dispatch on
// this tag with a typed switch.
type EventType string

const (
	EventOrderCreated     EventType = "order_created"
	EventOrderReady       EventType = "order_ready"
	EventPickupDeadline   EventType = "pickup_deadline"
	EventExpectedDelivery EventType = "expected_delivery"
	EventVehicleReturn    EventType = "vehicle_return"
)

// Event is a scheduled occurrence on the simulation timeline. DeliveryID is
// set for the four delivery-lifecycle types; VehicleID for vehicle returns.
// IDs are assigned monotonically by the queue, so two events sharing a
// timestamp drain in scheduling order.
type Event struct {
	ID         int64     `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	DeliveryID string    `json:"delivery_id,omitempty"`
	VehicleID  int       `json:"vehicle_id,omitempty"`
}

func (e *Event) String() string {
	subject := e.DeliveryID
	if e.Type == EventVehicleReturn {
		subject = fmt.Sprintf("vehicle %d", e.VehicleID)
	}
	return fmt.Sprintf("Event(id=%d, type=%s, subject=%s, at=%s)",
		e.ID, e.Type, subject, e.Timestamp.Format("15:04"))
}
