package dispatch

import "time"

// VehicleStatus is the vehicle lifecycle: at the depot or executing a route.
type VehicleStatus string

const (
	VehicleIdle    VehicleStatus = "idle"
	VehicleOnRoute VehicleStatus = "on_route"
)

// Vehicle is one member of the fleet. CurrentRoute holds the ordered delivery
// ids committed to it and is empty iff the vehicle is idle. RouteEndTime is
// set iff the vehicle is on route.
type Vehicle struct {
	ID           int           `json:"id"`
	Capacity     int           `json:"capacity"`
	Status       VehicleStatus `json:"status"`
	CurrentRoute []string      `json:"current_route"`
	RouteEndTime *time.Time    `json:"route_end_time,omitempty"`
}

// NewVehicle registers a vehicle at the depot.
func NewVehicle(id, capacity int) *Vehicle {
	return &Vehicle{ID: id, Capacity: capacity, Status: VehicleIdle}
}

// Clone returns a snapshot copy for solvers.
func (v *Vehicle) Clone() *Vehicle {
	cp := *v
	cp.CurrentRoute = append([]string(nil), v.CurrentRoute...)
	if v.RouteEndTime != nil {
		t := *v.RouteEndTime
		cp.RouteEndTime = &t
	}
	return &cp
}

// BeginRoute moves the vehicle onto a committed route.
func (v *Vehicle) BeginRoute(route []string, end time.Time) {
	v.Status = VehicleOnRoute
	v.CurrentRoute = route
	v.RouteEndTime = &end
}

// CompleteRoute returns the vehicle to the depot.
func (v *Vehicle) CompleteRoute() {
	v.Status = VehicleIdle
	v.CurrentRoute = nil
	v.RouteEndTime = nil
}
