// Loader for historic CVRP instance fixtures. Instance files carry delivery
// requests with minute offsets from an arbitrary day start; Rebase anchors
// them onto a concrete wall-clock instant for replay.

package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// InstanceDelivery is one request in a fixture file. Timestamp, Preparation
// and Time are minutes: Timestamp from the instance base instant, the other
// two relative to creation as in the live API.
type InstanceDelivery struct {
	ID          string `json:"id"`
	Point       Point  `json:"point"`
	Size        int    `json:"size"`
	Preparation int    `json:"preparation"`
	Time        int    `json:"time"`
	Timestamp   int    `json:"timestamp"`
}

// CVRPInstance is a historic problem instance: a depot and a day of requests.
type CVRPInstance struct {
	Name            string             `json:"name"`
	Region          string             `json:"region"`
	Origin          Point              `json:"origin"`
	VehicleCapacity int                `json:"vehicle_capacity"`
	Deliveries      []InstanceDelivery `json:"deliveries"`
}

// LoadInstance reads a CVRP instance from a JSON fixture file.
func LoadInstance(path string) (*CVRPInstance, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", path, err)
	}
	var inst CVRPInstance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, fmt.Errorf("instance %s: %w", path, err)
	}
	return &inst, nil
}

// Rebase converts the instance's minute-offset requests into deliveries
// anchored at the given base instant, sorted by creation time. Requests that
// fail validation are dropped with the error of the first one reported.
func (inst *CVRPInstance) Rebase(base time.Time) ([]*Delivery, error) {
	base = base.UTC()
	out := make([]*Delivery, 0, len(inst.Deliveries))
	var firstErr error
	for _, req := range inst.Deliveries {
		created := base.Add(time.Duration(req.Timestamp) * time.Minute)
		d, err := NewDelivery(req.ID, req.Point, req.Size, req.Preparation, req.Time, created)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, d)
	}
	sortDeliveriesByCreation(out)
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
