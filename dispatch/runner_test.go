package dispatch

import (
	"testing"
	"time"
)

func TestRunner_ReplaysScheduleToCompletion(t *testing.T) {
	// GIVEN two deliveries created at different instants
	cfg := hybridConfig()
	cfg.UrgentReadyCountThreshold = 0
	sys := newTestSystem(t, cfg, NewVehicle(1, 10))

	d1, _ := NewDelivery("a", Point{Lng: 0.1}, 1, 5, 60, sysBase)
	d2, _ := NewDelivery("b", Point{Lng: 0.1}, 1, 5, 60, sysBase.Add(40*time.Minute))

	// WHEN replaying over a horizon that covers both lifecycles
	r := NewRunner(sys, sysBase.Add(3*time.Hour), []*Delivery{d2, d1})
	monitor := r.Run()

	// THEN both are admitted when their creation time comes and both complete
	if monitor.DeliveriesCreated != 2 {
		t.Errorf("created: got %d, want 2", monitor.DeliveriesCreated)
	}
	if monitor.DeliveriesCompleted != 2 {
		t.Errorf("completed: got %d, want 2", monitor.DeliveriesCompleted)
	}
	if monitor.DeliveriesLate != 0 {
		t.Errorf("late: got %d, want 0", monitor.DeliveriesLate)
	}
	if sys.ActiveCount() != 0 {
		t.Errorf("active after horizon: got %d, want 0", sys.ActiveCount())
	}
}

func TestRunner_InjectsInCreationOrder(t *testing.T) {
	cfg := hybridConfig()
	sys := newTestSystem(t, cfg, NewVehicle(1, 10))

	early, _ := NewDelivery("early", Point{Lng: 0.1}, 1, 5, 60, sysBase)
	late, _ := NewDelivery("late", Point{Lng: 0.1}, 1, 5, 60, sysBase.Add(30*time.Minute))

	// schedule handed over out of order
	r := NewRunner(sys, sysBase.Add(10*time.Minute), []*Delivery{late, early})
	r.Run()

	// only the early delivery falls inside the short horizon
	if sys.Monitor.DeliveriesCreated != 1 {
		t.Errorf("created: got %d, want 1", sys.Monitor.DeliveriesCreated)
	}
	if _, ok := sys.ActiveDeliveries["early"]; !ok {
		t.Error("early delivery not admitted")
	}
}
