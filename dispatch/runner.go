// The simulation driver: advances the clock one step at a time, injects
// scheduled deliveries, drains due events and runs a routing pass per tick.

package dispatch

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner replays a delivery schedule against a System between two instants.
type Runner struct {
	System *System
	End    time.Time
	Step   time.Duration

	// schedule holds pending injections sorted by creation time.
	schedule []*Delivery
}

// NewRunner builds a driver over the given horizon. Deliveries are injected
// when the clock reaches their CreatedAt. Step defaults to one minute.
func NewRunner(sys *System, end time.Time, deliveries []*Delivery) *Runner {
	sorted := append([]*Delivery(nil), deliveries...)
	sortDeliveriesByCreation(sorted)
	return &Runner{
		System:   sys,
		End:      end.UTC(),
		Step:     time.Minute,
		schedule: sorted,
	}
}

// Run drives the simulation to the end instant and returns the monitor.
func (r *Runner) Run() *Monitor {
	sys := r.System
	logrus.Infof("simulation from %s to %s (%d scheduled deliveries)",
		sys.SimulationTime.Format(time.RFC3339), r.End.Format(time.RFC3339), len(r.schedule))

	for !sys.SimulationTime.After(r.End) {
		r.injectDue()
		sys.ProcessEventsDue()
		if _, err := sys.RoutingDecisionLogic(); err != nil {
			logrus.Errorf("[%s] routing pass failed: %v", sys.clock(), err)
		}
		sys.SimulationTime = sys.SimulationTime.Add(r.Step)
	}

	sys.Monitor.Log()
	return sys.Monitor
}

// injectDue admits every scheduled delivery whose creation time has come.
func (r *Runner) injectDue() {
	sys := r.System
	for len(r.schedule) > 0 && !r.schedule[0].CreatedAt.After(sys.SimulationTime) {
		d := r.schedule[0]
		r.schedule = r.schedule[1:]
		if err := sys.AddNewDelivery(d); err != nil {
			logrus.Warnf("[%s] skipping scheduled delivery: %v", sys.clock(), err)
		}
	}
}

func sortDeliveriesByCreation(ds []*Delivery) {
	sort.SliceStable(ds, func(i, j int) bool {
		return ds[i].CreatedAt.Before(ds[j].CreatedAt)
	})
}
