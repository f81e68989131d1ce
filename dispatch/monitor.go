package dispatch

import "github.com/sirupsen/logrus"

// Monitor aggregates fleet-wide counters for final reporting and for the
// admin endpoint.
type Monitor struct {
	DeliveriesCreated   int     `json:"created"`
	DeliveriesCompleted int     `json:"completed"`
	DeliveriesLate      int     `json:"late"`
	PenaltyIncurred     int     `json:"penalty"`
	RouteTimeMinutes    float64 `json:"route_time_minutes"`
}

// NewMonitor returns zeroed counters.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// AveragePenaltyPerDelivery is the accumulated penalty over completed
// deliveries, zero when nothing completed yet.
func (m *Monitor) AveragePenaltyPerDelivery() float64 {
	if m.DeliveriesCompleted == 0 {
		return 0
	}
	return float64(m.PenaltyIncurred) / float64(m.DeliveriesCompleted)
}

// Log writes a summary of the counters.
func (m *Monitor) Log() {
	logrus.Infof("=== Dispatch Monitor ===")
	logrus.Infof("Deliveries created   : %d", m.DeliveriesCreated)
	logrus.Infof("Deliveries completed : %d", m.DeliveriesCompleted)
	logrus.Infof("Deliveries late      : %d", m.DeliveriesLate)
	logrus.Infof("Penalty incurred     : %d", m.PenaltyIncurred)
	logrus.Infof("Avg penalty/delivery : %.2f", m.AveragePenaltyPerDelivery())
	logrus.Infof("Route time (min)     : %.2f", m.RouteTimeMinutes)
}
