package solver

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

var clusterBase = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func testDelivery(t *testing.T, id string, pt dispatch.Point, size int) *dispatch.Delivery {
	t.Helper()
	d, err := dispatch.NewDelivery(id, pt, size, 5, 120, clusterBase)
	if err != nil {
		t.Fatalf("NewDelivery(%s): %v", id, err)
	}
	return d
}

func groupSizes(groups map[int][]*dispatch.Delivery) map[int]int {
	out := make(map[int]int, len(groups))
	for vid, group := range groups {
		for _, d := range group {
			out[vid] += d.Size
		}
	}
	return out
}

func totalAssigned(groups map[int][]*dispatch.Delivery) int {
	n := 0
	for _, group := range groups {
		n += len(group)
	}
	return n
}

func TestGreedyClustering_PacksFarthestFirst(t *testing.T) {
	// GIVEN deliveries at increasing depot distance and one roomy vehicle
	deliveries := []*dispatch.Delivery{
		testDelivery(t, "near", dispatch.Point{Lng: 0.1}, 1),
		testDelivery(t, "far", dispatch.Point{Lng: 0.5}, 1),
		testDelivery(t, "mid", dispatch.Point{Lng: 0.3}, 1),
	}
	vehicles := []*dispatch.Vehicle{dispatch.NewVehicle(1, 10)}

	groups := NewGreedyClustering(dispatch.MetricEuclidean).Cluster(deliveries, vehicles, dispatch.Point{})

	// THEN everything lands on the vehicle, farthest first
	group := groups[1]
	if len(group) != 3 {
		t.Fatalf("group size: got %d, want 3", len(group))
	}
	want := []string{"far", "mid", "near"}
	for i, id := range want {
		if group[i].ID != id {
			t.Errorf("group[%d]: got %s, want %s", i, group[i].ID, id)
		}
	}
}

func TestGreedyClustering_SpillsOverCapacity(t *testing.T) {
	// GIVEN two vehicles of capacity 5 and three size-3 deliveries
	deliveries := []*dispatch.Delivery{
		testDelivery(t, "a", dispatch.Point{Lng: 0.1}, 3),
		testDelivery(t, "b", dispatch.Point{Lng: 0.2}, 3),
		testDelivery(t, "c", dispatch.Point{Lng: 0.3}, 3),
	}
	vehicles := []*dispatch.Vehicle{dispatch.NewVehicle(1, 5), dispatch.NewVehicle(2, 5)}

	groups := NewGreedyClustering(dispatch.MetricEuclidean).Cluster(deliveries, vehicles, dispatch.Point{})

	// THEN each vehicle carries at most its capacity and one delivery is left
	sizes := groupSizes(groups)
	for vid, size := range sizes {
		if size > 5 {
			t.Errorf("vehicle %d overloaded: %d", vid, size)
		}
	}
	if got := totalAssigned(groups); got != 2 {
		t.Errorf("assigned: got %d, want 2", got)
	}
}

func TestGreedyClustering_EmptyInputs(t *testing.T) {
	g := NewGreedyClustering(dispatch.MetricEuclidean)
	if groups := g.Cluster(nil, []*dispatch.Vehicle{dispatch.NewVehicle(1, 5)}, dispatch.Point{}); groups != nil {
		t.Errorf("no deliveries: got %v, want nil", groups)
	}
	if groups := g.Cluster([]*dispatch.Delivery{testDelivery(t, "a", dispatch.Point{}, 1)}, nil, dispatch.Point{}); groups != nil {
		t.Errorf("no vehicles: got %v, want nil", groups)
	}
}

// two tight blobs around (0,0) and (1,1)
func twoBlobs(t *testing.T) []*dispatch.Delivery {
	t.Helper()
	return []*dispatch.Delivery{
		testDelivery(t, "a1", dispatch.Point{Lng: 0.01, Lat: 0.00}, 1),
		testDelivery(t, "a2", dispatch.Point{Lng: 0.00, Lat: 0.01}, 1),
		testDelivery(t, "a3", dispatch.Point{Lng: 0.01, Lat: 0.01}, 1),
		testDelivery(t, "b1", dispatch.Point{Lng: 1.01, Lat: 1.00}, 1),
		testDelivery(t, "b2", dispatch.Point{Lng: 1.00, Lat: 1.01}, 1),
		testDelivery(t, "b3", dispatch.Point{Lng: 1.01, Lat: 1.01}, 1),
	}
}

func TestCKMeansClustering_SeparatesGeographicBlobs(t *testing.T) {
	// GIVEN six deliveries in two well-separated blobs and two vehicles
	deliveries := twoBlobs(t)
	vehicles := []*dispatch.Vehicle{dispatch.NewVehicle(1, 10), dispatch.NewVehicle(2, 10)}

	c := NewCKMeansClustering(dispatch.MetricEuclidean, rand.New(rand.NewSource(1)))
	groups := c.Cluster(deliveries, vehicles, dispatch.Point{})

	// THEN every delivery is assigned and no group mixes the blobs
	if got := totalAssigned(groups); got != 6 {
		t.Fatalf("assigned: got %d, want 6", got)
	}
	for vid, group := range groups {
		for _, d := range group {
			if math.Abs(d.Point.Lng-group[0].Point.Lng) > 0.5 {
				t.Errorf("vehicle %d mixes blobs: %s with %s", vid, group[0].ID, d.ID)
			}
		}
	}
}

func TestCKMeansClustering_DeterministicUnderSeed(t *testing.T) {
	deliveries := twoBlobs(t)
	vehicles := []*dispatch.Vehicle{dispatch.NewVehicle(1, 10), dispatch.NewVehicle(2, 10)}

	run := func() map[int][]*dispatch.Delivery {
		c := NewCKMeansClustering(dispatch.MetricEuclidean, rand.New(rand.NewSource(7)))
		return c.Cluster(deliveries, vehicles, dispatch.Point{})
	}
	first, second := run(), run()

	for vid, group := range first {
		other := second[vid]
		if len(group) != len(other) {
			t.Fatalf("vehicle %d: group sizes differ (%d vs %d)", vid, len(group), len(other))
		}
		for i := range group {
			if group[i].ID != other[i].ID {
				t.Errorf("vehicle %d pos %d: %s vs %s", vid, i, group[i].ID, other[i].ID)
			}
		}
	}
}

func TestCKMeansClustering_RespectsLiftedCapacity(t *testing.T) {
	// GIVEN total load 12 over two vehicles of capacity 5: the per-cluster
	// capacity lifts to ceil(12/2) = 6 so the instance stays feasible
	deliveries := []*dispatch.Delivery{
		testDelivery(t, "a", dispatch.Point{Lng: 0.01}, 3),
		testDelivery(t, "b", dispatch.Point{Lng: 0.02}, 3),
		testDelivery(t, "c", dispatch.Point{Lng: 1.01}, 6),
	}
	vehicles := []*dispatch.Vehicle{dispatch.NewVehicle(1, 5), dispatch.NewVehicle(2, 5)}

	c := NewCKMeansClustering(dispatch.MetricEuclidean, rand.New(rand.NewSource(3)))
	groups := c.Cluster(deliveries, vehicles, dispatch.Point{})

	for vid, size := range groupSizes(groups) {
		if size > 6 {
			t.Errorf("vehicle %d over lifted capacity: %d", vid, size)
		}
	}
	if got := totalAssigned(groups); got != 3 {
		t.Errorf("assigned: got %d, want 3", got)
	}
}

func TestCKMeansClustering_FewerDeliveriesThanVehicles(t *testing.T) {
	deliveries := []*dispatch.Delivery{testDelivery(t, "only", dispatch.Point{Lng: 0.1}, 1)}
	vehicles := []*dispatch.Vehicle{dispatch.NewVehicle(1, 5), dispatch.NewVehicle(2, 5), dispatch.NewVehicle(3, 5)}

	c := NewCKMeansClustering(dispatch.MetricEuclidean, rand.New(rand.NewSource(1)))
	groups := c.Cluster(deliveries, vehicles, dispatch.Point{})

	if got := totalAssigned(groups); got != 1 {
		t.Errorf("assigned: got %d, want 1", got)
	}
}
