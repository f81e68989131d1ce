// Geodesic points and the distance / travel-time tables shared by every solver.

package dispatch

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point is a location on earth in decimal degrees. Immutable by convention.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// DistanceMetric selects how pairwise distances are computed.
type DistanceMetric string

const (
	// MetricEuclidean measures straight-line distance in degree space scaled
	// by 100, which approximates kilometers at low latitudes. It is the
	// default metric for clustering and routing.
	MetricEuclidean DistanceMetric = "euclidean"

	// MetricHaversine measures great-circle distance in kilometers.
	MetricHaversine DistanceMetric = "haversine"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Euclidean returns the degree-space distance between a and b scaled by 100.
func Euclidean(a, b Point) float64 {
	dLng := a.Lng - b.Lng
	dLat := a.Lat - b.Lat
	return math.Hypot(dLng, dLat) * 100
}

func distance(a, b Point, metric DistanceMetric) float64 {
	if metric == MetricHaversine {
		return Haversine(a, b)
	}
	return Euclidean(a, b)
}

// DistanceMatrix computes the pairwise distance table for points under the
// given metric. The result is symmetric with a zero diagonal.
func DistanceMatrix(points []Point, metric DistanceMetric) *mat.Dense {
	n := len(points)
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := distance(points[i], points[j], metric)
			m.Set(i, j, d)
			m.Set(j, i, d)
		}
	}
	return m
}

// TimeMatrix converts a distance table (km) into a travel-time table in
// minutes at the given average speed.
func TimeMatrix(distances *mat.Dense, avgSpeedKmh float64) *mat.Dense {
	r, c := distances.Dims()
	m := mat.NewDense(r, c, nil)
	m.Scale(60.0/avgSpeedKmh, distances)
	return m
}

// TravelTimes builds the travel-time table for a depot plus deliveries. The
// depot occupies index 0; delivery i occupies index i+1.
func TravelTimes(depot Point, deliveries []*Delivery, avgSpeedKmh float64, metric DistanceMetric) *mat.Dense {
	points := make([]Point, 0, len(deliveries)+1)
	points = append(points, depot)
	for _, d := range deliveries {
		points = append(points, d.Point)
	}
	return TimeMatrix(DistanceMatrix(points, metric), avgSpeedKmh)
}

// DepotDistances returns the distance from the depot to each delivery.
func DepotDistances(depot Point, deliveries []*Delivery, metric DistanceMetric) []float64 {
	out := make([]float64, len(deliveries))
	for i, d := range deliveries {
		out[i] = distance(depot, d.Point, metric)
	}
	return out
}
