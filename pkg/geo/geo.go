// Package geo provides great-circle distance math and a grid-bucket spatial
// index sized for city-scale radius lookups.
package geo

import "math"

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

const (
	earthRadiusMeters = 6371000
	metersPerDegree   = 111320
)

// Valid reports whether the point's coordinates are on the globe.  Directory
// feeds occasionally carry zeroed or garbage coordinates; callers skip those
// rather than failing a whole build.
func Valid(p Point) bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180 &&
		!(p.Latitude == 0 && p.Longitude == 0)
}

// Distance returns the great-circle distance between two points in meters
// using the Haversine formula.
func Distance(p1, p2 Point) float64 {
	if p1.Latitude == p2.Latitude && p1.Longitude == p2.Longitude {
		return 0
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
