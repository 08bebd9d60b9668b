package spatial

import (
	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)

// Distance calculates the great-circle distance between two points in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// SpeedKmh computes the implied speed between two fixes in km/h. Returns 0
// when the time delta is not positive.
func SpeedKmh(lat1, lon1 float64, t1 int64, lat2, lon2 float64, t2 int64) float64 {
	dt := t2 - t1
	if dt <= 0 {
		return 0
	}
	meters := Distance(lat1, lon1, lat2, lon2)
	return meters / float64(dt) * 3.6
}

// Interpolate returns the point at the given fraction along the segment from
// (lat1, lon1) to (lat2, lon2). Fraction 0 is the first point, 1 the second.
// Plain linear interpolation: the normalizer only bridges short gaps, where
// the great-circle correction is far below GPS accuracy.
func Interpolate(fraction, lat1, lon1, lat2, lon2 float64) (float64, float64) {
	return lat1 + (lat2-lat1)*fraction, lon1 + (lon2-lon1)*fraction
}
