// Package place resolves candidate stay-point centroids against the user's
// existing significant places. The geometry tests are pure functions so the
// "is this an existing place?" decision is testable without a store.
package place

import (
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// Resolution is the outcome of resolving one centroid.
type Resolution struct {
	// Existing is the matched place, nil when a new one is needed.
	Existing *models.SignificantPlace
	// NewPlace describes the place to create when Existing is nil.
	NewPlace *models.SignificantPlace
}

// Resolve picks an existing place for the centroid or describes a new one.
// A candidate resolves to an existing place when the centroid lies inside
// its polygon, or when its centroid is within toleranceMeters; polygon
// containment wins over proximity, and among proximity matches the nearest
// place wins.
func Resolve(userID int64, lat, lon, toleranceMeters float64, candidates []models.SignificantPlace) Resolution {
	for i := range candidates {
		if Contains(&candidates[i], lat, lon) {
			return Resolution{Existing: &candidates[i]}
		}
	}

	var nearest *models.SignificantPlace
	nearestDist := toleranceMeters
	for i := range candidates {
		c := &candidates[i]
		d := spatial.Distance(c.Latitude, c.Longitude, lat, lon)
		if d <= nearestDist {
			nearest = c
			nearestDist = d
		}
	}
	if nearest != nil {
		return Resolution{Existing: nearest}
	}

	return Resolution{NewPlace: &models.SignificantPlace{
		UserID:    userID,
		Latitude:  lat,
		Longitude: lon,
		PlaceType: models.PlaceTypeUnknown,
	}}
}

// Contains reports whether the point lies inside the place's polygon.
// Places without a polygon never contain anything; they resolve by radius.
func Contains(p *models.SignificantPlace, lat, lon float64) bool {
	if len(p.Polygon) < 3 {
		return false
	}
	ring := make([]spatial.Point, len(p.Polygon))
	for i, v := range p.Polygon {
		ring[i] = spatial.Point{Lat: v.Lat, Lon: v.Lon}
	}
	return spatial.PointInPolygon(spatial.Point{Lat: lat, Lon: lon}, ring)
}
