package pipeline

import (
	"context"
	"fmt"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/place"
)

// RawVisit is a detected (place, time range) pair before merging.
type RawVisit struct {
	PlaceID   int64
	StartTime int64
	EndTime   int64
}

// PlaceEvents receives fire-and-forget place lifecycle events. Geocoding is
// handled out of band; publishing must never block the pipeline.
type PlaceEvents interface {
	PlaceCreated(userID, placeID int64, lat, lon float64)
}

// VisitDetector resolves stay points to significant places and emits one
// raw visit per stay point. Merging across stay points is the VisitMerger's
// job, which also sees the pre-existing visit history.
type VisitDetector struct {
	params models.DetectionParameters
	places PlaceStore
	events PlaceEvents
}

// NewVisitDetector creates a detector.
func NewVisitDetector(params models.DetectionParameters, places PlaceStore, events PlaceEvents) *VisitDetector {
	return &VisitDetector{params: params, places: places, events: events}
}

// Detect resolves each stay point and returns the raw visits in input order.
// New places are created with geocoding deferred to the event consumer.
func (d *VisitDetector) Detect(ctx context.Context, userID int64, stays []StayPoint) ([]RawVisit, error) {
	visits := make([]RawVisit, 0, len(stays))

	for _, s := range stays {
		placeID, err := d.resolvePlace(ctx, userID, s.Latitude, s.Longitude)
		if err != nil {
			return nil, err
		}
		visits = append(visits, RawVisit{
			PlaceID:   placeID,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}

	return visits, nil
}

// resolvePlace finds the existing place containing or nearest to the
// centroid, creating one when nothing is within the search distance.
func (d *VisitDetector) resolvePlace(ctx context.Context, userID int64, lat, lon float64) (int64, error) {
	// Search wide enough to find polygon places whose centroid sits away
	// from the stay centroid.
	searchRadius := d.params.SearchDistanceMeters * 4
	candidates, err := d.places.FindNearby(ctx, userID, lat, lon, searchRadius)
	if err != nil {
		return 0, fmt.Errorf("failed to find nearby places: %w", err)
	}

	res := place.Resolve(userID, lat, lon, d.params.SearchDistanceMeters, candidates)
	if res.Existing != nil {
		return res.Existing.ID, nil
	}

	if err := d.places.Create(ctx, res.NewPlace); err != nil {
		return 0, fmt.Errorf("failed to create place: %w", err)
	}
	if d.events != nil {
		d.events.PlaceCreated(userID, res.NewPlace.ID, lat, lon)
	}
	return res.NewPlace.ID, nil
}
