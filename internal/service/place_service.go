package service

import (
	"context"
	"log"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
	"github.com/wandermap/timeline-backend-go/internal/repository"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// PlaceService handles user-facing place management. Geometry edits tear
// down the place's timeline entries and reprocess the affected history.
type PlaceService struct {
	places *repository.PlaceRepository
	queue  *pipeline.JobQueue
}

// NewPlaceService creates a new place service
func NewPlaceService(places *repository.PlaceRepository, queue *pipeline.JobQueue) *PlaceService {
	return &PlaceService{places: places, queue: queue}
}

// List returns all places of a user.
func (s *PlaceService) List(ctx context.Context, userID int64) ([]models.SignificantPlace, error) {
	return s.places.ListByUser(ctx, userID)
}

// Get returns one place, nil when unknown.
func (s *PlaceService) Get(ctx context.Context, userID, id int64) (*models.SignificantPlace, error) {
	return s.places.GetByID(ctx, userID, id)
}

// Update applies a user edit. Renames are cheap; moving the centroid or
// replacing the polygon invalidates the visits built against the old
// geometry, so those days are cleaned up and queued for reprocessing.
func (s *PlaceService) Update(ctx context.Context, userID, id int64, update models.PlaceUpdate) (*models.SignificantPlace, error) {
	place, err := s.places.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if place == nil {
		return nil, nil
	}

	if update.Name != nil {
		place.Name = *update.Name
		// A user-chosen name is final, no geocoding overwrite.
		place.Geocoded = true
	}
	if update.PlaceType != nil {
		place.PlaceType = *update.PlaceType
	}
	if update.Latitude != nil {
		place.Latitude = *update.Latitude
	}
	if update.Longitude != nil {
		place.Longitude = *update.Longitude
	}
	if len(update.Polygon) > 0 {
		place.Polygon = update.Polygon
		// A polygon edit without an explicit centroid recenters the
		// place on the polygon's bounding box.
		if update.Latitude == nil && update.Longitude == nil {
			ring := make([]spatial.Point, len(update.Polygon))
			for i, v := range update.Polygon {
				ring[i] = spatial.Point{Lat: v.Lat, Lon: v.Lon}
			}
			minLat, minLon, maxLat, maxLon := spatial.BoundingBox(ring)
			place.Latitude = (minLat + maxLat) / 2
			place.Longitude = (minLon + maxLon) / 2
		}
	}

	if err := s.places.Update(ctx, place); err != nil {
		return nil, err
	}

	if update.GeometryChanged() {
		// Cleanup goes through the queue so it serializes with any
		// pipeline run already in flight for this user.
		job := s.queue.EnqueueCleanup(userID, id)
		log.Printf("[Place] user %d: geometry edit on place %d queued cleanup %s", userID, id, job.ID)
	}
	return place, nil
}
