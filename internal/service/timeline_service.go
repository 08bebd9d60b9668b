package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/repository"
)

// TimelineService assembles the user-facing timeline from visits and trips.
type TimelineService struct {
	timeline *repository.TimelineRepository
	places   *repository.PlaceRepository
}

// NewTimelineService creates a new timeline service
func NewTimelineService(timeline *repository.TimelineRepository, places *repository.PlaceRepository) *TimelineService {
	return &TimelineService{timeline: timeline, places: places}
}

// GetTimeline returns visits and trips overlapping the filter range, merged
// and ordered by start time, with visit places resolved.
func (s *TimelineService) GetTimeline(ctx context.Context, userID int64, filter models.TimelineFilter) ([]models.TimelineEntry, error) {
	visits, err := s.timeline.VisitsInRange(ctx, userID, filter.StartTime, filter.EndTime)
	if err != nil {
		return nil, err
	}
	trips, err := s.timeline.TripsInRange(ctx, userID, filter.StartTime, filter.EndTime)
	if err != nil {
		return nil, err
	}

	placeCache := make(map[int64]*models.SignificantPlace)
	resolvePlace := func(id int64) (*models.SignificantPlace, error) {
		if p, ok := placeCache[id]; ok {
			return p, nil
		}
		p, err := s.places.GetByID(ctx, userID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve place %d: %w", id, err)
		}
		placeCache[id] = p
		return p, nil
	}

	entries := make([]models.TimelineEntry, 0, len(visits)+len(trips))
	for i := range visits {
		v := visits[i]
		place, err := resolvePlace(v.PlaceID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.TimelineEntry{
			Kind:      models.TimelineEntryVisit,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Visit:     &v,
			Place:     place,
		})
	}
	for i := range trips {
		t := trips[i]
		entries = append(entries, models.TimelineEntry{
			Kind:      models.TimelineEntryTrip,
			StartTime: t.StartTime,
			EndTime:   t.EndTime,
			Trip:      &t,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartTime != entries[j].StartTime {
			return entries[i].StartTime < entries[j].StartTime
		}
		// A trip starting exactly when a visit ends sorts after it.
		return entries[i].Kind == models.TimelineEntryVisit && entries[j].Kind == models.TimelineEntryTrip
	})
	return entries, nil
}
