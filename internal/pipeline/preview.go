package pipeline

import (
	"context"
	"fmt"

	"github.com/wandermap/timeline-backend-go/internal/models"
)

// PreviewResult holds the simulated timeline of a dry run.
type PreviewResult struct {
	Visits []models.ProcessedVisit `json:"visits"`
	Trips  []models.Trip           `json:"trips"`
}

type fixedParams struct {
	params models.DetectionParameters
}

func (f fixedParams) CurrentParameters(context.Context, int64) (models.DetectionParameters, error) {
	return f.params, nil
}

// Preview reruns detection for one day with candidate parameters without
// writing anything: the user's real points and places are copied into a
// scratch store and the pipeline runs there. Place creation happens only in
// the scratch copy and no geocoding is triggered.
func Preview(ctx context.Context, userID int64, params models.DetectionParameters, day int64, points PointStore, places PlaceStore) (*PreviewResult, error) {
	if problems := params.Validate(); len(problems) > 0 {
		return nil, &ConfigurationError{UserID: userID, Problems: problems}
	}

	dayStart := dayFloor(day)
	window := TimeRange{Start: dayStart, End: dayStart + daySeconds}

	real, err := points.PointsInRange(ctx, userID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load points for preview: %w", err)
	}
	userPlaces, err := places.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load places for preview: %w", err)
	}

	scratch := NewMemStore()
	scratch.SeedPlaces(userPlaces)
	seed := make([]models.RawPoint, 0, len(real))
	for _, p := range real {
		if p.Synthetic {
			continue
		}
		p.ID = 0
		p.Processed = false
		p.Invalid = false
		p.Ignored = false
		p.Version = 0
		seed = append(seed, p)
	}
	scratch.SeedPoints(seed)

	engine := NewEngine(scratch, scratch, scratch, fixedParams{params}, nil)
	if _, err := engine.ProcessWindow(ctx, userID, window); err != nil {
		return nil, fmt.Errorf("preview run failed: %w", err)
	}

	return &PreviewResult{Visits: scratch.Visits(), Trips: scratch.Trips()}, nil
}
