package service

import (
	"context"
	"errors"
	"time"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
	"github.com/wandermap/timeline-backend-go/internal/repository"
)

// SettingsService manages versioned detection parameters and the dry-run
// preview.
type SettingsService struct {
	params *repository.ParamsRepository
	points *repository.PointRepository
	places *repository.PlaceRepository
}

// NewSettingsService creates a new settings service
func NewSettingsService(params *repository.ParamsRepository, points *repository.PointRepository, places *repository.PlaceRepository) *SettingsService {
	return &SettingsService{params: params, points: points, places: places}
}

// CurrentSettings holds the authoritative configuration and whether it is
// the system default rather than a user row.
type CurrentSettings struct {
	Parameters models.DetectionParameters `json:"parameters"`
	IsDefault  bool                       `json:"isDefault"`
}

// Get returns the configuration the pipeline would use right now.
func (s *SettingsService) Get(ctx context.Context, userID int64) (*CurrentSettings, error) {
	params, err := s.params.CurrentParameters(ctx, userID)
	if err != nil {
		var cfgErr *pipeline.ConfigurationError
		if errors.As(err, &cfgErr) {
			return &CurrentSettings{Parameters: models.DefaultDetectionParameters(), IsDefault: true}, nil
		}
		return nil, err
	}
	return &CurrentSettings{Parameters: params}, nil
}

// History returns every configuration row of the user, newest first.
func (s *SettingsService) History(ctx context.Context, userID int64) ([]models.DetectionParameters, error) {
	return s.params.History(ctx, userID)
}

// Update appends a new configuration row. Existing visits are not rewritten;
// the new row applies to future pipeline runs, and a recalculation can be
// triggered explicitly. ValidSince zero means "from now". Past ValidSince
// values are allowed so a recalculation of history can pick them up.
func (s *SettingsService) Update(ctx context.Context, userID int64, params models.DetectionParameters) (*models.DetectionParameters, error) {
	if problems := params.Validate(); len(problems) > 0 {
		return nil, &pipeline.ConfigurationError{UserID: userID, Problems: problems}
	}

	params.UserID = userID
	params.ID = 0
	if params.ValidSince == 0 {
		params.ValidSince = time.Now().Unix()
	}
	if err := s.params.Insert(ctx, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// Preview runs detection for one day with candidate parameters without
// persisting anything.
func (s *SettingsService) Preview(ctx context.Context, userID int64, params models.DetectionParameters, day int64) (*pipeline.PreviewResult, error) {
	return pipeline.Preview(ctx, userID, params, day, s.points, s.places)
}
