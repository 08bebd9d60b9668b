package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
)

// ParamsRepository persists versioned detection parameters. Rows are
// append-only; CurrentParameters picks the latest valid_since not in the
// future.
type ParamsRepository struct {
	db *sql.DB
}

// NewParamsRepository creates a new parameters repository
func NewParamsRepository(db *sql.DB) *ParamsRepository {
	return &ParamsRepository{db: db}
}

const paramsColumns = `id, user_id, valid_since, search_distance_m, minimum_adjacent_points,
	minimum_stay_seconds, max_merge_stay_gap_seconds, visit_search_duration_hours,
	max_merge_visit_gap_seconds, min_distance_between_visits_m, max_trip_gap_seconds,
	speed_bands_json, created_at`

func scanParams(scanner interface{ Scan(...any) error }) (models.DetectionParameters, error) {
	var p models.DetectionParameters
	var bands string
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.ValidSince,
		&p.SearchDistanceMeters, &p.MinimumAdjacentPoints,
		&p.MinimumStaySeconds, &p.MaxMergeStayGapSeconds, &p.VisitSearchDurationHours,
		&p.MaxMergeVisitGapSeconds, &p.MinDistanceBetweenVisitsMeters, &p.MaxTripGapSeconds,
		&bands, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(bands), &p.SpeedBands); err != nil {
		return p, fmt.Errorf("failed to decode speed bands of row %d: %w", p.ID, err)
	}
	return p, nil
}

// CurrentParameters returns the authoritative configuration for a user: the
// row with the latest valid_since that is not in the future. With no such
// row a ConfigurationError is returned and the caller falls back to the
// system defaults.
func (r *ParamsRepository) CurrentParameters(ctx context.Context, userID int64) (models.DetectionParameters, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM detection_parameters
		WHERE user_id = ? AND valid_since <= ?
		ORDER BY valid_since DESC, id DESC
		LIMIT 1
	`, paramsColumns)

	p, err := scanParams(r.db.QueryRowContext(ctx, query, userID, time.Now().Unix()))
	if err == sql.ErrNoRows {
		return p, &pipeline.ConfigurationError{UserID: userID, Problems: []string{"no detection parameters configured"}}
	}
	if err != nil {
		return p, fmt.Errorf("failed to load detection parameters: %w", err)
	}
	return p, nil
}

// History returns every configuration row of the user, newest first.
func (r *ParamsRepository) History(ctx context.Context, userID int64) ([]models.DetectionParameters, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM detection_parameters
		WHERE user_id = ?
		ORDER BY valid_since DESC, id DESC
	`, paramsColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameter history: %w", err)
	}
	defer rows.Close()

	var history []models.DetectionParameters
	for rows.Next() {
		p, err := scanParams(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parameters: %w", err)
		}
		history = append(history, p)
	}
	return history, rows.Err()
}

// Insert appends a new configuration row.
func (r *ParamsRepository) Insert(ctx context.Context, p *models.DetectionParameters) error {
	bands, err := json.Marshal(p.SpeedBands)
	if err != nil {
		return fmt.Errorf("failed to encode speed bands: %w", err)
	}
	p.CreatedAt = time.Now().Unix()

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO detection_parameters (user_id, valid_since, search_distance_m, minimum_adjacent_points,
			minimum_stay_seconds, max_merge_stay_gap_seconds, visit_search_duration_hours,
			max_merge_visit_gap_seconds, min_distance_between_visits_m, max_trip_gap_seconds,
			speed_bands_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.UserID, p.ValidSince, p.SearchDistanceMeters, p.MinimumAdjacentPoints,
		p.MinimumStaySeconds, p.MaxMergeStayGapSeconds, p.VisitSearchDurationHours,
		p.MaxMergeVisitGapSeconds, p.MinDistanceBetweenVisitsMeters, p.MaxTripGapSeconds,
		string(bands), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert detection parameters: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	return nil
}
