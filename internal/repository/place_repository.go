package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// PlaceRepository handles database operations for significant places.
type PlaceRepository struct {
	db *sql.DB
}

// NewPlaceRepository creates a new place repository
func NewPlaceRepository(db *sql.DB) *PlaceRepository {
	return &PlaceRepository{db: db}
}

const placeColumns = `id, user_id, name, latitude, longitude, polygon_json, place_type, timezone,
	geocoded, version, created_at`

func scanPlace(scanner interface{ Scan(...any) error }) (models.SignificantPlace, error) {
	var p models.SignificantPlace
	var polygon sql.NullString
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Latitude, &p.Longitude,
		&polygon, &p.PlaceType, &p.Timezone,
		&p.Geocoded, &p.Version, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if polygon.Valid && polygon.String != "" {
		if err := json.Unmarshal([]byte(polygon.String), &p.Polygon); err != nil {
			return p, fmt.Errorf("failed to decode polygon of place %d: %w", p.ID, err)
		}
	}
	return p, nil
}

func polygonJSON(polygon []models.LatLng) (any, error) {
	if len(polygon) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(polygon)
	if err != nil {
		return nil, fmt.Errorf("failed to encode polygon: %w", err)
	}
	return string(raw), nil
}

// FindNearby returns the user's places within radiusMeters of the given
// coordinate. A bounding-box prefilter keeps the index useful; the exact
// distance check runs on the candidates.
func (r *PlaceRepository) FindNearby(ctx context.Context, userID int64, lat, lon, radiusMeters float64) ([]models.SignificantPlace, error) {
	latDelta := radiusMeters / 111320.0
	lonDelta := latDelta
	if cos := math.Cos(lat * math.Pi / 180); cos > 0.01 {
		lonDelta = latDelta / cos
	}

	query := fmt.Sprintf(`
		SELECT %s FROM significant_places
		WHERE user_id = ? AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
	`, placeColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, lat-latDelta, lat+latDelta, lon-lonDelta, lon+lonDelta)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby places: %w", err)
	}
	defer rows.Close()

	var places []models.SignificantPlace
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		if spatial.Distance(p.Latitude, p.Longitude, lat, lon) <= radiusMeters {
			places = append(places, p)
		}
	}
	return places, rows.Err()
}

// GetByID retrieves one place of the user. Missing places return nil, nil.
func (r *PlaceRepository) GetByID(ctx context.Context, userID, id int64) (*models.SignificantPlace, error) {
	query := fmt.Sprintf("SELECT %s FROM significant_places WHERE id = ? AND user_id = ?", placeColumns)
	p, err := scanPlace(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get place %d: %w", id, err)
	}
	return &p, nil
}

// ListByUser returns all places of a user.
func (r *PlaceRepository) ListByUser(ctx context.Context, userID int64) ([]models.SignificantPlace, error) {
	query := fmt.Sprintf("SELECT %s FROM significant_places WHERE user_id = ? ORDER BY id", placeColumns)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	defer rows.Close()

	var places []models.SignificantPlace
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

// Create stores a new place and assigns its id.
func (r *PlaceRepository) Create(ctx context.Context, place *models.SignificantPlace) error {
	polygon, err := polygonJSON(place.Polygon)
	if err != nil {
		return err
	}
	if place.PlaceType == "" {
		place.PlaceType = models.PlaceTypeUnknown
	}
	place.CreatedAt = time.Now().Unix()
	place.Version = 1

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO significant_places (user_id, name, latitude, longitude, polygon_json, place_type, timezone, geocoded, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, place.UserID, place.Name, place.Latitude, place.Longitude, polygon, place.PlaceType, place.Timezone, place.Geocoded, place.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create place: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	place.ID = id
	return nil
}

// Update rewrites a place, version-checked. A stale version yields a
// ConflictError.
func (r *PlaceRepository) Update(ctx context.Context, place *models.SignificantPlace) error {
	polygon, err := polygonJSON(place.Polygon)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE significant_places
		SET name = ?, latitude = ?, longitude = ?, polygon_json = ?, place_type = ?, timezone = ?, geocoded = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?
	`, place.Name, place.Latitude, place.Longitude, polygon, place.PlaceType, place.Timezone, place.Geocoded, place.ID, place.UserID, place.Version)
	if err != nil {
		return fmt.Errorf("failed to update place %d: %w", place.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return &pipeline.ConflictError{Entity: "place", ID: place.ID}
	}
	place.Version++
	return nil
}

// ListUngeocoded returns places still waiting for a reverse-geocoded name,
// oldest first. Used by the geocoding retry sweep.
func (r *PlaceRepository) ListUngeocoded(ctx context.Context, limit int) ([]models.SignificantPlace, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM significant_places WHERE geocoded = 0 ORDER BY created_at LIMIT ?
	`, placeColumns)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ungeocoded places: %w", err)
	}
	defer rows.Close()

	var places []models.SignificantPlace
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, p)
	}
	return places, rows.Err()
}
