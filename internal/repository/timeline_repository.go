package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wandermap/timeline-backend-go/internal/database"
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
)

// TimelineRepository persists processed visits and trips. Both live in one
// repository because the pipeline commits them together.
type TimelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db *sql.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

const visitColumns = `id, user_id, place_id, start_time, end_time, version, created_at`

func scanVisit(scanner interface{ Scan(...any) error }) (models.ProcessedVisit, error) {
	var v models.ProcessedVisit
	err := scanner.Scan(&v.ID, &v.UserID, &v.PlaceID, &v.StartTime, &v.EndTime, &v.Version, &v.CreatedAt)
	return v, err
}

const tripColumns = `id, user_id, start_time, end_time, start_place_id, end_place_id,
	estimated_distance_m, travelled_distance_m, transport_mode, version, created_at`

func scanTrip(scanner interface{ Scan(...any) error }) (models.Trip, error) {
	var t models.Trip
	err := scanner.Scan(
		&t.ID, &t.UserID, &t.StartTime, &t.EndTime, &t.StartPlaceID, &t.EndPlaceID,
		&t.EstimatedDistanceMeters, &t.TravelledDistanceMeters, &t.TransportMode,
		&t.Version, &t.CreatedAt,
	)
	return t, err
}

// VisitsInRange returns visits overlapping [start, end), ordered by start.
func (r *TimelineRepository) VisitsInRange(ctx context.Context, userID, start, end int64) ([]models.ProcessedVisit, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM processed_visits
		WHERE user_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time
	`, visitColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []models.ProcessedVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// VisitBounds returns the min start and max end over visits overlapping
// [start, end). ok is false when none overlap.
func (r *TimelineRepository) VisitBounds(ctx context.Context, userID, start, end int64) (pipeline.TimeRange, bool, error) {
	var minStart, maxEnd sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MIN(start_time), MAX(end_time) FROM processed_visits
		WHERE user_id = ? AND start_time < ? AND end_time > ?
	`, userID, end, start).Scan(&minStart, &maxEnd)
	if err != nil {
		return pipeline.TimeRange{}, false, fmt.Errorf("failed to query visit bounds: %w", err)
	}
	if !minStart.Valid {
		return pipeline.TimeRange{}, false, nil
	}
	return pipeline.TimeRange{Start: minStart.Int64, End: maxEnd.Int64}, true, nil
}

// VisitsByPlace returns every visit of the user at the place.
func (r *TimelineRepository) VisitsByPlace(ctx context.Context, userID, placeID int64) ([]models.ProcessedVisit, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM processed_visits WHERE user_id = ? AND place_id = ? ORDER BY start_time
	`, visitColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits by place: %w", err)
	}
	defer rows.Close()

	var visits []models.ProcessedVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// TripsInRange returns trips overlapping [start, end), ordered by start.
func (r *TimelineRepository) TripsInRange(ctx context.Context, userID, start, end int64) ([]models.Trip, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM trips
		WHERE user_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time
	`, tripColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// ApplyTimelineChanges commits one window's visit and trip writes in a
// single transaction. Updates are version-checked; a stale row aborts the
// batch with a ConflictError and nothing is written.
func (r *TimelineRepository) ApplyTimelineChanges(ctx context.Context, userID int64, changes pipeline.TimelineChanges) error {
	return database.TransactionOn(r.db, func(tx *sql.Tx) error {
		now := time.Now().Unix()

		for _, v := range changes.VisitUpdates {
			res, err := tx.ExecContext(ctx, `
				UPDATE processed_visits SET place_id = ?, start_time = ?, end_time = ?, version = version + 1
				WHERE id = ? AND user_id = ? AND version = ?
			`, v.PlaceID, v.StartTime, v.EndTime, v.ID, userID, v.Version)
			if err != nil {
				return fmt.Errorf("failed to update visit %d: %w", v.ID, err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			} else if n == 0 {
				return &pipeline.ConflictError{Entity: "visit", ID: v.ID}
			}
		}
		for _, v := range changes.VisitInserts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO processed_visits (user_id, place_id, start_time, end_time, version, created_at)
				VALUES (?, ?, ?, ?, 1, ?)
			`, userID, v.PlaceID, v.StartTime, v.EndTime, now); err != nil {
				return fmt.Errorf("failed to insert visit: %w", err)
			}
		}
		for _, id := range changes.VisitDeletes {
			if _, err := tx.ExecContext(ctx, "DELETE FROM processed_visits WHERE id = ? AND user_id = ?", id, userID); err != nil {
				return fmt.Errorf("failed to delete visit %d: %w", id, err)
			}
		}

		for _, t := range changes.TripUpdates {
			res, err := tx.ExecContext(ctx, `
				UPDATE trips SET start_time = ?, end_time = ?, start_place_id = ?, end_place_id = ?,
					estimated_distance_m = ?, travelled_distance_m = ?, transport_mode = ?, version = version + 1
				WHERE id = ? AND user_id = ? AND version = ?
			`, t.StartTime, t.EndTime, t.StartPlaceID, t.EndPlaceID,
				t.EstimatedDistanceMeters, t.TravelledDistanceMeters, t.TransportMode,
				t.ID, userID, t.Version)
			if err != nil {
				return fmt.Errorf("failed to update trip %d: %w", t.ID, err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			} else if n == 0 {
				return &pipeline.ConflictError{Entity: "trip", ID: t.ID}
			}
		}
		for _, t := range changes.TripInserts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO trips (user_id, start_time, end_time, start_place_id, end_place_id,
					estimated_distance_m, travelled_distance_m, transport_mode, version, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
			`, userID, t.StartTime, t.EndTime, t.StartPlaceID, t.EndPlaceID,
				t.EstimatedDistanceMeters, t.TravelledDistanceMeters, t.TransportMode, now); err != nil {
				return fmt.Errorf("failed to insert trip: %w", err)
			}
		}
		for _, id := range changes.TripDeletes {
			if _, err := tx.ExecContext(ctx, "DELETE FROM trips WHERE id = ? AND user_id = ?", id, userID); err != nil {
				return fmt.Errorf("failed to delete trip %d: %w", id, err)
			}
		}

		return nil
	})
}

// DeleteByPlace removes every visit and trip referencing the place in one
// transaction. Used by the geometry-edit cleanup.
func (r *TimelineRepository) DeleteByPlace(ctx context.Context, userID, placeID int64) error {
	return database.TransactionOn(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM processed_visits WHERE user_id = ? AND place_id = ?
		`, userID, placeID); err != nil {
			return fmt.Errorf("failed to delete visits of place %d: %w", placeID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM trips WHERE user_id = ? AND (start_place_id = ? OR end_place_id = ?)
		`, userID, placeID, placeID); err != nil {
			return fmt.Errorf("failed to delete trips of place %d: %w", placeID, err)
		}
		return nil
	})
}
