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

// PointRepository handles database operations for raw GPS points.
type PointRepository struct {
	db *sql.DB
}

// NewPointRepository creates a new point repository
func NewPointRepository(db *sql.DB) *PointRepository {
	return &PointRepository{db: db}
}

const pointColumns = `id, user_id, timestamp, latitude, longitude, accuracy_m, elevation_m,
	processed, synthetic, ignored, invalid, version, created_at`

func scanPoint(scanner interface{ Scan(...any) error }) (models.RawPoint, error) {
	var p models.RawPoint
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.Timestamp, &p.Latitude, &p.Longitude,
		&p.Accuracy, &p.Elevation,
		&p.Processed, &p.Synthetic, &p.Ignored, &p.Invalid,
		&p.Version, &p.CreatedAt,
	)
	return p, err
}

// InsertBatch stores one ingestion batch in a single transaction.
func (r *PointRepository) InsertBatch(ctx context.Context, userID int64, points []models.RawPoint) error {
	return database.TransactionOn(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO raw_points (user_id, timestamp, latitude, longitude, accuracy_m, elevation_m, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare point insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, userID, p.Timestamp, p.Latitude, p.Longitude, p.Accuracy, p.Elevation, now); err != nil {
				return fmt.Errorf("failed to insert point at %d: %w", p.Timestamp, err)
			}
		}
		return nil
	})
}

// PointsInRange returns every point in [start, end), synthetic and flagged
// ones included, ordered by timestamp then id.
func (r *PointRepository) PointsInRange(ctx context.Context, userID, start, end int64) ([]models.RawPoint, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM raw_points
		WHERE user_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, id
	`, pointColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var points []models.RawPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// UnprocessedRange returns the min/max timestamps of real points not yet
// processed. ok is false when there are none.
func (r *PointRepository) UnprocessedRange(ctx context.Context, userID int64) (pipeline.TimeRange, bool, error) {
	var minTS, maxTS sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MIN(timestamp), MAX(timestamp) FROM raw_points
		WHERE user_id = ? AND processed = 0 AND synthetic = 0
	`, userID).Scan(&minTS, &maxTS)
	if err != nil {
		return pipeline.TimeRange{}, false, fmt.Errorf("failed to query unprocessed range: %w", err)
	}
	if !minTS.Valid {
		return pipeline.TimeRange{}, false, nil
	}
	return pipeline.TimeRange{Start: minTS.Int64, End: maxTS.Int64}, true, nil
}

// ApplyChanges commits one window's flag updates and synthetic regeneration
// in a single transaction. Flag updates are version-checked; a stale row
// aborts the whole batch with a ConflictError.
func (r *PointRepository) ApplyChanges(ctx context.Context, userID int64, changes pipeline.PointChanges) error {
	return database.TransactionOn(r.db, func(tx *sql.Tx) error {
		for _, p := range changes.FlagUpdates {
			res, err := tx.ExecContext(ctx, `
				UPDATE raw_points SET invalid = ?, ignored = ?, version = version + 1
				WHERE id = ? AND version = ?
			`, p.Invalid, p.Ignored, p.ID, p.Version)
			if err != nil {
				return fmt.Errorf("failed to update point %d: %w", p.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			}
			if n == 0 {
				return &pipeline.ConflictError{Entity: "raw point", ID: p.ID}
			}
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM raw_points
			WHERE user_id = ? AND synthetic = 1 AND timestamp >= ? AND timestamp < ?
		`, userID, changes.Window.Start, changes.Window.End); err != nil {
			return fmt.Errorf("failed to clear synthetic points: %w", err)
		}

		if len(changes.Synthetic) > 0 {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO raw_points (user_id, timestamp, latitude, longitude, accuracy_m, elevation_m,
					processed, synthetic, created_at)
				VALUES (?, ?, ?, ?, ?, ?, 1, 1, ?)
			`)
			if err != nil {
				return fmt.Errorf("failed to prepare synthetic insert: %w", err)
			}
			defer stmt.Close()

			now := time.Now().Unix()
			for _, p := range changes.Synthetic {
				if _, err := stmt.ExecContext(ctx, userID, p.Timestamp, p.Latitude, p.Longitude, p.Accuracy, p.Elevation, now); err != nil {
					return fmt.Errorf("failed to insert synthetic point at %d: %w", p.Timestamp, err)
				}
			}
		}

		if changes.MarkProcessed {
			if _, err := tx.ExecContext(ctx, `
				UPDATE raw_points SET processed = 1
				WHERE user_id = ? AND synthetic = 0 AND timestamp >= ? AND timestamp < ?
			`, userID, changes.Window.Start, changes.Window.End); err != nil {
				return fmt.Errorf("failed to mark window processed: %w", err)
			}
		}
		return nil
	})
}

// MarkRangeUnprocessed clears the processed flag over [start, end).
func (r *PointRepository) MarkRangeUnprocessed(ctx context.Context, userID, start, end int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE raw_points SET processed = 0
		WHERE user_id = ? AND synthetic = 0 AND timestamp >= ? AND timestamp < ?
	`, userID, start, end)
	if err != nil {
		return fmt.Errorf("failed to mark range unprocessed: %w", err)
	}
	return nil
}

// CountByUser returns the total points of a user, used by the health check.
func (r *PointRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM raw_points WHERE user_id = ?", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}
