package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
	"github.com/wandermap/timeline-backend-go/internal/repository"
)

// maxFutureSkewSeconds tolerates slightly-ahead device clocks.
const maxFutureSkewSeconds = 300

// IngestService validates and stores incoming GPS batches and triggers
// recalculation of the affected days.
type IngestService struct {
	points *repository.PointRepository
	queue  *pipeline.JobQueue
}

// NewIngestService creates a new ingest service
func NewIngestService(points *repository.PointRepository, queue *pipeline.JobQueue) *IngestService {
	return &IngestService{points: points, queue: queue}
}

// Ingest stores one batch. Malformed points are rejected individually and
// reported back by index; they never abort the rest of the batch. A
// successful batch enqueues a recalculation of whatever is now unprocessed.
func (s *IngestService) Ingest(ctx context.Context, userID int64, batch []models.IngestPoint) (*models.IngestResult, error) {
	result := &models.IngestResult{}
	accepted := make([]models.RawPoint, 0, len(batch))

	for i, in := range batch {
		if err := validatePoint(i, in); err != nil {
			log.Printf("[Ingest] user %d: %v", userID, err)
			result.Rejected = append(result.Rejected, models.RejectedPoint{Index: i, Reason: err.Reason})
			continue
		}
		accepted = append(accepted, models.RawPoint{
			UserID:    userID,
			Timestamp: in.Timestamp,
			Latitude:  *in.Latitude,
			Longitude: *in.Longitude,
			Accuracy:  in.Accuracy,
			Elevation: in.Elevation,
		})
	}

	if len(accepted) > 0 {
		if err := s.points.InsertBatch(ctx, userID, accepted); err != nil {
			return nil, fmt.Errorf("failed to store batch: %w", err)
		}
		s.queue.Enqueue(userID, nil)
	}

	result.Accepted = len(accepted)
	if len(result.Rejected) > 0 {
		log.Printf("[Ingest] user %d: accepted %d, rejected %d", userID, result.Accepted, len(result.Rejected))
	}
	return result, nil
}

func validatePoint(index int, in models.IngestPoint) *pipeline.DataError {
	reject := func(reason string) *pipeline.DataError {
		return &pipeline.DataError{Index: index, Reason: reason}
	}
	if in.Latitude == nil || in.Longitude == nil {
		return reject("latitude and longitude are required")
	}
	if *in.Latitude < -90 || *in.Latitude > 90 {
		return reject(fmt.Sprintf("latitude %v out of range", *in.Latitude))
	}
	if *in.Longitude < -180 || *in.Longitude > 180 {
		return reject(fmt.Sprintf("longitude %v out of range", *in.Longitude))
	}
	if in.Timestamp <= 0 {
		return reject("timestamp must be a positive Unix timestamp")
	}
	if in.Timestamp > time.Now().Unix()+maxFutureSkewSeconds {
		return reject("timestamp lies in the future")
	}
	if in.Accuracy != nil && *in.Accuracy < 0 {
		return reject("accuracy must not be negative")
	}
	return nil
}
