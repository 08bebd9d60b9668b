package service

import (
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
)

// RecalcService exposes the job queue to the API layer.
type RecalcService struct {
	queue *pipeline.JobQueue
}

// NewRecalcService creates a new recalculation service
func NewRecalcService(queue *pipeline.JobQueue) *RecalcService {
	return &RecalcService{queue: queue}
}

// Trigger enqueues a recalculation. start/end zero means "whatever is
// unprocessed"; otherwise the given window is reprocessed as-is.
func (s *RecalcService) Trigger(userID int64, start, end int64) *models.RecalcJob {
	var window *pipeline.TimeRange
	if start != 0 || end != 0 {
		window = &pipeline.TimeRange{Start: start, End: end}
	}
	return s.queue.Enqueue(userID, window)
}

// Job returns a job by id, nil when unknown.
func (s *RecalcService) Job(id string) *models.RecalcJob {
	return s.queue.Job(id)
}
