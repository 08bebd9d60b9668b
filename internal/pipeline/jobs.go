package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wandermap/timeline-backend-go/internal/models"
)

// JobQueue serializes pipeline runs per user. Runs for different users
// proceed in parallel; a user's own runs are queued FIFO and duplicate
// triggers for the same window are coalesced while still pending. This is
// what keeps two overlapping recalculations from racing on one user's
// visit rows.
type JobQueue struct {
	engine *Engine
	ctx    context.Context

	mu      sync.Mutex
	jobs    map[string]*models.RecalcJob
	pending map[int64][]*queuedJob
	active  map[int64]bool
}

type queuedJob struct {
	job    *models.RecalcJob
	window *TimeRange
	// placeID non-zero marks a place-geometry cleanup: tear down the
	// place's timeline entries, then rebuild the affected days.
	placeID int64
}

// NewJobQueue creates a queue draining into the engine. ctx bounds the
// lifetime of all background runs.
func NewJobQueue(ctx context.Context, engine *Engine) *JobQueue {
	return &JobQueue{
		engine:  engine,
		ctx:     ctx,
		jobs:    make(map[string]*models.RecalcJob),
		pending: make(map[int64][]*queuedJob),
		active:  make(map[int64]bool),
	}
}

// Enqueue schedules a recalculation. window nil means "whatever is
// unprocessed". A still-pending job for the same user and window is
// returned instead of queueing a duplicate.
func (q *JobQueue) Enqueue(userID int64, window *TimeRange) *models.RecalcJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, qd := range q.pending[userID] {
		if qd.placeID == 0 && sameWindow(qd.window, window) {
			return snapshot(qd.job)
		}
	}

	job := &models.RecalcJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().Unix(),
	}
	if window != nil {
		job.WindowStart = window.Start
		job.WindowEnd = window.End
	}
	q.jobs[job.ID] = job
	q.pending[userID] = append(q.pending[userID], &queuedJob{job: job, window: window})

	if !q.active[userID] {
		q.active[userID] = true
		go q.drain(userID)
	}
	return snapshot(job)
}

// EnqueueCleanup schedules a place-geometry cleanup followed by a rebuild
// of the affected days. Queued like any other job, so it can never
// interleave with a pipeline run on the same user's rows. A still-pending
// cleanup for the same place is returned instead of queueing a duplicate.
func (q *JobQueue) EnqueueCleanup(userID, placeID int64) *models.RecalcJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, qd := range q.pending[userID] {
		if qd.placeID != 0 && qd.placeID == placeID {
			return snapshot(qd.job)
		}
	}

	job := &models.RecalcJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlaceID:   placeID,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().Unix(),
	}
	q.jobs[job.ID] = job
	q.pending[userID] = append(q.pending[userID], &queuedJob{job: job, placeID: placeID})

	if !q.active[userID] {
		q.active[userID] = true
		go q.drain(userID)
	}
	return snapshot(job)
}

// Job returns a snapshot of the job by id, nil when unknown. A copy, so
// callers never observe the drain goroutine's writes mid-flight.
func (q *JobQueue) Job(id string) *models.RecalcJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil
	}
	return snapshot(job)
}

func snapshot(job *models.RecalcJob) *models.RecalcJob {
	out := *job
	return &out
}

// drain runs the user's queue until empty. One goroutine per user at most.
func (q *JobQueue) drain(userID int64) {
	for {
		q.mu.Lock()
		queue := q.pending[userID]
		if len(queue) == 0 {
			q.active[userID] = false
			q.mu.Unlock()
			return
		}
		next := queue[0]
		q.pending[userID] = queue[1:]
		next.job.Status = models.JobStatusRunning
		next.job.StartedAt = time.Now().Unix()
		q.mu.Unlock()

		q.run(next)
	}
}

func (q *JobQueue) run(qd *queuedJob) {
	var result *RunResult
	var err error
	switch {
	case qd.placeID != 0:
		if err = q.engine.CleanupPlace(q.ctx, qd.job.UserID, qd.placeID); err == nil {
			result, err = q.engine.Run(q.ctx, qd.job.UserID)
		}
	case qd.window != nil:
		result, err = q.engine.ProcessWindow(q.ctx, qd.job.UserID, *qd.window)
	default:
		result, err = q.engine.Run(q.ctx, qd.job.UserID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	qd.job.FinishedAt = time.Now().Unix()

	if err != nil {
		// ConflictErrors included: the caller may safely re-trigger
		// the same window.
		qd.job.Status = models.JobStatusFailed
		qd.job.Error = err.Error()
		log.Printf("[JobQueue] job %s for user %d failed: %v", qd.job.ID, qd.job.UserID, err)
		return
	}

	if result.Noop {
		qd.job.Status = models.JobStatusNoop
		return
	}

	qd.job.Status = models.JobStatusCompleted
	qd.job.WindowStart = result.Window.Start
	qd.job.WindowEnd = result.Window.End
	qd.job.PointsProcessed = result.PointsProcessed
	qd.job.VisitsWritten = result.VisitsWritten
	qd.job.TripsWritten = result.TripsWritten
}

func sameWindow(a, b *TimeRange) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Start == b.Start && a.End == b.End
}
