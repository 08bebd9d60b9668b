package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermap/timeline-backend-go/internal/models"
)

// gatedStore stalls UnprocessedRange until released, which keeps the drain
// goroutine busy long enough to observe the queue's pending state.
type gatedStore struct {
	*MemStore
	gate chan struct{}
}

func (s *gatedStore) UnprocessedRange(ctx context.Context, userID int64) (TimeRange, bool, error) {
	<-s.gate
	return s.MemStore.UnprocessedRange(ctx, userID)
}

func (s *gatedStore) PointsInRange(ctx context.Context, userID, start, end int64) ([]models.RawPoint, error) {
	<-s.gate
	return s.MemStore.PointsInRange(ctx, userID, start, end)
}

func newGatedQueue(t *testing.T) (*JobQueue, *gatedStore) {
	t.Helper()
	store := &gatedStore{MemStore: NewMemStore(), gate: make(chan struct{})}
	engine := NewEngine(store, store.MemStore, store.MemStore, fixedParams{models.DefaultDetectionParameters()}, nil)
	return NewJobQueue(context.Background(), engine), store
}

func waitTerminal(t *testing.T, queue *JobQueue, id string) *models.RecalcJob {
	t.Helper()
	require.Eventually(t, func() bool {
		job := queue.Job(id)
		return job != nil && job.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return queue.Job(id)
}

func TestEnqueueRunsJob(t *testing.T) {
	queue, store := newGatedQueue(t)
	close(store.gate)

	base := 40 * day
	store.SeedPoints(dwell(base, 55.0, 10.0, 7, 300))

	job := queue.Enqueue(1, nil)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, int64(1), job.UserID)

	done := waitTerminal(t, queue, job.ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, 7, done.PointsProcessed)
	assert.NotZero(t, done.WindowStart)
	assert.Len(t, store.Visits(), 1)
}

func TestEnqueueNoopWithoutData(t *testing.T) {
	queue, store := newGatedQueue(t)
	close(store.gate)

	job := queue.Enqueue(1, nil)
	done := waitTerminal(t, queue, job.ID)
	assert.Equal(t, models.JobStatusNoop, done.Status)
}

func TestEnqueueCoalescesPendingDuplicates(t *testing.T) {
	queue, store := newGatedQueue(t)

	// The first job occupies the drain goroutine at the gate; the next
	// two identical triggers sit pending and must collapse into one.
	queue.Enqueue(1, nil)
	first := queue.Enqueue(1, nil)
	second := queue.Enqueue(1, nil)
	assert.Equal(t, first.ID, second.ID)

	window := &TimeRange{Start: 0, End: day}
	windowed := queue.Enqueue(1, window)
	assert.NotEqual(t, first.ID, windowed.ID, "a different window is a different job")
	again := queue.Enqueue(1, window)
	assert.Equal(t, windowed.ID, again.ID)

	close(store.gate)
	waitTerminal(t, queue, first.ID)
	waitTerminal(t, queue, windowed.ID)

	// Once a job has left the pending queue it is never deduplicated
	// against: a fresh trigger gets a fresh id.
	fresh := queue.Enqueue(1, nil)
	assert.NotEqual(t, first.ID, fresh.ID)
	waitTerminal(t, queue, fresh.ID)
}

func TestQueueSerializesPerUser(t *testing.T) {
	queue, store := newGatedQueue(t)

	a := queue.Enqueue(1, &TimeRange{Start: 0, End: day})
	b := queue.Enqueue(1, &TimeRange{Start: day, End: 2 * day})

	// Both are parked while the gate is shut; neither may finish early.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, queue.Job(a.ID).IsTerminal())
	assert.False(t, queue.Job(b.ID).IsTerminal())

	close(store.gate)
	doneA := waitTerminal(t, queue, a.ID)
	doneB := waitTerminal(t, queue, b.ID)
	assert.Equal(t, models.JobStatusNoop, doneA.Status, "empty window runs to a noop")
	assert.Equal(t, models.JobStatusNoop, doneB.Status)
}

func TestCleanupJobSerializesWithRuns(t *testing.T) {
	queue, store := newGatedQueue(t)

	run := queue.Enqueue(1, nil)
	cleanup := queue.EnqueueCleanup(1, 7)

	// While the run is parked at the gate the cleanup must stay pending:
	// it goes through the same per-user queue, never around it.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, models.JobStatusRunning, queue.Job(run.ID).Status)
	assert.Equal(t, models.JobStatusPending, queue.Job(cleanup.ID).Status)

	close(store.gate)
	waitTerminal(t, queue, run.ID)
	done := waitTerminal(t, queue, cleanup.ID)
	assert.Equal(t, models.JobStatusNoop, done.Status, "nothing to rebuild on an empty store")
}

func TestCleanupJobRebuildsPlaceHistory(t *testing.T) {
	queue, store := newGatedQueue(t)
	close(store.gate)

	base := 41 * day
	store.SeedPoints(dwell(base, 55.0, 10.0, 7, 300))
	waitTerminal(t, queue, queue.Enqueue(1, nil).ID)
	require.Len(t, store.Visits(), 1)
	placeID := store.Visits()[0].PlaceID

	done := waitTerminal(t, queue, queue.EnqueueCleanup(1, placeID).ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, 7, done.PointsProcessed)
	require.Len(t, store.Visits(), 1, "the days are rebuilt after the teardown")
	assert.Equal(t, placeID, store.Visits()[0].PlaceID)
}

func TestEnqueueCleanupCoalescesPerPlace(t *testing.T) {
	queue, store := newGatedQueue(t)

	queue.Enqueue(1, nil) // occupies the drain goroutine at the gate
	run := queue.Enqueue(1, nil)
	first := queue.EnqueueCleanup(1, 7)
	second := queue.EnqueueCleanup(1, 7)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, run.ID, first.ID, "a cleanup never collapses into a plain run")

	other := queue.EnqueueCleanup(1, 8)
	assert.NotEqual(t, first.ID, other.ID)

	close(store.gate)
	waitTerminal(t, queue, first.ID)
	waitTerminal(t, queue, other.ID)
}

func TestJobUnknownID(t *testing.T) {
	queue, _ := newGatedQueue(t)
	assert.Nil(t, queue.Job("no-such-job"))
}

func TestJobSnapshotIsDetached(t *testing.T) {
	queue, store := newGatedQueue(t)

	job := queue.Enqueue(1, nil)
	before := queue.Job(job.ID)
	require.False(t, before.IsTerminal())

	close(store.gate)
	waitTerminal(t, queue, job.ID)

	// The earlier snapshot keeps its observed state.
	assert.False(t, before.IsTerminal())
}
