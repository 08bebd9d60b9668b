package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
)

func float64Ptr(v float64) *float64 { return &v }

func seedPoints(t *testing.T, repo *PointRepository, userID int64, points []models.RawPoint) []models.RawPoint {
	t.Helper()
	require.NoError(t, repo.InsertBatch(context.Background(), userID, points))
	start, end := points[0].Timestamp, points[0].Timestamp
	for _, p := range points {
		if p.Timestamp < start {
			start = p.Timestamp
		}
		if p.Timestamp > end {
			end = p.Timestamp
		}
	}
	stored, err := repo.PointsInRange(context.Background(), userID, start, end+1)
	require.NoError(t, err)
	require.Len(t, stored, len(points))
	return stored
}

func TestPointInsertAndQueryRoundTrip(t *testing.T) {
	repo := NewPointRepository(newTestDB(t))
	ctx := context.Background()

	in := []models.RawPoint{
		{Timestamp: 100, Latitude: 55.1, Longitude: 10.1, Accuracy: float64Ptr(12.5), Elevation: float64Ptr(44)},
		{Timestamp: 200, Latitude: 55.2, Longitude: 10.2},
	}
	stored := seedPoints(t, repo, 1, in)

	p := stored[0]
	assert.NotZero(t, p.ID)
	assert.Equal(t, int64(1), p.UserID)
	assert.Equal(t, int64(100), p.Timestamp)
	assert.Equal(t, 55.1, p.Latitude)
	require.NotNil(t, p.Accuracy)
	assert.Equal(t, 12.5, *p.Accuracy)
	assert.False(t, p.Processed)
	assert.False(t, p.Synthetic)
	assert.Equal(t, int64(1), p.Version)

	assert.Nil(t, stored[1].Accuracy, "absent accuracy stays NULL")

	// Range bounds are half-open and per-user.
	points, err := repo.PointsInRange(ctx, 1, 100, 200)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	points, err = repo.PointsInRange(ctx, 2, 0, 1000)
	require.NoError(t, err)
	assert.Empty(t, points)

	n, err := repo.CountByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPointsInRangeOrdersByTimestamp(t *testing.T) {
	repo := NewPointRepository(newTestDB(t))

	stored := seedPoints(t, repo, 1, []models.RawPoint{
		{Timestamp: 300, Latitude: 55.3, Longitude: 10},
		{Timestamp: 100, Latitude: 55.1, Longitude: 10},
		{Timestamp: 200, Latitude: 55.2, Longitude: 10},
	})

	assert.Equal(t, int64(100), stored[0].Timestamp)
	assert.Equal(t, int64(200), stored[1].Timestamp)
	assert.Equal(t, int64(300), stored[2].Timestamp)
}

func TestUnprocessedRange(t *testing.T) {
	repo := NewPointRepository(newTestDB(t))
	ctx := context.Background()

	_, ok, err := repo.UnprocessedRange(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "empty table has no unprocessed range")

	seedPoints(t, repo, 1, []models.RawPoint{
		{Timestamp: 100, Latitude: 55, Longitude: 10},
		{Timestamp: 500, Latitude: 55, Longitude: 10},
		{Timestamp: 900, Latitude: 55, Longitude: 10},
	})

	r, ok, err := repo.UnprocessedRange(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), r.Start)
	assert.Equal(t, int64(900), r.End)

	// Processing the window empties the range again.
	require.NoError(t, repo.ApplyChanges(ctx, 1, pipeline.PointChanges{
		Window:        pipeline.TimeRange{Start: 0, End: 1000},
		MarkProcessed: true,
	}))
	_, ok, err = repo.UnprocessedRange(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApplyChangesFlagsAndVersioning(t *testing.T) {
	repo := NewPointRepository(newTestDB(t))
	ctx := context.Background()

	stored := seedPoints(t, repo, 1, []models.RawPoint{
		{Timestamp: 100, Latitude: 55, Longitude: 10},
	})

	update := stored[0]
	update.Invalid = true
	require.NoError(t, repo.ApplyChanges(ctx, 1, pipeline.PointChanges{
		Window:      pipeline.TimeRange{Start: 0, End: 1000},
		FlagUpdates: []models.RawPoint{update},
	}))

	after, err := repo.PointsInRange(ctx, 1, 0, 1000)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, after[0].Invalid)
	assert.Equal(t, update.Version+1, after[0].Version)

	// Writing with the stale version is rejected as a conflict.
	update.Ignored = true
	err = repo.ApplyChanges(ctx, 1, pipeline.PointChanges{
		Window:      pipeline.TimeRange{Start: 0, End: 1000},
		FlagUpdates: []models.RawPoint{update},
	})
	require.Error(t, err)
	assert.True(t, pipeline.IsConflict(err))

	// The conflict aborted the transaction: the ignored flag of the
	// stale write never landed.
	after, err = repo.PointsInRange(ctx, 1, 0, 1000)
	require.NoError(t, err)
	assert.False(t, after[0].Ignored)
}

func TestApplyChangesRegeneratesSynthetic(t *testing.T) {
	repo := NewPointRepository(newTestDB(t))
	ctx := context.Background()

	seedPoints(t, repo, 1, []models.RawPoint{
		{Timestamp: 100, Latitude: 55, Longitude: 10},
		{Timestamp: 200, Latitude: 55.001, Longitude: 10},
	})

	window := pipeline.TimeRange{Start: 0, End: 1000}
	synthetic := []models.RawPoint{
		{Timestamp: 125, Latitude: 55.00025, Longitude: 10, Accuracy: float64Ptr(8)},
		{Timestamp: 150, Latitude: 55.0005, Longitude: 10},
		{Timestamp: 175, Latitude: 55.00075, Longitude: 10},
	}
	require.NoError(t, repo.ApplyChanges(ctx, 1, pipeline.PointChanges{
		Window: window, Synthetic: synthetic, MarkProcessed: true,
	}))

	all, err := repo.PointsInRange(ctx, 1, 0, 1000)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for _, p := range all {
		assert.True(t, p.Processed)
	}
	assert.True(t, all[1].Synthetic)

	// A rerun with fewer synthetic points replaces, not accumulates.
	require.NoError(t, repo.ApplyChanges(ctx, 1, pipeline.PointChanges{
		Window:    window,
		Synthetic: []models.RawPoint{{Timestamp: 150, Latitude: 55.0005, Longitude: 10}},
	}))
	all, err = repo.PointsInRange(ctx, 1, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMarkRangeUnprocessed(t *testing.T) {
	repo := NewPointRepository(newTestDB(t))
	ctx := context.Background()

	seedPoints(t, repo, 1, []models.RawPoint{
		{Timestamp: 100, Latitude: 55, Longitude: 10},
		{Timestamp: 5000, Latitude: 55, Longitude: 10},
	})
	require.NoError(t, repo.ApplyChanges(ctx, 1, pipeline.PointChanges{
		Window:        pipeline.TimeRange{Start: 0, End: 10000},
		Synthetic:     []models.RawPoint{{Timestamp: 300, Latitude: 55, Longitude: 10}},
		MarkProcessed: true,
	}))

	require.NoError(t, repo.MarkRangeUnprocessed(ctx, 1, 0, 1000))

	r, ok, err := repo.UnprocessedRange(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), r.Start)
	assert.Equal(t, int64(100), r.End, "only the first point is unprocessed again; synthetic ones never count")
}
