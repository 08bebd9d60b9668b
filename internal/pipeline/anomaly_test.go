package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermap/timeline-backend-go/internal/models"
)

// trackPoint builds one raw point of an ordered track.
func trackPoint(ts int64, lat, lon float64) models.RawPoint {
	return models.RawPoint{UserID: 1, Timestamp: ts, Latitude: lat, Longitude: lon, Version: 1}
}

func TestAnomalyFilterFlagsIsolatedJump(t *testing.T) {
	// A dense walking track with a single multi-kilometer jump in the
	// middle. Only the jump point is implausible from both sides.
	var points []models.RawPoint
	for i := 0; i < 14; i++ {
		points = append(points, trackPoint(int64(i*10), 55.3959+float64(i)*0.00005, 10.3883))
	}
	points[7].Latitude = 55.44 // ~4.9 km away, 10 s from both neighbors

	filter := NewAnomalyFilter(DefaultAnomalyThresholds)
	changed := filter.Apply(points)

	require.Len(t, changed, 1)
	assert.Equal(t, int64(70), changed[0].Timestamp)
	assert.True(t, points[7].Invalid)
	for i, p := range points {
		if i == 7 {
			continue
		}
		assert.True(t, p.Usable(), "point %d must stay usable", i)
	}
}

func TestAnomalyFilterNeighborsOfJumpSurvive(t *testing.T) {
	// The successor of a flagged point must be judged against the last
	// valid predecessor, not against the jump itself.
	points := []models.RawPoint{
		trackPoint(0, 55.0, 10.0),
		trackPoint(10, 55.0001, 10.0),
		trackPoint(20, 55.2, 10.0), // jump
		trackPoint(30, 55.0002, 10.0),
		trackPoint(40, 55.0003, 10.0),
	}

	changed := NewAnomalyFilter(DefaultAnomalyThresholds).Apply(points)

	require.Len(t, changed, 1)
	assert.True(t, points[2].Invalid)
	assert.True(t, points[3].Usable())
}

func TestAnomalyFilterEndpointsNeverFlagged(t *testing.T) {
	points := []models.RawPoint{
		trackPoint(0, 55.2, 10.0), // aberrant first fix
		trackPoint(10, 55.0, 10.0),
		trackPoint(20, 55.0001, 10.0),
	}

	changed := NewAnomalyFilter(DefaultAnomalyThresholds).Apply(points)
	assert.Empty(t, changed, "endpoints have only one neighbor and cannot satisfy the two-sided test")
}

func TestAnomalyFilterIgnoresTinyHops(t *testing.T) {
	// Duplicates with identical timestamps: distance below the jitter
	// floor is never evaluated, regardless of the implied speed.
	points := []models.RawPoint{
		trackPoint(0, 55.0, 10.0),
		trackPoint(0, 55.0001, 10.0),
		trackPoint(0, 55.0, 10.0),
	}

	changed := NewAnomalyFilter(DefaultAnomalyThresholds).Apply(points)
	assert.Empty(t, changed)
}

func TestAnomalyFilterSkipsAlreadyFlagged(t *testing.T) {
	points := []models.RawPoint{
		trackPoint(0, 55.0, 10.0),
		trackPoint(10, 55.2, 10.0),
		trackPoint(20, 55.0001, 10.0),
	}
	points[1].Invalid = true

	changed := NewAnomalyFilter(DefaultAnomalyThresholds).Apply(points)
	assert.Empty(t, changed, "a previously flagged point is not re-reported")
}
