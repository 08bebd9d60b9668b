package pipeline

import (
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// AnomalyThresholds defines configurable thresholds for anomaly detection
type AnomalyThresholds struct {
	MaxSpeedKmh       float64 // implied speed above this is implausible
	MinDistanceMeters float64 // below this, jitter is not evaluated
	MinTimeSeconds    int64   // below this, the speed estimate is too noisy
}

// DefaultAnomalyThresholds provides default anomaly detection thresholds
var DefaultAnomalyThresholds = AnomalyThresholds{
	MaxSpeedKmh:       1000.0, // covers commercial flights
	MinDistanceMeters: 50.0,
	MinTimeSeconds:    2,
}

// AnomalyFilter marks raw points whose implied speed from their neighbors is
// physically implausible. Flagged points are retained and excluded by the
// downstream read filter, never deleted.
type AnomalyFilter struct {
	Thresholds AnomalyThresholds
}

// NewAnomalyFilter creates a filter with the given thresholds.
func NewAnomalyFilter(thresholds AnomalyThresholds) *AnomalyFilter {
	return &AnomalyFilter{Thresholds: thresholds}
}

// Apply sweeps an ordered point slice and sets the Invalid flag in place.
// A point is flagged only when BOTH the previous and the next valid
// neighbor independently disagree with it; a single aberrant neighbor is
// not enough, which keeps one bad fix from cascading into its successors.
// Returns the points whose flag changed.
func (f *AnomalyFilter) Apply(points []models.RawPoint) []*models.RawPoint {
	var changed []*models.RawPoint

	for i := range points {
		p := &points[i]
		if p.Invalid || p.Ignored {
			continue
		}

		prev := f.prevValid(points, i)
		next := f.nextValid(points, i)
		if prev == nil || next == nil {
			// Endpoints have only one neighbor and cannot satisfy
			// the two-sided test.
			continue
		}

		if f.implausible(prev, p) && f.implausible(p, next) {
			p.Invalid = true
			changed = append(changed, p)
		}
	}

	return changed
}

// implausible reports whether moving from a to b requires a speed above the
// threshold. Tiny hops and near-zero time deltas are not evaluated.
func (f *AnomalyFilter) implausible(a, b *models.RawPoint) bool {
	if spatial.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude) < f.Thresholds.MinDistanceMeters {
		return false
	}
	// Clamp the delta so that near-simultaneous fixes do not produce an
	// absurd implied speed on their own.
	t2 := b.Timestamp
	if t2-a.Timestamp < f.Thresholds.MinTimeSeconds {
		t2 = a.Timestamp + f.Thresholds.MinTimeSeconds
	}
	speed := spatial.SpeedKmh(a.Latitude, a.Longitude, a.Timestamp, b.Latitude, b.Longitude, t2)
	return speed > f.Thresholds.MaxSpeedKmh
}

func (f *AnomalyFilter) prevValid(points []models.RawPoint, i int) *models.RawPoint {
	for j := i - 1; j >= 0; j-- {
		if points[j].Usable() {
			return &points[j]
		}
	}
	return nil
}

func (f *AnomalyFilter) nextValid(points []models.RawPoint, i int) *models.RawPoint {
	for j := i + 1; j < len(points); j++ {
		// The successor has not been evaluated yet; an invalid flag
		// there can only come from an earlier run.
		if points[j].Usable() {
			return &points[j]
		}
	}
	return nil
}
