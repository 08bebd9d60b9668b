package pipeline

import (
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// DensitySettings configures the density normalizer.
type DensitySettings struct {
	// TargetPointsPerMinute is the density synthetic points fill up to.
	TargetPointsPerMinute int
	// MinIntervalSeconds is the near-duplicate tolerance: a point closer
	// in time than this to the previously kept one is flagged ignored.
	MinIntervalSeconds int64
	// Gaps wider than these maxima are genuine discontinuities and are
	// never interpolated; the trip stage represents them instead.
	MaxInterpolationDistanceMeters float64
	MaxInterpolationTimeSeconds    int64
}

// DefaultDensitySettings provides the default normalizer configuration.
var DefaultDensitySettings = DensitySettings{
	TargetPointsPerMinute:          4,
	MinIntervalSeconds:             3,
	MaxInterpolationDistanceMeters: 300,
	MaxInterpolationTimeSeconds:    600,
}

// DensityNormalizer guarantees a locally uniform point density: it fills
// bounded temporal gaps with linearly interpolated synthetic points and
// flags near-duplicate bursts as ignored. Both operations are reversible —
// nothing is deleted, synthetic points are regenerated per window.
type DensityNormalizer struct {
	Settings DensitySettings
}

// NewDensityNormalizer creates a normalizer with the given settings.
func NewDensityNormalizer(settings DensitySettings) *DensityNormalizer {
	return &DensityNormalizer{Settings: settings}
}

// intervalSeconds is the target sampling interval.
func (n *DensityNormalizer) intervalSeconds() int64 {
	if n.Settings.TargetPointsPerMinute <= 0 {
		return 60
	}
	return int64(60 / n.Settings.TargetPointsPerMinute)
}

// Normalize sweeps an ordered slice of real, valid points. It returns the
// synthetic points to insert and sets the Ignored flag in place on
// near-duplicates, returning those too. Callers must pass a slice without
// pre-existing synthetic points: rerunning over a window first clears the
// window's synthetic points so no duplicates accumulate.
func (n *DensityNormalizer) Normalize(points []models.RawPoint) (synthetic []models.RawPoint, ignored []*models.RawPoint) {
	interval := n.intervalSeconds()

	var lastKept *models.RawPoint
	for i := range points {
		p := &points[i]
		if p.Invalid {
			continue
		}

		if lastKept != nil && p.Timestamp-lastKept.Timestamp < n.Settings.MinIntervalSeconds {
			if !p.Ignored {
				p.Ignored = true
				ignored = append(ignored, p)
			}
			continue
		}

		if lastKept != nil {
			synthetic = append(synthetic, n.interpolate(lastKept, p, interval)...)
		}
		lastKept = p
	}

	return synthetic, ignored
}

// interpolate fills the gap between a and b with synthetic points at the
// target interval. Points land on a.Timestamp + k*interval, strictly inside
// the gap — the endpoints already exist. Gaps wider than the configured
// distance or time maxima are left alone.
func (n *DensityNormalizer) interpolate(a, b *models.RawPoint, interval int64) []models.RawPoint {
	gap := b.Timestamp - a.Timestamp
	if gap <= interval {
		return nil
	}
	if gap > n.Settings.MaxInterpolationTimeSeconds {
		return nil
	}
	if spatial.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude) > n.Settings.MaxInterpolationDistanceMeters {
		return nil
	}

	var out []models.RawPoint
	for ts := a.Timestamp + interval; ts < b.Timestamp; ts += interval {
		fraction := float64(ts-a.Timestamp) / float64(gap)
		lat, lon := spatial.Interpolate(fraction, a.Latitude, a.Longitude, b.Latitude, b.Longitude)

		sp := models.RawPoint{
			UserID:    a.UserID,
			Timestamp: ts,
			Latitude:  lat,
			Longitude: lon,
			Synthetic: true,
			Processed: true,
		}
		if a.Accuracy != nil && b.Accuracy != nil {
			acc := *a.Accuracy + (*b.Accuracy-*a.Accuracy)*fraction
			sp.Accuracy = &acc
		}
		if a.Elevation != nil && b.Elevation != nil {
			ele := *a.Elevation + (*b.Elevation-*a.Elevation)*fraction
			sp.Elevation = &ele
		}
		out = append(out, sp)
	}

	return out
}
