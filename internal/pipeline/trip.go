package pipeline

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// TripBuilder fills the gaps between consecutive processed visits with
// trips, estimates distances, infers the transport mode and reconciles the
// result with trips from earlier runs over overlapping windows.
type TripBuilder struct {
	params models.DetectionParameters
	places PlaceStore
}

// NewTripBuilder creates a builder for one configuration snapshot.
func NewTripBuilder(params models.DetectionParameters, places PlaceStore) *TripBuilder {
	return &TripBuilder{params: params, places: places}
}

// Build derives trips between the visits of the padded window and merges
// them with the existing trips there. points must be the usable raw points
// of the same range, ordered by time; existing the trips overlapping it.
// A trip's range exactly abuts its two visits: no gap, no overlap.
func (b *TripBuilder) Build(ctx context.Context, userID int64, visits []models.ProcessedVisit, points []models.RawPoint, existing []models.Trip, window TimeRange) (TimelineChanges, error) {
	var changes TimelineChanges

	fresh, err := b.derive(ctx, userID, visits, points)
	if err != nil {
		return changes, err
	}
	fresh = dropContained(fresh)

	// Reconcile by place pair and overlap so a rebuilt trip keeps the id
	// of its predecessor instead of churning rows.
	claimed := make(map[int64]bool)
	for _, t := range fresh {
		var owner *models.Trip
		for i := range existing {
			e := &existing[i]
			if claimed[e.ID] {
				continue
			}
			if e.StartPlaceID == t.StartPlaceID && e.EndPlaceID == t.EndPlaceID &&
				e.StartTime < t.EndTime && t.StartTime < e.EndTime {
				owner = e
				break
			}
		}

		if owner == nil {
			changes.TripInserts = append(changes.TripInserts, t)
			continue
		}
		claimed[owner.ID] = true
		if owner.StartTime != t.StartTime || owner.EndTime != t.EndTime ||
			owner.TransportMode != t.TransportMode ||
			owner.EstimatedDistanceMeters != t.EstimatedDistanceMeters ||
			owner.TravelledDistanceMeters != t.TravelledDistanceMeters {
			updated := *owner
			updated.StartTime = t.StartTime
			updated.EndTime = t.EndTime
			updated.EstimatedDistanceMeters = t.EstimatedDistanceMeters
			updated.TravelledDistanceMeters = t.TravelledDistanceMeters
			updated.TransportMode = t.TransportMode
			changes.TripUpdates = append(changes.TripUpdates, updated)
		}
	}

	// Unclaimed trips inside the window were produced by a previous run
	// over data that no longer supports them.
	for i := range existing {
		e := &existing[i]
		if claimed[e.ID] {
			continue
		}
		if e.StartTime >= window.Start && e.EndTime <= window.End {
			changes.TripDeletes = append(changes.TripDeletes, e.ID)
		}
	}

	return changes, nil
}

// derive builds one trip per gap between consecutive visits.
func (b *TripBuilder) derive(ctx context.Context, userID int64, visits []models.ProcessedVisit, points []models.RawPoint) ([]models.Trip, error) {
	var trips []models.Trip

	for i := 1; i < len(visits); i++ {
		prev := &visits[i-1]
		next := &visits[i]
		if next.StartTime <= prev.EndTime {
			continue
		}

		estimated, err := b.straightLine(ctx, userID, prev.PlaceID, next.PlaceID)
		if err != nil {
			return nil, err
		}
		travelled, speeds := b.pathStats(points, prev.EndTime, next.StartTime)

		trip := models.Trip{
			UserID:                  userID,
			StartTime:               prev.EndTime,
			EndTime:                 next.StartTime,
			StartPlaceID:            prev.PlaceID,
			EndPlaceID:              next.PlaceID,
			EstimatedDistanceMeters: estimated,
			TravelledDistanceMeters: travelled,
		}
		trip.TransportMode = b.inferMode(&trip, speeds)
		trips = append(trips, trip)
	}

	return trips, nil
}

// straightLine is the centroid distance between the two places.
func (b *TripBuilder) straightLine(ctx context.Context, userID, fromPlace, toPlace int64) (float64, error) {
	from, err := b.places.GetByID(ctx, userID, fromPlace)
	if err != nil {
		return 0, fmt.Errorf("failed to load place %d: %w", fromPlace, err)
	}
	to, err := b.places.GetByID(ctx, userID, toPlace)
	if err != nil {
		return 0, fmt.Errorf("failed to load place %d: %w", toPlace, err)
	}
	if from == nil || to == nil {
		return 0, nil
	}
	return spatial.Distance(from.Latitude, from.Longitude, to.Latitude, to.Longitude), nil
}

// pathStats integrates the travelled distance over the usable points inside
// (start, end) and collects instantaneous point-to-point speeds in km/h.
// Segments sparser than maxTripGapSeconds are genuine data holes and are
// skipped in both sums.
func (b *TripBuilder) pathStats(points []models.RawPoint, start, end int64) (float64, []float64) {
	var travelled float64
	var speeds []float64

	var prev *models.RawPoint
	for i := range points {
		p := &points[i]
		if p.Timestamp < start || p.Timestamp > end || !p.Usable() {
			continue
		}
		if prev != nil {
			dt := p.Timestamp - prev.Timestamp
			if dt > 0 && dt <= b.params.MaxTripGapSeconds {
				travelled += spatial.Distance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
				speeds = append(speeds, spatial.SpeedKmh(prev.Latitude, prev.Longitude, prev.Timestamp, p.Latitude, p.Longitude, p.Timestamp))
			}
		}
		prev = p
	}

	return travelled, speeds
}

// inferMode compares the trip's average speed and the 95th-percentile
// instantaneous speed against the configured bands, ascending by ceiling.
// The first band neither speed exceeds wins; nothing matching falls back to
// the unknown mode.
func (b *TripBuilder) inferMode(trip *models.Trip, speeds []float64) string {
	duration := trip.DurationSeconds()
	if duration <= 0 {
		return models.TransportModeUnknown
	}

	distance := trip.TravelledDistanceMeters
	if distance == 0 {
		distance = trip.EstimatedDistanceMeters
	}
	avgKmh := distance / float64(duration) * 3.6

	peakKmh := avgKmh
	if len(speeds) > 0 {
		sorted := make([]float64, len(speeds))
		copy(sorted, speeds)
		sort.Float64s(sorted)
		p95 := stat.Quantile(0.95, stat.Empirical, sorted, nil)
		if p95 > peakKmh {
			peakKmh = p95
		}
	}

	for _, band := range b.params.SortedBands() {
		if avgKmh <= band.MaxSpeedKmh && peakKmh <= band.MaxSpeedKmh {
			return band.Mode
		}
	}
	return models.TransportModeUnknown
}

// dropContained discards trips strictly contained in a wider one, keeping
// the widest span. Containment only arises when recalculation reprocesses
// overlapping windows.
func dropContained(trips []models.Trip) []models.Trip {
	if len(trips) < 2 {
		return trips
	}
	sort.Slice(trips, func(i, j int) bool {
		if trips[i].StartTime != trips[j].StartTime {
			return trips[i].StartTime < trips[j].StartTime
		}
		return trips[i].EndTime > trips[j].EndTime
	})

	out := trips[:0]
	for _, t := range trips {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Contains(&t) || (last.StartTime == t.StartTime && last.EndTime == t.EndTime) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
