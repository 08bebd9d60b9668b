package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/wandermap/timeline-backend-go/internal/models"
)

const daySeconds = 86400

// WindowSettings controls how far the affected window reaches around newly
// imported data.
type WindowSettings struct {
	LookbackDays  int
	LookaheadDays int
}

// DefaultWindowSettings provides the default window padding.
var DefaultWindowSettings = WindowSettings{LookbackDays: 1, LookaheadDays: 1}

// ParamsSource yields the authoritative detection parameters for a user:
// the row with the latest validSince not in the future. Implementations
// return a ConfigurationError when no usable row exists.
type ParamsSource interface {
	CurrentParameters(ctx context.Context, userID int64) (models.DetectionParameters, error)
}

// RunResult summarises one pipeline run.
type RunResult struct {
	Window          TimeRange
	PointsProcessed int
	StayPoints      int
	VisitsWritten   int
	TripsWritten    int
	// Noop is true when there was nothing to recalculate.
	Noop bool
}

// Engine runs the full pipeline — anomaly filter, density normalizer,
// stay-point detection, visit detection, visit merging, trip building —
// over one user's affected window. One run is a single-threaded sweep;
// per-user serialization is the JobQueue's concern.
type Engine struct {
	points   PointStore
	places   PlaceStore
	timeline TimelineStore
	params   ParamsSource
	events   PlaceEvents

	anomaly AnomalyThresholds
	density DensitySettings
	window  WindowSettings
}

// NewEngine wires an engine from its stores.
func NewEngine(points PointStore, places PlaceStore, timeline TimelineStore, params ParamsSource, events PlaceEvents) *Engine {
	return &Engine{
		points:   points,
		places:   places,
		timeline: timeline,
		params:   params,
		events:   events,
		anomaly:  DefaultAnomalyThresholds,
		density:  DefaultDensitySettings,
		window:   DefaultWindowSettings,
	}
}

// SetTuning overrides the system-level stage settings.
func (e *Engine) SetTuning(anomaly AnomalyThresholds, density DensitySettings, window WindowSettings) {
	e.anomaly = anomaly
	e.density = density
	e.window = window
}

// Run computes the affected window from the user's unprocessed points and
// reprocesses it. With no unprocessed data the run is a no-op, not an error.
func (e *Engine) Run(ctx context.Context, userID int64) (*RunResult, error) {
	unprocessed, ok, err := e.points.UnprocessedRange(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find unprocessed range: %w", err)
	}
	if !ok {
		log.Printf("[Engine] user %d: nothing unprocessed", userID)
		return &RunResult{Noop: true}, nil
	}

	window, err := e.AffectedWindow(ctx, userID, unprocessed)
	if err != nil {
		return nil, err
	}
	return e.ProcessWindow(ctx, userID, window)
}

// AffectedWindow expands the new-data range to day bounds plus the
// configured lookback/lookahead, then further so that any existing visit
// overlapping the range is fully inside — the merger needs that context to
// extend rather than duplicate.
func (e *Engine) AffectedWindow(ctx context.Context, userID int64, newData TimeRange) (TimeRange, error) {
	window := TimeRange{
		Start: dayFloor(newData.Start) - int64(e.window.LookbackDays)*daySeconds,
		End:   dayFloor(newData.End) + int64(e.window.LookaheadDays+1)*daySeconds,
	}

	bounds, ok, err := e.timeline.VisitBounds(ctx, userID, window.Start, window.End)
	if err != nil {
		return window, fmt.Errorf("failed to expand window over visits: %w", err)
	}
	if ok {
		if bounds.Start < window.Start {
			window.Start = bounds.Start
		}
		if bounds.End > window.End {
			window.End = bounds.End
		}
	}

	return window, nil
}

// ProcessWindow reruns every stage over [window.Start, window.End). History
// strictly outside the window is never touched.
func (e *Engine) ProcessWindow(ctx context.Context, userID int64, window TimeRange) (*RunResult, error) {
	params := e.resolveParams(ctx, userID)

	all, err := e.points.PointsInRange(ctx, userID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load points: %w", err)
	}
	if len(all) == 0 {
		log.Printf("[Engine] user %d: window [%d, %d) holds no points", userID, window.Start, window.End)
		return &RunResult{Window: window, Noop: true}, nil
	}

	// Stage 1+2 operate on real points only: the window's synthetic
	// points are regenerated from scratch every run, which keeps reruns
	// idempotent.
	real := make([]models.RawPoint, 0, len(all))
	for _, p := range all {
		if !p.Synthetic {
			real = append(real, p)
		}
	}

	filter := NewAnomalyFilter(e.anomaly)
	invalidated := filter.Apply(real)

	normalizer := NewDensityNormalizer(e.density)
	synthetic, ignored := normalizer.Normalize(real)

	changes := PointChanges{Window: window, Synthetic: synthetic, MarkProcessed: true}
	for _, p := range invalidated {
		changes.FlagUpdates = append(changes.FlagUpdates, *p)
	}
	for _, p := range ignored {
		changes.FlagUpdates = append(changes.FlagUpdates, *p)
	}
	if err := e.points.ApplyChanges(ctx, userID, changes); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stages 3-6 see the regenerated point set.
	combined := append(real, synthetic...)
	sort.SliceStable(combined, func(i, j int) bool { return combined[i].Timestamp < combined[j].Timestamp })

	detector := NewStayPointDetector(params)
	stays := detector.Detect(combined)

	visitDetector := NewVisitDetector(params, e.places, e.events)
	rawVisits, err := visitDetector.Detect(ctx, userID, stays)
	if err != nil {
		return nil, err
	}

	padded := TimeRange{
		Start: window.Start - int64(params.VisitSearchDurationHours)*3600,
		End:   window.End + int64(params.VisitSearchDurationHours)*3600,
	}
	existingVisits, err := e.timeline.VisitsInRange(ctx, userID, padded.Start, padded.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing visits: %w", err)
	}

	merger := NewVisitMerger(params, e.places)
	finalVisits, timelineChanges, err := merger.Merge(ctx, userID, rawVisits, existingVisits, window)
	if err != nil {
		return nil, err
	}

	existingTrips, err := e.timeline.TripsInRange(ctx, userID, padded.Start, padded.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing trips: %w", err)
	}
	tripPoints, err := e.points.PointsInRange(ctx, userID, padded.Start, padded.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip points: %w", err)
	}

	builder := NewTripBuilder(params, e.places)
	tripChanges, err := builder.Build(ctx, userID, finalVisits, tripPoints, existingTrips, padded)
	if err != nil {
		return nil, err
	}

	timelineChanges.TripUpdates = tripChanges.TripUpdates
	timelineChanges.TripInserts = tripChanges.TripInserts
	timelineChanges.TripDeletes = tripChanges.TripDeletes

	if !timelineChanges.Empty() {
		if err := e.timeline.ApplyTimelineChanges(ctx, userID, timelineChanges); err != nil {
			return nil, err
		}
	}

	result := &RunResult{
		Window:          window,
		PointsProcessed: len(real),
		StayPoints:      len(stays),
		VisitsWritten:   len(timelineChanges.VisitUpdates) + len(timelineChanges.VisitInserts),
		TripsWritten:    len(timelineChanges.TripUpdates) + len(timelineChanges.TripInserts),
	}
	log.Printf("[Engine] user %d: window [%d, %d) processed %d points, %d stay points, %d visit writes, %d trip writes",
		userID, window.Start, window.End, result.PointsProcessed, result.StayPoints, result.VisitsWritten, result.TripsWritten)
	return result, nil
}

// CleanupPlace handles a geometry edit: visits and trips referencing the
// place are removed and the underlying days are marked unprocessed, so the
// next run rebuilds that history against the new geometry.
func (e *Engine) CleanupPlace(ctx context.Context, userID, placeID int64) error {
	visits, err := e.timeline.VisitsByPlace(ctx, userID, placeID)
	if err != nil {
		return fmt.Errorf("failed to load visits for place %d: %w", placeID, err)
	}

	for _, v := range visits {
		if err := e.points.MarkRangeUnprocessed(ctx, userID, dayFloor(v.StartTime), dayFloor(v.EndTime)+daySeconds); err != nil {
			return fmt.Errorf("failed to mark days unprocessed: %w", err)
		}
	}
	if err := e.timeline.DeleteByPlace(ctx, userID, placeID); err != nil {
		return fmt.Errorf("failed to delete timeline entries for place %d: %w", placeID, err)
	}

	log.Printf("[Engine] user %d: cleaned up place %d across %d visits", userID, placeID, len(visits))
	return nil
}

// resolveParams loads the user's configuration, falling back to the system
// defaults when it is missing or unusable.
func (e *Engine) resolveParams(ctx context.Context, userID int64) models.DetectionParameters {
	params, err := e.params.CurrentParameters(ctx, userID)
	if err != nil {
		log.Printf("[Engine] user %d: %v, using default parameters", userID, err)
		return models.DefaultDetectionParameters()
	}
	if problems := params.Validate(); len(problems) > 0 {
		log.Printf("[Engine] user %d: %v, using default parameters", userID, &ConfigurationError{UserID: userID, Problems: problems})
		return models.DefaultDetectionParameters()
	}
	return params
}

func dayFloor(ts int64) int64 {
	return ts - (ts%daySeconds+daySeconds)%daySeconds
}
