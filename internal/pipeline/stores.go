package pipeline

import (
	"context"

	"github.com/wandermap/timeline-backend-go/internal/models"
)

// TimeRange is a half-open [Start, End) window in Unix seconds.
type TimeRange struct {
	Start int64
	End   int64
}

// Overlaps reports whether two ranges intersect.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// PointChanges is the atomic write set of the raw-point stages. Either all
// of it commits for the window or none of it does.
type PointChanges struct {
	// Window whose synthetic points are replaced.
	Window TimeRange
	// FlagUpdates are real points whose invalid/ignored flags changed.
	// Updates are version-checked; a stale row yields a ConflictError.
	FlagUpdates []models.RawPoint
	// Synthetic are freshly generated interpolation points for Window.
	Synthetic []models.RawPoint
	// MarkProcessed flags every real point in Window as processed.
	MarkProcessed bool
}

// TimelineChanges is the atomic write set of the visit/trip stages.
type TimelineChanges struct {
	VisitUpdates []models.ProcessedVisit
	VisitInserts []models.ProcessedVisit
	VisitDeletes []int64
	TripUpdates  []models.Trip
	TripInserts  []models.Trip
	TripDeletes  []int64
}

// Empty reports whether the change set writes nothing.
func (c *TimelineChanges) Empty() bool {
	return len(c.VisitUpdates) == 0 && len(c.VisitInserts) == 0 && len(c.VisitDeletes) == 0 &&
		len(c.TripUpdates) == 0 && len(c.TripInserts) == 0 && len(c.TripDeletes) == 0
}

// PointStore is the raw-point persistence the pipeline needs.
type PointStore interface {
	// PointsInRange returns every point of the user in [start, end),
	// synthetic and flagged ones included, ordered by timestamp then id.
	PointsInRange(ctx context.Context, userID, start, end int64) ([]models.RawPoint, error)
	// UnprocessedRange returns the min/max timestamps of points not yet
	// processed. ok is false when there are none.
	UnprocessedRange(ctx context.Context, userID int64) (r TimeRange, ok bool, err error)
	// ApplyChanges commits one window's flag updates and synthetic
	// regeneration in a single transaction.
	ApplyChanges(ctx context.Context, userID int64, changes PointChanges) error
	// MarkRangeUnprocessed clears the processed flag so the affected
	// days are naturally reprocessed. Used by the geometry-edit cleanup.
	MarkRangeUnprocessed(ctx context.Context, userID, start, end int64) error
}

// PlaceStore resolves and persists significant places.
type PlaceStore interface {
	FindNearby(ctx context.Context, userID int64, lat, lon, radiusMeters float64) ([]models.SignificantPlace, error)
	GetByID(ctx context.Context, userID, id int64) (*models.SignificantPlace, error)
	ListByUser(ctx context.Context, userID int64) ([]models.SignificantPlace, error)
	Create(ctx context.Context, place *models.SignificantPlace) error
	Update(ctx context.Context, place *models.SignificantPlace) error
}

// VisitStore persists processed visits.
type VisitStore interface {
	// VisitsInRange returns visits overlapping [start, end), ordered by
	// start time.
	VisitsInRange(ctx context.Context, userID, start, end int64) ([]models.ProcessedVisit, error)
	// VisitBounds returns the min start and max end of visits
	// overlapping [start, end). ok is false when none overlap.
	VisitBounds(ctx context.Context, userID, start, end int64) (r TimeRange, ok bool, err error)
	VisitsByPlace(ctx context.Context, userID, placeID int64) ([]models.ProcessedVisit, error)
}

// TripStore persists trips.
type TripStore interface {
	TripsInRange(ctx context.Context, userID, start, end int64) ([]models.Trip, error)
}

// TimelineStore commits visit and trip changes atomically. Implemented by
// the sqlite layer in one transaction and by the in-memory scratch store
// for previews and tests.
type TimelineStore interface {
	VisitStore
	TripStore
	ApplyTimelineChanges(ctx context.Context, userID int64, changes TimelineChanges) error
	// DeleteByPlace removes every visit and trip referencing the place,
	// in one transaction. Part of the geometry-edit cleanup path.
	DeleteByPlace(ctx context.Context, userID, placeID int64) error
}
