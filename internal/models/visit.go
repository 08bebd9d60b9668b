package models

// ProcessedVisit is a canonical (place, time range) pair after merging.
// Invariants: StartTime < EndTime, and no two visits of one user overlap.
type ProcessedVisit struct {
	ID        int64 `json:"id" db:"id"`
	UserID    int64 `json:"userId" db:"user_id"`
	PlaceID   int64 `json:"placeId" db:"place_id"`
	StartTime int64 `json:"startTime" db:"start_time"` // Unix timestamp
	EndTime   int64 `json:"endTime" db:"end_time"`     // Unix timestamp
	Version   int64 `json:"version" db:"version"`
	CreatedAt int64 `json:"createdAt,omitempty" db:"created_at"`
}

// DurationSeconds is derived, never stored.
func (v *ProcessedVisit) DurationSeconds() int64 {
	return v.EndTime - v.StartTime
}

// Overlaps reports whether two time ranges intersect.
func (v *ProcessedVisit) Overlaps(start, end int64) bool {
	return v.StartTime < end && start < v.EndTime
}
