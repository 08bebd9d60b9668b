package models

// Trip is the movement segment between two consecutive visits. Its time
// range exactly abuts the visits it connects: StartTime equals the previous
// visit's end and EndTime the next visit's start.
type Trip struct {
	ID           int64 `json:"id" db:"id"`
	UserID       int64 `json:"userId" db:"user_id"`
	StartTime    int64 `json:"startTime" db:"start_time"`
	EndTime      int64 `json:"endTime" db:"end_time"`
	StartPlaceID int64 `json:"startPlaceId" db:"start_place_id"`
	EndPlaceID   int64 `json:"endPlaceId" db:"end_place_id"`

	// EstimatedDistance is the straight-line distance between the place
	// centroids; TravelledDistance is integrated over the underlying
	// usable raw points.
	EstimatedDistanceMeters float64 `json:"estimatedDistanceMeters" db:"estimated_distance_m"`
	TravelledDistanceMeters float64 `json:"travelledDistanceMeters" db:"travelled_distance_m"`

	TransportMode string `json:"transportMode" db:"transport_mode"`

	Version   int64 `json:"version" db:"version"`
	CreatedAt int64 `json:"createdAt,omitempty" db:"created_at"`
}

// DurationSeconds is derived, never stored.
func (t *Trip) DurationSeconds() int64 {
	return t.EndTime - t.StartTime
}

// Contains reports whether the other trip's range lies strictly inside this
// one. Used by the trip merger to discard duplicates from overlapping
// recalculation windows.
func (t *Trip) Contains(other *Trip) bool {
	if t.StartTime == other.StartTime && t.EndTime == other.EndTime {
		return false
	}
	return t.StartTime <= other.StartTime && other.EndTime <= t.EndTime
}

// TransportModeUnknown is the fallback when no speed band matches.
const TransportModeUnknown = "UNKNOWN"
