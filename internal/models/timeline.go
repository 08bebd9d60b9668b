package models

// TimelineEntryKind discriminates the entries of a merged timeline.
const (
	TimelineEntryVisit = "VISIT"
	TimelineEntryTrip  = "TRIP"
)

// TimelineEntry is one row of the user-facing timeline: either a visit or a
// trip, ordered by start time.
type TimelineEntry struct {
	Kind      string `json:"kind"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`

	Visit *ProcessedVisit `json:"visit,omitempty"`
	Trip  *Trip           `json:"trip,omitempty"`

	// Place is resolved for visit entries so clients do not need a
	// second lookup.
	Place *SignificantPlace `json:"place,omitempty"`
}

// TimelineFilter selects the range of a timeline query.
type TimelineFilter struct {
	StartTime int64 `form:"startTime"`
	EndTime   int64 `form:"endTime"`
}
