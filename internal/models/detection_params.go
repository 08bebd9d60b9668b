package models

import "sort"

// SpeedBand maps a transport mode to a speed ceiling. Bands are evaluated
// ascending by MaxSpeedKmh; the first band whose ceiling holds wins.
type SpeedBand struct {
	Mode        string  `json:"mode"`
	MaxSpeedKmh float64 `json:"maxSpeedKmh"`
}

// DetectionParameters is one versioned configuration row for a user. Several
// rows may coexist; the one with the latest ValidSince <= now is
// authoritative. Changing parameters never retroactively rewrites visits
// unless a recalculation is triggered.
type DetectionParameters struct {
	ID         int64 `json:"id" db:"id"`
	UserID     int64 `json:"userId" db:"user_id"`
	ValidSince int64 `json:"validSince" db:"valid_since"` // Unix timestamp

	// Stay-point clustering.
	SearchDistanceMeters   float64 `json:"searchDistanceMeters" db:"search_distance_m"`
	MinimumAdjacentPoints  int     `json:"minimumAdjacentPoints" db:"minimum_adjacent_points"`
	MinimumStaySeconds     int64   `json:"minimumStaySeconds" db:"minimum_stay_seconds"`
	MaxMergeStayGapSeconds int64   `json:"maxMergeStayGapSeconds" db:"max_merge_stay_gap_seconds"`

	// Visit merging.
	VisitSearchDurationHours       int     `json:"visitSearchDurationHours" db:"visit_search_duration_hours"`
	MaxMergeVisitGapSeconds        int64   `json:"maxMergeVisitGapSeconds" db:"max_merge_visit_gap_seconds"`
	MinDistanceBetweenVisitsMeters float64 `json:"minDistanceBetweenVisitsMeters" db:"min_distance_between_visits_m"`

	// Trip construction.
	MaxTripGapSeconds int64       `json:"maxTripGapSeconds" db:"max_trip_gap_seconds"`
	SpeedBands        []SpeedBand `json:"speedBands" db:"-"`

	CreatedAt int64 `json:"createdAt,omitempty" db:"created_at"`
}

// SortedBands returns the speed bands ascending by ceiling.
func (p *DetectionParameters) SortedBands() []SpeedBand {
	bands := make([]SpeedBand, len(p.SpeedBands))
	copy(bands, p.SpeedBands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].MaxSpeedKmh < bands[j].MaxSpeedKmh })
	return bands
}

// Validate checks the configuration for values the pipeline cannot run with.
func (p *DetectionParameters) Validate() []string {
	var problems []string
	if p.SearchDistanceMeters <= 0 {
		problems = append(problems, "searchDistanceMeters must be positive")
	}
	if p.MinimumAdjacentPoints < 2 {
		problems = append(problems, "minimumAdjacentPoints must be at least 2")
	}
	if p.MinimumStaySeconds <= 0 {
		problems = append(problems, "minimumStaySeconds must be positive")
	}
	if p.MaxMergeStayGapSeconds < 0 {
		problems = append(problems, "maxMergeStayGapSeconds must not be negative")
	}
	if p.VisitSearchDurationHours <= 0 {
		problems = append(problems, "visitSearchDurationHours must be positive")
	}
	if p.MaxMergeVisitGapSeconds < 0 {
		problems = append(problems, "maxMergeVisitGapSeconds must not be negative")
	}
	if p.MinDistanceBetweenVisitsMeters <= 0 {
		problems = append(problems, "minDistanceBetweenVisitsMeters must be positive")
	}
	if p.MaxTripGapSeconds <= 0 {
		problems = append(problems, "maxTripGapSeconds must be positive")
	}
	for _, b := range p.SpeedBands {
		if b.Mode == "" || b.MaxSpeedKmh <= 0 {
			problems = append(problems, "speed bands need a mode and a positive ceiling")
			break
		}
	}
	return problems
}

// DefaultDetectionParameters returns the system fallback configuration used
// when a user has no valid row of their own.
func DefaultDetectionParameters() DetectionParameters {
	return DetectionParameters{
		SearchDistanceMeters:           75,
		MinimumAdjacentPoints:          5,
		MinimumStaySeconds:             300,
		MaxMergeStayGapSeconds:         600,
		VisitSearchDurationHours:       24,
		MaxMergeVisitGapSeconds:        900,
		MinDistanceBetweenVisitsMeters: 100,
		MaxTripGapSeconds:              1800,
		SpeedBands: []SpeedBand{
			{Mode: "WALKING", MaxSpeedKmh: 7},
			{Mode: "CYCLING", MaxSpeedKmh: 28},
			{Mode: "DRIVING", MaxSpeedKmh: 150},
			{Mode: "TRAIN", MaxSpeedKmh: 300},
			{Mode: "FLIGHT", MaxSpeedKmh: 1000},
		},
	}
}
