package models

// RawPoint represents a single ingested GPS fix. Points are immutable after
// ingestion except for the pipeline flags and the optimistic-locking version.
type RawPoint struct {
	ID        int64    `json:"id" db:"id"`
	UserID    int64    `json:"userId" db:"user_id"`
	Timestamp int64    `json:"timestamp" db:"timestamp"` // Unix timestamp in seconds
	Latitude  float64  `json:"latitude" db:"latitude"`
	Longitude float64  `json:"longitude" db:"longitude"`
	Accuracy  *float64 `json:"accuracyMeters,omitempty" db:"accuracy_m"`
	Elevation *float64 `json:"elevationMeters,omitempty" db:"elevation_m"`

	// Pipeline flags. All independent: a synthetic point can later be
	// marked invalid without losing its synthetic origin.
	Processed bool `json:"processed" db:"processed"`
	Synthetic bool `json:"synthetic" db:"synthetic"`
	Ignored   bool `json:"ignored" db:"ignored"`
	Invalid   bool `json:"invalid" db:"invalid"`

	Version   int64 `json:"version" db:"version"`
	CreatedAt int64 `json:"createdAt,omitempty" db:"created_at"`
}

// Usable reports whether the point participates in clustering: processed or
// not, a point must be neither ignored nor invalid to count.
func (p *RawPoint) Usable() bool {
	return !p.Ignored && !p.Invalid
}

// IngestPoint is the producer-agnostic ingestion shape. GPX, Google Timeline,
// GeoJSON and OwnTracks adapters all reduce to this.
type IngestPoint struct {
	Timestamp int64    `json:"timestamp" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Accuracy  *float64 `json:"accuracyMeters,omitempty"`
	Elevation *float64 `json:"elevationMeters,omitempty"`
}

// IngestResult summarises one ingestion batch. Rejected points do not abort
// the batch; they are reported back per index.
type IngestResult struct {
	Accepted int            `json:"accepted"`
	Rejected []RejectedPoint `json:"rejected,omitempty"`
}

// RejectedPoint names a single malformed point within an ingestion batch.
type RejectedPoint struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}
