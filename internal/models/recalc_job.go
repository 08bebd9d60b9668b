package models

// RecalcJob tracks one queued or running recalculation for a user. Jobs are
// serialized per user; a failed job is safe to re-trigger.
type RecalcJob struct {
	ID     string `json:"id"`
	UserID int64  `json:"userId"`
	Status string `json:"status"`

	// WindowStart/WindowEnd are zero for "whatever is unprocessed".
	WindowStart int64 `json:"windowStart,omitempty"`
	WindowEnd   int64 `json:"windowEnd,omitempty"`

	// PlaceID is set on place-geometry cleanup jobs.
	PlaceID int64 `json:"placeId,omitempty"`

	PointsProcessed int    `json:"pointsProcessed"`
	VisitsWritten   int    `json:"visitsWritten"`
	TripsWritten    int    `json:"tripsWritten"`
	Error           string `json:"error,omitempty"`

	CreatedAt  int64 `json:"createdAt"`
	StartedAt  int64 `json:"startedAt,omitempty"`
	FinishedAt int64 `json:"finishedAt,omitempty"`
}

// Job status constants.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusNoop      = "noop"
)

// IsTerminal reports whether the job will not change state again.
func (j *RecalcJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusNoop:
		return true
	}
	return false
}
