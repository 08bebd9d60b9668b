package pipeline

import (
	"errors"
	"fmt"
)

// The pipeline never surfaces raw storage errors to callers; everything is
// wrapped into this taxonomy.

// DataError marks a single malformed point. The point is rejected, the rest
// of the batch continues.
type DataError struct {
	Index  int
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("invalid point at index %d: %s", e.Index, e.Reason)
}

// ConflictError signals a stale optimistic-locking version. The caller must
// re-fetch and retry the affected window.
type ConflictError struct {
	Entity string
	ID     int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stale version on %s %d, re-fetch and retry", e.Entity, e.ID)
}

// IsConflict reports whether err wraps a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// ConfigurationError means a user's detection parameters are missing or
// unusable. The pipeline falls back to the system defaults and logs.
type ConfigurationError struct {
	UserID   int64
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("detection parameters unusable for user %d: %v", e.UserID, e.Problems)
}

// ErrGeocodingUnavailable is non-fatal: the place stays un-geocoded and a
// later sweep retries it.
var ErrGeocodingUnavailable = errors.New("geocoding unavailable")
