package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// MemStore is an in-memory implementation of every pipeline store. It backs
// the side-effect-free detection preview and the pipeline tests. Semantics
// mirror the sqlite layer, version checks included.
type MemStore struct {
	mu     sync.Mutex
	points []models.RawPoint
	places []models.SignificantPlace
	visits []models.ProcessedVisit
	trips  []models.Trip
	nextID int64
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

func (s *MemStore) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// SeedPoints inserts copies of the given points, assigning ids.
func (s *MemStore) SeedPoints(points []models.RawPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		p.ID = s.id()
		if p.Version == 0 {
			p.Version = 1
		}
		s.points = append(s.points, p)
	}
}

// SeedPlaces inserts copies of the given places, keeping their ids when set.
func (s *MemStore) SeedPlaces(places []models.SignificantPlace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range places {
		if p.ID == 0 {
			p.ID = s.id()
		} else if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
		s.places = append(s.places, p)
	}
}

// Points returns a snapshot of all points, ordered by time.
func (s *MemStore) Points() []models.RawPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RawPoint, len(s.points))
	copy(out, s.points)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Visits returns a snapshot of all visits, ordered by start time.
func (s *MemStore) Visits() []models.ProcessedVisit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ProcessedVisit, len(s.visits))
	copy(out, s.visits)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// Trips returns a snapshot of all trips, ordered by start time.
func (s *MemStore) Trips() []models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Trip, len(s.trips))
	copy(out, s.trips)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// Places returns a snapshot of all places.
func (s *MemStore) Places() []models.SignificantPlace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SignificantPlace, len(s.places))
	copy(out, s.places)
	return out
}

// --- PointStore ---

func (s *MemStore) PointsInRange(_ context.Context, userID, start, end int64) ([]models.RawPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RawPoint
	for _, p := range s.points {
		if p.UserID == userID && p.Timestamp >= start && p.Timestamp < end {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) UnprocessedRange(_ context.Context, userID int64) (TimeRange, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var r TimeRange
	found := false
	for _, p := range s.points {
		if p.UserID != userID || p.Processed || p.Synthetic {
			continue
		}
		if !found || p.Timestamp < r.Start {
			r.Start = p.Timestamp
		}
		if !found || p.Timestamp > r.End {
			r.End = p.Timestamp
		}
		found = true
	}
	return r, found, nil
}

func (s *MemStore) ApplyChanges(_ context.Context, userID int64, changes PointChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, upd := range changes.FlagUpdates {
		for i := range s.points {
			p := &s.points[i]
			if p.ID != upd.ID {
				continue
			}
			if p.Version != upd.Version {
				return &ConflictError{Entity: "raw point", ID: p.ID}
			}
			p.Invalid = upd.Invalid
			p.Ignored = upd.Ignored
			p.Version++
			break
		}
	}

	kept := s.points[:0]
	for _, p := range s.points {
		if p.UserID == userID && p.Synthetic && p.Timestamp >= changes.Window.Start && p.Timestamp < changes.Window.End {
			continue
		}
		kept = append(kept, p)
	}
	s.points = kept

	for _, p := range changes.Synthetic {
		p.ID = s.id()
		p.UserID = userID
		p.Version = 1
		s.points = append(s.points, p)
	}

	if changes.MarkProcessed {
		for i := range s.points {
			p := &s.points[i]
			if p.UserID == userID && !p.Synthetic && p.Timestamp >= changes.Window.Start && p.Timestamp < changes.Window.End {
				p.Processed = true
			}
		}
	}
	return nil
}

func (s *MemStore) MarkRangeUnprocessed(_ context.Context, userID, start, end int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.points {
		p := &s.points[i]
		if p.UserID == userID && !p.Synthetic && p.Timestamp >= start && p.Timestamp < end {
			p.Processed = false
		}
	}
	return nil
}

// --- PlaceStore ---

func (s *MemStore) FindNearby(_ context.Context, userID int64, lat, lon, radiusMeters float64) ([]models.SignificantPlace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SignificantPlace
	for _, p := range s.places {
		if p.UserID != userID {
			continue
		}
		if spatial.Distance(p.Latitude, p.Longitude, lat, lon) <= radiusMeters {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemStore) GetByID(_ context.Context, userID, id int64) (*models.SignificantPlace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.places {
		if p.ID == id && p.UserID == userID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListByUser(_ context.Context, userID int64) ([]models.SignificantPlace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SignificantPlace
	for _, p := range s.places {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemStore) Create(_ context.Context, place *models.SignificantPlace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	place.ID = s.id()
	place.Version = 1
	s.places = append(s.places, *place)
	return nil
}

func (s *MemStore) Update(_ context.Context, place *models.SignificantPlace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.places {
		if s.places[i].ID == place.ID {
			if s.places[i].Version != place.Version {
				return &ConflictError{Entity: "place", ID: place.ID}
			}
			place.Version++
			s.places[i] = *place
			return nil
		}
	}
	return nil
}

// ListUngeocoded satisfies the geocoding sweep.
func (s *MemStore) ListUngeocoded(_ context.Context, limit int) ([]models.SignificantPlace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SignificantPlace
	for _, p := range s.places {
		if !p.Geocoded {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- TimelineStore ---

func (s *MemStore) VisitsInRange(_ context.Context, userID, start, end int64) ([]models.ProcessedVisit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProcessedVisit
	for _, v := range s.visits {
		if v.UserID == userID && v.Overlaps(start, end) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (s *MemStore) VisitBounds(_ context.Context, userID, start, end int64) (TimeRange, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var r TimeRange
	found := false
	for _, v := range s.visits {
		if v.UserID != userID || !v.Overlaps(start, end) {
			continue
		}
		if !found || v.StartTime < r.Start {
			r.Start = v.StartTime
		}
		if !found || v.EndTime > r.End {
			r.End = v.EndTime
		}
		found = true
	}
	return r, found, nil
}

func (s *MemStore) VisitsByPlace(_ context.Context, userID, placeID int64) ([]models.ProcessedVisit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProcessedVisit
	for _, v := range s.visits {
		if v.UserID == userID && v.PlaceID == placeID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *MemStore) TripsInRange(_ context.Context, userID, start, end int64) ([]models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trip
	for _, t := range s.trips {
		if t.UserID == userID && t.StartTime < end && start < t.EndTime {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (s *MemStore) ApplyTimelineChanges(_ context.Context, userID int64, changes TimelineChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, upd := range changes.VisitUpdates {
		for i := range s.visits {
			if s.visits[i].ID == upd.ID {
				if s.visits[i].Version != upd.Version {
					return &ConflictError{Entity: "visit", ID: upd.ID}
				}
				upd.Version++
				s.visits[i] = upd
				break
			}
		}
	}
	for _, ins := range changes.VisitInserts {
		ins.ID = s.id()
		ins.UserID = userID
		ins.Version = 1
		s.visits = append(s.visits, ins)
	}
	for _, id := range changes.VisitDeletes {
		for i := range s.visits {
			if s.visits[i].ID == id {
				s.visits = append(s.visits[:i], s.visits[i+1:]...)
				break
			}
		}
	}

	for _, upd := range changes.TripUpdates {
		for i := range s.trips {
			if s.trips[i].ID == upd.ID {
				if s.trips[i].Version != upd.Version {
					return &ConflictError{Entity: "trip", ID: upd.ID}
				}
				upd.Version++
				s.trips[i] = upd
				break
			}
		}
	}
	for _, ins := range changes.TripInserts {
		ins.ID = s.id()
		ins.UserID = userID
		ins.Version = 1
		s.trips = append(s.trips, ins)
	}
	for _, id := range changes.TripDeletes {
		for i := range s.trips {
			if s.trips[i].ID == id {
				s.trips = append(s.trips[:i], s.trips[i+1:]...)
				break
			}
		}
	}

	return nil
}

func (s *MemStore) DeleteByPlace(_ context.Context, userID, placeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	visits := s.visits[:0]
	for _, v := range s.visits {
		if !(v.UserID == userID && v.PlaceID == placeID) {
			visits = append(visits, v)
		}
	}
	s.visits = visits

	trips := s.trips[:0]
	for _, t := range s.trips {
		if !(t.UserID == userID && (t.StartPlaceID == placeID || t.EndPlaceID == placeID)) {
			trips = append(trips, t)
		}
	}
	s.trips = trips
	return nil
}
