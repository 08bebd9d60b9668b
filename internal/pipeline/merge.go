package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// VisitMerger folds freshly detected raw visits into the pre-existing visit
// history of the surrounding window. Existing visits are extended in place —
// id and version survive — rather than deleted and recreated, so downstream
// references stay valid. The three boundary outcomes are extend-earlier,
// extend-later and split-and-insert.
type VisitMerger struct {
	params models.DetectionParameters
	places PlaceStore

	userID     int64
	placeCache map[int64]*models.SignificantPlace
}

// NewVisitMerger creates a merger for one configuration snapshot.
func NewVisitMerger(params models.DetectionParameters, places PlaceStore) *VisitMerger {
	return &VisitMerger{
		params:     params,
		places:     places,
		placeCache: make(map[int64]*models.SignificantPlace),
	}
}

// mergeCandidate is one interval competing for a spot on the timeline:
// either a raw visit (visitID 0) or an existing visit, possibly truncated
// to its portion outside the recomputed window.
type mergeCandidate struct {
	visitID int64
	placeID int64
	start   int64
	end     int64
}

// mergedInterval is one canonical visit after folding.
type mergedInterval struct {
	placeID      int64
	start        int64
	end          int64
	contributors []int64 // existing visit ids, in start order
	longestPlace int64
	longestDur   int64
}

// Merge reconciles raw visits detected over window with the existing visits
// of the padded surrounding range. It returns the canonical visit set for
// the padded range (inserts carry ID 0) and the change set to persist.
//
// existing must hold every visit overlapping the search-padded range,
// ordered by start; raw must be ordered and non-overlapping.
func (m *VisitMerger) Merge(ctx context.Context, userID int64, raw []RawVisit, existing []models.ProcessedVisit, window TimeRange) ([]models.ProcessedVisit, TimelineChanges, error) {
	var changes TimelineChanges
	m.userID = userID

	candidates := m.buildCandidates(raw, existing, window)
	intervals, err := m.fold(ctx, candidates)
	if err != nil {
		return nil, changes, err
	}

	// Assign identities: each interval claims the first still-unclaimed
	// existing contributor. A visit split in two is claimed by its first
	// fragment; the second becomes an insert.
	claimed := make(map[int64]bool)
	byID := make(map[int64]*models.ProcessedVisit, len(existing))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}

	final := make([]models.ProcessedVisit, 0, len(intervals))
	for _, iv := range intervals {
		var owner *models.ProcessedVisit
		for _, id := range iv.contributors {
			if !claimed[id] {
				claimed[id] = true
				owner = byID[id]
				break
			}
		}

		// No boundary fragment carried an id into this interval. A visit
		// fully inside the window leaves no fragment, yet re-deriving it
		// must keep its identity: claim the first unclaimed existing
		// visit the interval overlaps at the same place.
		if owner == nil {
			for i := range existing {
				v := &existing[i]
				if claimed[v.ID] || !v.Overlaps(iv.start, iv.end) {
					continue
				}
				same, err := m.samePlace(ctx, v.PlaceID, iv.longestPlace)
				if err != nil {
					return nil, changes, err
				}
				if same {
					claimed[v.ID] = true
					owner = v
					break
				}
			}
		}

		if owner == nil {
			// The longest contributing segment decides the place of
			// a brand-new visit.
			placeID := iv.longestPlace
			v := models.ProcessedVisit{
				UserID:    userID,
				PlaceID:   placeID,
				StartTime: iv.start,
				EndTime:   iv.end,
			}
			changes.VisitInserts = append(changes.VisitInserts, v)
			final = append(final, v)
			continue
		}

		v := *owner
		if v.StartTime != iv.start || v.EndTime != iv.end {
			v.StartTime = iv.start
			v.EndTime = iv.end
			changes.VisitUpdates = append(changes.VisitUpdates, v)
		}
		final = append(final, v)
	}

	// Existing visits never claimed lost their support: either absorbed
	// into a neighbor or rebuilt away entirely.
	for i := range existing {
		if !claimed[existing[i].ID] {
			changes.VisitDeletes = append(changes.VisitDeletes, existing[i].ID)
		}
	}

	sort.Slice(final, func(i, j int) bool { return final[i].StartTime < final[j].StartTime })
	return final, changes, nil
}

// buildCandidates truncates window-overlapping existing visits to their
// boundary fragments: the part of a visit inside the recomputed window is
// re-derived from raw visits, the parts outside keep the visit in play so
// the fold can extend it across the boundary.
func (m *VisitMerger) buildCandidates(raw []RawVisit, existing []models.ProcessedVisit, window TimeRange) []mergeCandidate {
	candidates := make([]mergeCandidate, 0, len(raw)+len(existing))

	for _, v := range existing {
		if !v.Overlaps(window.Start, window.End) {
			candidates = append(candidates, mergeCandidate{visitID: v.ID, placeID: v.PlaceID, start: v.StartTime, end: v.EndTime})
			continue
		}
		if v.StartTime < window.Start {
			candidates = append(candidates, mergeCandidate{visitID: v.ID, placeID: v.PlaceID, start: v.StartTime, end: window.Start})
		}
		if v.EndTime > window.End {
			candidates = append(candidates, mergeCandidate{visitID: v.ID, placeID: v.PlaceID, start: window.End, end: v.EndTime})
		}
		// A visit fully inside the window contributes nothing; it is
		// deleted unless re-derived raw visits reclaim it.
	}

	for _, r := range raw {
		candidates = append(candidates, mergeCandidate{placeID: r.PlaceID, start: r.StartTime, end: r.EndTime})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].start != candidates[j].start {
			return candidates[i].start < candidates[j].start
		}
		return candidates[i].end < candidates[j].end
	})
	return candidates
}

// fold merges consecutive candidates at the same or a nearby place when the
// gap between them is small enough.
func (m *VisitMerger) fold(ctx context.Context, candidates []mergeCandidate) ([]mergedInterval, error) {
	var intervals []mergedInterval

	for _, c := range candidates {
		dur := c.end - c.start
		if len(intervals) > 0 {
			cur := &intervals[len(intervals)-1]
			gap := c.start - cur.end
			same, err := m.samePlace(ctx, cur.placeID, c.placeID)
			if err != nil {
				return nil, err
			}
			if same && gap <= m.params.MaxMergeVisitGapSeconds {
				if c.end > cur.end {
					cur.end = c.end
				}
				if c.visitID != 0 {
					cur.contributors = append(cur.contributors, c.visitID)
				}
				if dur > cur.longestDur {
					cur.longestDur = dur
					cur.longestPlace = c.placeID
				}
				continue
			}
		}

		iv := mergedInterval{placeID: c.placeID, start: c.start, end: c.end, longestDur: dur, longestPlace: c.placeID}
		if c.visitID != 0 {
			iv.contributors = append(iv.contributors, c.visitID)
		}
		intervals = append(intervals, iv)
	}

	return intervals, nil
}

// samePlace reports whether two places count as one location for merging:
// identical, or centroids within minDistanceBetweenVisits.
func (m *VisitMerger) samePlace(ctx context.Context, a, b int64) (bool, error) {
	if a == b {
		return true, nil
	}
	pa, err := m.place(ctx, a)
	if err != nil {
		return false, err
	}
	pb, err := m.place(ctx, b)
	if err != nil {
		return false, err
	}
	if pa == nil || pb == nil {
		return false, nil
	}
	dist := spatial.Distance(pa.Latitude, pa.Longitude, pb.Latitude, pb.Longitude)
	return dist <= m.params.MinDistanceBetweenVisitsMeters, nil
}

func (m *VisitMerger) place(ctx context.Context, id int64) (*models.SignificantPlace, error) {
	if p, ok := m.placeCache[id]; ok {
		return p, nil
	}
	p, err := m.places.GetByID(ctx, m.userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load place %d: %w", id, err)
	}
	m.placeCache[id] = p
	return p, nil
}
