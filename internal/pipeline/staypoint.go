package pipeline

import (
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/spatial"
)

// StayPoint is an ephemeral spatial-temporal cluster marking a pause in
// movement. It lives inside one pipeline run and is never persisted.
type StayPoint struct {
	Latitude   float64
	Longitude  float64
	StartTime  int64
	EndTime    int64
	PointCount int
}

// StayPointDetector clusters consecutive usable points into candidate
// dwell locations using a distance/time-window sweep.
type StayPointDetector struct {
	params models.DetectionParameters
}

// NewStayPointDetector creates a detector for one configuration snapshot.
func NewStayPointDetector(params models.DetectionParameters) *StayPointDetector {
	return &StayPointDetector{params: params}
}

// Detect sweeps the ordered point sequence. A candidate cluster opens at a
// point and absorbs successors while each stays within searchDistance of
// the running centroid; the first point outside closes it. A closed cluster
// qualifies as a stay point when it has enough points and spans the minimum
// stay time, otherwise its points are transit and fold into the
// surrounding trip.
func (d *StayPointDetector) Detect(points []models.RawPoint) []StayPoint {
	usable := filterUsable(points)
	if len(usable) == 0 {
		return nil
	}

	var stays []StayPoint
	i := 0
	for i < len(usable) {
		cluster := []spatial.Point{{Lat: usable[i].Latitude, Lon: usable[i].Longitude}}
		centroid := cluster[0]
		start := usable[i].Timestamp
		end := start

		j := i + 1
		for j < len(usable) {
			p := usable[j]
			if spatial.Distance(centroid.Lat, centroid.Lon, p.Latitude, p.Longitude) > d.params.SearchDistanceMeters {
				break
			}
			cluster = append(cluster, spatial.Point{Lat: p.Latitude, Lon: p.Longitude})
			centroid = spatial.Centroid(cluster)
			end = p.Timestamp
			j++
		}

		if len(cluster) >= d.params.MinimumAdjacentPoints && end-start >= d.params.MinimumStaySeconds {
			stays = append(stays, StayPoint{
				Latitude:   centroid.Lat,
				Longitude:  centroid.Lon,
				StartTime:  start,
				EndTime:    end,
				PointCount: len(cluster),
			})
			i = j
		} else {
			// Transit point: move the window forward by one.
			i++
		}
	}

	return d.coalesce(stays)
}

// coalesce merges consecutive stay points at the same location separated by
// a gap below maxMergeTimeBetweenSameStayPoints, so a brief GPS wobble does
// not split one dwell into two.
func (d *StayPointDetector) coalesce(stays []StayPoint) []StayPoint {
	if len(stays) < 2 {
		return stays
	}

	out := []StayPoint{stays[0]}
	for _, s := range stays[1:] {
		last := &out[len(out)-1]
		gap := s.StartTime - last.EndTime
		dist := spatial.Distance(last.Latitude, last.Longitude, s.Latitude, s.Longitude)

		if gap <= d.params.MaxMergeStayGapSeconds && dist <= d.params.SearchDistanceMeters {
			// Weight the merged centroid by point count.
			total := float64(last.PointCount + s.PointCount)
			last.Latitude = (last.Latitude*float64(last.PointCount) + s.Latitude*float64(s.PointCount)) / total
			last.Longitude = (last.Longitude*float64(last.PointCount) + s.Longitude*float64(s.PointCount)) / total
			last.PointCount += s.PointCount
			if s.EndTime > last.EndTime {
				last.EndTime = s.EndTime
			}
			continue
		}
		out = append(out, s)
	}

	return out
}

// filterUsable applies the downstream read filter: not ignored, not invalid.
func filterUsable(points []models.RawPoint) []models.RawPoint {
	out := make([]models.RawPoint, 0, len(points))
	for _, p := range points {
		if p.Usable() {
			out = append(out, p)
		}
	}
	return out
}
