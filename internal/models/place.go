package models

// SignificantPlace is a persistent location recognised across visits. Once
// created a place keeps its identity even if later visits drift slightly.
type SignificantPlace struct {
	ID        int64   `json:"id" db:"id"`
	UserID    int64   `json:"userId" db:"user_id"`
	Name      string  `json:"name,omitempty" db:"name"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`

	// Polygon is an optional boundary, stored as a JSON ring of
	// [lat, lon] vertices. Empty means radius-only resolution.
	Polygon []LatLng `json:"polygon,omitempty" db:"-"`

	PlaceType string `json:"placeType,omitempty" db:"place_type"`
	Timezone  string `json:"timezone,omitempty" db:"timezone"`
	Geocoded  bool   `json:"geocoded" db:"geocoded"`

	Version   int64 `json:"version" db:"version"`
	CreatedAt int64 `json:"createdAt,omitempty" db:"created_at"`
}

// LatLng is a polygon vertex.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PlaceType constants.
const (
	PlaceTypeHome    = "HOME"
	PlaceTypeWork    = "WORK"
	PlaceTypeUnknown = "UNKNOWN"
)

// PlaceUpdate carries a user edit to a place. Moving the centroid or
// replacing the polygon counts as a geometry edit and triggers the
// cleanup/reprocess path.
type PlaceUpdate struct {
	Name      *string  `json:"name,omitempty"`
	PlaceType *string  `json:"placeType,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Polygon   []LatLng `json:"polygon,omitempty"`
}

// GeometryChanged reports whether the update moves or reshapes the place.
func (u *PlaceUpdate) GeometryChanged() bool {
	return u.Latitude != nil || u.Longitude != nil || len(u.Polygon) > 0
}
