package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{"same point", 55.3959, 10.3883, 55.3959, 10.3883, 0, 0.001},
		{"one degree of latitude", 55.0, 10.0, 56.0, 10.0, 111194.9, 1.0},
		{"short hop", 55.0, 10.0, 55.0009, 10.0, 100.1, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)

			reversed := Distance(tt.lat2, tt.lon2, tt.lat1, tt.lon1)
			assert.InDelta(t, got, reversed, 1e-9, "distance must be symmetric")
		})
	}
}

func TestSpeedKmh(t *testing.T) {
	// ~100m in 10 seconds is ~36 km/h.
	got := SpeedKmh(55.0, 10.0, 100, 55.0009, 10.0, 110)
	assert.InDelta(t, 36.0, got, 0.5)

	assert.Zero(t, SpeedKmh(55.0, 10.0, 100, 55.0009, 10.0, 100), "zero time delta")
	assert.Zero(t, SpeedKmh(55.0, 10.0, 110, 55.0009, 10.0, 100), "negative time delta")
}

func TestInterpolate(t *testing.T) {
	lat, lon := Interpolate(0.5, 55.0, 10.0, 55.002, 10.004)
	assert.InDelta(t, 55.001, lat, 1e-9, "midpoint latitude is the arithmetic mean")
	assert.InDelta(t, 10.002, lon, 1e-9, "midpoint longitude is the arithmetic mean")

	lat, lon = Interpolate(0, 55.0, 10.0, 55.002, 10.004)
	assert.Equal(t, 55.0, lat)
	assert.Equal(t, 10.0, lon)

	lat, lon = Interpolate(1, 55.0, 10.0, 55.002, 10.004)
	assert.InDelta(t, 55.002, lat, 1e-9)
	assert.InDelta(t, 10.004, lon, 1e-9)
}
