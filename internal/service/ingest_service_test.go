package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wandermap/timeline-backend-go/internal/models"
)

func f64(v float64) *float64 { return &v }

func TestValidatePoint(t *testing.T) {
	now := time.Now().Unix()
	good := models.IngestPoint{Timestamp: now - 60, Latitude: f64(55.0), Longitude: f64(10.0)}
	assert.Nil(t, validatePoint(0, good))

	cases := []struct {
		name   string
		point  models.IngestPoint
		reason string
	}{
		{
			name:   "missing latitude",
			point:  models.IngestPoint{Timestamp: now, Longitude: f64(10)},
			reason: "latitude and longitude are required",
		},
		{
			name:   "latitude out of range",
			point:  models.IngestPoint{Timestamp: now, Latitude: f64(91), Longitude: f64(10)},
			reason: "latitude 91 out of range",
		},
		{
			name:   "longitude out of range",
			point:  models.IngestPoint{Timestamp: now, Latitude: f64(55), Longitude: f64(-181)},
			reason: "longitude -181 out of range",
		},
		{
			name:   "zero timestamp",
			point:  models.IngestPoint{Latitude: f64(55), Longitude: f64(10)},
			reason: "timestamp must be a positive Unix timestamp",
		},
		{
			name:   "future timestamp",
			point:  models.IngestPoint{Timestamp: now + 3600, Latitude: f64(55), Longitude: f64(10)},
			reason: "timestamp lies in the future",
		},
		{
			name:   "negative accuracy",
			point:  models.IngestPoint{Timestamp: now, Latitude: f64(55), Longitude: f64(10), Accuracy: f64(-1)},
			reason: "accuracy must not be negative",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePoint(3, tc.point)
			if assert.NotNil(t, err) {
				assert.Equal(t, 3, err.Index)
				assert.Equal(t, tc.reason, err.Reason)
			}
		})
	}
}

func TestValidatePointToleratesClockSkew(t *testing.T) {
	now := time.Now().Unix()
	slightlyAhead := models.IngestPoint{Timestamp: now + 60, Latitude: f64(55), Longitude: f64(10)}
	assert.Nil(t, validatePoint(0, slightlyAhead))
}
