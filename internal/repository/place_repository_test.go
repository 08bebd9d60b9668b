package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
)

func createPlace(t *testing.T, repo *PlaceRepository, place models.SignificantPlace) models.SignificantPlace {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &place))
	return place
}

func TestPlaceCreateAndGet(t *testing.T) {
	repo := NewPlaceRepository(newTestDB(t))
	ctx := context.Background()

	place := createPlace(t, repo, models.SignificantPlace{
		UserID: 1, Name: "Home", Latitude: 55.0, Longitude: 10.0,
	})
	assert.NotZero(t, place.ID)
	assert.Equal(t, int64(1), place.Version)

	got, err := repo.GetByID(ctx, 1, place.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Home", got.Name)
	assert.Equal(t, models.PlaceTypeUnknown, got.PlaceType, "missing type defaults")
	assert.Nil(t, got.Polygon)

	// Unknown id and wrong user both yield nil without error.
	got, err = repo.GetByID(ctx, 1, place.ID+99)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = repo.GetByID(ctx, 2, place.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPlacePolygonRoundTrip(t *testing.T) {
	repo := NewPlaceRepository(newTestDB(t))
	ctx := context.Background()

	ring := []models.LatLng{
		{Lat: 55.0, Lon: 10.0},
		{Lat: 55.01, Lon: 10.0},
		{Lat: 55.01, Lon: 10.01},
		{Lat: 55.0, Lon: 10.01},
	}
	place := createPlace(t, repo, models.SignificantPlace{
		UserID: 1, Name: "Campus", Latitude: 55.005, Longitude: 10.005, Polygon: ring,
	})

	got, err := repo.GetByID(ctx, 1, place.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ring, got.Polygon)
}

func TestPlaceFindNearby(t *testing.T) {
	repo := NewPlaceRepository(newTestDB(t))
	ctx := context.Background()

	home := createPlace(t, repo, models.SignificantPlace{UserID: 1, Name: "Home", Latitude: 55.0, Longitude: 10.0})
	createPlace(t, repo, models.SignificantPlace{UserID: 1, Name: "Work", Latitude: 55.02, Longitude: 10.0}) // ~2.2 km
	createPlace(t, repo, models.SignificantPlace{UserID: 2, Name: "Other user", Latitude: 55.0, Longitude: 10.0})

	near, err := repo.FindNearby(ctx, 1, 55.0005, 10.0, 300)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, home.ID, near[0].ID)

	near, err = repo.FindNearby(ctx, 1, 55.0005, 10.0, 5000)
	require.NoError(t, err)
	assert.Len(t, near, 2)

	// Just outside the radius: ~111 m north with a 100 m radius.
	near, err = repo.FindNearby(ctx, 1, 55.001, 10.0, 100)
	require.NoError(t, err)
	assert.Empty(t, near, "bounding box candidates still need the exact distance check")
}

func TestPlaceUpdateVersioning(t *testing.T) {
	repo := NewPlaceRepository(newTestDB(t))
	ctx := context.Background()

	place := createPlace(t, repo, models.SignificantPlace{UserID: 1, Name: "Gym", Latitude: 55, Longitude: 10})
	stale := place

	place.Name = "Gym (north)"
	require.NoError(t, repo.Update(ctx, &place))
	assert.Equal(t, int64(2), place.Version)

	stale.Name = "Gym (south)"
	err := repo.Update(ctx, &stale)
	require.Error(t, err)
	assert.True(t, pipeline.IsConflict(err))

	got, err := repo.GetByID(ctx, 1, place.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gym (north)", got.Name)
}

func TestPlaceListUngeocoded(t *testing.T) {
	repo := NewPlaceRepository(newTestDB(t))
	ctx := context.Background()

	a := createPlace(t, repo, models.SignificantPlace{UserID: 1, Latitude: 55, Longitude: 10})
	b := createPlace(t, repo, models.SignificantPlace{UserID: 2, Latitude: 56, Longitude: 11})
	done := createPlace(t, repo, models.SignificantPlace{UserID: 1, Latitude: 57, Longitude: 12, Geocoded: true})

	pending, err := repo.ListUngeocoded(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2, "geocoded places are excluded across all users")
	ids := []int64{pending[0].ID, pending[1].ID}
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID)
	assert.NotContains(t, ids, done.ID)

	pending, err = repo.ListUngeocoded(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
