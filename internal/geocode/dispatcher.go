// Package geocode turns place-created events into reverse-geocoding lookups.
// Lookups are fire-and-forget: the pipeline publishes and moves on, a failed
// lookup leaves the place un-geocoded for the periodic sweep to retry.
package geocode

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
)

// Request is one place-created event.
type Request struct {
	UserID    int64
	PlaceID   int64
	Latitude  float64
	Longitude float64
}

// Provider is the external reverse-geocoding collaborator. Implementations
// should return pipeline.ErrGeocodingUnavailable for transient failures.
type Provider interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (name string, err error)
}

// PlaceStore is the subset of place persistence the dispatcher needs.
type PlaceStore interface {
	GetByID(ctx context.Context, userID, id int64) (*models.SignificantPlace, error)
	Update(ctx context.Context, place *models.SignificantPlace) error
	ListUngeocoded(ctx context.Context, limit int) ([]models.SignificantPlace, error)
}

// Publisher is what the pipeline sees: a non-blocking event sink.
type Publisher interface {
	PlaceCreated(userID, placeID int64, lat, lon float64)
}

// Dispatcher consumes place-created events on a buffered channel and sweeps
// for stragglers on a timer.
type Dispatcher struct {
	provider      Provider
	places        PlaceStore
	requests      chan Request
	sweepInterval time.Duration
}

// NewDispatcher creates a dispatcher. Run must be called for events to be
// consumed.
func NewDispatcher(provider Provider, places PlaceStore, sweepInterval time.Duration) *Dispatcher {
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Minute
	}
	return &Dispatcher{
		provider:      provider,
		places:        places,
		requests:      make(chan Request, 256),
		sweepInterval: sweepInterval,
	}
}

// PlaceCreated publishes an event. Never blocks: when the buffer is full the
// event is dropped and the sweep picks the place up later.
func (d *Dispatcher) PlaceCreated(userID, placeID int64, lat, lon float64) {
	select {
	case d.requests <- Request{UserID: userID, PlaceID: placeID, Latitude: lat, Longitude: lon}:
	default:
		log.Printf("[Geocode] queue full, deferring place %d to sweep", placeID)
	}
}

// Run consumes events until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.requests:
			d.resolve(ctx, req)
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// resolve performs one lookup and stores the result.
func (d *Dispatcher) resolve(ctx context.Context, req Request) {
	name, err := d.provider.ReverseGeocode(ctx, req.Latitude, req.Longitude)
	if err != nil {
		if errors.Is(err, pipeline.ErrGeocodingUnavailable) {
			log.Printf("[Geocode] provider unavailable for place %d, will retry in sweep", req.PlaceID)
			return
		}
		log.Printf("[Geocode] lookup failed for place %d: %v", req.PlaceID, err)
		return
	}

	p, err := d.places.GetByID(ctx, req.UserID, req.PlaceID)
	if err != nil || p == nil {
		log.Printf("[Geocode] place %d vanished before geocoding: %v", req.PlaceID, err)
		return
	}
	if p.Name == "" {
		p.Name = name
	}
	p.Geocoded = true
	if err := d.places.Update(ctx, p); err != nil {
		log.Printf("[Geocode] failed to store result for place %d: %v", req.PlaceID, err)
	}
}

// sweep retries every place that is still un-geocoded.
func (d *Dispatcher) sweep(ctx context.Context) {
	pending, err := d.places.ListUngeocoded(ctx, 100)
	if err != nil {
		log.Printf("[Geocode] sweep query failed: %v", err)
		return
	}
	for _, p := range pending {
		d.resolve(ctx, Request{UserID: p.UserID, PlaceID: p.ID, Latitude: p.Latitude, Longitude: p.Longitude})
	}
}

// NoopProvider never resolves anything; used when no provider is configured.
type NoopProvider struct{}

// ReverseGeocode always reports the provider as unavailable.
func (NoopProvider) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return "", pipeline.ErrGeocodingUnavailable
}
