package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/wandermap/timeline-backend-go/internal/api"
	"github.com/wandermap/timeline-backend-go/internal/config"
	"github.com/wandermap/timeline-backend-go/internal/database"
	"github.com/wandermap/timeline-backend-go/internal/geocode"
	"github.com/wandermap/timeline-backend-go/internal/handler"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
	"github.com/wandermap/timeline-backend-go/internal/repository"
	"github.com/wandermap/timeline-backend-go/internal/service"
)

func main() {
	cfg := config.Load()

	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	db := database.GetDB()
	if err := database.NewMigrationManager(db).RunMigrations(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	points := repository.NewPointRepository(db)
	places := repository.NewPlaceRepository(db)
	timeline := repository.NewTimelineRepository(db)
	params := repository.NewParamsRepository(db)

	dispatcher := geocode.NewDispatcher(geocode.NoopProvider{}, places, cfg.GeocodeSweepInterval)
	go dispatcher.Run(ctx)

	engine := pipeline.NewEngine(points, places, timeline, params, dispatcher)
	engine.SetTuning(pipeline.DefaultAnomalyThresholds, pipeline.DefaultDensitySettings, pipeline.WindowSettings{
		LookbackDays:  cfg.LookbackDays,
		LookaheadDays: cfg.LookaheadDays,
	})
	queue := pipeline.NewJobQueue(ctx, engine)

	handlers := api.Handlers{
		Ingest:   handler.NewIngestHandler(service.NewIngestService(points, queue)),
		Timeline: handler.NewTimelineHandler(service.NewTimelineService(timeline, places)),
		Recalc:   handler.NewRecalcHandler(service.NewRecalcService(queue)),
		Settings: handler.NewSettingsHandler(service.NewSettingsService(params, points, places)),
		Place:    handler.NewPlaceHandler(service.NewPlaceService(places, queue)),
	}

	router := api.SetupRouter(cfg, handlers)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
