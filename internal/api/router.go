package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wandermap/timeline-backend-go/internal/config"
	"github.com/wandermap/timeline-backend-go/internal/handler"
	"github.com/wandermap/timeline-backend-go/internal/middleware"
)

// Handlers bundles the handlers the router mounts.
type Handlers struct {
	Ingest   *handler.IngestHandler
	Timeline *handler.TimelineHandler
	Recalc   *handler.RecalcHandler
	Settings *handler.SettingsHandler
	Place    *handler.PlaceHandler
}

// SetupRouter wires middleware and routes.
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Timeline Backend API is running",
		})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret))
	{
		points := api.Group("/points")
		points.Use(middleware.RateLimit(120, time.Minute))
		{
			points.POST("", h.Ingest.Ingest)
		}

		api.GET("/timeline", h.Timeline.GetTimeline)

		api.POST("/recalculate", h.Recalc.Trigger)
		api.GET("/recalculate/:id", h.Recalc.GetJob)

		settings := api.Group("/settings/detection")
		{
			settings.GET("", h.Settings.Get)
			settings.PUT("", h.Settings.Update)
			settings.GET("/history", h.Settings.History)
			settings.POST("/preview", h.Settings.Preview)
		}

		places := api.Group("/places")
		{
			places.GET("", h.Place.List)
			places.GET("/:id", h.Place.Get)
			places.PUT("/:id", h.Place.Update)
		}
	}

	return r
}
