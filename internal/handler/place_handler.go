package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wandermap/timeline-backend-go/internal/middleware"
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
	"github.com/wandermap/timeline-backend-go/internal/service"
	"github.com/wandermap/timeline-backend-go/pkg/response"
)

// PlaceHandler handles HTTP requests for significant places
type PlaceHandler struct {
	service *service.PlaceService
}

// NewPlaceHandler creates a new place handler
func NewPlaceHandler(service *service.PlaceService) *PlaceHandler {
	return &PlaceHandler{service: service}
}

// List handles GET /api/v1/places
func (h *PlaceHandler) List(c *gin.Context) {
	places, err := h.service.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.InternalError(c, "Failed to list places", err)
		return
	}
	response.Success(c, gin.H{"places": places, "total": len(places)})
}

// Get handles GET /api/v1/places/:id
func (h *PlaceHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid place ID", err)
		return
	}

	place, err := h.service.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.InternalError(c, "Failed to get place", err)
		return
	}
	if place == nil {
		response.NotFound(c, "Place not found")
		return
	}
	response.Success(c, place)
}

// Update handles PUT /api/v1/places/:id
func (h *PlaceHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid place ID", err)
		return
	}

	var update models.PlaceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	place, err := h.service.Update(c.Request.Context(), middleware.UserID(c), id, update)
	if err != nil {
		if pipeline.IsConflict(err) {
			response.Conflict(c, "Place was modified concurrently, re-fetch and retry")
			return
		}
		response.InternalError(c, "Failed to update place", err)
		return
	}
	if place == nil {
		response.NotFound(c, "Place not found")
		return
	}
	response.Success(c, place)
}
