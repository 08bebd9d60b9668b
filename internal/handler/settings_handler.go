package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wandermap/timeline-backend-go/internal/middleware"
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/pipeline"
	"github.com/wandermap/timeline-backend-go/internal/service"
	"github.com/wandermap/timeline-backend-go/pkg/response"
)

// SettingsHandler handles HTTP requests for detection parameters
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(service *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Get handles GET /api/v1/settings/detection
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.InternalError(c, "Failed to load settings", err)
		return
	}
	response.Success(c, settings)
}

// History handles GET /api/v1/settings/detection/history
func (h *SettingsHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.InternalError(c, "Failed to load settings history", err)
		return
	}
	response.Success(c, gin.H{"history": history, "total": len(history)})
}

// Update handles PUT /api/v1/settings/detection
func (h *SettingsHandler) Update(c *gin.Context) {
	var params models.DetectionParameters
	if err := c.ShouldBindJSON(&params); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	stored, err := h.service.Update(c.Request.Context(), middleware.UserID(c), params)
	if err != nil {
		var cfgErr *pipeline.ConfigurationError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, response.Response{Code: 400, Message: "Invalid parameters", Data: gin.H{"problems": cfgErr.Problems}})
			return
		}
		response.InternalError(c, "Failed to store settings", err)
		return
	}
	response.Success(c, stored)
}

type previewRequest struct {
	Parameters models.DetectionParameters `json:"parameters" binding:"required"`
	Day        int64                      `json:"day" binding:"required"`
}

// Preview handles POST /api/v1/settings/detection/preview
func (h *SettingsHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.service.Preview(c.Request.Context(), middleware.UserID(c), req.Parameters, req.Day)
	if err != nil {
		var cfgErr *pipeline.ConfigurationError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, response.Response{Code: 400, Message: "Invalid parameters", Data: gin.H{"problems": cfgErr.Problems}})
			return
		}
		response.InternalError(c, "Preview failed", err)
		return
	}
	response.Success(c, result)
}
