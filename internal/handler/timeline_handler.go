package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/wandermap/timeline-backend-go/internal/middleware"
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/service"
	"github.com/wandermap/timeline-backend-go/pkg/response"
)

// TimelineHandler handles HTTP requests for the merged timeline
type TimelineHandler struct {
	service *service.TimelineService
}

// NewTimelineHandler creates a new timeline handler
func NewTimelineHandler(service *service.TimelineService) *TimelineHandler {
	return &TimelineHandler{service: service}
}

// GetTimeline handles GET /api/v1/timeline
func (h *TimelineHandler) GetTimeline(c *gin.Context) {
	var filter models.TimelineFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}
	if filter.StartTime <= 0 || filter.EndTime <= filter.StartTime {
		response.BadRequest(c, "startTime and endTime must form a valid range", nil)
		return
	}

	entries, err := h.service.GetTimeline(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		response.InternalError(c, "Failed to build timeline", err)
		return
	}

	response.Success(c, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}
