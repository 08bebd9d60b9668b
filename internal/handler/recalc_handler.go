package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wandermap/timeline-backend-go/internal/middleware"
	"github.com/wandermap/timeline-backend-go/internal/service"
	"github.com/wandermap/timeline-backend-go/pkg/response"
)

// RecalcHandler handles HTTP requests for recalculation jobs
type RecalcHandler struct {
	service *service.RecalcService
}

// NewRecalcHandler creates a new recalculation handler
func NewRecalcHandler(service *service.RecalcService) *RecalcHandler {
	return &RecalcHandler{service: service}
}

type recalcRequest struct {
	// Optional explicit window; both zero means "whatever is unprocessed".
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
}

// Trigger handles POST /api/v1/recalculate
func (h *RecalcHandler) Trigger(c *gin.Context) {
	var req recalcRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body", err)
			return
		}
	}
	if (req.StartTime != 0 || req.EndTime != 0) && req.EndTime <= req.StartTime {
		response.BadRequest(c, "startTime and endTime must form a valid range", nil)
		return
	}

	job := h.service.Trigger(middleware.UserID(c), req.StartTime, req.EndTime)
	c.JSON(http.StatusAccepted, response.Response{Code: 0, Message: "accepted", Data: job})
}

// GetJob handles GET /api/v1/recalculate/:id
func (h *RecalcHandler) GetJob(c *gin.Context) {
	job := h.service.Job(c.Param("id"))
	if job == nil || job.UserID != middleware.UserID(c) {
		response.NotFound(c, "Job not found")
		return
	}
	response.Success(c, job)
}
