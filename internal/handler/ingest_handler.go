package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wandermap/timeline-backend-go/internal/middleware"
	"github.com/wandermap/timeline-backend-go/internal/models"
	"github.com/wandermap/timeline-backend-go/internal/service"
	"github.com/wandermap/timeline-backend-go/pkg/response"
)

// maxBatchSize caps one upload; bigger imports are split by the client.
const maxBatchSize = 10000

// IngestHandler handles HTTP requests for GPS ingestion
type IngestHandler struct {
	service *service.IngestService
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service *service.IngestService) *IngestHandler {
	return &IngestHandler{service: service}
}

type ingestRequest struct {
	Points []models.IngestPoint `json:"points" binding:"required"`
}

// Ingest handles POST /api/v1/points
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}
	if len(req.Points) == 0 {
		response.BadRequest(c, "Batch is empty", nil)
		return
	}
	if len(req.Points) > maxBatchSize {
		response.BadRequest(c, "Batch too large", nil)
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), middleware.UserID(c), req.Points)
	if err != nil {
		response.InternalError(c, "Failed to store batch", err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{Code: 0, Message: "accepted", Data: result})
}
