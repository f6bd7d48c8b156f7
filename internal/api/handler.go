package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/interfaces"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/notify"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/queue"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/workflow"
)

// Handler API handler for headless generation and monitoring
type Handler struct {
	queueManager interfaces.QueueManager
	maxBatch     int
}

// NewHandler creates API handler
func NewHandler(queueManager interfaces.QueueManager, maxBatch int) *Handler {
	return &Handler{
		queueManager: queueManager,
		maxBatch:     maxBatch,
	}
}

// RegisterRoutes registers routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	generateGroup := r.Group("/api/v1/generate")
	{
		generateGroup.POST("", h.submitGeneration)
	}

	queueGroup := r.Group("/api/v1/queue")
	{
		queueGroup.GET("/status", h.getQueueStatus)
	}

	// Health checks
	r.GET("/health", h.healthCheck)
	r.GET("/ready", h.readinessCheck)
}

// submitGeneration enqueues a txt2img generation without a chat channel;
// results are only visible in the log
func (h *Handler) submitGeneration(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Mode != "" && workflow.Mode(req.Mode) != workflow.ModeTxt2Img {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only txt2img is supported over the API"})
		return
	}
	if req.Count < 0 || req.Count > h.maxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count out of range"})
		return
	}

	size := workflow.SizeVertical
	switch workflow.Size(req.Size) {
	case workflow.SizeSquare, workflow.SizeVertical, workflow.SizeHorizontal:
		size = workflow.Size(req.Size)
	case "":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown size"})
		return
	}

	request := queue.NewRequest("api", "api")
	request.Positive = req.Positive
	request.Negative = req.Negative
	request.Size = size
	if req.Count > 0 {
		request.BatchCount = req.Count
	}
	request.Reporter = notify.NewLogReporter("api")

	position := h.queueManager.Enqueue(request)

	c.JSON(http.StatusCreated, GenerateResponse{
		RequestID: request.ID,
		Position:  position,
	})
}

// getQueueStatus gets the queue snapshot
func (h *Handler) getQueueStatus(c *gin.Context) {
	status := h.queueManager.Status()

	c.JSON(http.StatusOK, QueueStatusResponse{
		Processing:  status.Processing,
		CurrentUser: status.CurrentUser,
		Waiting:     status.Waiting,
		Summary:     status.Summary(),
	})
}

// healthCheck health check
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// readinessCheck readiness check
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"queue":  h.queueManager.Depth(),
	})
}
