package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/clipq-go/internal/app"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	engine *app.QueueEngine
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine *app.QueueEngine) *HealthHandler {
	return &HealthHandler{
		engine: engine,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running  bool   `json:"running"`
		ActiveID string `json:"active_id,omitempty"`
	} `json:"queue"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Queue.Running = h.engine.Running()
	response.Queue.ActiveID = h.engine.ActiveEntryID()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.engine.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue engine not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
