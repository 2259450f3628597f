package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/clipq-go/internal/app"
	"github.com/yourusername/clipq-go/internal/domain"
	"go.uber.org/zap"
)

// EntryHandler handles entry and queue control requests
type EntryHandler struct {
	engine *app.QueueEngine
	logger *zap.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(engine *app.QueueEngine, logger *zap.Logger) *EntryHandler {
	return &EntryHandler{
		engine: engine,
		logger: logger,
	}
}

// AddEntry handles POST /api/v1/entries
func (h *EntryHandler) AddEntry(c *gin.Context) {
	var req domain.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.engine.Enqueue(req)
	if err != nil {
		h.logger.Warn("Rejected entry", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ListEntries handles GET /api/v1/entries
func (h *EntryHandler) ListEntries(c *gin.Context) {
	entries := h.engine.List()

	if status := c.Query("status"); status != "" {
		filtered := make([]*domain.Entry, 0, len(entries))
		for _, entry := range entries {
			if string(entry.Status) == status {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	c.JSON(http.StatusOK, entries)
}

// GetStats handles GET /api/v1/entries/stats
func (h *EntryHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

// GetEntry handles GET /api/v1/entries/:id
func (h *EntryHandler) GetEntry(c *gin.Context) {
	entry, err := h.engine.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// GetThumbnail handles GET /api/v1/entries/:id/thumbnail
func (h *EntryHandler) GetThumbnail(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.engine.Get(id); err != nil {
		respondError(c, err)
		return
	}

	data, ok := h.engine.Thumbnail(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not available"})
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// RemoveEntry handles DELETE /api/v1/entries/:id. Removing the running
// entry cancels its job.
func (h *EntryHandler) RemoveEntry(c *gin.Context) {
	id := c.Param("id")

	if err := h.engine.Remove(id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "entry removed"})
}

// SkipEntry handles POST /api/v1/entries/:id/skip
func (h *EntryHandler) SkipEntry(c *gin.Context) {
	id := c.Param("id")

	if err := h.engine.Skip(id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "entry will be skipped"})
}

// StartQueue handles POST /api/v1/queue/start
func (h *EntryHandler) StartQueue(c *gin.Context) {
	if err := h.engine.Start(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":   "queue started",
		"active_id": h.engine.ActiveEntryID(),
	})
}

// CancelJob handles POST /api/v1/queue/cancel
func (h *EntryHandler) CancelJob(c *gin.Context) {
	id := h.engine.ActiveEntryID()
	if !h.engine.Cancel() {
		c.JSON(http.StatusConflict, gin.H{"error": "no download is running"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "cancel requested", "entry_id": id})
}

// respondError maps engine errors to status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrJobRunning),
		errors.Is(err, app.ErrInitializing),
		errors.Is(err, app.ErrQueueEmpty),
		errors.Is(err, app.ErrEntryNotPending),
		errors.Is(err, app.ErrEntryNotSkippable):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
