package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/clipq-go/api/handlers"
	"github.com/yourusername/clipq-go/api/middleware"
	"github.com/yourusername/clipq-go/internal/app"
	"github.com/yourusername/clipq-go/pkg/logger"
)

// SetupRouter sets up the HTTP router over a queue engine. log receives
// request logs; logs receives errors and panics.
func SetupRouter(
	engine *app.QueueEngine,
	log *zap.Logger,
	logs *logger.LoggerAdapter,
	logsDir string,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(logs))
	router.Use(middleware.ErrorResponses(logs))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(engine)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		entryHandler := handlers.NewEntryHandler(engine, log)
		entries := v1.Group("/entries")
		{
			entries.POST("", entryHandler.AddEntry)
			entries.GET("", entryHandler.ListEntries)
			entries.GET("/stats", entryHandler.GetStats)
			entries.GET("/:id", entryHandler.GetEntry)
			entries.GET("/:id/thumbnail", entryHandler.GetThumbnail)
			entries.POST("/:id/skip", entryHandler.SkipEntry)
			entries.DELETE("/:id", entryHandler.RemoveEntry)
		}

		queue := v1.Group("/queue")
		{
			queue.POST("/start", entryHandler.StartQueue)
			queue.POST("/cancel", entryHandler.CancelJob)
		}

		eventHandler := handlers.NewEventWebSocketHandler(engine, log)
		v1.GET("/events", eventHandler.HandleWebSocket)

		logHandler := handlers.NewLogHandler(logsDir)
		logRoutes := v1.Group("/logs")
		{
			logRoutes.GET("/categories", logHandler.GetCategories)
			logRoutes.GET("/:category", logHandler.GetLogs)
			logRoutes.GET("/:category/search", logHandler.SearchLogs)
			logRoutes.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "hint": "see /api/v1/entries"})
	})

	return router
}
