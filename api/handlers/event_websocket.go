package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/clipq-go/internal/app"
	"github.com/yourusername/clipq-go/internal/domain"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local control surface, any origin
	},
}

// EventWebSocketHandler streams queue events to WebSocket clients
type EventWebSocketHandler struct {
	engine *app.QueueEngine
	logger *zap.Logger
}

// NewEventWebSocketHandler creates a new WebSocket handler
func NewEventWebSocketHandler(engine *app.QueueEngine, log *zap.Logger) *EventWebSocketHandler {
	return &EventWebSocketHandler{
		engine: engine,
		logger: log,
	}
}

// HandleWebSocket handles GET /api/v1/events. A client first receives a
// snapshot of every entry, then live events. ?entry=<id> narrows the stream
// to one entry.
func (h *EventWebSocketHandler) HandleWebSocket(c *gin.Context) {
	filter := c.Query("entry")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.engine.Subscribe()
	defer unsubscribe()

	h.logger.Info("WebSocket client connected",
		zap.String("entry", filter),
		zap.String("remote_addr", c.Request.RemoteAddr))

	for _, entry := range h.engine.List() {
		if filter != "" && entry.ID != filter {
			continue
		}
		ev := domain.Event{Kind: domain.EventEntry, EntryID: entry.ID, Entry: entry, Time: time.Now()}
		if err := h.write(conn, ev); err != nil {
			return
		}
	}

	// the read loop only notices the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filter != "" && ev.EntryID != filter {
				continue
			}
			if err := h.write(conn, ev); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return

		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *EventWebSocketHandler) write(conn *websocket.Conn, ev domain.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
