package handler

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/realtime"
)

// EventsHandler streams board change notifications over server-sent events.
// Events carry only the entity reference; clients refetch through the normal
// read endpoints so visibility rules are never bypassed.
type EventsHandler struct {
	bus    *realtime.Bus
	logger *zap.Logger
}

// NewEventsHandler creates a new handler.
func NewEventsHandler(bus *realtime.Bus, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{bus: bus, logger: logger}
}

// Stream godoc
// @Summary Subscribe to board change events
// @Description Server-sent event stream of notice changes. Each event names the entity; clients refetch it.
// @Tags Events
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events := make(chan realtime.Event, 16)
	unsubscribe := h.bus.Subscribe("notices", nil, func(event realtime.Event) {
		select {
		case events <- event:
		default:
			// slow consumer, drop rather than block the bus
		}
	})
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to marshal board event", zap.Error(err))
				return true
			}
			c.SSEvent("change", string(payload))
			return true
		}
	})
}
