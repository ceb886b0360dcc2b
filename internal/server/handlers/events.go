package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/events"
)

// EventsHandler serves event history and the live websocket stream.
type EventsHandler struct {
	bus      *events.Bus
	logger   hclog.Logger
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(bus *events.Bus, logger hclog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:    bus,
		logger: logger.Named("events"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func filterFromQuery(c *gin.Context) events.Filter {
	var filter events.Filter
	if types := c.Query("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			filter.Types = append(filter.Types, events.EventType(strings.TrimSpace(t)))
		}
	}
	if sources := c.Query("sources"); sources != "" {
		for _, s := range strings.Split(sources, ",") {
			filter.Sources = append(filter.Sources, strings.TrimSpace(s))
		}
	}
	return filter
}

// Recent returns the retained event history, newest last.
func (h *EventsHandler) Recent(c *gin.Context) {
	list := h.bus.Recent(filterFromQuery(c))
	c.JSON(http.StatusOK, gin.H{"events": list, "total": len(list)})
}

// Stats returns bus delivery counters.
func (h *EventsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.bus.GetStats())
}

// Stream upgrades to a websocket and forwards matching events until
// the client disconnects.
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// buffered so a slow write drops events instead of blocking the bus
	eventCh := make(chan events.Event, 64)
	sub := h.bus.Subscribe(filterFromQuery(c), func(e events.Event) error {
		select {
		case eventCh <- e:
		default:
		}
		return nil
	})
	defer func() {
		if err := h.bus.Unsubscribe(sub.ID); err != nil {
			h.logger.Warn("failed to unsubscribe stream", "subscription_id", sub.ID, "error", err)
		}
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-eventCh:
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
