package handler

import (
	"github.com/gin-gonic/gin"

	"buggy/internal/ws"
)

// EventsHandler upgrades clients onto the ride event stream.
type EventsHandler struct {
	hub *ws.Hub
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *ws.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Subscribe handles GET /v1/events
func (h *EventsHandler) Subscribe(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}
