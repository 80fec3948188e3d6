package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/WIGMarkets/wigmarkets-sub001/services/realtime"
)

// RealtimeController bridges the websocket hub into the gin router
type RealtimeController struct {
	hub *realtime.Hub
}

// NewRealtimeController creates a new realtime controller
func NewRealtimeController(hub *realtime.Hub) *RealtimeController {
	return &RealtimeController{hub: hub}
}

// StreamQuotes upgrades the connection and subscribes it to quote broadcasts
// GET /api/v1/ws
func (rc *RealtimeController) StreamQuotes(c *gin.Context) {
	rc.hub.ServeWS(c.Writer, c.Request)
}
