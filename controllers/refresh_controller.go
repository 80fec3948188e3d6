package controllers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WIGMarkets/wigmarkets-sub001/services/refresh"
)

// RefreshController handles manual refresh triggers
type RefreshController struct {
	orch *refresh.Orchestrator
}

// NewRefreshController creates a new refresh controller
func NewRefreshController(orch *refresh.Orchestrator) *RefreshController {
	return &RefreshController{orch: orch}
}

// CronRefresh runs a full refresh cycle. The route is guarded by the
// shared-secret middleware; by the time this handler runs the caller is
// authorized.
// POST /api/v1/cron-refresh
func (rc *RefreshController) CronRefresh(c *gin.Context) {
	summary, err := rc.orch.Run(c.Request.Context())
	if err != nil {
		log.Printf("cron-refresh failed: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, refresh.ErrNoData) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"tier":      summary.Tier,
		"records":   summary.Records,
		"elapsedMs": summary.Elapsed.Milliseconds(),
		"ts":        time.Now().Unix(),
	})
}
