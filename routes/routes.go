package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WIGMarkets/wigmarkets-sub001/controllers"
	"github.com/WIGMarkets/wigmarkets-sub001/middleware"
)

// Controllers bundles the handlers the router wires up
type Controllers struct {
	Market   *controllers.MarketController
	Refresh  *controllers.RefreshController
	Realtime *controllers.RealtimeController
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, ctrl Controllers, cronSecret string) {
	// Upstream-heavy endpoints share one per-IP limiter.
	upstreamLimiter := middleware.NewRateLimiter(30, time.Minute)

	// API v1 group
	api := router.Group("/api/v1")
	{
		market := api.Group("", upstreamLimiter.Middleware())
		{
			market.GET("/quotes", ctrl.Market.GetQuotes)
			market.GET("/screener", ctrl.Market.GetScreener)
			market.GET("/rsi", ctrl.Market.GetRSI)
			market.GET("/intraday", ctrl.Market.GetIntraday)
		}

		api.GET("/history", ctrl.Market.GetHistory)
		api.GET("/ws", ctrl.Realtime.StreamQuotes)

		api.POST("/cron-refresh", middleware.CronAuth(cronSecret), ctrl.Refresh.CronRefresh)
	}
}
