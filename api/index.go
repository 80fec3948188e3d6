// Serverless entrypoint. Builds the same router as the standalone server
// but without the background scheduler; platform cron hits /cron-refresh
// instead.
package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WIGMarkets/wigmarkets-sub001/config"
	"github.com/WIGMarkets/wigmarkets-sub001/controllers"
	"github.com/WIGMarkets/wigmarkets-sub001/models"
	"github.com/WIGMarkets/wigmarkets-sub001/routes"
	"github.com/WIGMarkets/wigmarkets-sub001/services/cache"
	"github.com/WIGMarkets/wigmarkets-sub001/services/marketdata"
	"github.com/WIGMarkets/wigmarkets-sub001/services/realtime"
	"github.com/WIGMarkets/wigmarkets-sub001/services/refresh"
	"github.com/WIGMarkets/wigmarkets-sub001/services/retry"
)

var router *gin.Engine

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router = gin.New()
	router.Use(gin.Recovery())

	httpClient := marketdata.NewHTTPClient(15 * time.Second)
	symbols := models.DefaultSymbolTable()
	directory := models.DefaultDirectory()
	policy := retry.Default()
	store := cache.New(cfg.CacheURL, cfg.CacheToken)

	chartClient := marketdata.NewChartClient(httpClient, symbols)
	hub := realtime.NewHub()
	hub.Start()

	// No sqlite archive on serverless; the filesystem is ephemeral.
	orch := refresh.New(
		marketdata.NewSessionNegotiator(httpClient),
		marketdata.NewQuoteBatchClient(httpClient, symbols),
		chartClient,
		store, directory, nil, hub, policy,
		refresh.DefaultOptions(),
	)

	routes.SetupRoutes(router, routes.Controllers{
		Market:   controllers.NewMarketController(chartClient, marketdata.NewHistoryCSVClient(httpClient), store, directory, nil, orch, policy),
		Refresh:  controllers.NewRefreshController(orch),
		Realtime: controllers.NewRealtimeController(hub),
	}, cfg.CronSecret)
}

// Handler is the function the hosting platform invokes per request.
func Handler(w http.ResponseWriter, r *http.Request) {
	router.ServeHTTP(w, r)
}
