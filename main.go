package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WIGMarkets/wigmarkets-sub001/config"
	"github.com/WIGMarkets/wigmarkets-sub001/controllers"
	"github.com/WIGMarkets/wigmarkets-sub001/models"
	"github.com/WIGMarkets/wigmarkets-sub001/routes"
	"github.com/WIGMarkets/wigmarkets-sub001/scheduler"
	"github.com/WIGMarkets/wigmarkets-sub001/services/cache"
	"github.com/WIGMarkets/wigmarkets-sub001/services/history"
	"github.com/WIGMarkets/wigmarkets-sub001/services/marketdata"
	"github.com/WIGMarkets/wigmarkets-sub001/services/realtime"
	"github.com/WIGMarkets/wigmarkets-sub001/services/refresh"
	"github.com/WIGMarkets/wigmarkets-sub001/services/retry"
)

func main() {
	log.Println("==============================================")
	log.Println("  WIG Markets API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	setupHealthEndpoints(router)

	// Shared market data plumbing
	httpClient := marketdata.NewHTTPClient(15 * time.Second)
	symbols := models.DefaultSymbolTable()
	directory := models.DefaultDirectory()
	policy := retry.Default()

	negotiator := marketdata.NewSessionNegotiator(httpClient)
	quoteClient := marketdata.NewQuoteBatchClient(httpClient, symbols)
	chartClient := marketdata.NewChartClient(httpClient, symbols)
	historyClient := marketdata.NewHistoryCSVClient(httpClient)
	store := cache.New(cfg.CacheURL, cfg.CacheToken)

	// Local snapshot archive; the service runs without it
	archive, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		log.Printf("Warning: history archive unavailable: %v", err)
		archive = nil
	}

	hub := realtime.NewHub()
	hub.Start()

	orch := refresh.New(negotiator, quoteClient, chartClient, store, directory, archive, hub, policy, refresh.DefaultOptions())

	routes.SetupRoutes(router, routes.Controllers{
		Market:   controllers.NewMarketController(chartClient, historyClient, store, directory, archive, orch, policy),
		Refresh:  controllers.NewRefreshController(orch),
		Realtime: controllers.NewRealtimeController(hub),
	}, cfg.CronSecret)

	// Start background scheduler
	jobScheduler := scheduler.NewScheduler(orch, archive)
	jobScheduler.Start()

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(server, jobScheduler, hub, archive)
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "WIG Markets API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - the service serves cached reads as soon as the
	// router is up, so readiness follows liveness here
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, hub *realtime.Hub, archive *history.Archive) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first so no new refresh starts mid-shutdown
	jobScheduler.Stop()
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if archive != nil {
		if err := archive.Close(); err == nil {
			log.Println("History archive closed")
		}
	}

	log.Println("Server shutdown completed")
}
