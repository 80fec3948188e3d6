package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
	"github.com/WIGMarkets/wigmarkets-sub001/services/analysis"
	"github.com/WIGMarkets/wigmarkets-sub001/services/batch"
	"github.com/WIGMarkets/wigmarkets-sub001/services/cache"
	"github.com/WIGMarkets/wigmarkets-sub001/services/history"
	"github.com/WIGMarkets/wigmarkets-sub001/services/marketdata"
	"github.com/WIGMarkets/wigmarkets-sub001/services/refresh"
	"github.com/WIGMarkets/wigmarkets-sub001/services/retry"
)

const (
	maxQuoteSymbols = 100

	// On-demand read paths use smaller batches than the nightly refresh
	// so a single request never hammers the chart endpoint.
	readBatchSize = 10
	readCooldown  = 400 * time.Millisecond

	defaultHistoryWindow = 30
	maxHistoryWindow     = 365
)

// MarketController handles the read-path market data requests
type MarketController struct {
	charts    *marketdata.ChartClient
	histories *marketdata.HistoryCSVClient
	store     *cache.Store
	directory models.CompanyDirectory
	archive   *history.Archive
	orch      *refresh.Orchestrator
	policy    retry.Policy
}

// NewMarketController creates a new market controller
func NewMarketController(
	charts *marketdata.ChartClient,
	histories *marketdata.HistoryCSVClient,
	store *cache.Store,
	directory models.CompanyDirectory,
	archive *history.Archive,
	orch *refresh.Orchestrator,
	policy retry.Policy,
) *MarketController {
	return &MarketController{
		charts:    charts,
		histories: histories,
		store:     store,
		directory: directory,
		archive:   archive,
		orch:      orch,
		policy:    policy,
	}
}

// GetQuotes returns live snapshots for the requested symbols
// GET /api/v1/quotes?symbols=pkn,pko,kgh
func (mc *MarketController) GetQuotes(c *gin.Context) {
	symbols := parseSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols parameter is required"})
		return
	}
	if len(symbols) > maxQuoteSymbols {
		symbols = symbols[:maxQuoteSymbols]
	}

	c.JSON(http.StatusOK, mc.fetchSnapshots(c.Request.Context(), symbols))
}

// GetScreener returns the full stock catalog with quote snapshots.
// Served from the cache written by the last refresh; on a cold cache the
// whole collection runs inline (tier 1, falling back to tier 2).
// GET /api/v1/screener
func (mc *MarketController) GetScreener(c *gin.Context) {
	ctx := c.Request.Context()

	stocks, quotes, ts, err := mc.cachedScreener(ctx)
	if err == nil && len(stocks) > 0 {
		c.JSON(http.StatusOK, gin.H{"ok": true, "stocks": stocks, "quotes": quotes, "ts": ts})
		return
	}

	// Cold cache: collect now and repopulate.
	if _, err := mc.orch.Run(ctx); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error(), "ts": time.Now().Unix()})
		return
	}
	stocks, quotes, ts, err = mc.cachedScreener(ctx)
	if err != nil || len(stocks) == 0 {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "screener data unavailable", "ts": time.Now().Unix()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stocks": stocks, "quotes": quotes, "ts": ts})
}

// GetRSI computes Wilder RSI(14) for the requested symbols, defaulting to
// the whole directory. Each symbol tries the CSV provider first and falls
// back to a longer chart range when history is too short.
// GET /api/v1/rsi?symbols=pkn,pko
func (mc *MarketController) GetRSI(c *gin.Context) {
	symbols := parseSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		for _, company := range mc.directory.Companies() {
			symbols = append(symbols, strings.ToLower(company.Symbol))
		}
	}

	plan := batch.Plan{Symbols: symbols, BatchSize: readBatchSize, InterBatchDelay: readCooldown}
	results := batch.Run(c.Request.Context(), plan, func(ctx context.Context, local string) (float64, bool) {
		return mc.symbolRSI(ctx, local)
	})

	rsi := make(map[string]float64, len(results))
	for local, value := range results {
		rsi[local] = models.Round1(value)
	}

	c.JSON(http.StatusOK, gin.H{
		"rsi":      rsi,
		"computed": len(rsi),
		"ts":       time.Now().Unix(),
	})
}

// symbolRSI resolves a close series for one symbol and feeds the indicator.
// CSV first; on insufficient history, the chart tier with a 3-month range.
func (mc *MarketController) symbolRSI(ctx context.Context, local string) (float64, bool) {
	minRows := analysis.DefaultRSIPeriod + 1

	closes, ok, err := mc.histories.DailyCloses(ctx, local, marketdata.DefaultHistoryDays, minRows)
	if err != nil || !ok {
		closes, ok = retry.Do(ctx, mc.policy, func(ctx context.Context) ([]float64, error) {
			return mc.charts.DailyCloses(ctx, local, marketdata.RangeIndicator)
		})
		if !ok {
			return 0, false
		}
	}

	return analysis.RSI(closes, analysis.DefaultRSIPeriod)
}

// GetIntraday returns 5-minute bars for one trading day
// GET /api/v1/intraday?symbol=pkn
func (mc *MarketController) GetIntraday(c *gin.Context) {
	symbol := strings.ToLower(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol parameter is required"})
		return
	}

	prices, ok := retry.Do(c.Request.Context(), mc.policy, func(ctx context.Context) ([]models.Candle, error) {
		return mc.charts.Intraday(ctx, symbol)
	})
	if !ok {
		c.JSON(http.StatusBadGateway, gin.H{"error": "intraday data unavailable for " + symbol})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

// GetHistory returns archived daily snapshots for one symbol
// GET /api/v1/history?symbol=pkn&days=30
func (mc *MarketController) GetHistory(c *gin.Context) {
	symbol := strings.ToLower(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol parameter is required"})
		return
	}
	if mc.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history archive is not configured"})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultHistoryWindow)))
	if days <= 0 {
		days = defaultHistoryWindow
	}
	if days > maxHistoryWindow {
		days = maxHistoryWindow
	}

	points, err := mc.archive.DailyCloses(symbol, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "days": days, "points": points})
}

func (mc *MarketController) fetchSnapshots(ctx context.Context, symbols []string) map[string]models.QuoteSnapshot {
	plan := batch.Plan{Symbols: symbols, BatchSize: readBatchSize, InterBatchDelay: readCooldown}
	results := batch.Run(ctx, plan, func(ctx context.Context, local string) (*models.QuoteSnapshot, bool) {
		return retry.Do(ctx, mc.policy, func(ctx context.Context) (*models.QuoteSnapshot, error) {
			return mc.charts.Quote(ctx, local)
		})
	})

	quotes := make(map[string]models.QuoteSnapshot, len(results))
	for local, snap := range results {
		if snap != nil {
			quotes[local] = *snap
		}
	}
	return quotes
}

func (mc *MarketController) cachedScreener(ctx context.Context) ([]models.StockRecord, map[string]models.QuoteSnapshot, int64, error) {
	values, err := mc.store.MGet(ctx, refresh.KeyStocks, refresh.KeyQuotes, refresh.KeyLastRefresh)
	if err != nil {
		return nil, nil, 0, err
	}

	var stocks []models.StockRecord
	if err := reshape(values[0], &stocks); err != nil {
		return nil, nil, 0, err
	}
	var quotes map[string]models.QuoteSnapshot
	if err := reshape(values[1], &quotes); err != nil {
		return nil, nil, 0, err
	}

	ts := time.Now().Unix()
	if n, ok := values[2].(float64); ok {
		ts = int64(n)
	}
	return stocks, quotes, ts, nil
}

// reshape converts a generic cached JSON value into a typed structure.
func reshape(value interface{}, out interface{}) error {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// parseSymbols splits a comma-separated symbol list, lowercased and
// deduplicated, preserving first-seen order.
func parseSymbols(raw string) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		symbol := strings.ToLower(strings.TrimSpace(part))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	return symbols
}
