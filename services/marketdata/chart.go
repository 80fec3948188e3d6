package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
)

const defaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Chart ranges used by the read paths. The quote path only needs enough
// history for the 24h/7d changes; the RSI fallback needs a longer window.
const (
	RangeQuote     = "1mo"
	RangeIndicator = "3mo"
)

// ChartClient is the unauthenticated per-symbol adapter (tier 2). It serves
// daily OHLCV for quote derivation and RSI fallback, plus an intraday mode
// (5-minute bars over one trading day).
type ChartClient struct {
	client   *http.Client
	symbols  *models.SymbolTable
	chartURL string
	location *time.Location
}

// NewChartClient wires the adapter against the production endpoint.
// Intraday labels use Europe/Warsaw; UTC is the fallback when tzdata is
// unavailable.
func NewChartClient(client *http.Client, symbols *models.SymbolTable) *ChartClient {
	return NewChartClientURL(client, symbols, defaultChartURL)
}

// NewChartClientURL is the injectable variant for tests.
func NewChartClientURL(client *http.Client, symbols *models.SymbolTable, chartURL string) *ChartClient {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		loc = time.UTC
	}
	return &ChartClient{client: client, symbols: symbols, chartURL: chartURL, location: loc}
}

// chartResponse mirrors the chart API envelope. Close/open/high/low arrays
// carry JSON nulls for holidays and halted sessions, hence the pointer
// slices.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *ChartClient) fetch(ctx context.Context, local, interval, rng string) (*chartResponse, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("range", rng)
	endpoint := fmt.Sprintf("%s/%s?%s", c.chartURL, url.PathEscape(c.symbols.Upstream(local)), q.Encode())

	body, err := getBody(ctx, c.client, "chart API", endpoint, nil)
	if err != nil {
		return nil, err
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ParseError{Endpoint: "chart API", Err: err}
	}
	if parsed.Chart.Error != nil {
		return nil, &ParseError{Endpoint: "chart API", Err: fmt.Errorf("%s: %s",
			parsed.Chart.Error.Code, parsed.Chart.Error.Description)}
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &ParseError{Endpoint: "chart API", Err: fmt.Errorf("no result for %s", local)}
	}
	return &parsed, nil
}

// DailyCloses returns the valid daily closes over rng in chronological
// order. Null, NaN and non-positive entries are filtered at ingestion.
func (c *ChartClient) DailyCloses(ctx context.Context, local, rng string) ([]float64, error) {
	parsed, err := c.fetch(ctx, local, "1d", rng)
	if err != nil {
		return nil, err
	}
	return validCloses(parsed.Chart.Result[0].Indicators.Quote[0].Close), nil
}

// Quote derives a QuoteSnapshot from the last month of daily bars:
// change24h from the last two valid closes, change7d from the close six
// entries back. Short history falls back to the earliest available close
// rather than erroring.
func (c *ChartClient) Quote(ctx context.Context, local string) (*models.QuoteSnapshot, error) {
	parsed, err := c.fetch(ctx, local, "1d", RangeQuote)
	if err != nil {
		return nil, err
	}

	quote := parsed.Chart.Result[0].Indicators.Quote[0]
	closes := validCloses(quote.Close)
	if len(closes) == 0 {
		return nil, &ParseError{Endpoint: "chart API", Err: fmt.Errorf("no valid closes for %s", local)}
	}

	last := closes[len(closes)-1]
	snapshot := &models.QuoteSnapshot{Close: last}

	if len(closes) >= 2 {
		prev := closes[len(closes)-2]
		snapshot.Change24H = models.RoundPercent((last - prev) / prev * 100)
	}

	// Six entries back covers one trading week; shorter histories use the
	// earliest close available.
	ref := closes[0]
	if len(closes) >= 7 {
		ref = closes[len(closes)-7]
	}
	if ref > 0 {
		w := models.RoundPercent((last - ref) / ref * 100)
		snapshot.Change7D = &w
	}

	if n := len(quote.Volume); n > 0 {
		if v := quote.Volume[n-1]; v != nil && !math.IsNaN(*v) {
			snapshot.Volume = int64(*v)
		}
	}
	return snapshot, nil
}

// Intraday returns 5-minute bars for the current trading day, each carrying
// open/high/low and a localized HH:MM label.
func (c *ChartClient) Intraday(ctx context.Context, local string) ([]models.Candle, error) {
	parsed, err := c.fetch(ctx, local, "5m", "1d")
	if err != nil {
		return nil, err
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]models.Candle, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		cl := at(quote.Close, i)
		if cl == nil || math.IsNaN(*cl) || *cl <= 0 {
			continue
		}
		bar := models.Candle{
			Time:  time.Unix(ts, 0).In(c.location).Format("15:04"),
			Close: *cl,
		}
		if o := at(quote.Open, i); o != nil {
			bar.Open = *o
		}
		if h := at(quote.High, i); h != nil {
			bar.High = *h
		}
		if l := at(quote.Low, i); l != nil {
			bar.Low = *l
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

func validCloses(raw []*float64) []float64 {
	closes := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v == nil || math.IsNaN(*v) || *v <= 0 {
			continue
		}
		closes = append(closes, *v)
	}
	return closes
}
