package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHistoryURL = "https://stooq.com/q/d/l/"

	// DefaultHistoryDays is enough for RSI(14) with slack for non-trading
	// days; ExtendedHistoryDays is the retry window when the default comes
	// back short.
	DefaultHistoryDays  = 60
	ExtendedHistoryDays = 90

	historyTimeout = 5 * time.Second
)

// HistoryCSVClient fetches long daily history as CSV from the lightweight
// provider. It is the preferred source for indicator computation; callers
// fall back to the chart adapter per symbol when it reports insufficient
// data.
type HistoryCSVClient struct {
	client     *http.Client
	historyURL string
}

// NewHistoryCSVClient wires the adapter against the production endpoint.
func NewHistoryCSVClient(client *http.Client) *HistoryCSVClient {
	return &HistoryCSVClient{client: client, historyURL: defaultHistoryURL}
}

// NewHistoryCSVClientURL is the injectable variant for tests.
func NewHistoryCSVClientURL(client *http.Client, historyURL string) *HistoryCSVClient {
	return &HistoryCSVClient{client: client, historyURL: historyURL}
}

// DailyCloses returns up to days of valid daily closes in chronological
// order, and ok=false when fewer than minRows valid rows came back --
// insufficient data is a normal outcome here, not an error. The call is
// bounded by its own 5s timeout regardless of the parent context.
func (c *HistoryCSVClient) DailyCloses(ctx context.Context, local string, days, minRows int) ([]float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	now := time.Now()
	q := url.Values{}
	q.Set("s", strings.ToLower(local))
	q.Set("i", "d")
	q.Set("d1", now.AddDate(0, 0, -days).Format("20060102"))
	q.Set("d2", now.Format("20060102"))

	body, err := getBody(ctx, c.client, "history CSV", c.historyURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, false, err
	}

	closes, err := parseHistoryCSV(string(body))
	if err != nil {
		return nil, false, err
	}
	if len(closes) < minRows {
		return closes, false, nil
	}
	return closes, true, nil
}

// parseHistoryCSV reads Date,Open,High,Low,Close[,Volume] rows, skipping
// the header and any row whose close does not parse as a positive finite
// number.
func parseHistoryCSV(body string) ([]float64, error) {
	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ParseError{Endpoint: "history CSV", Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Endpoint: "history CSV", Err: fmt.Errorf("empty body")}
	}

	closes := make([]float64, 0, len(records))
	for i, row := range records {
		if i == 0 {
			continue // header
		}
		if len(row) < 5 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		closes = append(closes, v)
	}
	return closes, nil
}
