package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
	"github.com/WIGMarkets/wigmarkets-sub001/services/cache"
	"github.com/WIGMarkets/wigmarkets-sub001/services/marketdata"
	"github.com/WIGMarkets/wigmarkets-sub001/services/retry"
)

// fakeKV records pipeline writes issued by the orchestrator.
type fakeKV struct {
	values map[string]string
	ttls   map[string]string
	sets   int
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]string{}}
}

func (f *fakeKV) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var commands [][]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&commands))

		results := make([]map[string]interface{}, 0, len(commands))
		for _, cmd := range commands {
			args := make([]string, len(cmd))
			for i, raw := range cmd {
				_ = json.Unmarshal(raw, &args[i])
			}
			switch args[0] {
			case "SET":
				f.sets++
				f.values[args[1]] = args[2]
				if len(args) >= 5 {
					f.ttls[args[1]] = args[4]
				}
				results = append(results, map[string]interface{}{"result": "OK"})
			case "GET":
				if v, ok := f.values[args[1]]; ok {
					results = append(results, map[string]interface{}{"result": v})
				} else {
					results = append(results, map[string]interface{}{"result": nil})
				}
			default:
				t.Fatalf("unexpected command %q", args[0])
			}
		}
		_ = json.NewEncoder(w).Encode(results)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testDirectory(n int) models.CompanyDirectory {
	companies := make([]models.Company, n)
	for i := range companies {
		companies[i] = models.Company{
			Symbol: fmt.Sprintf("co%03d", i),
			Name:   fmt.Sprintf("Company %03d", i),
			Sector: "Test",
		}
	}
	return models.NewStaticDirectory(companies)
}

// quoteUpstream answers the batch quote API for every requested symbol.
func quoteUpstream(t *testing.T, empty bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var quotes []map[string]interface{}
		if !empty {
			for i, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
				quotes = append(quotes, map[string]interface{}{
					"symbol":                      sym,
					"regularMarketPrice":          100.0 + float64(i),
					"regularMarketVolume":         1000,
					"regularMarketChangePercent":  1.5,
					"marketCap":                   1e9 + float64(i)*1e6,
					"trailingPE":                  12.0,
					"trailingAnnualDividendYield": 0.05,
				})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"quoteResponse": map[string]interface{}{"result": quotes, "error": nil},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func authUpstream(t *testing.T, failCrumb bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "A3=d=abc; Path=/")
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/crumb", func(w http.ResponseWriter, r *http.Request) {
		if failCrumb {
			fmt.Fprint(w, `{"error":"unauthorized"}`)
			return
		}
		fmt.Fprint(w, "Xy9.zK3q")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond, Retryable: retry.DefaultRetryable}
}

func newOrchestrator(t *testing.T, kv *fakeKV, quoteSrv, authSrv, chartSrv *httptest.Server, n int) *Orchestrator {
	t.Helper()
	httpClient := &http.Client{Timeout: 5 * time.Second}
	table := models.NewSymbolTable(nil)

	chartURL := "http://127.0.0.1:0" // unused unless the test provides one
	if chartSrv != nil {
		chartURL = chartSrv.URL
	}

	return New(
		marketdata.NewSessionNegotiatorURLs(httpClient, authSrv.URL+"/landing", authSrv.URL+"/crumb"),
		marketdata.NewQuoteBatchClientURL(httpClient, table, quoteSrv.URL),
		marketdata.NewChartClientURL(httpClient, table, chartURL),
		cache.New(kv.server(t).URL, "token"),
		testDirectory(n),
		nil, nil,
		fastPolicy(),
		Options{BatchSize: 40, FallbackBatchSize: 20, Cooldown: time.Millisecond, TTLSeconds: CacheTTLSeconds},
	)
}

func TestRunPersistsFullUniverse(t *testing.T) {
	kv := newFakeKV()
	orch := newOrchestrator(t, kv, quoteUpstream(t, false), authUpstream(t, false), nil, 300)

	before := time.Now().Unix()
	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	after := time.Now().Unix()

	assert.Equal(t, "quote-batch", summary.Tier)
	assert.Equal(t, 300, summary.Records)

	var records []models.StockRecord
	require.NoError(t, json.Unmarshal([]byte(kv.values[KeyStocks]), &records))
	require.Len(t, records, 300)

	var quotes map[string]models.QuoteSnapshot
	require.NoError(t, json.Unmarshal([]byte(kv.values[KeyQuotes]), &quotes))
	require.Len(t, quotes, 300)
	for _, rec := range records {
		q, ok := quotes[rec.LocalSymbol]
		require.True(t, ok, "record %s has no quote", rec.Ticker)
		assert.Greater(t, q.Close, 0.0)
		assert.Nil(t, q.Change7D) // filled later by the refill pass
	}

	// Catalog is sorted by market cap descending.
	for i := 1; i < len(records); i++ {
		assert.GreaterOrEqual(t, records[i-1].MarketCapMillions, records[i].MarketCapMillions)
	}

	// All three keys share the 30-hour TTL.
	for _, key := range []string{KeyStocks, KeyQuotes, KeyLastRefresh} {
		assert.Equal(t, "108000", kv.ttls[key], "ttl for %s", key)
	}

	var ts int64
	require.NoError(t, json.Unmarshal([]byte(kv.values[KeyLastRefresh]), &ts))
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
}

func TestRunZeroRecordsWritesNothing(t *testing.T) {
	kv := newFakeKV()
	// Tier 1 answers with an empty result set and the chart tier is dead.
	chartSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(chartSrv.Close)

	orch := newOrchestrator(t, kv, quoteUpstream(t, true), authUpstream(t, false), chartSrv, 5)

	_, err := orch.Run(context.Background())
	require.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, kv.sets, "a failed run must not touch the cache")
}

func TestRunFallsBackToChartTier(t *testing.T) {
	kv := newFakeKV()
	chartSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"chart": map[string]interface{}{
				"result": []interface{}{map[string]interface{}{
					"timestamp": []int64{0, 1},
					"indicators": map[string]interface{}{
						"quote": []interface{}{map[string]interface{}{
							"close":  []interface{}{100.0, 102.0},
							"volume": []interface{}{5000.0, 6000.0},
						}},
					},
				}},
				"error": nil,
			},
		})
	}))
	t.Cleanup(chartSrv.Close)

	// Crumb negotiation fails, so tier 1 is unusable for the whole run.
	orch := newOrchestrator(t, kv, quoteUpstream(t, false), authUpstream(t, true), chartSrv, 8)

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chart", summary.Tier)
	assert.Equal(t, 8, summary.Records)

	var quotes map[string]models.QuoteSnapshot
	require.NoError(t, json.Unmarshal([]byte(kv.values[KeyQuotes]), &quotes))
	require.Len(t, quotes, 8)
	for _, q := range quotes {
		assert.Equal(t, 102.0, q.Close)
		assert.InDelta(t, 2.0, q.Change24H, 1e-9)
		require.NotNil(t, q.Change7D) // chart tier computes it directly
	}
}

func TestRefillWeeklyChanges(t *testing.T) {
	kv := newFakeKV()
	chartSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"chart": map[string]interface{}{
				"result": []interface{}{map[string]interface{}{
					"timestamp": []int64{0, 1, 2, 3, 4, 5, 6, 7},
					"indicators": map[string]interface{}{
						"quote": []interface{}{map[string]interface{}{
							"close": []interface{}{100.0, 101.0, 102.0, 103.0, 104.0, 105.0, 106.0, 107.0},
						}},
					},
				}},
				"error": nil,
			},
		})
	}))
	t.Cleanup(chartSrv.Close)

	seven := 1.0
	seeded := map[string]models.QuoteSnapshot{
		"co000": {Close: 107, Change24H: 0.5},                   // missing change7d
		"co001": {Close: 50, Change24H: -0.2, Change7D: &seven}, // already filled
	}
	raw, _ := json.Marshal(seeded)
	kv.values[KeyQuotes] = string(raw)

	orch := newOrchestrator(t, kv, quoteUpstream(t, false), authUpstream(t, false), chartSrv, 2)

	filled, err := orch.RefillWeeklyChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, filled)

	var quotes map[string]models.QuoteSnapshot
	require.NoError(t, json.Unmarshal([]byte(kv.values[KeyQuotes]), &quotes))
	require.NotNil(t, quotes["co000"].Change7D)
	assert.InDelta(t, 5.94, *quotes["co000"].Change7D, 1e-9)
	// Untouched snapshot keeps its original value.
	require.NotNil(t, quotes["co001"].Change7D)
	assert.Equal(t, 1.0, *quotes["co001"].Change7D)
}
