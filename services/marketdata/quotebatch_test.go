package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
)

func testSession() *models.CredentialSession {
	return &models.CredentialSession{CookieHeader: "A3=d=abc", Crumb: "Xy9.zK3q"}
}

func quoteServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Xy9.zK3q", r.URL.Query().Get("crumb"))
		require.Equal(t, "A3=d=abc", r.Header.Get("Cookie"))
		fmt.Fprint(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchBatchNormalizesFundamentals(t *testing.T) {
	payload := `{"quoteResponse":{"result":[
		{"symbol":"PKN.WA","regularMarketPrice":64.52,"regularMarketVolume":1200000,
		 "regularMarketChangePercent":1.2345,"marketCap":75000000000,
		 "trailingPE":8.7,"trailingAnnualDividendYield":0.068,"longName":"Orlen"},
		{"symbol":"CDR.WA","regularMarketPrice":120.1,"regularMarketVolume":90000,
		 "regularMarketChangePercent":-0.5678,"marketCap":12000000000,
		 "trailingPE":-5,"trailingAnnualDividendYield":6.8,"shortName":"CD Projekt"}
	],"error":null}}`
	srv := quoteServer(t, payload)

	client := NewQuoteBatchClientURL(srv.Client(), models.NewSymbolTable(nil), srv.URL)
	got, err := client.FetchBatch(context.Background(), testSession(), []string{"pkn", "cdr", "pko"})
	require.NoError(t, err)

	require.Len(t, got, 2) // pko absent upstream -> absent here, not an error

	pkn := got["pkn"]
	assert.Equal(t, 64.52, pkn.Price)
	assert.Equal(t, int64(1200000), pkn.Volume)
	assert.Equal(t, 1.23, pkn.ChangePercent)
	assert.Equal(t, 75000.0, pkn.MarketCapMillions)
	require.NotNil(t, pkn.PERatio)
	assert.InDelta(t, 8.7, *pkn.PERatio, 1e-9)
	require.NotNil(t, pkn.DividendYieldPct)
	assert.InDelta(t, 6.8, *pkn.DividendYieldPct, 1e-9)
	assert.Equal(t, "Orlen", pkn.Name)

	cdr := got["cdr"]
	assert.Nil(t, cdr.PERatio) // negative PE dropped
	require.NotNil(t, cdr.DividendYieldPct)
	assert.InDelta(t, 6.8, *cdr.DividendYieldPct, 1e-9) // already percent, kept
	assert.Equal(t, "CD Projekt", cdr.Name)
}

func TestFetchBatchServerErrorIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewQuoteBatchClientURL(srv.Client(), models.NewSymbolTable(nil), srv.URL)
	_, err := client.FetchBatch(context.Background(), testSession(), []string{"pkn"})

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.StatusCode())
}

func TestFetchBatchGarbageBodyIsParseError(t *testing.T) {
	srv := quoteServer(t, "<html>maintenance</html>")

	client := NewQuoteBatchClientURL(srv.Client(), models.NewSymbolTable(nil), srv.URL)
	_, err := client.FetchBatch(context.Background(), testSession(), []string{"pkn"})

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestFetchBatchSkipsQuotesWithoutPrice(t *testing.T) {
	payload := `{"quoteResponse":{"result":[
		{"symbol":"PKN.WA","regularMarketVolume":5}
	],"error":null}}`
	srv := quoteServer(t, payload)

	client := NewQuoteBatchClientURL(srv.Client(), models.NewSymbolTable(nil), srv.URL)
	got, err := client.FetchBatch(context.Background(), testSession(), []string{"pkn"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
