package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvServer(t *testing.T, body string) *HistoryCSVClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "pkn", r.URL.Query().Get("s"))
		require.Equal(t, "d", r.URL.Query().Get("i"))
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewHistoryCSVClientURL(srv.Client(), srv.URL)
}

func csvBody(closes ...string) string {
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\n")
	for i, c := range closes {
		fmt.Fprintf(&b, "2024-01-%02d,10,11,9,%s,1000\n", i+1, c)
	}
	return b.String()
}

func TestDailyClosesParsesValidRows(t *testing.T) {
	client := csvServer(t, csvBody("10.5", "11.2", "10.9"))

	closes, ok, err := client.DailyCloses(context.Background(), "pkn", DefaultHistoryDays, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{10.5, 11.2, 10.9}, closes)
}

func TestDailyClosesSkipsBadRows(t *testing.T) {
	client := csvServer(t, csvBody("10.5", "N/D", "-4", "0", "11.0"))

	closes, ok, err := client.DailyCloses(context.Background(), "pkn", DefaultHistoryDays, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{10.5, 11.0}, closes)
}

func TestDailyClosesInsufficientIsNotAnError(t *testing.T) {
	client := csvServer(t, csvBody("10.5", "10.6"))

	closes, ok, err := client.DailyCloses(context.Background(), "pkn", DefaultHistoryDays, 15)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, closes, 2)
}

func TestDailyClosesHonorsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewHistoryCSVClientURL(srv.Client(), srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := client.DailyCloses(ctx, "pkn", DefaultHistoryDays, 15)
	require.Error(t, err)
}
