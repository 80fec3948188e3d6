package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "data", "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordAndReadBack(t *testing.T) {
	a := openTestArchive(t)

	day1 := time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, a.RecordSnapshots(day1, map[string]models.QuoteSnapshot{
		"pkn": {Close: 64.5, Volume: 1000, Change24H: 1.2},
	}))
	require.NoError(t, a.RecordSnapshots(day2, map[string]models.QuoteSnapshot{
		"pkn": {Close: 65.1, Volume: 900, Change24H: 0.93},
	}))

	points, err := a.DailyCloses("pkn", 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2026-08-28", points[0].Date)
	assert.Equal(t, 64.5, points[0].Close)
	assert.Equal(t, "2026-08-29", points[1].Date)
	assert.Equal(t, 65.1, points[1].Close)
}

func TestSameDayRerunOverwrites(t *testing.T) {
	a := openTestArchive(t)
	day := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	require.NoError(t, a.RecordSnapshots(day, map[string]models.QuoteSnapshot{
		"cdr": {Close: 120, Volume: 10},
	}))
	require.NoError(t, a.RecordSnapshots(day.Add(6*time.Hour), map[string]models.QuoteSnapshot{
		"cdr": {Close: 121.5, Volume: 20},
	}))

	points, err := a.DailyCloses("cdr", 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 121.5, points[0].Close)
}

func TestDailyClosesUnknownSymbolIsEmpty(t *testing.T) {
	a := openTestArchive(t)
	points, err := a.DailyCloses("zzz", 10)
	require.NoError(t, err)
	assert.Empty(t, points)
}
