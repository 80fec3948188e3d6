package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIAllGainsIsExactly100(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	rsi, ok := RSI(closes, DefaultRSIPeriod)
	require.True(t, ok)
	assert.Equal(t, 100.0, rsi)
}

func TestRSIHandComputedReference(t *testing.T) {
	// 15 points alternating +2/-1: diffs +2,-1,+2,-1,... (7 gains of 2,
	// 7 losses of 1 over the first 14 diffs).
	// avgGain = 14/14 = 1, avgLoss = 7/14 = 0.5, RS = 2, RSI = 100-100/3.
	closes := []float64{100, 102, 101, 103, 102, 104, 103, 105, 104, 106, 105, 107, 106, 108, 107}
	require.Len(t, closes, 15)

	rsi, ok := RSI(closes, 14)
	require.True(t, ok)
	assert.InDelta(t, 100.0-100.0/3.0, rsi, 1e-9)
}

func TestRSIWilderSmoothingStep(t *testing.T) {
	// 16 points: same base as above plus one extra +2 gain.
	// avgGain' = (1*13+2)/14 = 15/14, avgLoss' = (0.5*13+0)/14 = 6.5/14.
	closes := []float64{100, 102, 101, 103, 102, 104, 103, 105, 104, 106, 105, 107, 106, 108, 107, 109}

	rsi, ok := RSI(closes, 14)
	require.True(t, ok)

	avgGain := 15.0 / 14.0
	avgLoss := 6.5 / 14.0
	want := 100 - 100/(1+avgGain/avgLoss)
	assert.InDelta(t, want, rsi, 1e-9)
}

func TestRSIInsufficientData(t *testing.T) {
	closes := make([]float64, 14) // needs period+1
	for i := range closes {
		closes[i] = 100
	}

	_, ok := RSI(closes, 14)
	assert.False(t, ok)

	_, ok = RSI(nil, 14)
	assert.False(t, ok)
}

func TestRSIRejectsNonPositivePeriod(t *testing.T) {
	_, ok := RSI([]float64{1, 2, 3}, 0)
	assert.False(t, ok)
}
