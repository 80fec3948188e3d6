// Package analysis holds the technical indicator math. Functions here are
// pure and unrounded; display rounding happens at the call site so the
// engine stays exactly testable.
package analysis

// DefaultRSIPeriod is the conventional Wilder smoothing window.
const DefaultRSIPeriod = 14

// RSI computes the Wilder-smoothed Relative Strength Index over an
// ascending series of closes. It needs at least period+1 closes and
// reports ok=false otherwise. A window with no losses yields exactly 100,
// which is a valid edge case, not an error.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	// Initial averages over the first `period` differences.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remaining differences.
	for i := period + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
