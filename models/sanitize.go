package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundPercent rounds a percentage to 2 decimal places, the precision every
// percent field is served with. Non-finite input collapses to 0.
func RoundPercent(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Round1 rounds to 1 decimal place (RSI display convention).
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}

// SanitizePE keeps a trailing P/E only when it falls in a plausible band.
// Negative, zero, absurdly large or non-finite ratios come back from the
// provider for illiquid names and are dropped to nil.
func SanitizePE(raw float64) *float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return nil
	}
	if raw <= 0 || raw >= 10000 {
		return nil
	}
	v, _ := decimal.NewFromFloat(raw).Round(2).Float64()
	return &v
}

// NormalizeDividendYield disambiguates the provider's inconsistent yield
// reporting: some instruments report a fraction (0.068), others an already
// scaled percent (6.8). Values below 1 are treated as fractions.
func NormalizeDividendYield(raw float64) *float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		return nil
	}
	if raw == 0 {
		return nil
	}
	if raw < 1 {
		raw *= 100
	}
	v, _ := decimal.NewFromFloat(raw).Round(2).Float64()
	return &v
}

// MarketCapMillions converts a raw market cap to millions, rounded to 2 dp.
func MarketCapMillions(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(raw / 1e6).Round(2).Float64()
	return f
}
