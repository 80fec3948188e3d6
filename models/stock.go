package models

// StockRecord is the static identity of a listed company enriched with
// fundamentals sanitized at write time. PERatio and DividendYieldPct are
// pointers because both are routinely missing or garbage upstream and an
// absent value must survive JSON round trips as null.
type StockRecord struct {
	Ticker            string   `json:"ticker"`
	LocalSymbol       string   `json:"localSymbol"`
	Name              string   `json:"name"`
	Sector            string   `json:"sector"`
	MarketCapMillions float64  `json:"marketCapMillions"`
	PERatio           *float64 `json:"peRatio"`
	DividendYieldPct  *float64 `json:"dividendYieldPct"`
}

// QuoteSnapshot is the per-symbol quote served to the front end.
// Change7D may be transiently absent: it is filled by a later, cheaper
// refresh pass, so nil is a valid state and not an error.
type QuoteSnapshot struct {
	Close     float64  `json:"close"`
	Volume    int64    `json:"volume"`
	Change24H float64  `json:"change24h"`
	Change7D  *float64 `json:"change7d,omitempty"`
}

// Candle is a single OHLC bar. Time is a display label, not a parseable
// timestamp (intraday bars carry an Europe/Warsaw HH:MM label).
type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// CredentialSession holds the cookie+crumb pair required by the
// authenticated quote API. It is created fresh per orchestration run and
// never persisted.
type CredentialSession struct {
	CookieHeader string
	Crumb        string
}
