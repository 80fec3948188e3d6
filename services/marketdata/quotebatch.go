package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
)

// BatchSize is the largest symbol count sent in one authenticated quote
// call. The limit is undocumented; 40 has proven safe in production.
const BatchSize = 40

const defaultQuoteURL = "https://query1.finance.yahoo.com/v7/finance/quote"

// Fundamentals is the tier-1 per-symbol payload: price plus the richer
// fields only the authenticated API reports. All sanitization rules are
// applied before a Fundamentals leaves this package.
type Fundamentals struct {
	Price             float64
	Volume            int64
	ChangePercent     float64
	MarketCapMillions float64
	PERatio           *float64
	DividendYieldPct  *float64
	Name              string
}

// QuoteBatchClient is the authenticated batch adapter (tier 1). One HTTP
// call covers up to BatchSize symbols; a transport or parse failure yields
// an error for the whole batch, never a partial parse.
type QuoteBatchClient struct {
	client   *http.Client
	symbols  *models.SymbolTable
	quoteURL string
}

// NewQuoteBatchClient wires the adapter against the production endpoint.
func NewQuoteBatchClient(client *http.Client, symbols *models.SymbolTable) *QuoteBatchClient {
	return &QuoteBatchClient{client: client, symbols: symbols, quoteURL: defaultQuoteURL}
}

// NewQuoteBatchClientURL is the injectable variant for tests.
func NewQuoteBatchClientURL(client *http.Client, symbols *models.SymbolTable, quoteURL string) *QuoteBatchClient {
	return &QuoteBatchClient{client: client, symbols: symbols, quoteURL: quoteURL}
}

// quoteResponse is the authenticated API's envelope. Kept as an explicit
// struct so shape drift surfaces as a ParseError, not as zero values
// propagating downstream.
type quoteResponse struct {
	QuoteResponse struct {
		Result []rawQuote `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

type rawQuote struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketVolume        *int64   `json:"regularMarketVolume"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
	MarketCap                  *float64 `json:"marketCap"`
	TrailingPE                 *float64 `json:"trailingPE"`
	DividendYield              *float64 `json:"trailingAnnualDividendYield"`
	LongName                   string   `json:"longName"`
	ShortName                  string   `json:"shortName"`
}

// FetchBatch fetches up to BatchSize symbols in one call and returns the
// result keyed by local symbol. Symbols the provider did not answer for
// are simply absent from the map.
func (c *QuoteBatchClient) FetchBatch(ctx context.Context, session *models.CredentialSession, locals []string) (map[string]Fundamentals, error) {
	if len(locals) == 0 {
		return map[string]Fundamentals{}, nil
	}
	if len(locals) > BatchSize {
		locals = locals[:BatchSize]
	}

	upstream := c.symbols.UpstreamBatch(locals)
	q := url.Values{}
	q.Set("symbols", strings.Join(upstream, ","))
	q.Set("crumb", session.Crumb)

	body, err := getBody(ctx, c.client, "quote API", c.quoteURL+"?"+q.Encode(), map[string]string{
		"Cookie": session.CookieHeader,
	})
	if err != nil {
		return nil, err
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ParseError{Endpoint: "quote API", Err: err}
	}
	if parsed.QuoteResponse.Error != nil {
		return nil, &ParseError{Endpoint: "quote API", Err: fmt.Errorf("%s: %s",
			parsed.QuoteResponse.Error.Code, parsed.QuoteResponse.Error.Description)}
	}

	// Index the result array by upstream symbol for O(1) lookup against the
	// requested batch.
	byUpstream := make(map[string]rawQuote, len(parsed.QuoteResponse.Result))
	for _, r := range parsed.QuoteResponse.Result {
		byUpstream[r.Symbol] = r
	}

	out := make(map[string]Fundamentals, len(locals))
	for i, local := range locals {
		raw, ok := byUpstream[upstream[i]]
		if !ok || raw.RegularMarketPrice == nil {
			continue
		}
		f := Fundamentals{
			Price: *raw.RegularMarketPrice,
			Name:  firstNonEmpty(raw.LongName, raw.ShortName),
		}
		if raw.RegularMarketVolume != nil {
			f.Volume = *raw.RegularMarketVolume
		}
		if raw.RegularMarketChangePercent != nil {
			f.ChangePercent = models.RoundPercent(*raw.RegularMarketChangePercent)
		}
		if raw.MarketCap != nil {
			f.MarketCapMillions = models.MarketCapMillions(*raw.MarketCap)
		}
		if raw.TrailingPE != nil {
			f.PERatio = models.SanitizePE(*raw.TrailingPE)
		}
		if raw.DividendYield != nil {
			f.DividendYieldPct = models.NormalizeDividendYield(*raw.DividendYield)
		}
		out[strings.ToLower(local)] = f
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
