// Package refresh implements the scheduled fetch -> normalize -> cache
// cycle that keeps the front end's reads instant. A run either completes,
// soft-fails per symbol, or aborts before writing: a stale cache is always
// preferable to an empty one.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
	"github.com/WIGMarkets/wigmarkets-sub001/services/batch"
	"github.com/WIGMarkets/wigmarkets-sub001/services/cache"
	"github.com/WIGMarkets/wigmarkets-sub001/services/history"
	"github.com/WIGMarkets/wigmarkets-sub001/services/marketdata"
	"github.com/WIGMarkets/wigmarkets-sub001/services/realtime"
	"github.com/WIGMarkets/wigmarkets-sub001/services/retry"
)

// Cache keys written by every successful run. The TTL outlives one
// non-trading day gap so a weekend or holiday never empties the cache.
const (
	KeyStocks      = "gpw:stocks"
	KeyQuotes      = "gpw:quotes"
	KeyLastRefresh = "gpw:last_refresh"

	CacheTTLSeconds = 30 * 3600
)

// ErrNoData means the run produced zero usable records and wrote nothing.
var ErrNoData = errors.New("refresh produced no usable records")

// Options tune the batching behavior of a run.
type Options struct {
	BatchSize         int           // tier-1 symbols per call
	FallbackBatchSize int           // tier-2 concurrent per-symbol fetches
	Cooldown          time.Duration // inter-batch delay
	TTLSeconds        int
}

// DefaultOptions matches the provider limits observed in production.
func DefaultOptions() Options {
	return Options{
		BatchSize:         marketdata.BatchSize,
		FallbackBatchSize: 15,
		Cooldown:          1500 * time.Millisecond,
		TTLSeconds:        CacheTTLSeconds,
	}
}

// RunSummary reports what a completed run did.
type RunSummary struct {
	Tier    string        `json:"tier"`
	Records int           `json:"records"`
	Elapsed time.Duration `json:"-"`
}

// Orchestrator composes the negotiation, fetch, normalization and cache
// layers into one refresh cycle. The archive and hub are optional; a nil
// value disables that sink.
type Orchestrator struct {
	negotiator *marketdata.SessionNegotiator
	quotes     *marketdata.QuoteBatchClient
	charts     *marketdata.ChartClient
	store      *cache.Store
	directory  models.CompanyDirectory
	archive    *history.Archive
	hub        *realtime.Hub
	policy     retry.Policy
	opts       Options
}

// New wires an orchestrator.
func New(
	negotiator *marketdata.SessionNegotiator,
	quotes *marketdata.QuoteBatchClient,
	charts *marketdata.ChartClient,
	store *cache.Store,
	directory models.CompanyDirectory,
	archive *history.Archive,
	hub *realtime.Hub,
	policy retry.Policy,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		negotiator: negotiator,
		quotes:     quotes,
		charts:     charts,
		store:      store,
		directory:  directory,
		archive:    archive,
		hub:        hub,
		policy:     policy,
		opts:       opts,
	}
}

// Run executes one full refresh cycle. A fresh session is negotiated per
// run and discarded afterwards. If negotiation or the whole tier-1
// collection fails, the entire run falls back to the unauthenticated chart
// tier for all symbols.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	companies := o.directory.Companies()
	locals := make([]string, len(companies))
	byLocal := make(map[string]models.Company, len(companies))
	for i, c := range companies {
		locals[i] = strings.ToLower(c.Symbol)
		byLocal[locals[i]] = c
	}
	log.Printf("refresh: starting run for %d symbols", len(locals))

	tier := "quote-batch"
	fundamentals := o.collectTier1(ctx, locals)

	var snapshots map[string]models.QuoteSnapshot
	if len(fundamentals) == 0 {
		tier = "chart"
		log.Println("refresh: tier-1 collection failed, falling back to chart tier for all symbols")
		snapshots = o.collectTier2(ctx, locals)
	} else {
		snapshots = make(map[string]models.QuoteSnapshot, len(fundamentals))
		for local, f := range fundamentals {
			snapshots[local] = models.QuoteSnapshot{
				Close:     f.Price,
				Volume:    f.Volume,
				Change24H: f.ChangePercent,
				// Change7D is filled by the cheaper refill pass.
			}
		}
	}

	records := normalize(byLocal, fundamentals, snapshots)
	if len(records) == 0 {
		return nil, ErrNoData
	}

	entries := []cache.Entry{
		{Key: KeyStocks, Value: records},
		{Key: KeyQuotes, Value: snapshots},
		{Key: KeyLastRefresh, Value: time.Now().Unix()},
	}
	if err := o.store.MSet(ctx, entries, o.opts.TTLSeconds); err != nil {
		return nil, err
	}

	if o.archive != nil {
		if err := o.archive.RecordSnapshots(time.Now(), snapshots); err != nil {
			log.Printf("refresh: archive write failed: %v", err)
		}
	}
	if o.hub != nil {
		o.hub.BroadcastQuotes(snapshots)
	}

	summary := &RunSummary{Tier: tier, Records: len(records), Elapsed: time.Since(start)}
	log.Printf("refresh: run complete tier=%s records=%d elapsed=%s", tier, summary.Records, summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

// collectTier1 negotiates a session and drives the batch quote adapter
// over the whole universe. Any failure -- negotiation or per-batch -- is
// absorbed; an empty map signals the caller to fall back.
func (o *Orchestrator) collectTier1(ctx context.Context, locals []string) map[string]marketdata.Fundamentals {
	session, err := o.negotiator.Negotiate(ctx)
	if err != nil {
		log.Printf("refresh: %v", err)
		return nil
	}

	plan := batch.Plan{Symbols: locals, BatchSize: o.opts.BatchSize, InterBatchDelay: o.opts.Cooldown}
	return batch.RunGrouped(ctx, plan, func(ctx context.Context, group []string) map[string]marketdata.Fundamentals {
		result, ok := retry.Do(ctx, o.policy, func(ctx context.Context) (map[string]marketdata.Fundamentals, error) {
			return o.quotes.FetchBatch(ctx, session, group)
		})
		if !ok {
			// Whole-batch transport failure: no partial parse, the batch
			// simply contributes nothing.
			return nil
		}
		return result
	})
}

func (o *Orchestrator) collectTier2(ctx context.Context, locals []string) map[string]models.QuoteSnapshot {
	plan := batch.Plan{Symbols: locals, BatchSize: o.opts.FallbackBatchSize, InterBatchDelay: o.opts.Cooldown}
	results := batch.Run(ctx, plan, func(ctx context.Context, local string) (*models.QuoteSnapshot, bool) {
		return retry.Do(ctx, o.policy, func(ctx context.Context) (*models.QuoteSnapshot, error) {
			return o.charts.Quote(ctx, local)
		})
	})

	snapshots := make(map[string]models.QuoteSnapshot, len(results))
	for local, snap := range results {
		if snap != nil {
			snapshots[local] = *snap
		}
	}
	return snapshots
}

// normalize builds the sorted StockRecord catalog from whatever tier
// produced data. Records sort by market cap descending, then ticker, so
// the catalog order is stable run to run.
func normalize(
	byLocal map[string]models.Company,
	fundamentals map[string]marketdata.Fundamentals,
	snapshots map[string]models.QuoteSnapshot,
) []models.StockRecord {
	records := make([]models.StockRecord, 0, len(snapshots))
	for local := range snapshots {
		company, known := byLocal[local]
		if !known {
			continue
		}
		record := models.StockRecord{
			Ticker:      strings.ToUpper(local),
			LocalSymbol: local,
			Name:        company.Name,
			Sector:      company.Sector,
		}
		if f, ok := fundamentals[local]; ok {
			if f.Name != "" {
				record.Name = f.Name
			}
			record.MarketCapMillions = f.MarketCapMillions
			record.PERatio = f.PERatio
			record.DividendYieldPct = f.DividendYieldPct
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].MarketCapMillions != records[j].MarketCapMillions {
			return records[i].MarketCapMillions > records[j].MarketCapMillions
		}
		return records[i].Ticker < records[j].Ticker
	})
	return records
}

// RefillWeeklyChanges is the cheaper follow-up pass: it re-reads the cached
// quote map, computes the missing 7-day changes from the chart tier, and
// rewrites the quotes key. Snapshots that already carry change7d are left
// untouched.
func (o *Orchestrator) RefillWeeklyChanges(ctx context.Context) (int, error) {
	cached, err := o.store.Get(ctx, KeyQuotes)
	if err != nil {
		return 0, err
	}
	if cached == nil {
		return 0, nil
	}

	// The cache returns generic JSON; round-trip into the typed map.
	raw, err := json.Marshal(cached)
	if err != nil {
		return 0, err
	}
	var quotes map[string]models.QuoteSnapshot
	if err := json.Unmarshal(raw, &quotes); err != nil {
		return 0, err
	}

	var missing []string
	for local, q := range quotes {
		if q.Change7D == nil {
			missing = append(missing, local)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	sort.Strings(missing)

	plan := batch.Plan{Symbols: missing, BatchSize: o.opts.FallbackBatchSize, InterBatchDelay: o.opts.Cooldown}
	fetched := batch.Run(ctx, plan, func(ctx context.Context, local string) (*models.QuoteSnapshot, bool) {
		return retry.Do(ctx, o.policy, func(ctx context.Context) (*models.QuoteSnapshot, error) {
			return o.charts.Quote(ctx, local)
		})
	})

	filled := 0
	for local, snap := range fetched {
		if snap == nil || snap.Change7D == nil {
			continue
		}
		q := quotes[local]
		q.Change7D = snap.Change7D
		quotes[local] = q
		filled++
	}
	if filled == 0 {
		return 0, nil
	}

	if err := o.store.Set(ctx, KeyQuotes, quotes, o.opts.TTLSeconds); err != nil {
		return filled, err
	}
	if o.hub != nil {
		o.hub.BroadcastQuotes(quotes)
	}
	log.Printf("refresh: refilled change7d for %d of %d symbols", filled, len(missing))
	return filled, nil
}
