// Package batch partitions a symbol set into rate-limit-sized batches,
// fans out within a batch and serializes batches with a cooldown delay.
// The upstream rate limits are undocumented; the cooldown between batches
// is the only protection against them.
package batch

import (
	"context"
	"sync"
	"time"
)

// Plan describes one scheduled run. Purely structural: building a plan has
// no side effects.
type Plan struct {
	Symbols         []string
	BatchSize       int
	InterBatchDelay time.Duration
}

// Batches splits the symbols into ordered batches of at most BatchSize.
func (p Plan) Batches() [][]string {
	size := p.BatchSize
	if size <= 0 {
		size = len(p.Symbols)
	}
	if size <= 0 {
		return nil
	}
	var out [][]string
	for start := 0; start < len(p.Symbols); start += size {
		end := start + size
		if end > len(p.Symbols) {
			end = len(p.Symbols)
		}
		out = append(out, p.Symbols[start:end])
	}
	return out
}

// Run executes fetch once per symbol. Within a batch all fetches run
// concurrently and the batch waits for every one to settle -- a failing
// symbol never aborts its siblings. Symbols whose fetch reports ok=false
// are absent from the result map. Between batches (never after the last)
// the scheduler sleeps InterBatchDelay; cancellation is honored at batch
// boundaries.
func Run[T any](ctx context.Context, plan Plan, fetch func(ctx context.Context, symbol string) (T, bool)) map[string]T {
	type slot struct {
		symbol string
		value  T
		ok     bool
	}

	out := make(map[string]T, len(plan.Symbols))
	batches := plan.Batches()
	for bi, symbols := range batches {
		slots := make([]slot, len(symbols))
		var wg sync.WaitGroup
		for i, symbol := range symbols {
			wg.Add(1)
			go func(i int, symbol string) {
				defer wg.Done()
				v, ok := fetch(ctx, symbol)
				// Each goroutine owns exactly one slot, so no lock is
				// needed for aggregation.
				slots[i] = slot{symbol: symbol, value: v, ok: ok}
			}(i, symbol)
		}
		wg.Wait()

		for _, s := range slots {
			if s.ok {
				out[s.symbol] = s.value
			}
		}

		if bi < len(batches)-1 {
			if !cooldown(ctx, plan.InterBatchDelay) {
				break
			}
		}
	}
	return out
}

// RunGrouped executes fetch once per batch (for adapters that accept a
// whole batch in one call), merging the partial maps. Batches stay strictly
// serial with the same cooldown rule as Run.
func RunGrouped[T any](ctx context.Context, plan Plan, fetch func(ctx context.Context, symbols []string) map[string]T) map[string]T {
	out := make(map[string]T, len(plan.Symbols))
	batches := plan.Batches()
	for bi, symbols := range batches {
		for k, v := range fetch(ctx, symbols) {
			out[k] = v
		}
		if bi < len(batches)-1 {
			if !cooldown(ctx, plan.InterBatchDelay) {
				break
			}
		}
	}
	return out
}

func cooldown(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
