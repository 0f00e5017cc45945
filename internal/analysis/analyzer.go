package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"FinSheet/internal/alphavantage"
	"FinSheet/internal/cache"
	"FinSheet/internal/journal"
	"FinSheet/internal/model"
)

// Fetcher issues one classified statement request. Satisfied by
// *alphavantage.Client.
type Fetcher interface {
	FetchStatement(ctx context.Context, st model.StatementType, symbol string, period model.Period) alphavantage.Result
}

// PriceLookup resolves year-end closing prices. Satisfied by *prices.Client.
type PriceLookup interface {
	YearEndCloses(ctx context.Context, symbol string, years []int) (model.PriceSeries, error)
}

// Request describes one analysis run.
type Request struct {
	Symbol string
	Period model.Period
	Years  int
}

// Analyzer sequences the statement fetches for one run: cache first, then
// the rate-limited fetcher, with progress and log events emitted after
// every statement. All network I/O and sleeps happen on the worker
// goroutine spawned by Start; the caller only consumes events.
type Analyzer struct {
	Cache   *cache.Store
	Fetcher Fetcher
	Prices  PriceLookup
	Journal journal.Journal
	Logger  zerolog.Logger

	// NormalSleep is the flat inter-request delay between statements,
	// keeping the run under the provider's per-minute quota. Applied
	// unconditionally, cache hit or miss.
	NormalSleep time.Duration
	// PruneMaxAge is the cache retention window for the per-run prune pass.
	PruneMaxAge time.Duration
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// NewAnalyzer wires an Analyzer with production defaults.
func NewAnalyzer(store *cache.Store, fetcher Fetcher, prices PriceLookup, jrnl journal.Journal, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		Cache:       store,
		Fetcher:     fetcher,
		Prices:      prices,
		Journal:     jrnl,
		Logger:      logger,
		NormalSleep: 12 * time.Second,
		PruneMaxAge: 7 * 24 * time.Hour,
		Now:         time.Now,
	}
}

// Start validates the request and, if it passes, begins the run on a new
// worker goroutine. The returned channel carries the run's events and is
// closed when the run ends. Validation failures are reported synchronously
// and no worker is started.
func (a *Analyzer) Start(ctx context.Context, req Request) (<-chan model.Event, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	events := make(chan model.Event, 32)
	go func() {
		defer close(events)
		a.run(ctx, req, events)
	}()
	return events, nil
}

func (a *Analyzer) run(ctx context.Context, req Request, events chan<- model.Event) {
	started := a.Now()
	progress := newProgressTracker(events)
	logln := func(format string, args ...interface{}) {
		events <- model.LogLine{Text: fmt.Sprintf(format, args...)}
	}

	if removed, err := a.Cache.Prune(a.PruneMaxAge); err != nil {
		a.Logger.Warn().Err(err).Msg("cache prune failed")
	} else if removed > 0 {
		a.Logger.Info().Int("removed", removed).Msg("pruned stale cache entries")
	}

	logln("Fetching financial data for %s...", req.Symbol)

	financials := make(model.Financials, len(model.StatementOrder))
	vintage := a.Now().Year()
	limit := req.Period.Limit(req.Years)
	total := len(model.StatementOrder)

	for i, st := range model.StatementOrder {
		if ctx.Err() != nil {
			events <- model.RunFailed{Reason: ctx.Err().Error()}
			return
		}

		rows := a.fetchStatement(ctx, req, st, vintage, logln)
		financials[st] = truncateByDate(rows, limit)
		progress.set(float64(i+1) / float64(total) * 100)

		// Flat inter-request delay between statements; part of the
		// orchestration contract, not the fetcher's.
		if i < total-1 {
			if err := sleepCtx(ctx, a.NormalSleep); err != nil {
				events <- model.RunFailed{Reason: err.Error()}
				return
			}
		}
	}

	prices := a.lookupPrices(ctx, req, vintage, logln)

	logln("Financial data successfully extracted.")
	progress.set(100)

	events <- model.RunCompleted{
		Symbol:     req.Symbol,
		Financials: financials,
		Prices:     prices,
	}

	empty := 0
	for _, rows := range financials {
		if len(rows) == 0 {
			empty++
		}
	}
	resolved := 0
	for _, p := range prices {
		if p != nil {
			resolved++
		}
	}
	if err := a.Journal.RecordRun(&journal.RunRecord{
		Symbol:          req.Symbol,
		Period:          string(req.Period),
		Years:           req.Years,
		EmptyStatements: empty,
		PricesResolved:  resolved,
		Duration:        a.Now().Sub(started),
	}); err != nil {
		a.Logger.Warn().Err(err).Msg("journal run record failed")
	}
}

// fetchStatement resolves one statement: cache hit, or a classified fetch
// whose raw payload is persisted before truncation. Every failure path
// degrades to an empty row set; the run never stops here.
func (a *Analyzer) fetchStatement(ctx context.Context, req Request, st model.StatementType, vintage int, logln func(string, ...interface{})) []model.Row {
	started := a.Now()
	key := cache.Key{
		Symbol:   req.Symbol,
		Function: st.Function(),
		Period:   string(req.Period),
		Year:     vintage,
	}
	name := strings.ToLower(st.DisplayName())

	if raw, ok := a.Cache.Get(key); ok {
		var rows []model.Row
		if err := json.Unmarshal(raw, &rows); err == nil {
			logln("Loaded %s from cache", name)
			a.recordFetch(req, st, "cache_hit", true, 0, len(rows), a.Now().Sub(started))
			return rows
		}
		a.Logger.Warn().Str("file", key.Filename()).Msg("cached payload undecodable, refetching")
	}

	logln("Fetching %s...", name)
	res := a.Fetcher.FetchStatement(ctx, st, req.Symbol, req.Period)
	a.recordFetch(req, st, res.Outcome.String(), false, res.Attempts, len(res.Rows), a.Now().Sub(started))

	switch res.Outcome {
	case alphavantage.OutcomeSuccess:
		a.Cache.Put(key, res.Reports)
		if len(res.Rows) == 0 {
			logln("No %s reports returned for %s", name, req.Symbol)
		}
		return res.Rows
	case alphavantage.OutcomeRateLimited:
		logln("Rate limit persisted after %d attempts; continuing with empty %s", res.Attempts, name)
	case alphavantage.OutcomeInvalidRequest:
		logln("API error returned by provider: %s", res.Message)
	case alphavantage.OutcomeThrottled:
		logln("API throttle notice: %s", res.Message)
	case alphavantage.OutcomeTransport:
		logln("Request failed: %v", res.Err)
	}
	return nil
}

func (a *Analyzer) lookupPrices(ctx context.Context, req Request, vintage int, logln func(string, ...interface{})) model.PriceSeries {
	years := make([]int, 0, req.Years)
	for y := vintage - req.Years + 1; y <= vintage; y++ {
		years = append(years, y)
	}

	series, err := a.Prices.YearEndCloses(ctx, req.Symbol, years)
	if err != nil {
		logln("Price lookup failed: %v", err)
		return model.PriceSeries{}
	}
	if len(series) == 0 {
		logln("No price history available for %s", req.Symbol)
		return series
	}

	logln("Year-end closing prices:")
	for _, y := range years {
		label := fmt.Sprintf("%d", y)
		if p, ok := series[label]; ok && p != nil {
			logln("  %s: %.2f", label, *p)
		} else {
			logln("  %s: N/A", label)
		}
	}
	return series
}

func (a *Analyzer) recordFetch(req Request, st model.StatementType, outcome string, hit bool, attempts, rows int, d time.Duration) {
	if err := a.Journal.RecordFetch(&journal.FetchRecord{
		Symbol:   req.Symbol,
		Function: st.Function(),
		Period:   string(req.Period),
		Outcome:  outcome,
		CacheHit: hit,
		Attempts: attempts,
		Rows:     rows,
		Duration: d,
	}); err != nil {
		a.Logger.Warn().Err(err).Msg("journal fetch record failed")
	}
}

// truncateByDate sorts rows by fiscal date ascending and keeps the most
// recent limit rows.
func truncateByDate(rows []model.Row, limit int) []model.Row {
	if len(rows) == 0 {
		return rows
	}
	sorted := make([]model.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FiscalDateEnding() < sorted[j].FiscalDateEnding()
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted
}

// progressTracker guarantees the reported percentage never decreases.
type progressTracker struct {
	events chan<- model.Event
	last   float64
}

func newProgressTracker(events chan<- model.Event) *progressTracker {
	return &progressTracker{events: events}
}

func (p *progressTracker) set(pct float64) {
	if pct < p.last {
		pct = p.last
	}
	p.last = pct
	p.events <- model.ProgressUpdate{Percent: pct}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
