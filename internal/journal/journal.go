package journal

import "time"

// FetchRecord describes one statement fetch, cache hit or not.
type FetchRecord struct {
	Symbol   string
	Function string
	Period   string
	Outcome  string // "cache_hit" or a fetch outcome label
	CacheHit bool
	Attempts int
	Rows     int
	Duration time.Duration
}

// RunRecord summarizes one completed analysis run.
type RunRecord struct {
	Symbol          string
	Period          string
	Years           int
	EmptyStatements int
	PricesResolved  int
	Duration        time.Duration
}

// Journal persists fetch diagnostics. It records request telemetry only,
// never analysis results.
type Journal interface {
	RecordFetch(rec *FetchRecord) error
	RecordRun(rec *RunRecord) error
	Close() error
}
