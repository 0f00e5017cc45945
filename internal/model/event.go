package model

// Event is one message from the analysis worker to the presentation
// dispatcher. The worker never touches presentation state directly; it only
// publishes events, which a single loop on the foreground side consumes.
type Event interface {
	event()
}

// ProgressUpdate reports overall completion in percent (0-100).
type ProgressUpdate struct {
	Percent float64
}

// LogLine is a free-text, human-readable status line. Lines arrive in the
// exact order statements are processed.
type LogLine struct {
	Text string
}

// RunCompleted carries the merged result of a finished run. Statements that
// failed to fetch are present with empty tables.
type RunCompleted struct {
	Symbol     string
	Financials Financials
	Prices     PriceSeries
}

// RunFailed reports a run that could not finish, e.g. after cancellation.
type RunFailed struct {
	Reason string
}

func (ProgressUpdate) event() {}
func (LogLine) event()        {}
func (RunCompleted) event()   {}
func (RunFailed) event()      {}
