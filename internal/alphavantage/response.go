package alphavantage

import (
	"encoding/json"

	"FinSheet/internal/model"
)

// Outcome is the closed classification of one statement request. The
// provider signals errors inside 200-status JSON bodies, so classification
// happens in a single decoding step rather than ad hoc at call sites.
type Outcome int

const (
	// OutcomeSuccess means a usable (possibly empty) report array.
	OutcomeSuccess Outcome = iota
	// OutcomeRateLimited means the provider returned its "Note" sentinel.
	// This is the only retryable outcome.
	OutcomeRateLimited
	// OutcomeInvalidRequest means the provider rejected the request
	// ("Error Message" sentinel): bad key or bad symbol. Never retried.
	OutcomeInvalidRequest
	// OutcomeThrottled means the provider returned its informational
	// throttle sentinel ("Information"). Never retried.
	OutcomeThrottled
	// OutcomeTransport means timeout, connection failure, a non-200
	// status, or a malformed body.
	OutcomeTransport
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeInvalidRequest:
		return "invalid_request"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeTransport:
		return "transport_error"
	}
	return "unknown"
}

// Result is the terminal outcome of one statement fetch, after retries.
type Result struct {
	Outcome Outcome
	// Reports is the raw report array exactly as received, suitable for
	// caching pre-truncation. Set on success only.
	Reports json.RawMessage
	// Rows is the decoded report array. Set on success only.
	Rows []model.Row
	// Message carries the provider's sentinel text, when present.
	Message string
	// Attempts is the number of HTTP requests issued, including retries.
	Attempts int
	// Err carries transport detail for OutcomeTransport.
	Err error
}

// envelope covers every body shape the provider returns: a report payload,
// a sentinel-only body, or a symbol search result.
type envelope struct {
	Note             string            `json:"Note"`
	ErrorMessage     string            `json:"Error Message"`
	Information      string            `json:"Information"`
	AnnualReports    json.RawMessage   `json:"annualReports"`
	QuarterlyReports json.RawMessage   `json:"quarterlyReports"`
	BestMatches      []json.RawMessage `json:"bestMatches"`
}

// classify decodes a 200-status body into exactly one Result.
func classify(body []byte, reportsKey string) Result {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{Outcome: OutcomeTransport, Err: err}
	}

	switch {
	case env.Note != "":
		return Result{Outcome: OutcomeRateLimited, Message: env.Note}
	case env.ErrorMessage != "":
		return Result{Outcome: OutcomeInvalidRequest, Message: env.ErrorMessage}
	case env.Information != "":
		return Result{Outcome: OutcomeThrottled, Message: env.Information}
	}

	reports := env.AnnualReports
	if reportsKey == "quarterlyReports" {
		reports = env.QuarterlyReports
	}
	if reports == nil {
		// No sentinel and no report array: an empty result set, same as
		// the provider returning [].
		reports = json.RawMessage("[]")
	}

	var rows []model.Row
	if err := json.Unmarshal(reports, &rows); err != nil {
		return Result{Outcome: OutcomeTransport, Err: err}
	}
	return Result{Outcome: OutcomeSuccess, Reports: reports, Rows: rows}
}
