package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSheet/internal/model"
)

const annualBody = `{
	"symbol": "AAPL",
	"annualReports": [
		{"fiscalDateEnding": "2023-12-31", "totalRevenue": "60000000000", "netIncome": "None"},
		{"fiscalDateEnding": "2022-12-31", "totalRevenue": "55000000000", "netIncome": "6000000000"}
	]
}`

func newTestClient(t *testing.T, handler http.Handler, opts ...ClientOption) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]ClientOption{
		WithBaseURL(server.URL),
		WithRetryDelay(time.Millisecond),
	}, opts...)
	return NewClient("test-key", zerolog.Nop(), opts...), server
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		outcome Outcome
	}{
		{
			name:    "success with reports",
			body:    annualBody,
			outcome: OutcomeSuccess,
		},
		{
			name:    "rate limited",
			body:    `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 25 requests per day."}`,
			outcome: OutcomeRateLimited,
		},
		{
			name:    "invalid request",
			body:    `{"Error Message": "Invalid API call."}`,
			outcome: OutcomeInvalidRequest,
		},
		{
			name:    "throttled",
			body:    `{"Information": "Premium endpoint."}`,
			outcome: OutcomeThrottled,
		},
		{
			name:    "no sentinel and no reports",
			body:    `{"symbol": "AAPL"}`,
			outcome: OutcomeSuccess,
		},
		{
			name:    "malformed body",
			body:    `<html>gateway error</html>`,
			outcome: OutcomeTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := classify([]byte(tt.body), "annualReports")
			assert.Equal(t, tt.outcome, res.Outcome)
		})
	}
}

func TestClassifyDecodesReportRows(t *testing.T) {
	res := classify([]byte(annualBody), "annualReports")
	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "2023-12-31", res.Rows[0].FiscalDateEnding())
	assert.JSONEq(t, `[
		{"fiscalDateEnding": "2023-12-31", "totalRevenue": "60000000000", "netIncome": "None"},
		{"fiscalDateEnding": "2022-12-31", "totalRevenue": "55000000000", "netIncome": "6000000000"}
	]`, string(res.Reports))
}

func TestClassifyMissingReportArrayIsEmptySuccess(t *testing.T) {
	res := classify([]byte(`{"symbol": "AAPL"}`), "quarterlyReports")
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Rows)
	assert.Equal(t, "[]", string(res.Reports))
}

func TestFetchStatementSuccess(t *testing.T) {
	var gotFunction, gotSymbol atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFunction.Store(r.URL.Query().Get("function"))
		gotSymbol.Store(r.URL.Query().Get("symbol"))
		w.Write([]byte(annualBody))
	}))

	res := client.FetchStatement(context.Background(), model.IncomeStatement, "AAPL", model.Annual)

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, "INCOME_STATEMENT", gotFunction.Load())
	assert.Equal(t, "AAPL", gotSymbol.Load())
}

func TestFetchStatementRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Write([]byte(`{"Note": "rate limit"}`))
			return
		}
		w.Write([]byte(annualBody))
	}))

	res := client.FetchStatement(context.Background(), model.IncomeStatement, "AAPL", model.Annual)

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchStatementGivesUpAfterRetryCeiling(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"Note": "rate limit"}`))
	}), WithMaxRetries(3))

	res := client.FetchStatement(context.Background(), model.BalanceSheet, "AAPL", model.Annual)

	// One initial attempt plus three retries.
	require.Equal(t, OutcomeRateLimited, res.Outcome)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetchStatementDoesNotRetryInvalidRequest(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	}))

	res := client.FetchStatement(context.Background(), model.CashFlow, "AAPL", model.Annual)

	require.Equal(t, OutcomeInvalidRequest, res.Outcome)
	assert.Equal(t, "Invalid API call.", res.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchStatementNon200IsTransport(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}))

	res := client.FetchStatement(context.Background(), model.IncomeStatement, "AAPL", model.Annual)

	require.Equal(t, OutcomeTransport, res.Outcome)
	assert.Error(t, res.Err)
}

func TestFetchStatementStopsOnCancelledBackoff(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "rate limit"}`))
	}), WithRetryDelay(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res := client.FetchStatement(ctx, model.IncomeStatement, "AAPL", model.Annual)

	require.Equal(t, OutcomeTransport, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantOK  bool
		wantMsg string
	}{
		{
			name:    "valid key",
			body:    `{"bestMatches": [{"1. symbol": "AAPL"}]}`,
			wantOK:  true,
			wantMsg: "API key is valid.",
		},
		{
			name:    "invalid key",
			body:    `{"Error Message": "the parameter apikey is invalid"}`,
			wantOK:  false,
			wantMsg: "Invalid API key. Try another one.",
		},
		{
			name:    "rate limited",
			body:    `{"Note": "call frequency"}`,
			wantOK:  false,
			wantMsg: "Rate limit reached. Try again in a minute.",
		},
		{
			name:    "throttled",
			body:    `{"Information": "spike"}`,
			wantOK:  false,
			wantMsg: "API throttled the request. Try again later.",
		},
		{
			name:    "unrecognized body",
			body:    `{"something": "else"}`,
			wantOK:  false,
			wantMsg: "Unexpected response.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
				w.Write([]byte(tt.body))
			}))

			ok, msg := client.ValidateKey(context.Background())
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}
