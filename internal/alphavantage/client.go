package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"FinSheet/internal/model"
)

const (
	// DefaultBaseURL is the provider's query endpoint.
	DefaultBaseURL = "https://www.alphavantage.co/query"

	// DefaultTimeout bounds one statement request.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is how many additional attempts a rate-limited
	// request gets before degrading to an empty result.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the backoff between rate-limited attempts.
	DefaultRetryDelay = 60 * time.Second
)

// Client issues statement requests against the Alpha Vantage API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithMaxRetries sets the retry ceiling for rate-limited requests.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryDelay sets the backoff between rate-limited attempts.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryDelay = d }
}

// NewClient creates a new Alpha Vantage client. The limiter smooths
// outbound bursts; the per-minute quota itself is the orchestrator's
// inter-request delay.
func NewClient(apiKey string, logger zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchStatement requests one statement and classifies the response.
// Only the rate-limited classification is retried, up to the retry
// ceiling with a fixed backoff; everything else terminates immediately.
// All failure modes are expressed in the returned Result, never a panic
// or a run-stopping error.
func (c *Client) FetchStatement(ctx context.Context, st model.StatementType, symbol string, period model.Period) Result {
	params := url.Values{}
	params.Set("function", st.Function())
	params.Set("symbol", symbol)

	attempts := 0
	for {
		attempts++
		body, err := c.get(ctx, params)
		if err != nil {
			return Result{Outcome: OutcomeTransport, Err: err, Attempts: attempts}
		}

		res := classify(body, period.ReportsKey())
		res.Attempts = attempts
		if res.Outcome != OutcomeRateLimited || attempts > c.maxRetries {
			return res
		}

		c.logger.Warn().
			Str("function", st.Function()).
			Int("attempt", attempts).
			Dur("backoff", c.retryDelay).
			Msg("rate limit hit, backing off")
		if err := sleepCtx(ctx, c.retryDelay); err != nil {
			res.Outcome = OutcomeTransport
			res.Err = err
			return res
		}
	}
}

// ValidateKey probes the API key with a symbol search and reports whether
// the key is usable, plus a human-readable status message.
func (c *Client) ValidateKey(ctx context.Context) (bool, string) {
	params := url.Values{}
	params.Set("function", "SYMBOL_SEARCH")
	params.Set("keywords", "AAPL")

	body, err := c.get(ctx, params)
	if err != nil {
		return false, fmt.Sprintf("Network error: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false, "Unexpected response."
	}
	switch {
	case env.Note != "":
		return false, "Rate limit reached. Try again in a minute."
	case env.ErrorMessage != "":
		return false, "Invalid API key. Try another one."
	case env.Information != "":
		return false, "API throttled the request. Try again later."
	case env.BestMatches != nil:
		return true, "API key is valid."
	}
	return false, "Unexpected response."
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
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
