package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"FinSheet/internal/model"
)

// DefaultBaseURL is the Yahoo Finance host serving the chart API.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client resolves year-end closing prices via the Yahoo Finance chart API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
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

// NewClient creates a new price lookup client.
func NewClient(logger zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// bar is one trading day of the chart response.
type bar struct {
	Time  time.Time
	Close float64
}

// chartResponse is the response structure from the Yahoo Finance chart API.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []interface{} `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// YearEndCloses fetches a daily history covering the requested years and
// resolves the last trading day's closing price for each, rounded to two
// decimal places. Years without trading data map to a nil price. A totally
// empty history (e.g. a symbol unknown to this provider) yields an empty
// series, not an error.
func (c *Client) YearEndCloses(ctx context.Context, symbol string, years []int) (model.PriceSeries, error) {
	if len(years) == 0 {
		return model.PriceSeries{}, nil
	}

	minYear, maxYear := years[0], years[0]
	for _, y := range years[1:] {
		if y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}

	// One boundary year of padding at the start tolerates the provider's
	// off-by-one history windows; the per-year filter below discards it.
	from := time.Date(minYear-1, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(maxYear+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	bars, err := c.fetchChart(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	series := model.PriceSeries{}
	if len(bars) == 0 {
		return series, nil
	}

	for _, year := range years {
		var last *bar
		for i := range bars {
			if bars[i].Time.Year() == year {
				last = &bars[i]
			}
		}
		label := strconv.Itoa(year)
		if last == nil {
			series[label] = nil
			continue
		}
		price := math.Round(last.Close*100) / 100
		series[label] = &price
	}
	return series, nil
}

func (c *Client) fetchChart(ctx context.Context, symbol string, from, to time.Time) ([]bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		c.baseURL, url.PathEscape(symbol), from.Unix(), to.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		// Unknown symbol at this provider: treat as empty history.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		c.logger.Warn().
			Str("symbol", symbol).
			Str("code", chart.Chart.Error.Code).
			Msg("yahoo api error, treating as empty history")
		return nil, nil
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	bars := make([]bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		closePx := toFloat(quote.Close[i])
		if closePx == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, bar{Time: time.Unix(ts, 0).UTC(), Close: closePx})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
