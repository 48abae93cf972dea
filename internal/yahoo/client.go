package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/models"
)

// Yahoo Finance chart API. Unauthenticated but rate-limited; every caller
// must tolerate per-symbol failures.
// https://query2.finance.yahoo.com/v8/finance/chart/{symbol}
const defaultBaseURL = "https://query2.finance.yahoo.com/v8/finance/chart"

// ErrNoData indicates the API answered but carried no usable result for the
// requested symbol (delisted, unknown, or empty range).
var ErrNoData = errors.New("yahoo: no data for symbol")

// Client is an HTTP client for the Yahoo Finance chart API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Yahoo Finance client
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a new Yahoo Finance client with a custom base URL (for testing)
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetQuote fetches the latest price for a symbol. It prefers the meta
// regularMarketPrice and falls back to the last non-zero close of the day.
func (c *Client) GetQuote(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "1d")

	result, err := c.fetchChart(ctx, symbol, params)
	if err != nil {
		return 0, err
	}

	price := result.Meta.RegularMarketPrice
	if price <= 0 && len(result.Timestamp) > 0 && len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] > 0 {
				price = closes[i]
				break
			}
		}
	}

	if price <= 0 {
		return 0, ErrNoData
	}
	return price, nil
}

// GetDailyHistory fetches daily closes for a symbol between start and end
// (inclusive), along with any split events Yahoo reports in that window.
// The returned series is ordered by date ascending.
func (c *Client) GetDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, []models.SplitEvent, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	params.Set("events", "splits")

	result, err := c.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, nil, err
	}

	if len(result.Indicators.Quote) == 0 {
		return nil, nil, ErrNoData
	}
	closes := result.Indicators.Quote[0].Close

	var prices []models.PricePoint
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		prices = append(prices, models.PricePoint{Date: day, Close: closes[i]})
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) })

	var splits []models.SplitEvent
	for _, s := range result.Events.Splits {
		if s.Denominator == 0 {
			continue
		}
		splits = append(splits, models.SplitEvent{
			Symbol: symbol,
			Date:   time.Unix(s.Date, 0).UTC().Truncate(24 * time.Hour),
			Ratio:  s.Numerator / s.Denominator,
		})
	}
	sort.Slice(splits, func(i, j int) bool { return splits[i].Date.Before(splits[j].Date) })

	return prices, splits, nil
}

// GetFXRate fetches the spot rate for a currency pair via Yahoo's synthetic
// FX tickers (e.g. "USDSGD=X"): how many 'to' units per one 'from' unit.
func (c *Client) GetFXRate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return 0, fmt.Errorf("invalid currency pair %q/%q", from, to)
	}
	if from == to {
		return 1, nil
	}
	return c.GetQuote(ctx, from+to+"=X")
}

func (c *Client) fetchChart(ctx context.Context, symbol string, params url.Values) (*chartResult, error) {
	reqURL := c.baseURL + "/" + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "portfolio-dashboard/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chartResp chartResponse
	if err := json.Unmarshal(body, &chartResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chartResp.Chart.Error != nil {
		return nil, fmt.Errorf("API error %s: %s", chartResp.Chart.Error.Code, chartResp.Chart.Error.Description)
	}
	if len(chartResp.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	return &chartResp.Chart.Result[0], nil
}
