package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
)

// MaxKlinesPerRequest is the exchange cap on one klines call
const MaxKlinesPerRequest = 1000

// APIError is a non-200 response from the exchange
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("API error: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// Client reads public market data. Requests go through a shared rate limiter.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
}

// NewClient creates a market data client. requestsPerSec <= 0 uses 10.
func NewClient(apiKey, baseURL string, requestsPerSec float64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    NewRateLimiter(requestsPerSec),
	}
}

// Kline represents a candlestick
type Kline struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	Close     float64 `json:"close,string"`
	Volume    float64 `json:"volume,string"`
	CloseTime int64   `json:"closeTime"`
}

// Bar converts the kline to a bar stamped with tf
func (k Kline) Bar(tf market.Timeframe) market.Bar {
	return market.Bar{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Open:      k.Open,
		High:      k.High,
		Low:       k.Low,
		Close:     k.Close,
		Volume:    k.Volume,
		Timeframe: tf,
	}
}

// GetKlines fetches candlestick data. Zero start/end are omitted.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int, start, end time.Time) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	if !start.IsZero() {
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 7 {
			return nil, fmt.Errorf("error parsing klines: row has %d fields", len(raw))
		}
		klines = append(klines, Kline{
			OpenTime:  parseInt(raw[0]),
			Open:      parseFloat(raw[1]),
			High:      parseFloat(raw[2]),
			Low:       parseFloat(raw[3]),
			Close:     parseFloat(raw[4]),
			Volume:    parseFloat(raw[5]),
			CloseTime: parseInt(raw[6]),
		})
	}
	return klines, nil
}

// Fetch returns the most recent limit bars in ascending time order
func (c *Client) Fetch(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Bar, error) {
	if limit > MaxKlinesPerRequest {
		limit = MaxKlinesPerRequest
	}
	klines, err := c.GetKlines(ctx, symbol, string(tf), limit, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return toBars(klines, tf), nil
}

// FetchRange pages through [start, end] in MaxKlinesPerRequest chunks
func (c *Client) FetchRange(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) ([]market.Bar, error) {
	var out []market.Bar
	from := start
	for from.Before(end) {
		klines, err := c.GetKlines(ctx, symbol, string(tf), MaxKlinesPerRequest, from, end)
		if err != nil {
			return nil, err
		}
		if len(klines) == 0 {
			break
		}
		out = append(out, toBars(klines, tf)...)

		next := time.UnixMilli(klines[len(klines)-1].OpenTime + 1)
		if !next.After(from) || len(klines) < MaxKlinesPerRequest {
			break
		}
		from = next
	}
	logging.BinanceAPIContext("/api/v3/klines", map[string]interface{}{
		"symbol": symbol, "interval": string(tf),
	}).Debug("Range fetched", "bars", len(out))
	return out, nil
}

// GetCurrentPrice fetches the last traded price for a symbol
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}
	return priceResp.Price, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
			c.limiter.Ban(retryAfter(resp.Header.Get("Retry-After")))
		}
		return nil, apiErr
	}
	return body, nil
}

// IsRateLimited reports whether err came from a 429 or 418 response
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusTeapot
	}
	return false
}

func toBars(klines []Kline, tf market.Timeframe) []market.Bar {
	bars := make([]market.Bar, len(klines))
	for i, k := range klines {
		bars[i] = k.Bar(tf)
	}
	return bars
}

func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Minute
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}

func parseInt(val interface{}) int64 {
	switch v := val.(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

var (
	_ market.Source      = (*Client)(nil)
	_ market.RangeSource = (*Client)(nil)
)
