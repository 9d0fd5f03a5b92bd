// Package deltax is a client for the Delta Exchange India REST and
// WebSocket APIs: historical candles, tickers, and signed order
// placement for the broker execution bridge.
package deltax

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stratlab/internal/model"
)

const (
	defaultRestURL = "https://api.india.delta.exchange"
	defaultTimeout = 10 * time.Second
	userAgent      = "stratlab/1.0"
)

// Config configures the Delta Exchange client. APIKey/APISecret are
// only needed for signed endpoints (orders, wallet); public market
// data works without them.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Client talks to the Delta Exchange REST API.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client

	// now is stubbed in tests to pin request timestamps.
	now func() time.Time
}

// New creates a Client, applying defaults for unset config fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRestURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// apiError is the envelope Delta returns on failures.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *apiError       `json:"error"`
}

// sign computes the request signature: HMAC-SHA256 over
// method + timestamp + path + queryString + body, hex encoded.
func (c *Client) sign(method, ts, path, query, body string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(method + ts + path + query + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody any, signed bool) (json.RawMessage, error) {
	var bodyStr string
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(b)
		bodyReader = bytes.NewReader(b)
	}

	reqURL := c.baseURL + path
	queryStr := ""
	if len(query) > 0 {
		queryStr = "?" + query.Encode()
		reqURL += queryStr
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed {
		if c.apiKey == "" || c.apiSecret == "" {
			return nil, fmt.Errorf("deltax: signed endpoint %s requires API credentials", path)
		}
		ts := strconv.FormatInt(c.now().Unix(), 10)
		req.Header.Set("api-key", c.apiKey)
		req.Header.Set("timestamp", ts)
		req.Header.Set("signature", c.sign(method, ts, path, queryStr, bodyStr))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deltax %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deltax read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("deltax decode response (%d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		if env.Error != nil {
			return nil, fmt.Errorf("deltax %s: %s (%s)", path, env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("deltax %s: request failed (%d)", path, resp.StatusCode)
	}
	return env.Result, nil
}

// resolutions maps timeframe seconds to Delta candle resolutions.
var resolutions = map[int]string{
	60:    "1m",
	300:   "5m",
	900:   "15m",
	1800:  "30m",
	3600:  "1h",
	7200:  "2h",
	14400: "4h",
	86400: "1d",
}

// Resolution returns the Delta resolution string for a timeframe in
// seconds.
func Resolution(tf int) (string, error) {
	r, ok := resolutions[tf]
	if !ok {
		return "", fmt.Errorf("unsupported timeframe %ds", tf)
	}
	return r, nil
}

// rawCandle mirrors one entry of /v2/history/candles.
type rawCandle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Candles fetches up to limit historical candles for a symbol and
// timeframe, ending at the current time. Results come back normalized
// (oldest first, duplicates dropped). Satisfies model.CandleSource.
func (c *Client) Candles(ctx context.Context, symbol string, tf int, limit int) (model.Series, error) {
	res, err := Resolution(tf)
	if err != nil {
		return nil, err
	}

	end := c.now().Unix()
	start := end - int64(tf)*int64(limit)

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("resolution", res)
	q.Set("start", strconv.FormatInt(start, 10))
	q.Set("end", strconv.FormatInt(end, 10))

	result, err := c.do(ctx, http.MethodGet, "/v2/history/candles", q, nil, false)
	if err != nil {
		return nil, err
	}

	var raws []rawCandle
	if err := json.Unmarshal(result, &raws); err != nil {
		return nil, fmt.Errorf("deltax decode candles: %w", err)
	}

	series := make(model.Series, 0, len(raws))
	for _, r := range raws {
		series = append(series, model.Candle{
			Symbol: symbol,
			TF:     tf,
			TS:     time.Unix(r.Time, 0).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return series.Normalize(), nil
}

// Ticker is the subset of /v2/tickers the engine uses.
type Ticker struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
}

// Ticker returns the latest ticker for a symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	result, err := c.do(ctx, http.MethodGet, "/v2/tickers", q, nil, false)
	if err != nil {
		return Ticker{}, err
	}

	var tickers []Ticker
	if err := json.Unmarshal(result, &tickers); err != nil {
		return Ticker{}, fmt.Errorf("deltax decode tickers: %w", err)
	}
	if len(tickers) == 0 {
		return Ticker{}, fmt.Errorf("deltax: no ticker for %s", symbol)
	}
	return tickers[0], nil
}

// Ping measures round-trip latency to the exchange via a ticker fetch.
// Used by the diagnostics endpoint.
func (c *Client) Ping(ctx context.Context, symbol string) (time.Duration, error) {
	start := time.Now()
	if _, err := c.Ticker(ctx, symbol); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// OrderRequest is a market or limit order for /v2/orders.
type OrderRequest struct {
	ProductSymbol string  `json:"product_symbol"`
	Side          string  `json:"side"` // "buy" or "sell"
	Size          float64 `json:"size"`
	OrderType     string  `json:"order_type"` // "market_order" or "limit_order"
	LimitPrice    string  `json:"limit_price,omitempty"`
}

// OrderResponse is the confirmed order returned by the exchange.
type OrderResponse struct {
	ID           int64  `json:"id"`
	State        string `json:"state"`
	Side         string `json:"side"`
	Size         string `json:"size"`
	AvgFillPrice string `json:"average_fill_price"`
}

// PlaceOrder submits a signed order.
func (c *Client) PlaceOrder(ctx context.Context, order OrderRequest) (OrderResponse, error) {
	result, err := c.do(ctx, http.MethodPost, "/v2/orders", nil, order, true)
	if err != nil {
		return OrderResponse{}, err
	}

	var resp OrderResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		return OrderResponse{}, fmt.Errorf("deltax decode order: %w", err)
	}
	return resp, nil
}

var _ model.CandleSource = (*Client)(nil)
