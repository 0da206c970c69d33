// Package api is the typed client for the analytics backend. Every endpoint
// gets one method; parameters are typed filter structs whose zero values mean
// "no filter". Failures come back as *Error with a normalized human-readable
// message and are logged at this boundary before they propagate.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Config holds client configuration.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the default client configuration. One automatic
// retry per failed request.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Timeout:           15 * time.Second,
		MaxRetries:        1,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		RequestsPerSecond: 20,
		Burst:             40,
	}
}

// Client is the HTTP client for the analytics backend, with outbound rate
// limiting and retry.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
	tracer     trace.Tracer
	config     Config
}

// New creates a client for the given configuration.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 40
	}
	return &Client{
		base:       base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:     logger.With().Str("component", "api_client").Logger(),
		tracer:     otel.Tracer("api-client"),
		config:     cfg,
	}, nil
}

// do performs one logical call: throttle, request, retry on retryable
// failures, decode into out. Any failure is logged and returned as *Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithAttributes(attribute.String("http.url", u.String())))
	defer span.End()

	var lastStatus int
	var lastErr error
	var detail string
	timedOut := false

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(path, lastStatus, false, attempt, "", err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
		if err != nil {
			return c.fail(path, 0, false, attempt+1, "", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			timedOut = isTimeout(err)
			if attempt < c.config.MaxRetries {
				sleepCtx(ctx, Backoff(attempt, c.config.InitialBackoff, c.config.MaxBackoff))
				continue
			}
			return c.fail(path, 0, timedOut, attempt+1, "", lastErr)
		}

		lastStatus = resp.StatusCode
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
			defer resp.Body.Close()
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return c.fail(path, resp.StatusCode, false, attempt+1, "", fmt.Errorf("decode response: %w", err))
			}
			return nil
		}

		// Non-2xx: pull the server detail message before deciding on retry.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Detail != "" {
			detail = eb.Detail
		}

		if !IsRetryableStatus(resp.StatusCode) || attempt == c.config.MaxRetries {
			return c.fail(path, resp.StatusCode, false, attempt+1, detail, nil)
		}
		sleepCtx(ctx, Backoff(attempt, c.config.InitialBackoff, c.config.MaxBackoff))
	}

	return c.fail(path, lastStatus, timedOut, c.config.MaxRetries+1, detail, lastErr)
}

// fail builds the normalized error, logs it, and returns it. Message
// priority: server detail, transport error text, generic fallback.
func (c *Client) fail(endpoint string, status int, timeout bool, attempts int, detail string, err error) error {
	msg := genericErrorMessage
	switch {
	case detail != "":
		msg = detail
	case timeout:
		msg = "request timed out"
	case err != nil:
		msg = err.Error()
	case status != 0:
		msg = http.StatusText(status)
	}
	apiErr := &Error{
		Endpoint: endpoint,
		Status:   status,
		Timeout:  timeout,
		Attempts: attempts,
		Message:  msg,
		Err:      err,
	}
	c.logger.Error().
		Str("endpoint", endpoint).
		Int("status", status).
		Int("attempts", attempts).
		Bool("timeout", timeout).
		Msg(msg)
	return apiErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// http.Client wraps its own deadline error without a typed cause.
	return strings.Contains(err.Error(), "Client.Timeout")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Products searches the catalog with filtering and pagination.
func (c *Client) Products(ctx context.Context, f ProductFilter) (ProductList, error) {
	var out ProductList
	err := c.do(ctx, http.MethodGet, "/api/products", f.Values(), nil, &out)
	return out, err
}

// Product fetches a single product by id.
func (c *Client) Product(ctx context.Context, id string) (Product, error) {
	var out Product
	err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// Categories lists the level-1 categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, "/api/products/categories/list", nil, nil, &out)
	return out, err
}

// Brands lists brands, optionally narrowed to one category.
func (c *Client) Brands(ctx context.Context, category string) ([]string, error) {
	v := url.Values{}
	setStr(v, "category", category)
	var out []string
	err := c.do(ctx, http.MethodGet, "/api/products/brands/list", v, nil, &out)
	return out, err
}

// TopDemand returns the top-N products by favorites count.
func (c *Client) TopDemand(ctx context.Context, f DemandFilter) ([]DemandMetric, error) {
	var out []DemandMetric
	err := c.do(ctx, http.MethodGet, "/api/analytics/demand/top", f.Values(), nil, &out)
	return out, err
}

// DemandTrends returns aggregated demand trends.
func (c *Client) DemandTrends(ctx context.Context, f TrendFilter) ([]TrendRow, error) {
	var out []TrendRow
	err := c.do(ctx, http.MethodGet, "/api/analytics/demand/trends", f.Values(), nil, &out)
	return out, err
}

// OutOfStock returns products missing from stock for at least MinDays days.
func (c *Client) OutOfStock(ctx context.Context, f StockFilter) ([]OutOfStockProduct, error) {
	var out []OutOfStockProduct
	err := c.do(ctx, http.MethodGet, "/api/analytics/stock/out-of-stock", f.Values(), nil, &out)
	return out, err
}

// TimeSeries returns the dated favorites series.
func (c *Client) TimeSeries(ctx context.Context, f SeriesFilter) (TimeSeries, error) {
	var out TimeSeries
	err := c.do(ctx, http.MethodGet, "/api/analytics/timeseries", f.Values(), nil, &out)
	return out, err
}

// PricingMetrics returns the pricing decision metrics.
func (c *Client) PricingMetrics(ctx context.Context, f PricingFilter) (PricingMetricList, error) {
	var out PricingMetricList
	err := c.do(ctx, http.MethodGet, "/api/analytics/pricing-metrics", f.Values(), nil, &out)
	return out, err
}

// Status reports backend data readiness.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// CacheStats returns server-side cache statistics.
func (c *Client) CacheStats(ctx context.Context) (CacheStats, error) {
	var out CacheStats
	err := c.do(ctx, http.MethodGet, "/api/cache/stats", nil, nil, &out)
	return out, err
}

// CacheProducts pages through the backend's cached product set.
func (c *Client) CacheProducts(ctx context.Context, f CacheProductsFilter) (ProductList, error) {
	var out ProductList
	err := c.do(ctx, http.MethodGet, "/api/cache/products", f.Values(), nil, &out)
	return out, err
}

// Workflows lists automation workflows. Endpoint URL and API key are passed
// per call, never stored server-side.
func (c *Client) Workflows(ctx context.Context, endpoint, apiKey string) (WorkflowList, error) {
	v := url.Values{}
	setStr(v, "url", endpoint)
	setStr(v, "api_key", apiKey)
	var out WorkflowList
	err := c.do(ctx, http.MethodGet, "/api/n8n/workflows", v, nil, &out)
	return out, err
}

// ToggleWorkflow flips a workflow's active flag on the external platform.
func (c *Client) ToggleWorkflow(ctx context.Context, id string, active bool, endpoint, apiKey string) (ActionResult, error) {
	v := url.Values{}
	setStr(v, "url", endpoint)
	setStr(v, "api_key", apiKey)
	body := map[string]bool{"active": active}
	var out ActionResult
	err := c.do(ctx, http.MethodPost, "/api/n8n/workflows/"+url.PathEscape(id)+"/toggle", v, body, &out)
	return out, err
}

// TestConnection verifies the workflow platform credentials.
func (c *Client) TestConnection(ctx context.Context, endpoint, apiKey string) (ConnectionTestResult, error) {
	body := map[string]string{"url": endpoint, "api_key": apiKey}
	var out ConnectionTestResult
	err := c.do(ctx, http.MethodPost, "/api/n8n/test-connection", nil, body, &out)
	return out, err
}

// BotStatus reports whether a messaging bot is configured.
func (c *Client) BotStatus(ctx context.Context) (BotStatus, error) {
	var out BotStatus
	err := c.do(ctx, http.MethodGet, "/api/telegram/bot/status", nil, nil, &out)
	return out, err
}

// SaveBotSettings submits the bot token and optional webhook URL; the
// backend owns the actual platform registration.
func (c *Client) SaveBotSettings(ctx context.Context, token, webhookURL string) (BotSettingsResult, error) {
	body := map[string]string{"bot_token": token}
	if webhookURL != "" {
		body["webhook_url"] = webhookURL
	}
	var out BotSettingsResult
	err := c.do(ctx, http.MethodPost, "/api/telegram/bot/settings", nil, body, &out)
	return out, err
}

// SendBotMessage sends a one-off test message to the given chat.
func (c *Client) SendBotMessage(ctx context.Context, chatID, message string) (ActionResult, error) {
	body := map[string]string{"chat_id": chatID, "message": message}
	var out ActionResult
	err := c.do(ctx, http.MethodPost, "/api/telegram/bot/send-message", nil, body, &out)
	return out, err
}

// SetBotMenu installs the bot command menu.
func (c *Client) SetBotMenu(ctx context.Context) (ActionResult, error) {
	var out ActionResult
	err := c.do(ctx, http.MethodPost, "/api/telegram/bot/set-menu", nil, nil, &out)
	return out, err
}
