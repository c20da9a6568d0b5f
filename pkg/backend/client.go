package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"chowspace/pkg/order"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultRatePerSecond  = 10
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second
	userAgent             = "chowspace/1.0"
)

// Config describes how to reach the order API.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RatePerSecond  float64
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client talks to the order API with rate limiting and retries.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	maxRetries  int
	backoff     time.Duration
	maxBackoff  time.Duration
	logger      *zap.Logger
}

// Placement is what the backend answers when an order is created.
type Placement struct {
	Order order.Order `json:"order"`
	// AuthorizationURL is where the shopper completes payment, when the backend started one.
	AuthorizationURL string `json:"authorizationUrl,omitempty"`
}

// Verification is the outcome of a payment check.
type Verification struct {
	Success bool        `json:"success"`
	Order   order.Order `json:"order"`
}

// NewClient creates a client. Zero durations and rates fall back to defaults; MaxRetries of zero disables retries.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRatePerSecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	return &Client{
		baseURL:     base.String(),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.InitialBackoff,
		maxBackoff:  cfg.MaxBackoff,
		logger:      logger.With(zap.String("component", "backend")),
	}, nil
}

// CreateOrder submits a freshly built order. The backend may have stored the order even when
// the response is lost, so only throttled attempts are repeated.
func (c *Client) CreateOrder(ctx context.Context, ord order.Order) (Placement, error) {
	var placement Placement
	if err := c.doRequest(ctx, http.MethodPost, "/api/order", "", false, ord, &placement); err != nil {
		return Placement{}, fmt.Errorf("create order: %w", err)
	}
	return placement, nil
}

// VerifyPayment asks the backend whether the payment behind reference went through.
func (c *Client) VerifyPayment(ctx context.Context, reference string) (Verification, error) {
	var v Verification
	body := map[string]string{"reference": reference}
	if err := c.doRequest(ctx, http.MethodPost, "/api/verifyPayment", "", true, body, &v); err != nil {
		return Verification{}, fmt.Errorf("verify payment %s: %w", reference, err)
	}
	return v, nil
}

// ManagerOrders lists every order visible to the manager owning token.
func (c *Client) ManagerOrders(ctx context.Context, token string) ([]order.Order, error) {
	var res struct {
		Orders []order.Order `json:"orders"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/manager/orders", token, true, nil, &res); err != nil {
		return nil, fmt.Errorf("list manager orders: %w", err)
	}
	return res.Orders, nil
}

// UpdateOrderStatus sets the fulfilment status of one order.
func (c *Client) UpdateOrderStatus(ctx context.Context, token, id string, status order.Status) error {
	body := map[string]order.Status{"status": status}
	if err := c.doRequest(ctx, http.MethodPut, "/api/order/"+url.PathEscape(id), token, true, body, nil); err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	return nil
}

// CleanupPendingOrders removes orders whose payment never arrived.
func (c *Client) CleanupPendingOrders(ctx context.Context, token string) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/api/cleanupPendingOrders", token, true, nil, nil); err != nil {
		return fmt.Errorf("cleanup pending orders: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request with rate limiting and retry logic. Calls that are not
// idempotent are repeated only after a 429, which the backend sends before doing any work.
func (c *Client) doRequest(ctx context.Context, method, path, token string, idempotent bool, payload, result any) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = encoded
	}

	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, c.maxBackoff)
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		retry, wait, err := c.attempt(ctx, method, path, token, body, result)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		if !idempotent && !errors.Is(err, errThrottled) {
			c.logger.Error("backend request failed, not retrying", zap.String("method", method), zap.String("path", path), zap.Error(err))
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		lastErr = err
		if wait > backoff {
			backoff = min(wait, c.maxBackoff)
		}
		c.logger.Warn("backend request failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	c.logger.Error("backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(lastErr))
	return fmt.Errorf("%w: max retries exceeded: %w", ErrUnavailable, lastErr)
}

// attempt sends one request. It reports whether the failure is worth retrying and any Retry-After hint.
func (c *Client) attempt(ctx context.Context, method, path, token string, body []byte, result any) (bool, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		return true, 0, fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, 0, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if result == nil || len(bytes.TrimSpace(data)) == 0 {
			return false, 0, nil
		}
		if err := json.Unmarshal(data, result); err != nil {
			return false, 0, fmt.Errorf("parse response: %w", err)
		}
		return false, 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, retryAfter(resp.Header.Get("Retry-After")), errThrottled
	case resp.StatusCode >= 500:
		return true, 0, decodeAPIError(resp.StatusCode, data)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, 0, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return false, 0, ErrNotFound
	default:
		return false, 0, decodeAPIError(resp.StatusCode, data)
	}
}

func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// retryAfter understands the delay-seconds form of the header.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
