package backend

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kvirtanen/galleria/internal/errors"
	"github.com/kvirtanen/galleria/internal/httpclient"
	"github.com/kvirtanen/galleria/internal/logging"
	"github.com/kvirtanen/galleria/internal/observability/metrics"
)

// Client issues bounded range queries against the image table API. It is
// stateless across calls apart from connection configuration and a
// client-side rate limiter; it never retries, retry policy belongs to the
// caller.
type Client struct {
	config     Config
	httpClient *httpclient.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.BackendMetrics
}

// NewClient creates a backend client. httpc, logger and m may be nil, in
// which case a default HTTP client, the backend service logger and no
// metrics are used.
func NewClient(config Config, httpc *httpclient.Client, logger *slog.Logger, m *metrics.BackendMetrics) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.Newf("backend base URL is required").
			Category(errors.CategoryConfiguration).
			Component("backend").
			Build()
	}
	if config.APIKey == "" {
		return nil, errors.Newf("backend API key is required").
			Category(errors.CategoryConfiguration).
			Component("backend").
			Build()
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}

	if httpc == nil {
		cfg := httpclient.DefaultConfig()
		cfg.DefaultTimeout = config.Timeout
		httpc = httpclient.New(&cfg)
	}
	if logger == nil {
		logger = logging.ForService("backend")
	}

	client := &Client{
		config:     config,
		httpClient: httpc,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:     logger,
		metrics:    m,
	}

	logger.Info("Backend client initialized",
		"base_url", config.BaseURL,
		"timeout", config.Timeout,
		"requests_per_second", config.RequestsPerSecond,
		"api_key_configured", config.APIKey != "")

	return client, nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() {
	c.httpClient.Close()
	c.logger.Debug("Backend client closed")
}

// FetchPage fetches one ordered page of image records. The returned slice is
// ordered by created_at descending as served by the backend. A decode
// failure on any row fails the whole page.
func (c *Client) FetchPage(ctx context.Context, q PageQuery) ([]ImageRecord, error) {
	if q.Offset < 0 {
		return nil, errors.Newf("page offset %d must not be negative", q.Offset).
			Category(errors.CategoryInvalidRequest).
			Component("backend").
			Build()
	}
	if q.Limit <= 0 {
		return nil, errors.Newf("page limit %d must be positive", q.Limit).
			Category(errors.CategoryInvalidRequest).
			Component("backend").
			Build()
	}

	body, err := c.doGet(ctx, "fetch_page", c.pageURL(q))
	if err != nil {
		return nil, err
	}

	records, err := decodePage(body)
	if err != nil {
		c.countError("fetch_page", err)
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.ObservePageSize(len(records))
	}

	c.logger.Debug("Fetched page",
		"offset", q.Offset,
		"limit", q.Limit,
		"owner_filter", q.Owner != "",
		"rows", len(records))

	return records, nil
}

// doGet performs a GET against the API with credential headers, returning
// the response body for a 2xx status.
func (c *Client) doGet(ctx context.Context, operation, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Newf("failed to create request: %w", err).
			Category(errors.CategoryInvalidRequest).
			Component("backend").
			URLContext(url).
			Build()
	}
	return c.do(ctx, operation, req)
}

// do applies rate limiting and credentials, executes the request and
// classifies failures into the transport/server taxonomy.
func (c *Client) do(ctx context.Context, operation string, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.classifyTransport(operation, req.URL.String(), err)
	}

	reqID := uuid.NewString()[:8]
	reqLogger := c.logger.With("request_id", reqID, "operation", operation)

	req.Header.Set("apikey", c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.metrics != nil {
		c.metrics.IncrementRequests(operation)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(ctx, req)
	duration := time.Since(start)

	if err != nil {
		classified := c.classifyTransport(operation, req.URL.String(), err)
		reqLogger.Error("Backend request failed",
			"error", err,
			"category", classified.GetCategory(),
			"duration_ms", duration.Milliseconds())
		return nil, classified
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			reqLogger.Debug("Failed to close response body", "error", err)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		classified := c.classifyTransport(operation, req.URL.String(), err)
		reqLogger.Error("Failed to read response body",
			"error", err,
			"status_code", resp.StatusCode)
		return nil, classified
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serverErr := errors.Newf("backend returned status %d: %s", resp.StatusCode, truncate(bodyBytes, 500)).
			Category(errors.CategoryServer).
			Component("backend").
			Context("status_code", resp.StatusCode).
			Context("operation", operation).
			Build()
		c.countError(operation, serverErr)

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			reqLogger.Error("Backend rejected credentials",
				"status_code", resp.StatusCode,
				"message", "Check the configured API key")
		} else {
			reqLogger.Warn("Backend error response",
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds())
		}

		return nil, serverErr
	}

	if c.metrics != nil {
		c.metrics.ObserveRequestDuration(duration.Seconds())
	}

	reqLogger.Debug("Backend request succeeded",
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"response_size", len(bodyBytes))

	return bodyBytes, nil
}

// classifyTransport maps a transport-level failure onto the error taxonomy:
// DNS failures are host-unreachable, timeouts (net or context) are timeouts,
// refused or unroutable connections are no-connectivity.
func (c *Client) classifyTransport(operation, url string, err error) *errors.EnhancedError {
	category := errors.CategoryNetwork

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	case errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.As(err, &dnsErr), errors.Is(err, syscall.EHOSTUNREACH):
		category = errors.CategoryHostUnreachable
	case errors.As(err, &netErr) && netErr.Timeout():
		category = errors.CategoryTimeout
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.ENETDOWN):
		category = errors.CategoryNoConnectivity
	}

	classified := errors.Newf("backend request failed: %w", err).
		Category(category).
		Component("backend").
		Context("operation", operation).
		URLContext(url).
		Build()
	c.countError(operation, classified)
	return classified
}

// countError feeds the error counter when metrics are wired.
func (c *Client) countError(operation string, err error) {
	if c.metrics == nil {
		return
	}
	var enhanced *errors.EnhancedError
	category := string(errors.CategoryGeneric)
	if errors.As(err, &enhanced) {
		category = enhanced.GetCategory()
	}
	c.metrics.IncrementErrors(operation, category)
}

// truncate limits response bodies embedded in error messages.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
