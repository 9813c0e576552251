// Package httpx provides an HTTP client with bounded retries and exponential
// backoff. Retryability is decided by a structured error kind rather than by
// inspecting transport-specific error types.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Static errors for client operations.
var (
	// ErrAttemptsExhausted wraps the last failure after the retry budget is spent.
	ErrAttemptsExhausted = errors.New("httpx: attempts exhausted")
)

// ErrorKind classifies a request failure for retry decisions.
type ErrorKind int

const (
	// KindNetwork covers transport failures with no HTTP response (timeouts,
	// connection resets, DNS failures).
	KindNetwork ErrorKind = iota
	// KindSchema covers malformed URLs and other request construction failures.
	KindSchema
	// KindClient covers 4xx responses other than 429.
	KindClient
	// KindRateLimited covers 429 responses.
	KindRateLimited
	// KindServer covers 5xx responses.
	KindServer
)

// String returns the kind name for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindSchema:
		return "schema"
	case KindClient:
		return "client"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind is safe to retry.
// Network failures, rate limiting, and server errors are transient;
// schema and other client errors are not.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

// RequestError is the structured failure returned for any unsuccessful attempt.
type RequestError struct {
	Kind   ErrorKind
	Method string
	URL    string
	Status int // 0 when no response was received
	Err    error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("httpx: %s %s failed with status %d (%s)", e.Method, e.URL, e.Status, e.Kind)
	}
	return fmt.Sprintf("httpx: %s %s failed (%s): %v", e.Method, e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause, if any.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind from err. The second return value is false
// when err is not a RequestError.
func KindOf(err error) (ErrorKind, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// Client issues HTTP requests with exponential backoff and bounded attempts.
type Client struct {
	httpClient  *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithMaxAttempts sets the total attempt budget (first try included).
func WithMaxAttempts(n int) Option {
	return func(cl *Client) {
		cl.maxAttempts = n
	}
}

// WithBackoff sets the minimum and maximum backoff durations.
// A zero min disables sleeping between attempts.
func WithBackoff(min, max time.Duration) Option {
	return func(cl *Client) {
		cl.minBackoff = min
		cl.maxBackoff = max
	}
}

// WithLogger sets the structured logger for attempt lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// withSleep overrides the backoff sleeper. Test hook.
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(cl *Client) {
		cl.sleep = fn
	}
}

// NewClient creates a retrying HTTP client. Non-positive attempt counts are
// raised to 1 and max backoff is clamped to at least min backoff.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		minBackoff:  time.Second,
		maxBackoff:  30 * time.Second,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if c.minBackoff < 0 {
		c.minBackoff = 0
	}
	if c.maxBackoff < c.minBackoff {
		c.maxBackoff = c.minBackoff
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}

	return c
}

// RequestOptions carries per-request settings.
type RequestOptions struct {
	// Body supplies the request body for each attempt. Optional.
	Body func() (io.Reader, error)
	// Header entries are set on every attempt.
	Header http.Header
	// Timeout overrides the client timeout for this request when positive.
	Timeout time.Duration
}

// Do performs the request, retrying transient failures with exponential
// backoff. On success the response is returned with its body open; the
// caller owns closing it. On failure the last RequestError is returned,
// wrapped with ErrAttemptsExhausted when the retry budget ran out.
func (c *Client) Do(ctx context.Context, method, url string, opts RequestOptions) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		started := time.Now()
		c.logger.Debug("http request attempt",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.maxAttempts),
		)

		resp, err := c.doOnce(ctx, method, url, opts)
		duration := time.Since(started)
		if err == nil {
			c.logger.Debug("http request succeeded",
				slog.String("method", method),
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Int("status", resp.StatusCode),
				slog.Duration("duration", duration),
			)
			return resp, nil
		}

		kind, _ := KindOf(err)
		c.logger.Warn("http request failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.String("kind", kind.String()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)

		if !kind.Retryable() {
			return nil, err
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		if delay := c.backoffFor(attempt); delay > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("httpx: backoff interrupted: %w", err)
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, c.maxAttempts, lastErr)
}

// backoffFor returns min(maxBackoff, minBackoff * 2^(attempt-1)),
// or zero when minBackoff is zero.
func (c *Client) backoffFor(attempt int) time.Duration {
	if c.minBackoff <= 0 {
		return 0
	}
	delay := c.minBackoff << uint(attempt-1)
	if delay > c.maxBackoff || delay <= 0 {
		return c.maxBackoff
	}
	return delay
}

// doOnce performs a single attempt and classifies any failure.
func (c *Client) doOnce(ctx context.Context, method, url string, opts RequestOptions) (*http.Response, error) {
	var body io.Reader
	if opts.Body != nil {
		b, err := opts.Body()
		if err != nil {
			return nil, &RequestError{Kind: KindSchema, Method: method, URL: url, Err: err}
		}
		body = b
	}

	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		cancel()
		return nil, &RequestError{Kind: KindSchema, Method: method, URL: url, Err: err}
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, &RequestError{Kind: KindNetwork, Method: method, URL: url, Err: err}
	}

	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		cancel()
		return nil, &RequestError{
			Kind:   classifyStatus(resp.StatusCode),
			Method: method,
			URL:    url,
			Status: resp.StatusCode,
		}
	}

	// The timeout covers the body read as well; it is released when the
	// caller closes the body.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the per-request timeout when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
