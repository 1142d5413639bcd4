// Package supabase is the privileged HTTP transport to a hosted Supabase
// project. The GoTrue and PostgREST SDK clients run on its per-call
// Transport, which always authenticates with the service-role key.
package supabase

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

	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/pkg/circuitbreaker"
	"github.com/memora-health/memora-api/pkg/metrics"
)

const maxErrorBody = 64 << 10

type Config struct {
	URL            string
	ServiceRoleKey string
	Timeout        time.Duration

	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type Client struct {
	baseURL    *url.URL
	key        string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase url is required")
	}
	if cfg.ServiceRoleKey == "" {
		return nil, errors.New("supabase service role key is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid supabase url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid supabase url %q", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    base,
		key:        cfg.ServiceRoleKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}
	l := c.logger.With().Str("component", "supabase").Logger()
	c.logger = l
	c.cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:                "supabase",
		MaxRequests:         1,
		Timeout:             breakerTimeout,
		ConsecutiveFailures: cfg.BreakerFailures,
		IsSuccessful:        isBreakerSuccess,
		Logger:              &l,
	})

	return c, nil
}

// Request describes one call against the project API.
type Request struct {
	// Operation labels metrics and logs, e.g. "auth.create_user".
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Header    http.Header
	Body      interface{}
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do sends req and decodes a successful JSON body into out when out is non-nil.
// Responses with status >= 400 are returned as *APIError.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	hc := c.HTTPClient(ctx, req.Operation)
	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.Operation, err)
	}
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("failed to decode %s response: %w", req.Operation, err)
		}
	}

	return resp, nil
}

// Endpoint returns the absolute URL of path on the project.
func (c *Client) Endpoint(path string) string {
	return c.baseURL.String() + path
}

// HTTPClient returns an http.Client for one call, for SDKs that take their
// own client. See Transport.
func (c *Client) HTTPClient(ctx context.Context, operation string) *http.Client {
	return &http.Client{
		Transport: c.Transport(ctx, operation),
		Timeout:   c.httpClient.Timeout,
	}
}

// Transport returns a RoundTripper bound to ctx for one call. Requests carry
// the service-role key and run through the breaker, and every answer is
// recorded under operation. Statuses >= 400 are returned as *APIError, so the
// caller sees a typed error even behind an SDK that flattens failures.
func (c *Client) Transport(ctx context.Context, operation string) http.RoundTripper {
	return &roundTripper{client: c, ctx: ctx, operation: operation}
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + req.Path
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", req.Operation, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", req.Operation, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq, nil
}

type roundTripper struct {
	client    *Client
	ctx       context.Context
	operation string
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	c := rt.client

	// The clone follows the call ctx and any deadline http.Client put on req.
	ctx, cancel := context.WithCancel(rt.ctx)
	stop := context.AfterFunc(req.Context(), cancel)
	release := func() {
		stop()
		cancel()
	}
	req = req.Clone(ctx)
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)

	var (
		httpResp *http.Response
		resp     *Response
		sent     bool
	)
	start := time.Now()

	err := c.cb.Execute(func() error {
		sent = true
		r, err := c.base().RoundTrip(req)
		if err != nil {
			return fmt.Errorf("%s request failed: %w", rt.operation, err)
		}
		resp = &Response{StatusCode: r.StatusCode, Header: r.Header}
		if r.StatusCode < http.StatusBadRequest {
			httpResp = r
			return nil
		}

		defer r.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
		resp.Body = body
		return parseAPIError(rt.operation, r.StatusCode, body)
	})

	c.observe(rt.operation, start, resp, err)

	if !sent && req.Body != nil {
		req.Body.Close()
	}
	if err != nil {
		release()
		return nil, err
	}
	httpResp.Body = &releaseBody{ReadCloser: httpResp.Body, release: release}
	return httpResp, nil
}

// releaseBody frees the request context once the caller is done reading.
type releaseBody struct {
	io.ReadCloser
	release func()
}

func (b *releaseBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

func (c *Client) base() http.RoundTripper {
	if c.httpClient.Transport != nil {
		return c.httpClient.Transport
	}
	return http.DefaultTransport
}

func (c *Client) observe(operation string, start time.Time, resp *Response, err error) {
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	} else if errors.Is(err, circuitbreaker.ErrOpen) {
		status = "breaker_open"
	}

	if c.metrics != nil {
		c.metrics.ExternalRequests.WithLabelValues(operation, status).Inc()
		c.metrics.ExternalLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("operation", operation).
			Str("status", status).
			Dur("duration", time.Since(start)).
			Msg("Supabase request failed")
	}
}

// isBreakerSuccess keeps caller mistakes (4xx) from tripping the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return errors.Is(err, context.Canceled)
}
