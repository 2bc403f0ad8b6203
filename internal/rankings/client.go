package rankings

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/lensrank/internal/tracing"
)

// Client issues requests against the rankings API.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	config     Config
	requests   requestBuilder
	decode     decoder
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics records per-operation request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a rankings client with the given configuration.
func NewClient(config Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	requests, err := newRequestBuilder(config.BaseURL, config.PerPage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config:   config,
		requests: requests,
		decode:   decoder{strict: config.StrictDecode},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c, nil
}

// PerPage returns the configured page size.
func (c *Client) PerPage() int {
	return c.config.PerPage
}

// GlobalRankings returns one page of profiles ranked under a strategy, in
// server order. Pages below 1 return the first page.
func (c *Client) GlobalRankings(ctx context.Context, strategyID string, page int) ([]Profile, error) {
	target := c.requests.globalRankings(strategyID, page)
	ctx, call := c.begin(ctx, OpGlobalRankings, target)

	resp, err := c.fetch(ctx, target)
	if err != nil {
		return nil, call.fail(err)
	}
	if !resp.ok() {
		return nil, call.fail(c.requestFailed(ctx, OpGlobalRankings, target, resp))
	}

	profiles, err := c.decode.profiles(OpGlobalRankings, resp.body)
	if err != nil {
		return nil, call.fail(err)
	}
	call.finish(OutcomeSuccess)
	return profiles, nil
}

// RankingsCount returns the number of ranked profiles under a strategy.
func (c *Client) RankingsCount(ctx context.Context, strategyID string) (int, error) {
	target := c.requests.rankingsCount(strategyID)
	ctx, call := c.begin(ctx, OpRankingsCount, target)

	resp, err := c.fetch(ctx, target)
	if err != nil {
		return 0, call.fail(err)
	}
	if !resp.ok() {
		return 0, call.fail(c.requestFailed(ctx, OpRankingsCount, target, resp))
	}

	count, err := c.decode.count(OpRankingsCount, resp.body)
	if err != nil {
		return 0, call.fail(err)
	}
	call.finish(OutcomeSuccess)
	return count, nil
}

// GlobalRankByHandle returns the rank of handle under a strategy.
// found is false, with a nil error, when the API does not know the handle.
func (c *Client) GlobalRankByHandle(ctx context.Context, strategyID, handle string) (rank int, found bool, err error) {
	target := c.requests.rankingIndex(strategyID, handle)
	ctx, call := c.begin(ctx, OpGlobalRankByHandle, target)

	resp, err := c.fetch(ctx, target)
	if err != nil {
		return 0, false, call.fail(err)
	}
	if !resp.ok() {
		if IsHandleNotFound(resp.body) {
			call.notFound(ctx, handle)
			return 0, false, nil
		}
		return 0, false, call.fail(c.requestFailed(ctx, OpGlobalRankByHandle, target, resp))
	}

	rank, err = c.decode.rank(OpGlobalRankByHandle, resp.body)
	if err != nil {
		return 0, false, call.fail(err)
	}
	call.finish(OutcomeSuccess)
	return rank, true, nil
}

// PersonalisedRankings returns one page of profiles suggested for handle.
// An unknown handle yields an empty, non-nil slice.
func (c *Client) PersonalisedRankings(ctx context.Context, handle string, page int) ([]Profile, error) {
	target := c.requests.suggest(handle, page)
	ctx, call := c.begin(ctx, OpPersonalisedRankings, target)

	resp, err := c.fetch(ctx, target)
	if err != nil {
		return nil, call.fail(err)
	}
	if !resp.ok() {
		if IsHandleNotFound(resp.body) {
			call.notFound(ctx, handle)
			return []Profile{}, nil
		}
		return nil, call.fail(c.requestFailed(ctx, OpPersonalisedRankings, target, resp))
	}

	profiles, err := c.decode.profiles(OpPersonalisedRankings, resp.body)
	if err != nil {
		return nil, call.fail(err)
	}
	call.finish(OutcomeSuccess)
	return profiles, nil
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// fetch performs the GET and reads the full body. Transport errors are
// wrapped, so errors.Is and errors.As still see the original cause.
func (c *Client) fetch(ctx context.Context, target string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach rankings api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rankings api response: %w", err)
	}

	tracing.SetAttributes(ctx, attribute.Int("http.response.status_code", resp.StatusCode))
	return &response{status: resp.StatusCode, body: body}, nil
}

// requestFailed logs the upstream body and returns the caller-facing error.
func (c *Client) requestFailed(ctx context.Context, op Operation, target string, resp *response) error {
	c.logger.ErrorContext(ctx, "rankings api request failed",
		slog.String("operation", string(op)),
		slog.String("url", target),
		slog.Int("status", resp.status),
		slog.String("body", string(resp.body)))

	return &RequestError{Op: op, URL: target, StatusCode: resp.status}
}

// call tracks span and metrics for one operation.
type call struct {
	op      Operation
	start   time.Time
	endSpan func(error)
	metrics *Metrics
}

func (c *Client) begin(ctx context.Context, op Operation, target string) (context.Context, *call) {
	ctx, endSpan := tracing.StartUpstreamSpan(ctx, string(op), target)
	return ctx, &call{
		op:      op,
		start:   time.Now(),
		endSpan: endSpan,
		metrics: c.metrics,
	}
}

func (cl *call) finish(outcome string) {
	cl.endSpan(nil)
	cl.observe(outcome)
}

func (cl *call) notFound(ctx context.Context, handle string) {
	tracing.AddEvent(ctx, "handle_not_found", attribute.String("handle", handle))
	cl.finish(OutcomeNotFound)
}

func (cl *call) fail(err error) error {
	cl.endSpan(err)
	cl.observe(OutcomeError)
	return err
}

func (cl *call) observe(outcome string) {
	if cl.metrics == nil {
		return
	}
	cl.metrics.ObserveRequest(cl.op, outcome, time.Since(cl.start).Seconds())
}
