package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/kylycht/ratebot/metrics"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout = 10 * time.Second
	defaultMaxBody = 1 << 20
)

// ErrCircuitOpen is returned while the breaker
// refuses calls to a failing upstream
var ErrCircuitOpen = errors.New("upstream circuit open")

// ErrBodyTooLarge is returned when upstream answer exceeds the body limit
var ErrBodyTooLarge = errors.New("upstream response body too large")

// StatusError is returned for non 200 upstream answers
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected upstream status code: %d", e.Code)
}

// Client is a thin JSON over HTTP client
// shared by the rate providers
type Client struct {
	name       string           // Provider name used in logs and metrics
	baseURL    *url.URL         // Base URL for API requests
	httpClient *http.Client     // HTTP client used to communicate with the API
	breaker    *breaker.Breaker // Optional circuit breaker, nil disables it
	metrics    *metrics.Metrics // Optional metrics
	maxBody    int64            // Upper bound of accepted response body in bytes
}

type Option func(*Client)

// WithTimeout overrides per request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHeader sets header on every outgoing request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.wrap(func(req *http.Request) {
			req.Header.Set(key, value)
		})
	}
}

// WithQueryParam sets query parameter on every outgoing request
func WithQueryParam(key, value string) Option {
	return func(c *Client) {
		c.wrap(func(req *http.Request) {
			params := req.URL.Query()
			params.Set(key, value)
			req.URL.RawQuery = params.Encode()
		})
	}
}

// WithBreaker opens the circuit after errorThreshold consecutive
// failures and probes again after timeout
func WithBreaker(errorThreshold, successThreshold int, timeout time.Duration) Option {
	return func(c *Client) {
		if errorThreshold > 0 {
			c.breaker = breaker.New(errorThreshold, successThreshold, timeout)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithMaxBodySize overrides response body limit
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithRoundTripper replaces underlying transport, used by tests
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

func New(name, baseURL string, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		name:    name,
		baseURL: base,
		maxBody: defaultMaxBody,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: http.DefaultTransport,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) Name() string {
	return c.name
}

// wrap decorates current transport with request mutation
func (c *Client) wrap(mutate func(*http.Request)) {
	next := c.httpClient.Transport
	c.httpClient.Transport = roundTripperFn(
		func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			mutate(req)
			return next.RoundTrip(req)
		},
	)
}

// Get issues GET {base}/{path}?{query} and decodes JSON body into v
func (c *Client) Get(ctx context.Context, path string, query url.Values, v interface{}) error {
	u, err := c.baseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return err
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	if c.breaker == nil {
		return c.Do(req, v)
	}

	err = c.breaker.Run(func() error {
		return c.Do(req, v)
	})
	if errors.Is(err, breaker.ErrBreakerOpen) {
		c.metrics.ObserveUpstream(c.name, "circuit_open", 0)
		return fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	}

	return err
}

func (c *Client) Do(req *http.Request, v interface{}) error {
	log.Debug().Str("provider", c.name).Str("url", req.URL.Redacted()).Msg("fetching information from API")

	start := time.Now()
	err := c.do(req, v)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveUpstream(c.name, outcome, time.Since(start))

	return err
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain to let the connection be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		return &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > c.maxBody {
		return fmt.Errorf("%s: more than %d bytes: %w", c.name, c.maxBody, ErrBodyTooLarge)
	}

	switch v := v.(type) {
	case nil:
	case io.Writer:
		_, err = v.Write(body)
	default:
		err = json.NewDecoder(bytes.NewReader(body)).Decode(v)
		if err == io.EOF {
			err = errors.New("empty response body")
		}
	}

	return err
}

type roundTripperFn func(*http.Request) (*http.Response, error)

func (fn roundTripperFn) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}
