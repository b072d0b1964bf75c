package toncenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Client struct {
	http    *http.Client
	baseURL string // e.g. "https://toncenter.com"
	apiKey  string // used as X-API-Key; if empty, no auth header is set

	rl      *slidingLimiter
	logger  zerolog.Logger
	metrics *metrics
}

// Option configures Client.
type Option func(*Client)

// WithAPIKey sets X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient allows custom http.Client (retries, tracing, proxy, etc).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit limits requests per second, set 0 for no limit, default 0
func WithRateLimit(maxPerSec float64) Option {
	return func(c *Client) {
		if maxPerSec > 0 {
			period := 1 * time.Second
			if maxPerSec < 1 {
				period = time.Duration(math.Round(float64(time.Second) / maxPerSec))
				if period < time.Millisecond {
					period = time.Millisecond
				}
				maxPerSec = 1
			}

			c.rl = newSlidingLimiter(int(maxPerSec), period)
		}
	}
}

// WithTimeout sets http.Client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.http == nil {
			c.http = &http.Client{Timeout: d}
			return
		}
		c.http.Timeout = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics registers request counters and latency histograms in reg.
// Registering twice in the same registry panics, like prometheus.MustRegister does.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		logger: log.Logger,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tonrelay",
			Subsystem: "toncenter",
			Name:      "requests_total",
			Help:      "Number of toncenter API requests by method and result.",
		}, []string{"method", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tonrelay",
			Subsystem: "toncenter",
			Name:      "request_duration_seconds",
			Help:      "Latency of toncenter API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *metrics) observe(method string, started time.Time, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.requests.WithLabelValues(method, result).Inc()
	m.duration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

type slidingLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	times  []time.Time // request start times in ascending order
}

func newSlidingLimiter(max int, window time.Duration) *slidingLimiter {
	return &slidingLimiter{
		window: window,
		max:    max,
		times:  make([]time.Time, 0, max),
	}
}

func (l *slidingLimiter) wait(ctx context.Context) error {
	for {
		now := time.Now()
		cutoff := now.Add(-l.window)

		l.mu.Lock()
		i := 0
		for i < len(l.times) && l.times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			l.times = l.times[i:]
		}

		if len(l.times) < l.max {
			l.times = append(l.times, now)
			l.mu.Unlock()
			return nil
		}

		waitUntil := l.times[0].Add(l.window)
		l.mu.Unlock()

		d := time.Until(waitUntil)
		if d <= 0 {
			continue
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

type Response[T any] struct {
	Ok     bool   `json:"ok"`
	Result T      `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   *int   `json:"code,omitempty"`
}

func doGET[T any](ctx context.Context, c *Client, method, path string, q url.Values) (*T, error) {
	u := path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return do[T](c, method, req)
}

func doPOST[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return nil, err
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	return do[T](c, method, req)
}

func do[T any](c *Client, method string, req *http.Request) (res *T, err error) {
	if c.rl != nil {
		if err = c.rl.wait(req.Context()); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	defer func() {
		c.metrics.observe(method, started, err)

		ev := c.logger.Debug()
		if err != nil {
			ev = c.logger.Warn().Err(err)
		}
		ev.Str("method", method).Dur("took", time.Since(started)).Msg("toncenter request")
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 150<<20)) // 150MB cap
	if err != nil {
		return nil, err
	}

	var tr Response[T]
	if err = json.Unmarshal(body, &tr); err != nil {
		var trErr Response[string]
		if err := json.Unmarshal(body, &trErr); err == nil && !trErr.Ok && trErr.Code != nil {
			return nil, &APIError{Status: resp.StatusCode, Code: *trErr.Code, Message: trErr.Result}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{Status: resp.StatusCode, Message: string(body)}
		}
		return nil, fmt.Errorf("decode error: %w; body=%s", err, string(body))
	}

	// HTTP 504 is possible (Lite Server Timeout), API still returns JSON envelope.
	if !tr.Ok || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &APIError{Status: resp.StatusCode, Message: tr.Error}
		if tr.Code != nil {
			e.Code = *tr.Code
		}
		return nil, e
	}
	return &tr.Result, nil
}

// APIError is a request toncenter answered with an error.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	code := strconv.Itoa(e.Status)
	if e.Code != 0 && e.Code != e.Status {
		code += "/" + strconv.Itoa(e.Code)
	}
	return fmt.Sprintf("toncenter api error, code %s: %s", code, e.Message)
}
