package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/cache"
	"github.com/sells-group/leads-cli/internal/resilience"
)

// Request describes one outbound call. Service names the rate limiter and
// appears in logs. TTL > 0 enables the response cache for the call.
type Request struct {
	Service string
	Method  string
	URL     string
	Params  url.Values
	Header  http.Header
	Body    []byte
	TTL     time.Duration
}

// Response is a fully read response.
type Response struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	Cached     bool        `json:"-"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Service    string
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d from %s", e.Service, e.StatusCode, e.URL)
}

// Options configures a Client.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Retry        resilience.RetryPolicy
	Cache        *cache.Loader
	HTTPClient   *http.Client
}

// Client is an HTTP client with per-service rate limiting, retries on
// transient failures and a read-through response cache.
type Client struct {
	http  *http.Client
	opts  Options
	cache *cache.Loader
	retry resilience.RetryPolicy

	mu     sync.Mutex
	limits map[string]*Limiter
	sent   int64
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "leads-cli/1.0"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		http:   hc,
		opts:   opts,
		cache:  opts.Cache,
		retry:  opts.Retry,
		limits: make(map[string]*Limiter),
	}
}

// SetRate installs a limiter of perMinute calls for service.
func (c *Client) SetRate(service string, perMinute float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits[service] = NewLimiter(service, perMinute)
}

func (c *Client) limiter(service string) *Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limits[service]
	if !ok {
		l = NewLimiter(service, 0)
		c.limits[service] = l
	}
	return l
}

// OutboundCalls returns how many requests actually left the process.
func (c *Client) OutboundCalls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Do sends req. Non-2xx responses come back as *StatusError and are never
// cached.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	key := cache.Key(req.Method, req.URL, req.Params, req.Body)

	raw, hit, err := c.cache.Load(ctx, key, req.TTL, func(ctx context.Context) ([]byte, error) {
		resp, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (*Response, error) {
			return c.send(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, eris.Wrapf(err, "%s: decode cached response", req.Service)
	}
	resp.Cached = hit
	if hit {
		zap.L().Debug("fetcher: cache hit", zap.String("service", req.Service), zap.String("url", req.URL))
	}
	return &resp, nil
}

// GetJSON sends req and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return eris.Wrapf(err, "%s: decode response", req.Service)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	lim := c.limiter(req.Service)
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "%s: rate limiter wait", req.Service)
	}

	target := req.URL
	if len(req.Params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Params.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", req.Service)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", c.opts.UserAgent)
	}

	c.mu.Lock()
	c.sent++
	c.mu.Unlock()

	resp, err := c.http.Do(hr)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: %s %s", req.Service, req.Method, req.URL)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read body", req.Service)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Service: req.Service, StatusCode: resp.StatusCode, URL: req.URL, Body: truncate(string(data), 512)}
		if resp.StatusCode == http.StatusTooManyRequests {
			lim.OnRateLimit()
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			te := resilience.NewTransientError(se, resp.StatusCode)
			te.RetryAfter = resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			return nil, te
		}
		return nil, se
	}

	lim.OnSuccess()
	return &Response{StatusCode: resp.StatusCode, Header: keepHeaders(resp.Header), Body: data}, nil
}

// keepHeaders drops everything but the headers callers read, so cached
// entries stay small.
func keepHeaders(h http.Header) http.Header {
	out := http.Header{}
	for _, k := range []string{"Content-Type", "Location"} {
		if v := h.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
