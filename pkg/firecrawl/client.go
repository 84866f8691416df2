// Package firecrawl provides a client for the Firecrawl scrape API.
package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
)

// Default base URL for the Firecrawl v2 API.
const defaultBaseURL = "https://api.firecrawl.dev/v2"

// Client defines the Firecrawl API operations.
type Client interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error)
}

// ScrapeRequest is the body for POST /scrape.
type ScrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats,omitempty"`
	OnlyMainContent bool     `json:"onlyMainContent,omitempty"`
}

// ScrapeResponse is the response from POST /scrape.
type ScrapeResponse struct {
	Success bool     `json:"success"`
	Data    PageData `json:"data"`
}

// PageData represents a single page result from Firecrawl.
type PageData struct {
	URL      string       `json:"url"`
	Markdown string       `json:"markdown"`
	HTML     string       `json:"html"`
	Links    []string     `json:"links"`
	Metadata PageMetadata `json:"metadata"`
}

// PageMetadata carries the scraped page's status and title.
type PageMetadata struct {
	Title      string `json:"title"`
	SourceURL  string `json:"sourceURL"`
	StatusCode int    `json:"statusCode"`
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithCacheTTL caches scrape responses for d.
func WithCacheTTL(d time.Duration) Option {
	return func(c *httpClient) {
		c.ttl = d
	}
}

// httpClient implements Client over a fetcher.
type httpClient struct {
	apiKey  string
	baseURL string
	ttl     time.Duration
	http    *fetcher.Client
}

// NewClient creates a new Firecrawl client sending through f.
func NewClient(f *fetcher.Client, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    f,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	if len(req.Formats) == 0 {
		req.Formats = []string{"markdown", "links"}
	}
	var resp ScrapeResponse
	if err := c.post(ctx, "/scrape", req, &resp); err != nil {
		return nil, eris.Wrap(err, "firecrawl: scrape")
	}
	if !resp.Success {
		return nil, eris.Errorf("firecrawl: scrape %s reported failure", req.URL)
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+c.apiKey)

	return c.http.GetJSON(ctx, fetcher.Request{
		Service: "firecrawl",
		Method:  http.MethodPost,
		URL:     c.baseURL + path,
		Header:  h,
		Body:    buf,
		TTL:     c.ttl,
	}, out)
}
