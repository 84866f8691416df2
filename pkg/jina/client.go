// Package jina provides a client for the Jina AI reader and search API.
package jina

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
)

// Client defines the Jina AI Reader operations.
type Client interface {
	// Read fetches a URL via Jina AI Reader and returns the markdown content.
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
	// Search performs a web search via Jina AI Search and returns results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// ReadResponse is the parsed Jina API response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from Jina.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	Usage   ReadUsage `json:"usage"`
}

// ReadUsage tracks token consumption.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the parsed Jina Search API response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Usage       ReadUsage `json:"usage"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	siteFilter string
}

// WithSiteFilter restricts search results to a specific domain.
func WithSiteFilter(domain string) SearchOption {
	return func(o *searchOpts) {
		o.siteFilter = domain
	}
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithSearchBaseURL sets a custom search base URL (for testing).
func WithSearchBaseURL(url string) Option {
	return func(c *httpClient) {
		c.searchBaseURL = url
	}
}

// WithCacheTTL caches reader and search responses for d.
func WithCacheTTL(d time.Duration) Option {
	return func(c *httpClient) {
		c.ttl = d
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	ttl           time.Duration
	http          *fetcher.Client
}

// NewClient creates a new Jina AI client sending through f.
func NewClient(f *fetcher.Client, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       "https://r.jina.ai",
		searchBaseURL: "https://s.jina.ai",
		http:          f,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	h.Set("Accept", "application/json")
	return h
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	h := c.header()
	h.Set("X-Return-Format", "markdown")

	var result ReadResponse
	err := c.http.GetJSON(ctx, fetcher.Request{
		Service: "jina",
		URL:     fmt.Sprintf("%s/%s", c.baseURL, targetURL),
		Header:  h,
		TTL:     c.ttl,
	}, &result)
	if err != nil {
		return nil, eris.Wrap(err, "jina: read")
	}
	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	params := url.Values{}
	if so.siteFilter != "" {
		params.Set("site", so.siteFilter)
	}

	var result SearchResponse
	err := c.http.GetJSON(ctx, fetcher.Request{
		Service: "jina",
		URL:     fmt.Sprintf("%s/%s", c.searchBaseURL, url.QueryEscape(query)),
		Params:  params,
		Header:  c.header(),
		TTL:     c.ttl,
	}, &result)

	// Jina returns 422 when no results are available for the query.
	// Treat this as empty results rather than an error.
	var se *fetcher.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: http.StatusUnprocessableEntity}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "jina: search")
	}
	return &result, nil
}
