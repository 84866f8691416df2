// Package serpapi provides a client for the SerpAPI Google Maps engine.
package serpapi

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
)

const defaultBaseURL = "https://serpapi.com"

// PageSize is the number of local results SerpAPI returns per page.
const PageSize = 20

// Client performs Google Maps searches through SerpAPI.
type Client interface {
	MapsSearch(ctx context.Context, req MapsRequest) (*MapsResponse, error)
}

// MapsRequest holds the search parameters.
type MapsRequest struct {
	Query    string
	Location string
	Language string
	Country  string
	Start    int
}

// MapsResponse is the subset of the engine=google_maps response used here.
type MapsResponse struct {
	LocalResults []LocalResult `json:"local_results"`
	Pagination   *Pagination   `json:"serpapi_pagination,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// LocalResult is one business listing.
type LocalResult struct {
	Title          string         `json:"title"`
	Address        string         `json:"address"`
	Phone          string         `json:"phone"`
	Website        string         `json:"website"`
	Rating         float64        `json:"rating"`
	Reviews        int            `json:"reviews"`
	Type           string         `json:"type"`
	GPSCoordinates GPSCoordinates `json:"gps_coordinates"`
}

// GPSCoordinates is a listing's position.
type GPSCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Pagination links to the next page.
type Pagination struct {
	Next string `json:"next,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithCacheTTL caches responses for d.
func WithCacheTTL(d time.Duration) Option {
	return func(c *httpClient) { c.ttl = d }
}

type httpClient struct {
	apiKey  string
	baseURL string
	ttl     time.Duration
	http    *fetcher.Client
}

// NewClient creates a SerpAPI client sending through f.
func NewClient(f *fetcher.Client, apiKey string, opts ...Option) Client {
	c := &httpClient{apiKey: apiKey, baseURL: defaultBaseURL, http: f}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) MapsSearch(ctx context.Context, req MapsRequest) (*MapsResponse, error) {
	q := req.Query
	if req.Location != "" {
		q += " " + req.Location
	}
	params := url.Values{
		"engine":  {"google_maps"},
		"type":    {"search"},
		"q":       {q},
		"api_key": {c.apiKey},
	}
	if req.Language != "" {
		params.Set("hl", req.Language)
	}
	if req.Country != "" {
		params.Set("gl", req.Country)
	}
	if req.Start > 0 {
		params.Set("start", strconv.Itoa(req.Start))
	}

	var resp MapsResponse
	err := c.http.GetJSON(ctx, fetcher.Request{
		Service: "serpapi",
		URL:     c.baseURL + "/search.json",
		Params:  params,
		TTL:     c.ttl,
	}, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: maps search")
	}
	// SerpAPI reports an exhausted result set as an error string.
	if resp.Error != "" && len(resp.LocalResults) == 0 && resp.Error != noResults {
		return nil, eris.Errorf("serpapi: %s", resp.Error)
	}
	return &resp, nil
}

const noResults = "Google hasn't returned any results for this query."
