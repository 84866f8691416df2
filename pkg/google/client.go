// Package google provides a client for the Google Places API (New).
package google

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// fieldMask lists the response fields billed and returned by text search.
const fieldMask = "places.id,places.displayName,places.formattedAddress,places.nationalPhoneNumber," +
	"places.internationalPhoneNumber,places.websiteUri,places.rating,places.userRatingCount," +
	"places.location,nextPageToken"

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
}

// TextSearchRequest is the body of places:searchText.
type TextSearchRequest struct {
	TextQuery    string `json:"textQuery"`
	RegionCode   string `json:"regionCode,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
	PageSize     int    `json:"pageSize,omitempty"`
	PageToken    string `json:"pageToken,omitempty"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place represents a place returned by the API.
type Place struct {
	ID                       string      `json:"id"`
	DisplayName              DisplayName `json:"displayName"`
	FormattedAddress         string      `json:"formattedAddress"`
	NationalPhoneNumber      string      `json:"nationalPhoneNumber"`
	InternationalPhoneNumber string      `json:"internationalPhoneNumber"`
	WebsiteURI               string      `json:"websiteUri"`
	Rating                   float64     `json:"rating"`
	UserRatingCount          int         `json:"userRatingCount"`
	Location                 LatLng      `json:"location"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithCacheTTL caches responses for d.
func WithCacheTTL(d time.Duration) Option {
	return func(c *httpClient) {
		c.ttl = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	ttl     time.Duration
	http    *fetcher.Client
}

// NewClient creates a Google Places API client sending through f.
func NewClient(f *fetcher.Client, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    f,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Goog-Api-Key", c.apiKey)
	h.Set("X-Goog-FieldMask", fieldMask)

	var result TextSearchResponse
	err = c.http.GetJSON(ctx, fetcher.Request{
		Service: "google",
		Method:  http.MethodPost,
		URL:     c.baseURL + "/places:searchText",
		Header:  h,
		Body:    body,
		TTL:     c.ttl,
	}, &result)
	if err != nil {
		return nil, eris.Wrap(err, "google: text search")
	}
	return &result, nil
}
