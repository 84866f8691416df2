// Package osm provides clients for the OpenStreetMap Nominatim and Overpass APIs.
package osm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultOverpassURL  = "https://overpass-api.de/api/interpreter"
)

// ErrPlaceNotFound is returned when Nominatim has no match for a location.
var ErrPlaceNotFound = eris.New("osm: place not found")

// Client performs OSM lookups.
type Client interface {
	// Geocode resolves a free-text location to its best match.
	Geocode(ctx context.Context, query string) (*Place, error)
	// Query runs an Overpass QL query.
	Query(ctx context.Context, ql string) (*OverpassResponse, error)
}

// Place is a Nominatim search result.
type Place struct {
	DisplayName string   `json:"display_name"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	BoundingBox []string `json:"boundingbox"`
}

// BBox is a bounding box in degrees.
type BBox struct {
	South, West, North, East float64
}

// String formats the box in Overpass order: south,west,north,east.
func (b BBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", ftoa(b.South), ftoa(b.West), ftoa(b.North), ftoa(b.East))
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// BBox parses Nominatim's boundingbox, which is ordered
// [south, north, west, east].
func (p Place) BBox() (BBox, error) {
	if len(p.BoundingBox) != 4 {
		return BBox{}, eris.Errorf("osm: bounding box has %d values", len(p.BoundingBox))
	}
	var v [4]float64
	for i, s := range p.BoundingBox {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return BBox{}, eris.Wrapf(err, "osm: parse bounding box %q", s)
		}
		v[i] = f
	}
	return BBox{South: v[0], North: v[1], West: v[2], East: v[3]}, nil
}

// OverpassResponse is the JSON output of an Overpass query.
type OverpassResponse struct {
	Elements []Element `json:"elements"`
	Remark   string    `json:"remark,omitempty"`
}

// Element is a node, way or relation.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat,omitempty"`
	Lon    float64           `json:"lon,omitempty"`
	Center *Center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Center is the computed center of a way or relation.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinates returns the element's position, using the center for ways
// and relations.
func (e Element) Coordinates() (lat, lon float64) {
	if e.Lat != 0 || e.Lon != 0 {
		return e.Lat, e.Lon
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon
	}
	return 0, 0
}

// Option configures the client.
type Option func(*httpClient)

// WithNominatimURL overrides the Nominatim base URL.
func WithNominatimURL(u string) Option {
	return func(c *httpClient) { c.nominatimURL = u }
}

// WithOverpassURL overrides the Overpass interpreter URL.
func WithOverpassURL(u string) Option {
	return func(c *httpClient) { c.overpassURL = u }
}

// WithCountryCodes limits geocoding to a comma-separated list of ISO codes.
func WithCountryCodes(codes string) Option {
	return func(c *httpClient) { c.countryCodes = codes }
}

// WithCacheTTL caches responses for d.
func WithCacheTTL(d time.Duration) Option {
	return func(c *httpClient) { c.ttl = d }
}

type httpClient struct {
	nominatimURL string
	overpassURL  string
	countryCodes string
	userAgent    string
	ttl          time.Duration
	http         *fetcher.Client
}

// NewClient creates an OSM client. Both APIs require an identifying
// User-Agent with contact details.
func NewClient(f *fetcher.Client, userAgent string, opts ...Option) Client {
	c := &httpClient{
		nominatimURL: defaultNominatimURL,
		overpassURL:  defaultOverpassURL,
		userAgent:    userAgent,
		http:         f,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) header() http.Header {
	h := http.Header{}
	if c.userAgent != "" {
		h.Set("User-Agent", c.userAgent)
	}
	return h
}

func (c *httpClient) Geocode(ctx context.Context, query string) (*Place, error) {
	params := url.Values{
		"q":              {query},
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {"1"},
	}
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	var places []Place
	err := c.http.GetJSON(ctx, fetcher.Request{
		Service: "nominatim",
		URL:     c.nominatimURL + "/search",
		Params:  params,
		Header:  c.header(),
		TTL:     c.ttl,
	}, &places)
	if err != nil {
		return nil, eris.Wrap(err, "osm: geocode")
	}
	if len(places) == 0 {
		return nil, eris.Wrapf(ErrPlaceNotFound, "osm: geocode %q", query)
	}
	return &places[0], nil
}

func (c *httpClient) Query(ctx context.Context, ql string) (*OverpassResponse, error) {
	h := c.header()
	h.Set("Content-Type", "text/plain; charset=utf-8")

	var resp OverpassResponse
	err := c.http.GetJSON(ctx, fetcher.Request{
		Service: "overpass",
		Method:  http.MethodPost,
		URL:     c.overpassURL,
		Header:  h,
		Body:    []byte(ql),
		TTL:     c.ttl,
	}, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "osm: overpass query")
	}
	return &resp, nil
}
