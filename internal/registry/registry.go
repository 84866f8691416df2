// Package registry adapts the Brazilian company registry APIs (CNPJ lookups
// and registry search) into waterfall providers.
package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

// LookupFields are the fields a registry lookup by CNPJ can supply.
var LookupFields = []string{
	model.FieldLegalName,
	model.FieldTradeName,
	model.FieldRegistrationStatus,
	model.FieldActivityCode,
	model.FieldActivityDescription,
	model.FieldAddress,
	model.FieldCity,
	model.FieldState,
	model.FieldPostalCode,
	model.FieldPhone,
	model.FieldEmail,
	model.FieldOfficers,
}

// Option configures a registry adapter.
type Option func(*client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithToken sets the API key or token for paid tiers.
func WithToken(token string) Option {
	return func(c *client) { c.token = token }
}

// WithCacheTTL caches responses for d.
func WithCacheTTL(d time.Duration) Option {
	return func(c *client) { c.ttl = d }
}

// WithCalculator prices calls for the run's cost estimate.
func WithCalculator(calc *cost.Calculator) Option {
	return func(c *client) { c.calc = calc }
}

// client holds what every adapter shares.
type client struct {
	name    string
	baseURL string
	token   string
	ttl     time.Duration
	http    *fetcher.Client
	calc    *cost.Calculator
}

func newClient(name, baseURL string, f *fetcher.Client, opts []Option) client {
	c := client{name: name, baseURL: baseURL, http: f, calc: cost.NewCalculator(cost.Rates{})}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// get fetches path and decodes the JSON body into out.
func (c *client) get(ctx context.Context, path string, h http.Header, out any) error {
	err := c.http.GetJSON(ctx, fetcher.Request{
		Service: c.name,
		URL:     c.baseURL + path,
		Header:  h,
		TTL:     c.ttl,
	}, out)
	return eris.Wrapf(err, "%s: get %s", c.name, path)
}

// post sends body as JSON to path and decodes the JSON reply into out.
func (c *client) post(ctx context.Context, path string, h http.Header, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return eris.Wrapf(err, "%s: encode request", c.name)
	}
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	err = c.http.GetJSON(ctx, fetcher.Request{
		Service: c.name,
		Method:  http.MethodPost,
		URL:     c.baseURL + path,
		Header:  h,
		Body:    data,
		TTL:     c.ttl,
	}, out)
	return eris.Wrapf(err, "%s: post %s", c.name, path)
}

// lookupReady reports whether the lead has a usable CNPJ.
func lookupReady(lead model.Lead) bool {
	return model.NormalizeRegistrationID(lead.RegistrationID) != ""
}

// lookupResult wraps fields from a lookup by CNPJ, which matches exactly.
func lookupResult(name string, fs model.FieldSet, usd float64) *provider.Result {
	return &provider.Result{Provider: name, Fields: fs, MatchConfidence: 1.0, CostUSD: usd}
}

// joinAddress formats street, number, complement and district the way
// registry addresses are printed: "Rua X, 10 - Sala 2 - Centro".
func joinAddress(street, number, complement, district string) string {
	street = squash(street)
	if street == "" {
		return ""
	}
	s := street
	if n := squash(number); n != "" {
		s += ", " + n
	}
	for _, part := range []string{complement, district} {
		if p := squash(part); p != "" {
			s += " - " + p
		}
	}
	return s
}

// firstPhone returns the first number from lists such as
// "(31) 3333-4444 / (31) 9999-0000".
func firstPhone(s string) string {
	for _, p := range strings.Split(s, "/") {
		if p = strings.TrimSpace(p); model.Digits(p) != "" {
			return p
		}
	}
	return ""
}

// postalCode formats a CEP as 00000-000.
func postalCode(s string) string {
	d := model.Digits(s)
	if len(d) != 8 {
		return squash(s)
	}
	return d[:5] + "-" + d[5:]
}

// titleCity turns "BELO HORIZONTE" into "Belo Horizonte".
func titleCity(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		switch w {
		case "de", "da", "do", "das", "dos", "e":
			if i > 0 {
				continue
			}
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
