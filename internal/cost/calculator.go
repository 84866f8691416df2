// Package cost estimates the spend of paid provider calls.
package cost

import (
	"context"
	"sync"
)

// Rates holds per-call provider pricing in USD.
type Rates struct {
	PlacesPerRequest  float64 `yaml:"places_per_request" mapstructure:"places_per_request"`
	SerpAPIPerSearch  float64 `yaml:"serpapi_per_search" mapstructure:"serpapi_per_search"`
	JinaPerMTok       float64 `yaml:"jina_per_mtok" mapstructure:"jina_per_mtok"`
	FirecrawlPerPage  float64 `yaml:"firecrawl_per_page" mapstructure:"firecrawl_per_page"`
	CNPJWSPerRequest  float64 `yaml:"cnpjws_per_request" mapstructure:"cnpjws_per_request"`
	RegistryPerSearch float64 `yaml:"registry_per_search" mapstructure:"registry_per_search"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Places returns the cost of n Places text search requests.
func (c *Calculator) Places(n int) float64 {
	return float64(n) * c.rates.PlacesPerRequest
}

// SerpAPI returns the cost of n SerpAPI searches.
func (c *Calculator) SerpAPI(n int) float64 {
	return float64(n) * c.rates.SerpAPIPerSearch
}

// Jina computes the cost for Jina token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.JinaPerMTok
}

// Firecrawl returns the cost of n scraped pages.
func (c *Calculator) Firecrawl(pages int) float64 {
	return float64(pages) * c.rates.FirecrawlPerPage
}

// CNPJWS returns the cost of n commercial CNPJ lookups.
func (c *Calculator) CNPJWS(n int) float64 {
	return float64(n) * c.rates.CNPJWSPerRequest
}

// Registry returns the cost of n registry name searches.
func (c *Calculator) Registry(n int) float64 {
	return float64(n) * c.rates.RegistryPerSearch
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		PlacesPerRequest:  0.032,
		SerpAPIPerSearch:  0.015,
		JinaPerMTok:       0.02,
		FirecrawlPerPage:  0.00633,
		CNPJWSPerRequest:  0,
		RegistryPerSearch: 0,
	}
}

// Tally accumulates spend per provider. It is safe for concurrent use.
type Tally struct {
	mu sync.Mutex
	by map[string]float64
}

// Add records usd against provider. Non-positive amounts are ignored.
func (t *Tally) Add(provider string, usd float64) {
	if usd <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.by == nil {
		t.by = make(map[string]float64)
	}
	t.by[provider] += usd
}

// Total returns the sum across providers.
func (t *Tally) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum float64
	for _, v := range t.by {
		sum += v
	}
	return sum
}

// ByProvider returns a copy of the per-provider totals.
func (t *Tally) ByProvider() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.by))
	for k, v := range t.by {
		out[k] = v
	}
	return out
}

type tallyKey struct{}

// WithTally returns a context whose Charge calls add to t.
func WithTally(ctx context.Context, t *Tally) context.Context {
	return context.WithValue(ctx, tallyKey{}, t)
}

// Charge records usd against provider on the context's tally, if any.
func Charge(ctx context.Context, provider string, usd float64) {
	if t, ok := ctx.Value(tallyKey{}).(*Tally); ok && t != nil {
		t.Add(provider, usd)
	}
}
