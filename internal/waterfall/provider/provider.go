// Package provider defines the interface for waterfall enrichment providers.
package provider

import (
	"context"
	"slices"
	"sync"

	"github.com/sells-group/leads-cli/internal/model"
)

// Result is the complete response from a provider for one lead.
type Result struct {
	Provider        string         `json:"provider"`
	Fields          model.FieldSet `json:"fields"`
	MatchConfidence float64        `json:"match_confidence"`
	CostUSD         float64        `json:"cost_usd"`
}

// Provider enriches a lead from one external source.
type Provider interface {
	// Name returns the provider identifier (matches the name in waterfall config).
	Name() string
	// SupportedFields returns the field keys this provider can supply.
	SupportedFields() []string
	// Ready reports whether the lead carries the inputs the provider needs.
	Ready(lead model.Lead) bool
	// Enrich looks the lead up. A lookup that finds nothing returns ErrNoMatch.
	Enrich(ctx context.Context, lead model.Lead) (*Result, error)
}

// Registry manages available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding ps.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
	}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds a provider, replacing any with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
