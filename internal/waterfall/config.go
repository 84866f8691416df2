package waterfall

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

// Config is the top-level waterfall configuration.
type Config struct {
	Defaults  Defaults         `yaml:"defaults"`
	Providers []ProviderConfig `yaml:"providers"`
}

// Defaults holds values applied to providers that leave them unset.
type Defaults struct {
	TimeoutSecs        int           `yaml:"timeout_secs"`
	CacheTTLMins       int           `yaml:"cache_ttl_mins"`
	MinMatchConfidence float64       `yaml:"min_match_confidence"`
	Pacing             *PacingConfig `yaml:"pacing,omitempty"`
}

// PacingConfig bounds the randomized delays between leads and between
// providers for one lead.
type PacingConfig struct {
	LeadMinMs     int `yaml:"lead_min_ms"`
	LeadMaxMs     int `yaml:"lead_max_ms"`
	ProviderMinMs int `yaml:"provider_min_ms"`
	ProviderMaxMs int `yaml:"provider_max_ms"`
}

// LeadPacer returns the pacer used between leads.
func (p PacingConfig) LeadPacer() Pacer {
	return NewPacer(ms(p.LeadMinMs), ms(p.LeadMaxMs))
}

// ProviderPacer returns the pacer used between provider calls.
func (p PacingConfig) ProviderPacer() Pacer {
	return NewPacer(ms(p.ProviderMinMs), ms(p.ProviderMaxMs))
}

// ProviderConfig is one step of the waterfall, in query order.
type ProviderConfig struct {
	Name               string  `yaml:"name"`
	TimeoutSecs        int     `yaml:"timeout_secs"`
	CacheTTLMins       int     `yaml:"cache_ttl_mins"`
	RatePerMin         float64 `yaml:"rate_per_min"`
	MinMatchConfidence float64 `yaml:"min_match_confidence"`
}

// Timeout returns the per-call deadline.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// CacheTTL returns how long responses for this provider stay cached.
func (p ProviderConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLMins) * time.Minute
}

// DefaultConfig is the waterfall used when no config file exists: the
// registry search first so later lookups have a registration id to work
// with, then the id lookups, then the website and social searches.
func DefaultConfig() *Config {
	cfg := &Config{
		Defaults: Defaults{
			TimeoutSecs:        20,
			CacheTTLMins:       60,
			MinMatchConfidence: 0.7,
		},
		Providers: []ProviderConfig{
			{Name: "casadosdados", RatePerMin: 30},
			{Name: "brasilapi", RatePerMin: 60},
			{Name: "receitaws", RatePerMin: 3, TimeoutSecs: 30},
			{Name: "cnpjws", RatePerMin: 3, TimeoutSecs: 30},
			{Name: "website", RatePerMin: 30, CacheTTLMins: 30},
			{Name: "social", RatePerMin: 20, CacheTTLMins: 10},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads waterfall config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "waterfall: read config %s", path)
	}

	// The YAML has a top-level "waterfall" key
	var wrapper struct {
		Waterfall Config `yaml:"waterfall"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "waterfall: parse config")
	}

	cfg := &wrapper.Waterfall
	if len(cfg.Providers) == 0 {
		return nil, eris.Errorf("waterfall: %s lists no providers", path)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfigOrDefault reads path, falling back to DefaultConfig when the
// file does not exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

func (c *Config) applyDefaults() {
	if c.Defaults.TimeoutSecs <= 0 {
		c.Defaults.TimeoutSecs = 20
	}
	for i, p := range c.Providers {
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.TimeoutSecs <= 0 {
			p.TimeoutSecs = c.Defaults.TimeoutSecs
		}
		if p.CacheTTLMins == 0 {
			p.CacheTTLMins = c.Defaults.CacheTTLMins
		}
		if p.MinMatchConfidence == 0 {
			p.MinMatchConfidence = c.Defaults.MinMatchConfidence
		}
		c.Providers[i] = p
	}
}

// Validate checks that every configured provider is registered and listed
// once.
func (c *Config) Validate(reg *provider.Registry) error {
	seen := make(map[string]bool, len(c.Providers))
	var errs []string
	for _, p := range c.Providers {
		switch {
		case p.Name == "":
			errs = append(errs, "provider with empty name")
		case seen[p.Name]:
			errs = append(errs, "provider "+p.Name+" listed twice")
		case reg.Get(p.Name) == nil:
			errs = append(errs, "unknown provider "+p.Name+" (known: "+strings.Join(reg.List(), ", ")+")")
		}
		seen[p.Name] = true
		if p.MinMatchConfidence < 0 || p.MinMatchConfidence > 1 {
			errs = append(errs, "provider "+p.Name+": min_match_confidence must be within [0, 1]")
		}
	}
	if len(errs) > 0 {
		return eris.New("waterfall: " + strings.Join(errs, "; "))
	}
	return nil
}

// Get returns the config for a provider by name.
func (c *Config) Get(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
