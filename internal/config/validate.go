package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Modes accepted by Validate.
const (
	ModeRun    = "run"
	ModeEnrich = "enrich"
	ModeServe  = "serve"
)

// Validate checks the settings a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case ModeRun:
		errs = append(errs, c.validateDiscovery(c.Discovery.Source)...)
	case ModeEnrich:
	case ModeServe:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch c.Cache.Backend {
	case "memory", "store":
	default:
		errs = append(errs, fmt.Sprintf("cache.backend %q must be memory or store", c.Cache.Backend))
	}

	if c.Pacing.LeadMinMs < 0 || c.Pacing.LeadMaxMs < c.Pacing.LeadMinMs {
		errs = append(errs, "pacing.lead_min_ms must be >= 0 and <= pacing.lead_max_ms")
	}
	if c.Pacing.ProviderMinMs < 0 || c.Pacing.ProviderMaxMs < c.Pacing.ProviderMinMs {
		errs = append(errs, "pacing.provider_min_ms must be >= 0 and <= pacing.provider_max_ms")
	}
	if c.Discovery.DefaultLimit < 0 {
		errs = append(errs, "discovery.default_limit must be >= 0")
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// validateDiscovery checks the credentials the named discovery source needs.
func (c *Config) validateDiscovery(source string) []string {
	switch source {
	case "osm":
		if c.OSM.UserAgent == "" {
			return []string{"osm.user_agent is required"}
		}
	case "places":
		if c.Google.Key == "" {
			return []string{"google.key is required for the places source"}
		}
	case "serpapi":
		if c.SerpAPI.Key == "" {
			return []string{"serpapi.key is required for the serpapi source"}
		}
	case "cnae", "cnpjlist":
	default:
		return []string{fmt.Sprintf("discovery.source %q is not one of osm, places, serpapi, cnae, cnpjlist", source)}
	}
	return nil
}

// RequireDiscovery validates the credentials for a source chosen at run time,
// which may differ from the configured default.
func (c *Config) RequireDiscovery(source string) error {
	if errs := c.validateDiscovery(source); len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}
