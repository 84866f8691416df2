package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Discovery    DiscoveryConfig    `yaml:"discovery" mapstructure:"discovery"`
	OSM          OSMConfig          `yaml:"osm" mapstructure:"osm"`
	Google       GoogleConfig       `yaml:"google" mapstructure:"google"`
	SerpAPI      SerpAPIConfig      `yaml:"serpapi" mapstructure:"serpapi"`
	CasaDosDados CasaDosDadosConfig `yaml:"casadosdados" mapstructure:"casadosdados"`
	BrasilAPI    BrasilAPIConfig    `yaml:"brasilapi" mapstructure:"brasilapi"`
	ReceitaWS    ReceitaWSConfig    `yaml:"receitaws" mapstructure:"receitaws"`
	CNPJWS       CNPJWSConfig       `yaml:"cnpjws" mapstructure:"cnpjws"`
	Jina         JinaConfig         `yaml:"jina" mapstructure:"jina"`
	Firecrawl    FirecrawlConfig    `yaml:"firecrawl" mapstructure:"firecrawl"`
	Scrape       ScrapeConfig       `yaml:"scrape" mapstructure:"scrape"`
	Waterfall    WaterfallConfig    `yaml:"waterfall" mapstructure:"waterfall"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Pacing       PacingConfig       `yaml:"pacing" mapstructure:"pacing"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Circuit      CircuitConfig      `yaml:"circuit" mapstructure:"circuit"`
	Pricing      PricingConfig      `yaml:"pricing" mapstructure:"pricing"`
	Export       ExportConfig       `yaml:"export" mapstructure:"export"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DiscoveryConfig configures the discovery stage.
type DiscoveryConfig struct {
	Source       string `yaml:"source" mapstructure:"source"`
	DefaultLimit int    `yaml:"default_limit" mapstructure:"default_limit"`
	CountryCode  string `yaml:"country_code" mapstructure:"country_code"`
	Region       string `yaml:"region" mapstructure:"region"`
	Language     string `yaml:"language" mapstructure:"language"`
}

// OSMConfig holds Nominatim and Overpass endpoints. Both services require
// an identifying User-Agent.
type OSMConfig struct {
	NominatimURL string `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	OverpassURL  string `yaml:"overpass_url" mapstructure:"overpass_url"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	CountryCodes string `yaml:"country_codes" mapstructure:"country_codes"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerpAPIConfig holds SerpAPI settings.
type SerpAPIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CasaDosDadosConfig holds the registry search API settings.
type CasaDosDadosConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BrasilAPIConfig holds BrasilAPI settings.
type BrasilAPIConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ReceitaWSConfig holds ReceitaWS settings. Token is optional; the free tier
// is limited to a few requests per minute.
type ReceitaWSConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CNPJWSConfig holds CNPJ.ws settings.
type CNPJWSConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (last scrape fallback).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScrapeConfig configures website crawling.
type ScrapeConfig struct {
	UserAgent     string   `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes  int      `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	DomainDelayMs int      `yaml:"domain_delay_ms" mapstructure:"domain_delay_ms"`
	ContactPaths  []string `yaml:"contact_paths" mapstructure:"contact_paths"`
	// ExcludePaths are glob patterns never scraped; empty uses the defaults.
	ExcludePaths []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// WaterfallConfig points at the provider ordering file.
type WaterfallConfig struct {
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// CacheConfig configures the HTTP response cache.
type CacheConfig struct {
	// Backend is "memory" or "store".
	Backend        string `yaml:"backend" mapstructure:"backend"`
	DefaultTTLMins int    `yaml:"default_ttl_mins" mapstructure:"default_ttl_mins"`
}

// PacingConfig sets the randomized delays between calls.
type PacingConfig struct {
	LeadMinMs     int `yaml:"lead_min_ms" mapstructure:"lead_min_ms"`
	LeadMaxMs     int `yaml:"lead_max_ms" mapstructure:"lead_max_ms"`
	ProviderMinMs int `yaml:"provider_min_ms" mapstructure:"provider_min_ms"`
	ProviderMaxMs int `yaml:"provider_max_ms" mapstructure:"provider_max_ms"`
}

// RetryConfig configures retries for transient provider errors.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the per-provider circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PricingConfig holds per-call provider rates in USD.
type PricingConfig struct {
	PlacesPerRequest  float64 `yaml:"places_per_request" mapstructure:"places_per_request"`
	SerpAPIPerSearch  float64 `yaml:"serpapi_per_search" mapstructure:"serpapi_per_search"`
	JinaPerMTok       float64 `yaml:"jina_per_mtok" mapstructure:"jina_per_mtok"`
	FirecrawlPerPage  float64 `yaml:"firecrawl_per_page" mapstructure:"firecrawl_per_page"`
	CNPJWSPerRequest  float64 `yaml:"cnpjws_per_request" mapstructure:"cnpjws_per_request"`
	RegistryPerSearch float64 `yaml:"registry_per_search" mapstructure:"registry_per_search"`
}

// ExportConfig configures file export.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("discovery.source", "osm")
	v.SetDefault("discovery.default_limit", 50)
	v.SetDefault("discovery.country_code", "55")
	v.SetDefault("discovery.region", "br")
	v.SetDefault("discovery.language", "pt-BR")
	v.SetDefault("osm.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("osm.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("osm.user_agent", "leads-cli/1.0 (+contact: ops@example.com)")
	v.SetDefault("osm.country_codes", "br")
	v.SetDefault("osm.timeout_secs", 60)
	// Empty defaults register the secret keys so env overrides reach Unmarshal.
	for _, k := range []string{"google.key", "serpapi.key", "casadosdados.key", "receitaws.token", "cnpjws.token", "jina.key", "firecrawl.key"} {
		v.SetDefault(k, "")
	}
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("casadosdados.base_url", "https://api.casadosdados.com.br")
	v.SetDefault("brasilapi.base_url", "https://brasilapi.com.br/api")
	v.SetDefault("receitaws.base_url", "https://receitaws.com.br/v1")
	v.SetDefault("cnpjws.base_url", "https://publica.cnpj.ws")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; leads-cli/1.0)")
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.max_body_bytes", 2<<20)
	v.SetDefault("scrape.domain_delay_ms", 1000)
	v.SetDefault("scrape.contact_paths", []string{"/contato", "/contact", "/fale-conosco", "/sobre"})
	v.SetDefault("waterfall.config_path", "waterfall.yaml")
	v.SetDefault("cache.backend", "store")
	v.SetDefault("cache.default_ttl_mins", 60)
	v.SetDefault("pacing.lead_min_ms", 500)
	v.SetDefault("pacing.lead_max_ms", 3000)
	v.SetDefault("pacing.provider_min_ms", 200)
	v.SetDefault("pacing.provider_max_ms", 1000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)
	v.SetDefault("pricing.places_per_request", 0.032)
	v.SetDefault("pricing.serpapi_per_search", 0.015)
	v.SetDefault("pricing.jina_per_mtok", 0.02)
	v.SetDefault("pricing.firecrawl_per_page", 0.00633)
	v.SetDefault("pricing.cnpjws_per_request", 0)
	v.SetDefault("pricing.registry_per_search", 0)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.format", "csv")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
