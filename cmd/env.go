package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/cache"
	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/discovery"
	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/registry"
	"github.com/sells-group/leads-cli/internal/resilience"
	"github.com/sells-group/leads-cli/internal/scrape"
	"github.com/sells-group/leads-cli/internal/store"
	"github.com/sells-group/leads-cli/internal/waterfall"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
	"github.com/sells-group/leads-cli/pkg/firecrawl"
	"github.com/sells-group/leads-cli/pkg/google"
	"github.com/sells-group/leads-cli/pkg/jina"
	"github.com/sells-group/leads-cli/pkg/osm"
	"github.com/sells-group/leads-cli/pkg/serpapi"
)

// appEnv holds the store, clients and waterfall shared by the run, enrich
// and serve commands.
type appEnv struct {
	Store     store.Store
	HTTP      *fetcher.Client
	Calc      *cost.Calculator
	Waterfall *waterfall.Config
	Executor  *waterfall.Executor
	search    *registry.CasaDosDados
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates config for mode and builds everything a run needs.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	if cfg.Discovery.CountryCode != "" {
		model.DefaultCountryCode = cfg.Discovery.CountryCode
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	wf, err := waterfall.LoadConfigOrDefault(cfg.Waterfall.ConfigPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if wf.Defaults.Pacing == nil {
		wf.Defaults.Pacing = &waterfall.PacingConfig{
			LeadMinMs:     cfg.Pacing.LeadMinMs,
			LeadMaxMs:     cfg.Pacing.LeadMaxMs,
			ProviderMinMs: cfg.Pacing.ProviderMinMs,
			ProviderMaxMs: cfg.Pacing.ProviderMaxMs,
		}
	}

	httpClient := fetcher.New(fetcher.Options{
		Timeout: 60 * time.Second,
		Retry:   retryPolicy(cfg.Retry),
		Cache:   cache.NewLoader(cacheBackend(st)),
	})
	for _, pc := range wf.Providers {
		httpClient.SetRate(pc.Name, pc.RatePerMin)
	}

	calc := cost.NewCalculator(cost.Rates(cfg.Pricing))
	search := registry.NewCasaDosDados(httpClient, registryOpts(cfg.CasaDosDados.BaseURL, cfg.CasaDosDados.Key, wf, "casadosdados", calc)...)
	reg := buildRegistry(httpClient, calc, wf, search)

	exec, err := waterfall.NewExecutor(wf, reg, resilience.NewBreakers(resilience.BreakerConfig{
		Threshold:     cfg.Circuit.FailureThreshold,
		Cooldown:      time.Duration(cfg.Circuit.ResetTimeoutSecs) * time.Second,
		Counts:        provider.TripsBreaker,
		OnStateChange: logBreaker,
	}))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Info("waterfall ready",
		zap.Strings("providers", exec.Providers()),
		zap.String("cache", cfg.Cache.Backend),
	)

	return &appEnv{
		Store:     st,
		HTTP:      httpClient,
		Calc:      calc,
		Waterfall: wf,
		Executor:  exec,
		search:    search,
	}, nil
}

// buildRegistry registers every provider the waterfall config may name.
func buildRegistry(f *fetcher.Client, calc *cost.Calculator, wf *waterfall.Config, search *registry.CasaDosDados) *provider.Registry {
	jinaClient := newJinaClient(f, ttlFor(wf, "social"))
	firecrawlClient := firecrawl.NewClient(f, cfg.Firecrawl.Key,
		firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL),
		firecrawl.WithCacheTTL(ttlFor(wf, "website")),
	)

	local := scrape.NewLocalScraper(
		scrape.WithUserAgent(cfg.Scrape.UserAgent),
		scrape.WithTimeout(time.Duration(cfg.Scrape.TimeoutSecs)*time.Second),
		scrape.WithMaxBodyBytes(cfg.Scrape.MaxBodyBytes),
		scrape.WithDomainDelay(time.Duration(cfg.Scrape.DomainDelayMs)*time.Millisecond),
	)
	scrapers := []scrape.Scraper{local}
	if cfg.Jina.Key != "" {
		scrapers = append(scrapers, scrape.NewJinaAdapter(newJinaClient(f, ttlFor(wf, "website")), calc))
	}
	if cfg.Firecrawl.Key != "" {
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(firecrawlClient, calc))
	}
	chain := scrape.NewChain(scrape.NewPathMatcher(cfg.Scrape.ExcludePaths), scrapers...)

	rate := func(name string) float64 {
		pc, _ := wf.Get(name)
		return pc.RatePerMin
	}

	return provider.NewRegistry(
		search,
		registry.NewBrasilAPI(f, registryOpts(cfg.BrasilAPI.BaseURL, "", wf, "brasilapi", calc)...),
		registry.NewReceitaWS(f, registryOpts(cfg.ReceitaWS.BaseURL, cfg.ReceitaWS.Token, wf, "receitaws", calc)...),
		registry.NewCNPJWS(f, registryOpts(cfg.CNPJWS.BaseURL, cfg.CNPJWS.Token, wf, "cnpjws", calc)...),
		provider.WithRate(scrape.NewWebsiteProvider(chain, cfg.Scrape.ContactPaths), rate("website")),
		provider.WithRate(scrape.NewSocialProvider(jinaClient, calc), rate("social")),
	)
}

func newJinaClient(f *fetcher.Client, ttl time.Duration) jina.Client {
	opts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL), jina.WithCacheTTL(ttl)}
	if cfg.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	return jina.NewClient(f, cfg.Jina.Key, opts...)
}

func registryOpts(baseURL, token string, wf *waterfall.Config, name string, calc *cost.Calculator) []registry.Option {
	opts := []registry.Option{
		registry.WithCacheTTL(ttlFor(wf, name)),
		registry.WithCalculator(calc),
	}
	if baseURL != "" {
		opts = append(opts, registry.WithBaseURL(baseURL))
	}
	if token != "" {
		opts = append(opts, registry.WithToken(token))
	}
	return opts
}

// ttlFor returns the provider's cache TTL, or the configured default for
// providers the waterfall does not list.
func ttlFor(wf *waterfall.Config, name string) time.Duration {
	if pc, ok := wf.Get(name); ok && pc.CacheTTLMins > 0 {
		return pc.CacheTTL()
	}
	return time.Duration(cfg.Cache.DefaultTTLMins) * time.Minute
}

func cacheBackend(st store.Store) cache.Backend {
	if cfg.Cache.Backend == "memory" {
		return cache.NewMemory()
	}
	return cache.NewStore(st)
}

func retryPolicy(rc config.RetryConfig) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		Attempts:  rc.MaxAttempts,
		BaseDelay: time.Duration(rc.InitialBackoffMs) * time.Millisecond,
		MaxDelay:  time.Duration(rc.MaxBackoffMs) * time.Millisecond,
		Factor:    rc.Multiplier,
		Jitter:    rc.JitterFraction,
		OnRetry:   resilience.LogRetry("fetcher", "request"),
	}
}

func logBreaker(name string, from, to resilience.CircuitState) {
	zap.L().Warn("circuit breaker state change",
		zap.String("provider", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// buildSource returns the discovery source by name. file is only used by
// the cnpjlist source.
func (e *appEnv) buildSource(name, file string) (discovery.Source, error) {
	defaultTTL := time.Duration(cfg.Cache.DefaultTTLMins) * time.Minute
	switch name {
	case "osm":
		return discovery.NewOSM(osm.NewClient(e.HTTP, cfg.OSM.UserAgent,
			osm.WithNominatimURL(cfg.OSM.NominatimURL),
			osm.WithOverpassURL(cfg.OSM.OverpassURL),
			osm.WithCountryCodes(cfg.OSM.CountryCodes),
			osm.WithCacheTTL(defaultTTL),
		)), nil
	case "places":
		return discovery.NewPlaces(google.NewClient(e.HTTP, cfg.Google.Key,
			google.WithBaseURL(cfg.Google.BaseURL),
			google.WithCacheTTL(defaultTTL),
		), e.Calc, cfg.Discovery.Region, cfg.Discovery.Language), nil
	case "serpapi":
		return discovery.NewSerpAPI(serpapi.NewClient(e.HTTP, cfg.SerpAPI.Key,
			serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
			serpapi.WithCacheTTL(defaultTTL),
		), e.Calc, cfg.Discovery.Region, cfg.Discovery.Language), nil
	case "cnae":
		return discovery.NewCNAE(e.search), nil
	case "cnpjlist":
		if file == "" {
			return nil, eris.New("the cnpjlist source needs a file")
		}
		return discovery.NewCNPJList(file), nil
	default:
		return nil, eris.Errorf("unknown discovery source %q", name)
	}
}

// newPipeline binds a source to the shared executor.
func (e *appEnv) newPipeline(src discovery.Source, opts ...pipeline.Option) *pipeline.Pipeline {
	opts = append([]pipeline.Option{
		pipeline.WithStore(e.Store),
		pipeline.WithLeadPacer(e.Waterfall.Defaults.Pacing.LeadPacer()),
	}, opts...)
	return pipeline.New(src, e.Executor, opts...)
}
