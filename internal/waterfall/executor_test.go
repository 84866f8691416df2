package waterfall

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resilience"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	name            string
	supportedFields []string
	ready           func(model.Lead) bool
	enrich          func(ctx context.Context, lead model.Lead) (*provider.Result, error)
	calls           atomic.Int32
}

func (m *mockProvider) Name() string              { return m.name }
func (m *mockProvider) SupportedFields() []string { return m.supportedFields }
func (m *mockProvider) Ready(lead model.Lead) bool {
	if m.ready == nil {
		return true
	}
	return m.ready(lead)
}
func (m *mockProvider) Enrich(ctx context.Context, lead model.Lead) (*provider.Result, error) {
	m.calls.Add(1)
	return m.enrich(ctx, lead)
}

func returns(fs model.FieldSet, confidence float64) func(context.Context, model.Lead) (*provider.Result, error) {
	return func(context.Context, model.Lead) (*provider.Result, error) {
		return &provider.Result{Fields: fs, MatchConfidence: confidence, CostUSD: 0.01}, nil
	}
}

func fails(err error) func(context.Context, model.Lead) (*provider.Result, error) {
	return func(context.Context, model.Lead) (*provider.Result, error) { return nil, err }
}

func newTestExecutor(t *testing.T, breakers *resilience.Breakers, ps ...*mockProvider) *Executor {
	t.Helper()
	cfg := &Config{Defaults: Defaults{TimeoutSecs: 5, MinMatchConfidence: 0.7}}
	reg := provider.NewRegistry()
	for _, p := range ps {
		reg.Register(p)
		cfg.Providers = append(cfg.Providers, ProviderConfig{Name: p.name})
	}
	cfg.applyDefaults()
	e, err := NewExecutor(cfg, reg, breakers)
	require.NoError(t, err)
	return e
}

func TestExecutor_RegistryThenWebsite(t *testing.T) {
	registry := &mockProvider{
		name:            "casadosdados",
		supportedFields: []string{model.FieldRegistrationID, model.FieldLegalName, model.FieldPhone},
		enrich: returns(model.FieldSet{
			RegistrationID: "12345678000199",
			LegalName:      "ACME ODONTOLOGIA LTDA",
			Phone:          "+55 (31) 3333-4444",
		}, 1.0),
	}
	website := &mockProvider{
		name:            "website",
		supportedFields: []string{model.FieldEmail, model.FieldSocialLinks},
		ready:           func(l model.Lead) bool { return l.Website != "" },
		enrich:          returns(model.FieldSet{Email: "contato@acmedental.com.br"}, 0.9),
	}

	e := newTestExecutor(t, nil, registry, website)
	lead := model.Lead{Name: "Acme Dental", Website: "https://acmedental.com.br", Sources: []string{"osm"}}

	r := e.Run(context.Background(), lead)
	assert.Empty(t, r.Failures)
	assert.Equal(t, "Acme Dental", r.Lead.Name)
	assert.Equal(t, "ACME ODONTOLOGIA LTDA", r.Lead.LegalName)
	assert.Equal(t, "12345678000199", r.Lead.RegistrationID)
	assert.Equal(t, "3133334444", r.Lead.Phone)
	assert.Equal(t, "contato@acmedental.com.br", r.Lead.Email)
	assert.Equal(t, []string{"osm", "casadosdados", "website"}, r.Lead.Sources)
	assert.Equal(t, model.TierHigh, r.Lead.Tier())
	assert.True(t, r.Enriched())
	assert.InDelta(t, 0.02, r.CostUSD, 1e-9)

	assert.Empty(t, lead.Sources[1:], "input lead is not mutated")
}

func TestExecutor_PopulatedFieldsUnchanged(t *testing.T) {
	first := &mockProvider{
		name:            "brasilapi",
		supportedFields: []string{model.FieldPhone, model.FieldEmail},
		enrich:          returns(model.FieldSet{Phone: "3133334444"}, 1),
	}
	second := &mockProvider{
		name:            "receitaws",
		supportedFields: []string{model.FieldPhone, model.FieldEmail},
		enrich:          returns(model.FieldSet{Phone: "1199998888", Email: "a@b.com"}, 1),
	}

	e := newTestExecutor(t, nil, first, second)
	lead, failures := e.Enrich(context.Background(), model.Lead{Name: "Padaria"})
	assert.Empty(t, failures)
	assert.Equal(t, "3133334444", lead.Phone)
	assert.Equal(t, "a@b.com", lead.Email)
}

func TestExecutor_TimeoutDoesNotBlockLaterProviders(t *testing.T) {
	slow := &mockProvider{
		name:            "receitaws",
		supportedFields: []string{model.FieldPhone},
		enrich: func(ctx context.Context, _ model.Lead) (*provider.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	fast := &mockProvider{
		name:            "cnpjws",
		supportedFields: []string{model.FieldPhone},
		enrich:          returns(model.FieldSet{Phone: "3133334444"}, 1),
	}

	cfg := &Config{Providers: []ProviderConfig{{Name: "receitaws", TimeoutSecs: 1}, {Name: "cnpjws"}}}
	cfg.applyDefaults()
	e, err := NewExecutor(cfg, provider.NewRegistry(slow, fast), nil)
	require.NoError(t, err)

	start := time.Now()
	r := e.Run(context.Background(), model.Lead{Name: "Oficina"})
	assert.Less(t, time.Since(start), 3*time.Second)

	require.Len(t, r.Failures, 1)
	assert.Equal(t, "receitaws", r.Failures[0].Provider)
	assert.Equal(t, string(provider.KindTimeout), r.Failures[0].Kind)
	assert.Equal(t, "3133334444", r.Lead.Phone)
	assert.Equal(t, int32(1), fast.calls.Load())
}

func TestExecutor_FailuresRecordedAndWalkContinues(t *testing.T) {
	limited := &mockProvider{
		name:            "receitaws",
		supportedFields: []string{model.FieldPhone},
		enrich:          fails(eris.Wrap(&fetcher.StatusError{Service: "receitaws", StatusCode: 429}, "receitaws: lookup")),
	}
	garbled := &mockProvider{
		name:            "brasilapi",
		supportedFields: []string{model.FieldPhone},
		enrich:          fails(eris.Wrap(provider.ErrMalformed, "brasilapi: decode")),
	}
	down := &mockProvider{
		name:            "cnpjws",
		supportedFields: []string{model.FieldPhone},
		enrich:          fails(eris.New("connection refused")),
	}

	e := newTestExecutor(t, nil, limited, garbled, down)
	r := e.Run(context.Background(), model.Lead{Name: "Mercado"})

	require.Len(t, r.Failures, 3)
	assert.Equal(t, string(provider.KindRateLimited), r.Failures[0].Kind)
	assert.Equal(t, string(provider.KindParseFailure), r.Failures[1].Kind)
	assert.Equal(t, string(provider.KindUnavailable), r.Failures[2].Kind)
	assert.Equal(t, "Mercado", r.Failures[0].Lead)
	assert.False(t, r.Enriched())
}

func TestExecutor_LowConfidenceIsNoMatch(t *testing.T) {
	fuzzy := &mockProvider{
		name:            "casadosdados",
		supportedFields: []string{model.FieldRegistrationID},
		enrich:          returns(model.FieldSet{RegistrationID: "12345678000199"}, 0.5),
	}

	e := newTestExecutor(t, nil, fuzzy)
	r := e.Run(context.Background(), model.Lead{Name: "Hotel Central"})

	require.Len(t, r.Failures, 1)
	assert.Equal(t, string(provider.KindNoMatch), r.Failures[0].Kind)
	assert.Empty(t, r.Lead.RegistrationID)
	assert.Empty(t, r.Lead.Sources)
}

func TestExecutor_SkipsProviders(t *testing.T) {
	needsID := &mockProvider{
		name:            "brasilapi",
		supportedFields: []string{model.FieldLegalName},
		ready:           func(l model.Lead) bool { return l.RegistrationID != "" },
		enrich:          returns(model.FieldSet{LegalName: "X"}, 1),
	}
	phoneOnly := &mockProvider{
		name:            "places",
		supportedFields: []string{model.FieldPhone},
		enrich:          returns(model.FieldSet{Phone: "3100000000"}, 1),
	}

	e := newTestExecutor(t, nil, needsID, phoneOnly)
	r := e.Run(context.Background(), model.Lead{Name: "Pet Shop", Phone: "3133334444"})

	assert.Zero(t, needsID.calls.Load())
	assert.Zero(t, phoneOnly.calls.Load())
	require.Len(t, r.Attempts, 2)
	assert.Equal(t, "missing inputs", r.Attempts[0].Skipped)
	assert.Equal(t, "fields already set", r.Attempts[1].Skipped)
	assert.Empty(t, r.Failures)
}

func TestExecutor_StopsWhenEverythingSet(t *testing.T) {
	first := &mockProvider{
		name:            "receitaws",
		supportedFields: []string{model.FieldPhone},
		enrich:          returns(model.FieldSet{Phone: "3133334444"}, 1),
	}
	second := &mockProvider{
		name:            "cnpjws",
		supportedFields: []string{model.FieldPhone},
		enrich:          returns(model.FieldSet{Phone: "3100000000"}, 1),
	}

	e := newTestExecutor(t, nil, first, second)
	r := e.Run(context.Background(), model.Lead{Name: "Academia"})
	assert.Len(t, r.Attempts, 1)
	assert.Zero(t, second.calls.Load())
}

func TestExecutor_OpenBreakerSkipsProvider(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.BreakerConfig{Threshold: 1, Cooldown: time.Hour, Counts: provider.TripsBreaker})
	flaky := &mockProvider{
		name:            "cnpjws",
		supportedFields: []string{model.FieldPhone},
		enrich:          fails(&fetcher.StatusError{StatusCode: 503}),
	}

	e := newTestExecutor(t, breakers, flaky)
	e.Run(context.Background(), model.Lead{Name: "A"})
	assert.Equal(t, resilience.CircuitOpen, breakers.Get("cnpjws").State())

	r := e.Run(context.Background(), model.Lead{Name: "B"})
	assert.Equal(t, int32(1), flaky.calls.Load())
	require.Len(t, r.Failures, 1)
	assert.Equal(t, string(provider.KindUnavailable), r.Failures[0].Kind)
	assert.Equal(t, "circuit open", r.Attempts[0].Skipped)
}

func TestExecutor_NoMatchDoesNotTripBreaker(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.BreakerConfig{Threshold: 1, Cooldown: time.Hour, Counts: provider.TripsBreaker})
	miss := &mockProvider{
		name:            "casadosdados",
		supportedFields: []string{model.FieldRegistrationID},
		enrich:          fails(provider.ErrNoMatch),
	}

	e := newTestExecutor(t, breakers, miss)
	e.Run(context.Background(), model.Lead{Name: "A"})
	e.Run(context.Background(), model.Lead{Name: "B"})
	assert.Equal(t, int32(2), miss.calls.Load())
	assert.Equal(t, resilience.CircuitClosed, breakers.Get("casadosdados").State())
}

func TestExecutor_CancelledRunFinishesCurrentLead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	first := &mockProvider{
		name:            "receitaws",
		supportedFields: []string{model.FieldPhone},
		enrich: func(callCtx context.Context, _ model.Lead) (*provider.Result, error) {
			cancel()
			if callCtx.Err() != nil {
				return nil, callCtx.Err()
			}
			return &provider.Result{Fields: model.FieldSet{Phone: "3133334444"}, MatchConfidence: 1}, nil
		},
	}
	second := &mockProvider{
		name:            "website",
		supportedFields: []string{model.FieldEmail},
		enrich:          returns(model.FieldSet{Email: "a@b.com"}, 1),
	}

	e := newTestExecutor(t, nil, first, second)
	r := e.Run(ctx, model.Lead{Name: "Lanchonete"})

	assert.Equal(t, "3133334444", r.Lead.Phone)
	assert.Equal(t, "a@b.com", r.Lead.Email)
	assert.Equal(t, int32(1), second.calls.Load())
	require.Len(t, r.Attempts, 2)
	assert.Equal(t, "website", r.Attempts[1].Provider)
	assert.Empty(t, r.Failures)
}

func TestExecutor_NilResultIsNoMatch(t *testing.T) {
	empty := &mockProvider{
		name:            "social",
		supportedFields: []string{model.FieldSocialLinks},
		enrich:          func(context.Context, model.Lead) (*provider.Result, error) { return nil, nil },
	}
	e := newTestExecutor(t, nil, empty)
	r := e.Run(context.Background(), model.Lead{Name: "A"})
	require.Len(t, r.Failures, 1)
	assert.Equal(t, string(provider.KindNoMatch), r.Failures[0].Kind)
}

func TestNewExecutor_UnknownProvider(t *testing.T) {
	cfg := &Config{Providers: []ProviderConfig{{Name: "clearbit"}}}
	_, err := NewExecutor(cfg, provider.NewRegistry(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider clearbit")
}

func TestExecutor_Providers(t *testing.T) {
	a := &mockProvider{name: "a", enrich: returns(model.FieldSet{}, 1)}
	b := &mockProvider{name: "b", enrich: returns(model.FieldSet{}, 1)}
	e := newTestExecutor(t, nil, b, a)
	assert.Equal(t, []string{"b", "a"}, e.Providers())
}
