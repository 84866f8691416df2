package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/discovery"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
	"github.com/sells-group/leads-cli/internal/waterfall"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

type fakeSource struct {
	leads []model.Lead
	err   error
}

func (f *fakeSource) Name() string    { return "fake" }
func (f *fakeSource) MaxResults() int { return 100 }
func (f *fakeSource) Discover(_ context.Context, _ model.Query) ([]model.Lead, error) {
	return f.leads, f.err
}

// fakeEnricher applies fill to each lead and reports what changed.
type fakeEnricher struct {
	fill  map[string]model.FieldSet
	calls int
	after func(n int)
}

func (f *fakeEnricher) Run(_ context.Context, lead model.Lead) *waterfall.Report {
	f.calls++
	r := &waterfall.Report{Lead: lead.Clone()}
	if fs, ok := f.fill[lead.Name]; ok {
		r.Changed = r.Lead.Merge("fake_provider", fs)
		r.CostUSD = 0.01
	} else {
		r.Failures = []model.ProviderFailure{{Lead: lead.Name, Provider: "fake_provider", Kind: string(provider.KindNoMatch), Message: "no match"}}
	}
	if f.after != nil {
		f.after(f.calls)
	}
	return r
}

type stubProvider struct {
	name   string
	fields []string
	ready  func(model.Lead) bool
	result model.FieldSet
	conf   float64
}

func (s *stubProvider) Name() string              { return s.name }
func (s *stubProvider) SupportedFields() []string { return s.fields }
func (s *stubProvider) Ready(l model.Lead) bool   { return s.ready == nil || s.ready(l) }
func (s *stubProvider) Enrich(_ context.Context, _ model.Lead) (*provider.Result, error) {
	return &provider.Result{Provider: s.name, Fields: s.result, MatchConfidence: s.conf, CostUSD: 0.002}, nil
}

func query() model.Query {
	return model.Query{Niche: "dentista", Location: "Belo Horizonte, MG"}
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestPipeline_RegistryThenWebsite(t *testing.T) {
	registry := &stubProvider{
		name:   "casadosdados",
		fields: []string{model.FieldRegistrationID, model.FieldLegalName, model.FieldPhone},
		result: model.FieldSet{RegistrationID: "12345678000199", LegalName: "ACME ODONTOLOGIA LTDA", Phone: "+55 31 3333-4444"},
		conf:   1,
	}
	website := &stubProvider{
		name:   "website",
		fields: []string{model.FieldEmail, model.FieldSocialLinks},
		ready:  func(l model.Lead) bool { return l.Website != "" },
		result: model.FieldSet{Email: "contato@acmedental.com.br"},
		conf:   1,
	}
	cfg := &waterfall.Config{
		Defaults: waterfall.Defaults{TimeoutSecs: 5, MinMatchConfidence: 0.7},
		Providers: []waterfall.ProviderConfig{
			{Name: "casadosdados", TimeoutSecs: 5, MinMatchConfidence: 0.7},
			{Name: "website", TimeoutSecs: 5, MinMatchConfidence: 0.7},
		},
	}
	exec, err := waterfall.NewExecutor(cfg, provider.NewRegistry(registry, website), nil)
	require.NoError(t, err)

	src := &fakeSource{leads: []model.Lead{{Name: "Acme Dental", Website: "https://acmedental.com.br"}}}
	res, err := New(src, exec).Run(context.Background(), query())
	require.NoError(t, err)

	require.Len(t, res.Leads, 1)
	l := res.Leads[0]
	assert.Equal(t, "Acme Dental", l.Name)
	assert.Equal(t, "ACME ODONTOLOGIA LTDA", l.LegalName)
	assert.Equal(t, "3133334444", l.Phone)
	assert.Equal(t, "contato@acmedental.com.br", l.Email)
	assert.Equal(t, model.TierHigh, l.Tier())
	assert.Equal(t, []string{"fake", "casadosdados", "website"}, l.Sources)
	assert.Equal(t, model.OutcomeEnriched, res.Outcome)
	assert.Equal(t, model.RunStatusComplete, res.Status)
	assert.Equal(t, 1, res.TierCounts["high"])
	assert.InDelta(t, 0.004, res.CostUSD, 1e-9)
	assert.Equal(t, "fake", res.Query.Source)
	assert.NotEmpty(t, res.RunID)
}

func TestPipeline_DeduplicatesCaseInsensitive(t *testing.T) {
	src := &fakeSource{leads: []model.Lead{
		{Name: "Acme Dental", Address: "Rua A, 100"},
		{Name: "acme dental", Address: "rua a, 100"},
	}}
	res, err := New(src, &fakeEnricher{}).Run(context.Background(), query())
	require.NoError(t, err)

	assert.Len(t, res.Leads, 1)
	assert.Equal(t, 2, res.Discovered)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Duplicates)
}

func TestPipeline_NoLeads(t *testing.T) {
	res, err := New(&fakeSource{}, &fakeEnricher{}).Run(context.Background(), query())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNoLeads, res.Outcome)
	assert.Empty(t, res.Leads)
}

func TestPipeline_NoneEnriched(t *testing.T) {
	src := &fakeSource{leads: []model.Lead{{Name: "Padaria"}, {Name: "Mercado"}}}
	res, err := New(src, &fakeEnricher{}).Run(context.Background(), query())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNoneEnriched, res.Outcome)
	assert.Len(t, res.Failures, 2)
	assert.Equal(t, 2, res.TierCounts["very_low"])
}

func TestPipeline_MalformedCounted(t *testing.T) {
	src := &fakeSource{leads: []model.Lead{{Name: "Padaria"}, {Name: "  "}}}
	res, err := New(src, &fakeEnricher{}).Run(context.Background(), query())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discovered)
	assert.Equal(t, 1, res.Malformed)
}

func TestPipeline_DiscoveryFailure(t *testing.T) {
	st := newStore(t)
	src := &fakeSource{err: eris.New("overpass down")}
	p := New(src, &fakeEnricher{}, WithStore(st))

	res, err := p.Run(context.Background(), query())
	require.Error(t, err)
	var df *discovery.DiscoveryFailure
	require.ErrorAs(t, err, &df)
	assert.Equal(t, "fake", df.Source)
	assert.Equal(t, model.RunStatusFailed, res.Status)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "overpass down")
}

func TestPipeline_CancelBetweenLeads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{leads: []model.Lead{{Name: "A"}, {Name: "B"}, {Name: "C"}}}
	enr := &fakeEnricher{
		fill: map[string]model.FieldSet{"A": {Phone: "3133334444"}},
		after: func(n int) {
			if n == 1 {
				cancel()
			}
		},
	}
	res, err := New(src, enr).Run(ctx, query())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCancelled, res.Status)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, enr.calls)
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "A", res.Leads[0].Name)
}

func TestPipeline_LeadPacing(t *testing.T) {
	src := &fakeSource{leads: []model.Lead{{Name: "A"}, {Name: "B"}, {Name: "C"}}}
	start := time.Now()
	_, err := New(src, &fakeEnricher{}, WithLeadPacer(waterfall.NewPacer(20*time.Millisecond, 20*time.Millisecond))).
		Run(context.Background(), query())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPipeline_SortedByTier(t *testing.T) {
	src := &fakeSource{leads: []model.Lead{
		{Name: "Low1"},
		{Name: "High"},
		{Name: "Low2"},
		{Name: "Medium"},
	}}
	enr := &fakeEnricher{fill: map[string]model.FieldSet{
		"Low1":   {Phone: "3111111111"},
		"High":   {Email: "a@b.com.br", Website: "https://b.com.br"},
		"Low2":   {Phone: "3122222222"},
		"Medium": {Phone: "3133333333", Website: "https://m.com.br"},
	}}
	res, err := New(src, enr).Run(context.Background(), query())
	require.NoError(t, err)

	var names []string
	for _, l := range res.Leads {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"High", "Medium", "Low1", "Low2"}, names)
}

func TestPipeline_PersistsAndMergesPreviousRun(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	first := &fakeSource{leads: []model.Lead{{Name: "Acme", RegistrationID: "12345678000190"}}}
	enr := &fakeEnricher{fill: map[string]model.FieldSet{"Acme": {Email: "contato@acme.com.br"}}}
	res1, err := New(first, enr, WithStore(st)).Run(ctx, query())
	require.NoError(t, err)

	saved, err := st.GetRun(ctx, res1.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, saved.Status)
	require.NotNil(t, saved.Result)
	assert.Len(t, saved.Result.Leads, 1)

	second := &fakeSource{leads: []model.Lead{{Name: "Acme Ltda", RegistrationID: "12.345.678/0001-90"}}}
	res2, err := New(second, &fakeEnricher{}, WithStore(st)).Run(ctx, query())
	require.NoError(t, err)
	assert.Equal(t, 1, res2.Repeated)
	assert.Equal(t, "contato@acme.com.br", res2.Leads[0].Email)
}

func TestPipeline_Progress(t *testing.T) {
	src := &fakeSource{leads: []model.Lead{{Name: "A"}, {Name: "B"}}}
	var seen []Progress
	_, err := New(src, &fakeEnricher{}, WithProgress(func(p Progress) { seen = append(seen, p) })).
		Run(context.Background(), query())
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, 2, seen[1].Index)
	assert.Equal(t, 2, seen[1].Total)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, model.OutcomeNoLeads, Outcome(0, 0))
	assert.Equal(t, model.OutcomeNoneEnriched, Outcome(3, 0))
	assert.Equal(t, model.OutcomeEnriched, Outcome(3, 1))
}
