package waterfall

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resilience"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

// step is one resolved waterfall entry.
type step struct {
	cfg ProviderConfig
	p   provider.Provider
}

// Executor runs the enrichment waterfall for one lead at a time.
type Executor struct {
	steps      []step
	breakers   *resilience.Breakers
	pacer      Pacer
	enrichable []string
}

// NewExecutor resolves the configured providers against the registry.
// A nil breaker set disables circuit breaking.
func NewExecutor(cfg *Config, registry *provider.Registry, breakers *resilience.Breakers) (*Executor, error) {
	if err := cfg.Validate(registry); err != nil {
		return nil, err
	}

	e := &Executor{breakers: breakers}
	if cfg.Defaults.Pacing != nil {
		e.pacer = cfg.Defaults.Pacing.ProviderPacer()
	}
	for _, pc := range cfg.Providers {
		p := registry.Get(pc.Name)
		e.steps = append(e.steps, step{cfg: pc, p: p})
		for _, f := range p.SupportedFields() {
			if !slices.Contains(e.enrichable, f) {
				e.enrichable = append(e.enrichable, f)
			}
		}
	}
	return e, nil
}

// WithPacer replaces the delay between provider calls.
func (e *Executor) WithPacer(p Pacer) *Executor {
	e.pacer = p
	return e
}

// Providers returns the provider names in query order.
func (e *Executor) Providers() []string {
	names := make([]string, len(e.steps))
	for i, s := range e.steps {
		names[i] = s.cfg.Name
	}
	return names
}

// Attempt records what happened with one provider for one lead.
type Attempt struct {
	Provider   string        `json:"provider"`
	Skipped    string        `json:"skipped,omitempty"`
	Changed    []string      `json:"changed,omitempty"`
	Kind       provider.Kind `json:"kind,omitempty"`
	DurationMs int64         `json:"duration_ms"`
}

// Report is the outcome of running the waterfall for one lead.
type Report struct {
	Lead     model.Lead              `json:"lead"`
	Failures []model.ProviderFailure `json:"failures,omitempty"`
	Attempts []Attempt               `json:"attempts"`
	Changed  []string                `json:"changed,omitempty"`
	CostUSD  float64                 `json:"cost_usd"`
}

// Enriched reports whether any provider added a value.
func (r *Report) Enriched() bool { return len(r.Changed) > 0 }

// Enrich runs the waterfall and returns the enriched lead and the provider
// failures met on the way.
func (e *Executor) Enrich(ctx context.Context, lead model.Lead) (model.Lead, []model.ProviderFailure) {
	r := e.Run(ctx, lead)
	return r.Lead, r.Failures
}

// Run walks the providers in order, merging each successful result into the
// lead with first-non-empty-wins. Provider failures are recorded and the walk
// continues. It never fails: the lead comes back enriched as far as the
// providers allowed.
func (e *Executor) Run(ctx context.Context, lead model.Lead) *Report {
	r := &Report{Lead: lead.Clone()}
	called := false

	for _, s := range e.steps {
		if r.Lead.HasAll(e.enrichable) {
			break
		}

		name := s.cfg.Name
		if reason := e.skipReason(s, r.Lead); reason != "" {
			r.Attempts = append(r.Attempts, Attempt{Provider: name, Skipped: reason})
			continue
		}

		var br *resilience.Breaker
		if e.breakers != nil {
			br = e.breakers.Get(name)
			if err := br.Allow(); err != nil {
				e.fail(r, name, Attempt{Provider: name, Skipped: "circuit open"}, provider.Classify(name, err))
				continue
			}
		}

		// Cancellation is honored between leads, so the current lead
		// finishes its walk.
		if called {
			_ = e.pacer.Wait(context.WithoutCancel(ctx))
		}
		called = true

		start := time.Now()
		res, err := e.call(ctx, s, r.Lead)
		att := Attempt{Provider: name, DurationMs: time.Since(start).Milliseconds()}
		if br != nil {
			br.Record(err)
		}
		if err != nil {
			e.fail(r, name, att, provider.Classify(name, err))
			continue
		}

		r.CostUSD += res.CostUSD
		if res.MatchConfidence < s.cfg.MinMatchConfidence {
			e.fail(r, name, att, &provider.Error{
				Provider: name,
				Kind:     provider.KindNoMatch,
				Err:      eris.Errorf("match confidence %.2f below %.2f", res.MatchConfidence, s.cfg.MinMatchConfidence),
			})
			continue
		}

		att.Changed = r.Lead.Merge(name, res.Fields)
		for _, f := range att.Changed {
			if !slices.Contains(r.Changed, f) {
				r.Changed = append(r.Changed, f)
			}
		}
		r.Attempts = append(r.Attempts, att)

		zap.L().Debug("waterfall: provider merged",
			zap.String("lead", r.Lead.Name),
			zap.String("provider", name),
			zap.Strings("changed", att.Changed),
			zap.Float64("match_confidence", res.MatchConfidence),
		)
	}
	return r
}

// skipReason returns why a provider is not worth calling for lead, or "".
func (e *Executor) skipReason(s step, lead model.Lead) string {
	if lead.HasAll(s.p.SupportedFields()) {
		return "fields already set"
	}
	if !s.p.Ready(lead) {
		return "missing inputs"
	}
	return ""
}

// call runs one provider under its own deadline. The call context is
// detached from ctx so cancelling a run never cuts an in-flight request
// short; the per-provider timeout still bounds it.
func (e *Executor) call(ctx context.Context, s step, lead model.Lead) (*provider.Result, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout())
	defer cancel()

	res, err := s.p.Enrich(callCtx, lead)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, eris.Wrapf(context.DeadlineExceeded, "%s: timed out after %s", s.cfg.Name, s.cfg.Timeout())
		}
		return nil, err
	}
	if res == nil {
		return nil, eris.Wrap(provider.ErrNoMatch, s.cfg.Name)
	}
	return res, nil
}

func (e *Executor) fail(r *Report, name string, att Attempt, pe *provider.Error) {
	att.Kind = pe.Kind
	r.Attempts = append(r.Attempts, att)
	r.Failures = append(r.Failures, model.ProviderFailure{
		Lead:     r.Lead.Name,
		Provider: name,
		Kind:     string(pe.Kind),
		Message:  pe.Err.Error(),
	})
	log := zap.L().Warn
	if pe.Kind == provider.KindNoMatch {
		log = zap.L().Debug
	}
	log("waterfall: provider failed",
		zap.String("lead", r.Lead.Name),
		zap.String("provider", name),
		zap.String("kind", string(pe.Kind)),
		zap.Error(pe.Err),
	)
}
