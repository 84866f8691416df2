// Package pipeline runs one lead generation pass: discovery, the enrichment
// waterfall per lead, deduplication and classification.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/dedupe"
	"github.com/sells-group/leads-cli/internal/discovery"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
	"github.com/sells-group/leads-cli/internal/waterfall"
)

// Enricher runs the waterfall for one lead. *waterfall.Executor satisfies it.
type Enricher interface {
	Run(ctx context.Context, lead model.Lead) *waterfall.Report
}

// Progress is reported after each lead leaves the waterfall.
type Progress struct {
	RunID    string
	Index    int
	Total    int
	Lead     string
	Enriched bool
}

// Pipeline wires a discovery source to an enricher.
type Pipeline struct {
	source     discovery.Source
	enricher   Enricher
	store      store.Store
	leadPacer  waterfall.Pacer
	onProgress func(Progress)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore persists runs and enables cross-run deduplication.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithLeadPacer sets the delay between leads.
func WithLeadPacer(pc waterfall.Pacer) Option {
	return func(p *Pipeline) { p.leadPacer = pc }
}

// WithProgress registers a callback run after every lead.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.onProgress = fn }
}

// New creates a Pipeline.
func New(src discovery.Source, enricher Enricher, opts ...Option) *Pipeline {
	p := &Pipeline{source: src, enricher: enricher}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run creates a run record and executes it.
func (p *Pipeline) Run(ctx context.Context, q model.Query) (*model.RunResult, error) {
	run, err := p.Create(ctx, q)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, run)
}

// Create registers a new run in the store, or returns an unsaved run when
// the pipeline has no store.
func (p *Pipeline) Create(ctx context.Context, q model.Query) (*model.Run, error) {
	if q.Source == "" {
		q.Source = p.source.Name()
	}
	if p.store == nil {
		now := time.Now().UTC()
		return &model.Run{ID: uuid.NewString(), Query: q, Status: model.RunStatusRunning, CreatedAt: now, UpdatedAt: now}, nil
	}
	run, err := p.store.CreateRun(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return run, nil
}

// Execute runs discovery and enrichment for run. A discovery failure is
// returned as an error with the run marked failed. Cancellation is checked
// between leads; a cancelled run returns the leads finished so far with
// status cancelled and a nil error.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) (*model.RunResult, error) {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("source", p.source.Name()))
	res := &model.RunResult{
		RunID:     run.ID,
		Query:     run.Query,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	// Bookkeeping must land even after the run is cancelled.
	saveCtx := context.WithoutCancel(ctx)

	disc, err := discovery.Run(ctx, p.source, run.Query)
	if err != nil {
		res.Status = model.RunStatusFailed
		if errors.Is(err, context.Canceled) {
			res.Status = model.RunStatusCancelled
		}
		p.finish(res)
		p.markFailed(saveCtx, run.ID, res, err)
		log.Error("pipeline: discovery failed", zap.Error(err))
		return res, err
	}
	res.Query.Source = disc.Source
	res.Discovered = len(disc.Leads)
	res.Malformed = disc.Malformed
	res.CostUSD = disc.CostUSD

	enriched := make([]model.Lead, 0, len(disc.Leads))
	cancelled := false
	for i, lead := range disc.Leads {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if i > 0 {
			if err := p.leadPacer.Wait(ctx); err != nil {
				cancelled = true
				break
			}
		}

		r := p.enricher.Run(ctx, lead)
		enriched = append(enriched, r.Lead)
		res.Processed++
		res.CostUSD += r.CostUSD
		res.Failures = append(res.Failures, r.Failures...)
		if r.Enriched() {
			res.Enriched++
		}

		log.Debug("pipeline: lead done",
			zap.Int("index", i+1),
			zap.Int("total", len(disc.Leads)),
			zap.String("lead", r.Lead.Name),
			zap.Strings("changed", r.Changed),
			zap.Int("failures", len(r.Failures)),
		)
		if p.onProgress != nil {
			p.onProgress(Progress{RunID: run.ID, Index: i + 1, Total: len(disc.Leads), Lead: r.Lead.Name, Enriched: r.Enriched()})
		}
	}

	leads := dedupe.Leads(enriched)
	res.Duplicates = len(enriched) - len(leads)
	leads, res.Repeated = p.againstPrevious(saveCtx, run.ID, leads)

	SortByTier(leads)
	res.Leads = leads
	res.TierCounts = TierCounts(leads)
	res.Outcome = Outcome(res.Discovered, res.Enriched)
	res.Status = model.RunStatusComplete
	if cancelled {
		res.Status = model.RunStatusCancelled
	}
	p.finish(res)

	if p.store != nil {
		if err := p.store.SaveRunResult(saveCtx, run.ID, res); err != nil {
			log.Warn("pipeline: failed to save run result", zap.Error(err))
		}
	}

	log.Info("pipeline: run finished",
		zap.String("status", string(res.Status)),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("discovered", res.Discovered),
		zap.Int("processed", res.Processed),
		zap.Int("enriched", res.Enriched),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failures", len(res.Failures)),
		zap.Float64("cost_usd", res.CostUSD),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return res, nil
}

func (p *Pipeline) againstPrevious(ctx context.Context, runID string, leads []model.Lead) ([]model.Lead, int) {
	if p.store == nil {
		return leads, 0
	}
	prev, err := p.store.LatestCompletedRun(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("pipeline: load previous run", zap.Error(err))
		}
		return leads, 0
	}
	if prev.ID == runID || prev.Result == nil {
		return leads, 0
	}
	return dedupe.AgainstPrevious(leads, prev.Result.Leads)
}

func (p *Pipeline) finish(res *model.RunResult) {
	res.FinishedAt = time.Now().UTC()
	res.DurationMs = res.FinishedAt.Sub(res.StartedAt).Milliseconds()
}

func (p *Pipeline) markFailed(ctx context.Context, runID string, res *model.RunResult, cause error) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRunResult(ctx, runID, res); err != nil {
		zap.L().Warn("pipeline: failed to save run result", zap.String("run_id", runID), zap.Error(err))
	}
	if err := p.store.UpdateRunStatus(ctx, runID, res.Status, cause.Error()); err != nil {
		zap.L().Warn("pipeline: failed to update status", zap.String("run_id", runID), zap.Error(err))
	}
}

// Outcome distinguishes an empty discovery from leads no provider could add
// anything to.
func Outcome(discovered, enriched int) model.Outcome {
	switch {
	case discovered == 0:
		return model.OutcomeNoLeads
	case enriched == 0:
		return model.OutcomeNoneEnriched
	default:
		return model.OutcomeEnriched
	}
}

// SortByTier orders leads High to VeryLow, keeping discovery order within
// a tier.
func SortByTier(leads []model.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].Tier() > leads[j].Tier()
	})
}

// TierCounts counts leads per tier name.
func TierCounts(leads []model.Lead) map[string]int {
	counts := map[string]int{
		model.TierHigh.String():    0,
		model.TierMedium.String():  0,
		model.TierLow.String():     0,
		model.TierVeryLow.String(): 0,
	}
	for i := range leads {
		counts[leads[i].Tier().String()]++
	}
	return counts
}
