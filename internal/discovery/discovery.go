// Package discovery turns a niche and location query into lead stubs from
// exactly one source.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/model"
)

// DefaultLimit is used when a query asks for zero or fewer results.
const DefaultLimit = 50

// ErrInvalidQuery is returned when niche or location is blank.
var ErrInvalidQuery = eris.New("discovery: niche and location are required")

// Source produces lead stubs for a query. Discover receives a query whose
// Limit is already clamped to [1, MaxResults()].
type Source interface {
	Name() string
	MaxResults() int
	Discover(ctx context.Context, q model.Query) ([]model.Lead, error)
}

// FileSource is a Source that reads its stubs from a file and ignores the
// niche and location.
type FileSource interface {
	Source
	Path() string
}

// DiscoveryFailure is the fatal error of a failed discovery stage.
type DiscoveryFailure struct {
	Source string
	Err    error
}

func (e *DiscoveryFailure) Error() string {
	return fmt.Sprintf("discovery: %s failed: %v", e.Source, e.Err)
}

func (e *DiscoveryFailure) Unwrap() error { return e.Err }

// Result is the outcome of a discovery stage.
type Result struct {
	Source string
	Leads  []model.Lead
	// Malformed counts stubs dropped for having no name.
	Malformed int
	CostUSD   float64
}

// ClampLimit bounds limit to [1, maxResults], substituting DefaultLimit
// for non-positive values.
func ClampLimit(limit, maxResults int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if maxResults > 0 && limit > maxResults {
		limit = maxResults
	}
	return limit
}

// Run validates q, calls src and normalizes the stubs it returns. Source
// order is preserved. Any source error is returned as *DiscoveryFailure.
func Run(ctx context.Context, src Source, q model.Query) (*Result, error) {
	q.Niche = strings.TrimSpace(q.Niche)
	q.Location = strings.TrimSpace(q.Location)
	if _, ok := src.(FileSource); !ok && (q.Niche == "" || q.Location == "") {
		return nil, ErrInvalidQuery
	}
	q.Limit = ClampLimit(q.Limit, src.MaxResults())
	q.Source = src.Name()

	log := zap.L().With(zap.String("source", src.Name()), zap.String("niche", q.Niche), zap.String("location", q.Location))

	var tally cost.Tally
	stubs, err := src.Discover(cost.WithTally(ctx, &tally), q)
	if err != nil {
		return nil, &DiscoveryFailure{Source: src.Name(), Err: err}
	}

	res := &Result{Source: src.Name(), CostUSD: tally.Total()}
	for _, s := range stubs {
		if len(res.Leads) == q.Limit {
			break
		}
		s = model.NormalizeLead(s)
		if s.Name == "" {
			res.Malformed++
			continue
		}
		if len(s.Sources) == 0 {
			s.Sources = []string{src.Name()}
		}
		res.Leads = append(res.Leads, s)
	}

	log.Info("discovery: complete",
		zap.Int("leads", len(res.Leads)),
		zap.Int("malformed", res.Malformed),
		zap.Int("limit", q.Limit),
	)
	if res.Malformed > 0 {
		log.Debug("discovery: dropped stubs without a name", zap.Int("count", res.Malformed))
	}
	return res, nil
}
