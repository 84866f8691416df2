package provider

import (
	"context"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
)

// limited paces calls to a provider that does not go through a fetcher
// service of its own name.
type limited struct {
	Provider
	lim *fetcher.Limiter
}

// WithRate caps p at perMinute Enrich calls. Rate limited failures slow it
// further. A non-positive rate returns p unchanged.
func WithRate(p Provider, perMinute float64) Provider {
	if perMinute <= 0 {
		return p
	}
	return &limited{Provider: p, lim: fetcher.NewLimiter(p.Name(), perMinute)}
}

func (l *limited) Enrich(ctx context.Context, lead model.Lead) (*Result, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := l.Provider.Enrich(ctx, lead)
	switch {
	case err == nil:
		l.lim.OnSuccess()
	case Classify(l.Name(), err).Kind == KindRateLimited:
		l.lim.OnRateLimit()
	}
	return res, err
}
