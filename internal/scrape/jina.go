package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/resilience"
	"github.com/sells-group/leads-cli/pkg/jina"
)

// ErrNeedsFallback is returned when the reader answered with a challenge
// page or too little content to use.
var ErrNeedsFallback = eris.New("jina: response needs fallback")

// JinaAdapter wraps a Jina Reader client as a Scraper with a circuit breaker.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.Breaker
	calc    *cost.Calculator
}

// NewJinaAdapter creates a JinaAdapter from a Jina client. Three
// consecutive failures open the circuit for a minute, sending requests
// straight to the next scraper.
func NewJinaAdapter(client jina.Client, calc *cost.Calculator) *JinaAdapter {
	return &JinaAdapter{
		client: client,
		breaker: resilience.NewBreaker("jina_reader", resilience.BreakerConfig{
			Threshold: 3,
			Cooldown:  time.Minute,
		}),
		calc: calc,
	}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if err := j.breaker.Allow(); err != nil {
		return nil, eris.Wrap(err, "jina")
	}

	resp, err := j.client.Read(ctx, targetURL)
	if err == nil && needsFallback(resp) {
		err = ErrNeedsFallback
	}
	j.breaker.Record(err)
	if err != nil {
		return nil, err
	}
	if j.calc != nil {
		cost.Charge(ctx, "jina", j.calc.Jina(resp.Data.Usage.Tokens))
	}

	u := resp.Data.URL
	if u == "" {
		u = targetURL
	}
	return &Result{
		Page: Page{
			URL:        u,
			Title:      resp.Data.Title,
			Markdown:   resp.Data.Content,
			StatusCode: 200,
		},
		Source: j.Name(),
	}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
}

// needsFallback reports whether a reader response is empty, an error or a
// short challenge page.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}

	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}
