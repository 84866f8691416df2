package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/pkg/firecrawl"
)

var mockAny = mock.Anything

type fakeFirecrawl struct {
	resp *firecrawl.ScrapeResponse
	err  error
	req  firecrawl.ScrapeRequest
}

func (f *fakeFirecrawl) Scrape(_ context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestFirecrawlAdapter_Scrape(t *testing.T) {
	t.Parallel()
	fc := &fakeFirecrawl{resp: &firecrawl.ScrapeResponse{
		Success: true,
		Data: firecrawl.PageData{
			Markdown: "# Sorriso",
			HTML:     "<h1>Sorriso</h1>",
			Links:    []string{"https://instagram.com/sorriso"},
			Metadata: firecrawl.PageMetadata{Title: "Sorriso", SourceURL: "https://sorriso.com.br", StatusCode: 200},
		},
	}}
	calc := cost.NewCalculator(cost.DefaultRates())
	var tally cost.Tally

	res, err := NewFirecrawlAdapter(fc, calc).Scrape(cost.WithTally(context.Background(), &tally), "https://sorriso.com.br")
	require.NoError(t, err)
	assert.Equal(t, "firecrawl", res.Source)
	assert.Equal(t, "https://sorriso.com.br", res.Page.URL)
	assert.Equal(t, "Sorriso", res.Page.Title)
	assert.Equal(t, 200, res.Page.StatusCode)
	assert.Equal(t, []string{"https://instagram.com/sorriso"}, res.Page.Links)
	assert.Contains(t, fc.req.Formats, "links")
	assert.InDelta(t, calc.Firecrawl(1), tally.Total(), 1e-9)
}

func TestFirecrawlAdapter_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewFirecrawlAdapter(&fakeFirecrawl{resp: &firecrawl.ScrapeResponse{Success: false}}, nil).
		Scrape(context.Background(), "https://x.com.br")
	assert.Error(t, err)

	_, err = NewFirecrawlAdapter(&fakeFirecrawl{err: errors.New("boom")}, nil).
		Scrape(context.Background(), "https://x.com.br")
	assert.EqualError(t, err, "boom")
}
