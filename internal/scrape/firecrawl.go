package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper for single-page scrapes.
type FirecrawlAdapter struct {
	client firecrawl.Client
	calc   *cost.Calculator
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client, calc *cost.Calculator) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client, calc: calc}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports returns true. Firecrawl renders JavaScript, so it can attempt
// any URL as the last resort.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl's scrape API.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     targetURL,
		Formats: []string{"markdown", "html", "links"},
	})
	if err != nil {
		return nil, err
	}
	if f.calc != nil {
		cost.Charge(ctx, "firecrawl", f.calc.Firecrawl(1))
	}
	if !resp.Success {
		return nil, eris.Errorf("firecrawl: scrape of %s not successful", targetURL)
	}

	d := resp.Data
	u := d.Metadata.SourceURL
	if u == "" {
		u = d.URL
	}
	if u == "" {
		u = targetURL
	}
	return &Result{
		Page: Page{
			URL:        u,
			Title:      d.Metadata.Title,
			HTML:       d.HTML,
			Markdown:   d.Markdown,
			Links:      d.Links,
			StatusCode: d.Metadata.StatusCode,
		},
		Source: f.Name(),
	}, nil
}
