package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrExcluded is returned for URLs the path matcher rejects.
var ErrExcluded = eris.New("scrape: url excluded by path matcher")

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	PathMatcher *PathMatcher
	scrapers    []Scraper
}

// NewChain creates a Chain with the given path matcher and scrapers.
// Scrapers are tried in order; the first successful result is returned.
func NewChain(matcher *PathMatcher, scrapers ...Scraper) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{
		PathMatcher: matcher,
		scrapers:    scrapers,
	}
}

// Scrape tries each scraper in order for a single URL.
// Returns the first successful result, or the last error if all fail.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		return nil, eris.Wrap(ErrExcluded, targetURL)
	}

	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}

// ScrapeFirst scrapes urls in order and returns the first page fetched.
// Excluded URLs are skipped. The last error is returned when none succeed.
func (c *Chain) ScrapeFirst(ctx context.Context, urls []string) (*Result, error) {
	var lastErr error
	for _, u := range urls {
		if c.PathMatcher.IsExcluded(u) {
			continue
		}
		res, err := c.Scrape(ctx, u)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = eris.New("scrape: no candidate urls")
	}
	return nil, lastErr
}
