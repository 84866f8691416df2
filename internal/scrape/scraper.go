// Package scrape fetches business websites and extracts contact details
// from them.
package scrape

import "context"

// Page is one fetched web page. Scrapers fill HTML, Markdown or both.
type Page struct {
	URL        string   `json:"url"`
	Title      string   `json:"title,omitempty"`
	HTML       string   `json:"html,omitempty"`
	Markdown   string   `json:"markdown,omitempty"`
	Links      []string `json:"links,omitempty"`
	StatusCode int      `json:"status_code"`
}

// Result wraps a scraped page with the scraper that produced it.
type Result struct {
	Page   Page
	Source string
}

// Scraper fetches a single URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	// Supports reports whether the scraper can handle url.
	Supports(url string) bool
}
