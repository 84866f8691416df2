package scrape

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
)

// ErrBlocked is returned when a site answers with an anti-bot page.
var ErrBlocked = eris.New("scrape: blocked")

// Defaults for the local scraper.
const (
	DefaultUserAgent    = "leads-cli/1.0 (+https://github.com/sells-group/leads-cli)"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 2 << 20
)

// LocalScraper fetches pages directly with a colly collector.
type LocalScraper struct {
	userAgent    string
	timeout      time.Duration
	maxBodyBytes int
	delay        time.Duration
}

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) LocalOption {
	return func(s *LocalScraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) LocalOption {
	return func(s *LocalScraper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxBodyBytes caps the bytes read from a response.
func WithMaxBodyBytes(n int) LocalOption {
	return func(s *LocalScraper) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithDomainDelay sets the pause between requests to the same host.
func WithDomainDelay(d time.Duration) LocalOption {
	return func(s *LocalScraper) { s.delay = d }
}

// NewLocalScraper creates a LocalScraper.
func NewLocalScraper(opts ...LocalOption) *LocalScraper {
	s := &LocalScraper{
		userAgent:    DefaultUserAgent,
		timeout:      DefaultTimeout,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *LocalScraper) Name() string { return "local_http" }

func (s *LocalScraper) Supports(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func (s *LocalScraper) collector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.MaxBodySize(s.maxBodyBytes),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.DetectCharset(),
	)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       s.delay,
	})
	c.SetRequestTimeout(s.timeout)
	return c
}

// Scrape fetches targetURL and returns its HTML. Non-2xx answers become
// *fetcher.StatusError; anti-bot pages become ErrBlocked.
func (s *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := s.collector()

	var (
		status   int
		header   http.Header
		body     []byte
		finalURL = targetURL
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		body = r.Body
		finalURL = r.Request.URL.String()
	})

	done := make(chan error, 1)
	go func() { done <- c.Visit(targetURL) }()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, eris.Wrapf(err, "local: fetch %s", targetURL)
		}
	}
	if status == 0 {
		return nil, eris.Errorf("local: no response from %s", targetURL)
	}
	if header == nil {
		header = http.Header{}
	}

	if blocked, bt := DetectBlock(status, header, body); blocked {
		return nil, eris.Wrapf(ErrBlocked, "local: %s (%s)", targetURL, bt)
	}
	if status < 200 || status >= 300 {
		return nil, &fetcher.StatusError{Service: "local", StatusCode: status, URL: targetURL}
	}

	page := Page{URL: finalURL, HTML: string(body), StatusCode: status}
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return &Result{Page: page, Source: s.Name()}, nil
}
