package scrape

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

// DefaultContactPaths are tried, in order, when the homepage links to no
// contact page.
var DefaultContactPaths = []string{"/contato", "/contact", "/fale-conosco", "/sobre"}

// WebsiteProvider finds email, phone and social links on a lead's own site.
type WebsiteProvider struct {
	chain        *Chain
	contactPaths []string
}

// NewWebsiteProvider creates the website provider.
func NewWebsiteProvider(chain *Chain, contactPaths []string) *WebsiteProvider {
	if len(contactPaths) == 0 {
		contactPaths = DefaultContactPaths
	}
	return &WebsiteProvider{chain: chain, contactPaths: contactPaths}
}

func (w *WebsiteProvider) Name() string { return "website" }

func (w *WebsiteProvider) SupportedFields() []string {
	return []string{model.FieldEmail, model.FieldPhone, model.FieldSocialLinks}
}

func (w *WebsiteProvider) Ready(lead model.Lead) bool {
	return strings.TrimSpace(lead.Website) != ""
}

// Enrich scrapes the homepage and, when it shows no email, one contact page.
func (w *WebsiteProvider) Enrich(ctx context.Context, lead model.Lead) (*provider.Result, error) {
	site, err := SiteURL(lead.Website)
	if err != nil {
		return nil, eris.Wrapf(provider.ErrNoMatch, "website: %v", err)
	}

	var tally cost.Tally
	ctx = cost.WithTally(ctx, &tally)

	home, err := w.chain.Scrape(ctx, site.String())
	if err != nil {
		return nil, eris.Wrapf(err, "website: scrape %s", site)
	}
	found := Extract(home.Page)

	if len(found.Emails) == 0 {
		candidates := w.contactCandidates(home.Page.URL, found.ContactLinks)
		res, err := w.chain.ScrapeFirst(ctx, candidates)
		switch {
		case err == nil:
			found = mergeContacts(found, Extract(res.Page))
		case ctx.Err() != nil && len(found.Phones) == 0 && len(found.Social) == 0:
			return nil, ctx.Err()
		default:
			zap.L().Debug("website: no contact page", zap.String("site", site.String()), zap.Error(err))
		}
	}

	var fs model.FieldSet
	fs.Email = pickEmail(found.Emails, site.Hostname())
	if len(found.Phones) > 0 {
		fs.Phone = found.Phones[0]
	}
	if len(found.Social) > 0 {
		fs.SocialLinks = found.Social
	}
	if fs.Empty() {
		return nil, eris.Wrapf(provider.ErrNoMatch, "website: no contacts on %s", site)
	}
	return &provider.Result{
		Provider:        w.Name(),
		Fields:          fs,
		MatchConfidence: 1,
		CostUSD:         tally.Total(),
	}, nil
}

// contactCandidates lists linked contact pages first, then the configured
// paths resolved against the homepage. The homepage itself is skipped.
func (w *WebsiteProvider) contactCandidates(homeURL string, linked []string) []string {
	base, err := url.Parse(homeURL)
	if err != nil {
		return linked
	}
	seen := map[string]bool{strings.TrimRight(base.String(), "/"): true}
	var out []string
	add := func(u string) {
		k := strings.TrimRight(u, "/")
		if !seen[k] {
			seen[k] = true
			out = append(out, u)
		}
	}
	for _, l := range linked {
		add(l)
	}
	for _, p := range w.contactPaths {
		ref, err := url.Parse(p)
		if err != nil {
			continue
		}
		add(base.ResolveReference(ref).String())
	}
	return out
}

// SiteURL turns a listing website into an absolute http(s) URL.
func SiteURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid website %q", raw)
	}
	host := u.Hostname()
	if (u.Scheme != "http" && u.Scheme != "https") || (!strings.Contains(host, ".") && host != "localhost") {
		return nil, eris.Errorf("invalid website %q", raw)
	}
	return u, nil
}

// pickEmail prefers an address on the site's own domain.
func pickEmail(emails []string, host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, e := range emails {
		if _, domain, ok := strings.Cut(e, "@"); ok && (domain == host || strings.HasSuffix(host, "."+domain)) {
			return e
		}
	}
	if len(emails) > 0 {
		return emails[0]
	}
	return ""
}

func mergeContacts(a, b Contacts) Contacts {
	for _, e := range b.Emails {
		if !containsFold(a.Emails, e) {
			a.Emails = append(a.Emails, e)
		}
	}
	for _, p := range b.Phones {
		if !containsFold(a.Phones, p) {
			a.Phones = append(a.Phones, p)
		}
	}
	if a.Social == nil {
		a.Social = make(map[string]string)
	}
	for p, u := range b.Social {
		if _, ok := a.Social[p]; !ok {
			a.Social[p] = u
		}
	}
	return a
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
