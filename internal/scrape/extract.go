package scrape

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/sells-group/leads-cli/internal/model"
)

var (
	emailRe    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	mdLinkRe   = regexp.MustCompile(`\]\(([^)\s]+)\)`)
	bareURLRe  = regexp.MustCompile(`https?://[^\s)\]>"'<]+`)
	textPolicy = bluemonday.StrictPolicy()

	// Addresses that show up in templates and asset names, never real inboxes.
	junkEmailParts = []string{"example.", "sentry", "wixpress.com", "seuemail", "seu-email", "email@email", "usuario@", "nome@"}
	assetSuffixes  = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

	contactWords = []string{"contato", "contact", "fale-conosco", "fale conosco", "faleconosco", "atendimento"}

	// Social URL paths that are share buttons rather than profiles.
	sharePaths = []string{"/sharer", "/share", "/intent", "/plugins", "/dialog", "/home.php", "/login"}
)

// Contacts holds the details found on a page, in document order.
type Contacts struct {
	Emails []string
	Phones []string
	Social map[string]string
	// ContactLinks are same-site links that look like a contact page.
	ContactLinks []string
}

// Extract scans a page's HTML, links and markdown for contact details.
func Extract(p Page) Contacts {
	x := extractor{seen: make(map[string]bool), c: Contacts{Social: make(map[string]string)}}
	x.base, _ = url.Parse(p.URL)

	if strings.TrimSpace(p.HTML) != "" {
		x.html(p.HTML)
	}
	for _, l := range p.Links {
		x.link(l, "")
	}
	if p.Markdown != "" {
		for _, m := range mdLinkRe.FindAllStringSubmatch(p.Markdown, -1) {
			x.link(m[1], "")
		}
		for _, u := range bareURLRe.FindAllString(p.Markdown, -1) {
			x.link(u, "")
		}
		x.text(p.Markdown)
	}
	return x.c
}

type extractor struct {
	base *url.URL
	seen map[string]bool
	c    Contacts
}

func (x *extractor) html(body string) {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			x.link(href, s.Text())
		})
	}
	x.text(html.UnescapeString(textPolicy.Sanitize(body)))
}

func (x *extractor) text(s string) {
	for _, m := range emailRe.FindAllString(s, -1) {
		x.email(m)
	}
}

func (x *extractor) email(raw string) {
	e := model.NormalizeEmail(raw)
	if e == "" || !emailRe.MatchString(e) || x.seen["e:"+e] {
		return
	}
	for _, j := range junkEmailParts {
		if strings.Contains(e, j) {
			return
		}
	}
	for _, suf := range assetSuffixes {
		if strings.HasSuffix(e, suf) {
			return
		}
	}
	x.seen["e:"+e] = true
	x.c.Emails = append(x.c.Emails, e)
}

func (x *extractor) link(href, text string) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	switch {
	case href == "" || strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "javascript:"):
		return
	case strings.HasPrefix(lower, "mailto:"):
		x.email(href)
		return
	case strings.HasPrefix(lower, "tel:"):
		if ph := strings.TrimSpace(href[4:]); len(model.Digits(ph)) >= 8 && !x.seen["t:"+ph] {
			x.seen["t:"+ph] = true
			x.c.Phones = append(x.c.Phones, ph)
		}
		return
	}

	u, err := url.Parse(href)
	if err != nil {
		return
	}
	if x.base != nil {
		u = x.base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}
	abs := u.String()

	if p := model.SocialPlatform(abs); p != "" {
		if _, ok := x.c.Social[p]; !ok && isProfile(u) {
			x.c.Social[p] = abs
		}
		return
	}

	if x.base == nil || !sameSite(u, x.base) || x.seen["l:"+abs] {
		return
	}
	probe := strings.ToLower(u.Path + " " + text)
	for _, w := range contactWords {
		if strings.Contains(probe, w) {
			x.seen["l:"+abs] = true
			x.c.ContactLinks = append(x.c.ContactLinks, abs)
			return
		}
	}
}

func isProfile(u *url.URL) bool {
	p := strings.ToLower(strings.TrimRight(u.Path, "/"))
	if p == "" {
		return false
	}
	for _, s := range sharePaths {
		if strings.HasPrefix(p, s) {
			return false
		}
	}
	return true
}

func sameSite(a, b *url.URL) bool {
	return strings.TrimPrefix(strings.ToLower(a.Hostname()), "www.") ==
		strings.TrimPrefix(strings.ToLower(b.Hostname()), "www.")
}
