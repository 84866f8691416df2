package scrape

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
	"github.com/sells-group/leads-cli/pkg/jina"
)

// socialConfidence is reported for profiles found by search; the result
// title or URL must mention the business name.
const socialConfidence = 0.9

var platformDomains = map[string]string{
	model.PlatformFacebook:  "facebook.com",
	model.PlatformInstagram: "instagram.com",
	model.PlatformLinkedIn:  "linkedin.com",
	model.PlatformTwitter:   "x.com",
}

// SocialProvider searches the web for a lead's social profiles, one
// site-filtered query per missing platform.
type SocialProvider struct {
	client jina.Client
	calc   *cost.Calculator
}

// NewSocialProvider creates the social provider.
func NewSocialProvider(client jina.Client, calc *cost.Calculator) *SocialProvider {
	return &SocialProvider{client: client, calc: calc}
}

func (s *SocialProvider) Name() string { return "social" }

func (s *SocialProvider) SupportedFields() []string {
	return []string{model.FieldSocialLinks}
}

func (s *SocialProvider) Ready(lead model.Lead) bool {
	return strings.TrimSpace(lead.Name) != "" && len(missingPlatforms(lead)) > 0
}

func (s *SocialProvider) Enrich(ctx context.Context, lead model.Lead) (*provider.Result, error) {
	query := strings.TrimSpace(lead.Name + " " + lead.City)
	links := make(map[string]string)
	var (
		firstErr error
		usd      float64
	)
	for _, p := range missingPlatforms(lead) {
		resp, err := s.client.Search(ctx, query, jina.WithSiteFilter(platformDomains[p]))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = eris.Wrapf(err, "social: search %s", p)
			}
			continue
		}
		if s.calc != nil {
			tokens := 0
			for _, r := range resp.Data {
				tokens += r.Usage.Tokens
			}
			usd += s.calc.Jina(tokens)
		}
		if u := pickProfile(resp.Data, p, lead.Name); u != "" {
			links[p] = u
		}
	}

	if len(links) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, eris.Wrapf(provider.ErrNoMatch, "social: no profiles for %q", lead.Name)
	}
	return &provider.Result{
		Provider:        s.Name(),
		Fields:          model.FieldSet{SocialLinks: links},
		MatchConfidence: socialConfidence,
		CostUSD:         usd,
	}, nil
}

func missingPlatforms(lead model.Lead) []string {
	var out []string
	for _, p := range model.Platforms {
		if lead.SocialLinks[p] == "" {
			out = append(out, p)
		}
	}
	return out
}

// pickProfile returns the first result that is a profile on platform and
// mentions the business name.
func pickProfile(results []jina.SearchResult, platform, name string) string {
	for _, r := range results {
		if model.SocialPlatform(r.URL) != platform {
			continue
		}
		u, err := url.Parse(r.URL)
		if err != nil || !isProfile(u) {
			continue
		}
		if mentionsName(name, r.Title+" "+u.Path) {
			return r.URL
		}
	}
	return ""
}

// mentionsName reports whether any significant word of name, or the name
// with spaces removed, appears in text. Comparison ignores case, accents
// and punctuation.
func mentionsName(name, text string) bool {
	n := model.NormalizeName(name)
	t := model.NormalizeName(text)
	compact := strings.ReplaceAll(t, " ", "")
	if n == "" {
		return false
	}
	if strings.Contains(compact, strings.ReplaceAll(n, " ", "")) {
		return true
	}
	for _, w := range strings.Fields(n) {
		if len(w) >= 4 && strings.Contains(t, w) {
			return true
		}
	}
	return false
}
