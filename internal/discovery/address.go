package discovery

import (
	"regexp"
	"strings"

	"github.com/sells-group/leads-cli/internal/model"
)

var (
	cepRe     = regexp.MustCompile(`\b\d{5}-?\d{3}\b`)
	cityUFRe  = regexp.MustCompile(`^(.+?)\s*[-/]\s*([A-Za-z]{2})$`)
	countries = map[string]bool{"brasil": true, "brazil": true, "br": true}
)

// parseAddress extracts city, state and CEP from a formatted Brazilian
// address such as "Rua A, 100 - Centro, Belo Horizonte - MG, 30110-000, Brasil".
func parseAddress(addr string) (city, state, cep string) {
	parts := splitAddress(addr)
	if len(parts) < 2 {
		return "", "", ""
	}
	for i := len(parts) - 1; i > 0; i-- {
		p := parts[i]
		if countries[strings.ToLower(p)] {
			continue
		}
		if cep == "" {
			if m := cepRe.FindString(p); m != "" && len(model.Digits(p)) == 8 {
				cep = m
				continue
			}
		}
		if m := cityUFRe.FindStringSubmatch(p); m != nil {
			return strings.TrimSpace(m[1]), strings.ToUpper(m[2]), cep
		}
	}
	return "", "", cep
}

// parseLocation splits an operator location such as "Belo Horizonte, MG"
// or "Belo Horizonte - MG" into city and state. A bare two-letter term is
// taken as a state.
func parseLocation(loc string) (city, state string) {
	loc = strings.TrimSpace(loc)
	if i := strings.LastIndex(loc, ","); i >= 0 {
		city, state = strings.TrimSpace(loc[:i]), strings.TrimSpace(loc[i+1:])
		if len(state) == 2 {
			return city, strings.ToUpper(state)
		}
		return loc, ""
	}
	if m := cityUFRe.FindStringSubmatch(loc); m != nil {
		return strings.TrimSpace(m[1]), strings.ToUpper(m[2])
	}
	if len(loc) == 2 {
		return "", strings.ToUpper(loc)
	}
	return loc, ""
}

func splitAddress(addr string) []string {
	var out []string
	for _, p := range strings.Split(addr, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyWebsite stores a listing URL on the stub. Social profile URLs,
// which listings often give instead of a site, become social links.
func applyWebsite(l *model.Lead, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if p := model.SocialPlatform(raw); p != "" {
		if l.SocialLinks == nil {
			l.SocialLinks = make(map[string]string)
		}
		if l.SocialLinks[p] == "" {
			l.SocialLinks[p] = raw
		}
		return
	}
	if l.Website == "" {
		l.Website = raw
	}
}
