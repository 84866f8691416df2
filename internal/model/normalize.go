package model

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RegistrationIDLength is the digit length of a normalized CNPJ.
const RegistrationIDLength = 14

// minRegistrationIDDigits is the shortest digit string still read as a CNPJ
// that lost its leading zeros in a spreadsheet.
const minRegistrationIDDigits = 12

// DefaultCountryCode is the calling code stripped from long phone numbers.
var DefaultCountryCode = "55"

// minInternationalDigits is the shortest digit string assumed to carry a
// country calling code (55 + 2-digit area + 8-digit landline).
const minInternationalDigits = 12

var (
	nonDigitRe = regexp.MustCompile(`\D`)
	punctRe    = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// NormalizePhone reduces a phone number to digits and strips the country
// calling code when the number is long enough to contain one.
func NormalizePhone(s string) string {
	return NormalizePhoneWithCode(s, DefaultCountryCode)
}

// NormalizePhoneWithCode is NormalizePhone for an explicit calling code.
func NormalizePhoneWithCode(s, code string) string {
	d := Digits(s)
	if code != "" && len(d) >= minInternationalDigits && strings.HasPrefix(d, code) {
		return d[len(code):]
	}
	return d
}

// NormalizeRegistrationID returns the 14-digit registration number, padding
// numbers that lost up to two leading zeros. Anything shorter or longer is
// rejected.
func NormalizeRegistrationID(s string) string {
	d := Digits(s)
	if len(d) < minRegistrationIDDigits || len(d) > RegistrationIDLength {
		return ""
	}
	if len(d) < RegistrationIDLength {
		d = strings.Repeat("0", RegistrationIDLength-len(d)) + d
	}
	return d
}

// FormatRegistrationID renders a normalized id as 00.000.000/0000-00.
func FormatRegistrationID(id string) string {
	id = NormalizeRegistrationID(id)
	if id == "" {
		return ""
	}
	return id[0:2] + "." + id[2:5] + "." + id[5:8] + "/" + id[8:12] + "-" + id[12:14]
}

// NormalizeEmail lowercases an address and removes a mailto: prefix and
// query. Returns "" for anything that is not shaped like one address.
func NormalizeEmail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 7 && strings.EqualFold(s[:7], "mailto:") {
		s = s[7:]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if u, err := url.PathUnescape(s); err == nil {
		s = u
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.Count(s, "@") != 1 || strings.HasPrefix(s, "@") || strings.HasSuffix(s, "@") {
		return ""
	}
	return s
}

// foldAccents removes combining marks after canonical decomposition.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName is the comparison form of a business name: lowercase,
// accent-free, punctuation-insensitive and whitespace-collapsed.
func NormalizeName(s string) string {
	s = strings.ToLower(foldAccents(s))
	s = punctRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeAddress is the comparison form of an address. Only case and
// whitespace are normalized; abbreviations are not expanded.
func NormalizeAddress(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SocialPlatform classifies a URL into one of Platforms, or "".
func SocialPlatform(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	switch {
	case host == "facebook.com" || host == "fb.com" || strings.HasSuffix(host, ".facebook.com"):
		return PlatformFacebook
	case host == "instagram.com" || strings.HasSuffix(host, ".instagram.com"):
		return PlatformInstagram
	case host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com"):
		return PlatformLinkedIn
	case host == "twitter.com" || host == "x.com":
		return PlatformTwitter
	}
	return ""
}

// NormalizeLead applies field normalization to a discovery stub. Name is
// trimmed only.
func NormalizeLead(l Lead) Lead {
	l.Name = strings.Join(strings.Fields(l.Name), " ")
	l.Phone = NormalizePhone(l.Phone)
	l.RegistrationID = NormalizeRegistrationID(l.RegistrationID)
	if l.Email != "" {
		l.Email = NormalizeEmail(l.Email)
	}
	l.Officers = UniqueFold(l.Officers)
	return l
}
