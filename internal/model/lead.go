// Package model defines the lead record that flows through discovery, enrichment and export.
package model

import (
	"slices"
	"strings"
)

// Field keys shared by providers, the waterfall and export.
const (
	FieldLegalName           = "legal_name"
	FieldTradeName           = "trade_name"
	FieldAddress             = "address"
	FieldCity                = "city"
	FieldState               = "state"
	FieldPostalCode          = "postal_code"
	FieldPhone               = "phone"
	FieldEmail               = "email"
	FieldWebsite             = "website"
	FieldRegistrationID      = "registration_id"
	FieldRegistrationStatus  = "registration_status"
	FieldActivityCode        = "activity_code"
	FieldActivityDescription = "activity_description"
	FieldOfficers            = "officers"
	FieldSocialLinks         = "social_links"
)

// Social platforms a lead can carry links for.
const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformLinkedIn  = "linkedin"
	PlatformTwitter   = "twitter"
)

// Platforms lists the supported social platforms in export order.
var Platforms = []string{PlatformFacebook, PlatformInstagram, PlatformLinkedIn, PlatformTwitter}

// Lead is one prospective business.
type Lead struct {
	Name                string            `json:"name"`
	LegalName           string            `json:"legal_name,omitempty"`
	TradeName           string            `json:"trade_name,omitempty"`
	Address             string            `json:"address,omitempty"`
	City                string            `json:"city,omitempty"`
	State               string            `json:"state,omitempty"`
	PostalCode          string            `json:"postal_code,omitempty"`
	Phone               string            `json:"phone,omitempty"`
	Email               string            `json:"email,omitempty"`
	Website             string            `json:"website,omitempty"`
	RegistrationID      string            `json:"registration_id,omitempty"`
	RegistrationStatus  string            `json:"registration_status,omitempty"`
	ActivityCode        string            `json:"activity_code,omitempty"`
	ActivityDescription string            `json:"activity_description,omitempty"`
	Officers            []string          `json:"officers,omitempty"`
	SocialLinks         map[string]string `json:"social_links,omitempty"`
	Rating              float64           `json:"rating,omitempty"`
	Latitude            float64           `json:"latitude,omitempty"`
	Longitude           float64           `json:"longitude,omitempty"`
	Sources             []string          `json:"sources,omitempty"`
}

// FieldSet is a partial set of lead fields supplied by one provider.
// Name is deliberately absent: providers report names as LegalName or TradeName.
type FieldSet struct {
	LegalName           string            `json:"legal_name,omitempty"`
	TradeName           string            `json:"trade_name,omitempty"`
	Address             string            `json:"address,omitempty"`
	City                string            `json:"city,omitempty"`
	State               string            `json:"state,omitempty"`
	PostalCode          string            `json:"postal_code,omitempty"`
	Phone               string            `json:"phone,omitempty"`
	Email               string            `json:"email,omitempty"`
	Website             string            `json:"website,omitempty"`
	RegistrationID      string            `json:"registration_id,omitempty"`
	RegistrationStatus  string            `json:"registration_status,omitempty"`
	ActivityCode        string            `json:"activity_code,omitempty"`
	ActivityDescription string            `json:"activity_description,omitempty"`
	Officers            []string          `json:"officers,omitempty"`
	SocialLinks         map[string]string `json:"social_links,omitempty"`
}

// Empty reports whether the field set carries no values.
func (f FieldSet) Empty() bool {
	return len(f.Keys()) == 0
}

// Keys returns the field keys with a value in f.
func (f FieldSet) Keys() []string {
	var keys []string
	for _, s := range f.scalars() {
		if strings.TrimSpace(*s.val) != "" {
			keys = append(keys, s.key)
		}
	}
	if len(f.Officers) > 0 {
		keys = append(keys, FieldOfficers)
	}
	if len(f.SocialLinks) > 0 {
		keys = append(keys, FieldSocialLinks)
	}
	return keys
}

type scalar struct {
	key string
	val *string
}

func (f *FieldSet) scalars() []scalar {
	return []scalar{
		{FieldLegalName, &f.LegalName},
		{FieldTradeName, &f.TradeName},
		{FieldAddress, &f.Address},
		{FieldCity, &f.City},
		{FieldState, &f.State},
		{FieldPostalCode, &f.PostalCode},
		{FieldPhone, &f.Phone},
		{FieldEmail, &f.Email},
		{FieldWebsite, &f.Website},
		{FieldRegistrationID, &f.RegistrationID},
		{FieldRegistrationStatus, &f.RegistrationStatus},
		{FieldActivityCode, &f.ActivityCode},
		{FieldActivityDescription, &f.ActivityDescription},
	}
}

func (l *Lead) scalars() []scalar {
	return []scalar{
		{FieldLegalName, &l.LegalName},
		{FieldTradeName, &l.TradeName},
		{FieldAddress, &l.Address},
		{FieldCity, &l.City},
		{FieldState, &l.State},
		{FieldPostalCode, &l.PostalCode},
		{FieldPhone, &l.Phone},
		{FieldEmail, &l.Email},
		{FieldWebsite, &l.Website},
		{FieldRegistrationID, &l.RegistrationID},
		{FieldRegistrationStatus, &l.RegistrationStatus},
		{FieldActivityCode, &l.ActivityCode},
		{FieldActivityDescription, &l.ActivityDescription},
	}
}

// Has reports whether the lead already has a value for the field key.
// Social links count as populated once every platform has a link.
func (l *Lead) Has(key string) bool {
	switch key {
	case FieldOfficers:
		return len(l.Officers) > 0
	case FieldSocialLinks:
		for _, p := range Platforms {
			if l.SocialLinks[p] == "" {
				return false
			}
		}
		return true
	}
	for _, s := range l.scalars() {
		if s.key == key {
			return strings.TrimSpace(*s.val) != ""
		}
	}
	return false
}

// HasAll reports whether every listed field is populated.
func (l *Lead) HasAll(keys []string) bool {
	for _, k := range keys {
		if !l.Has(k) {
			return false
		}
	}
	return true
}

// Merge applies fs to the lead with the first-non-empty-wins rule and
// returns the keys that changed. A field that already holds a value is
// never replaced. Social links merge per platform. The source is appended
// to Sources when anything changed.
func (l *Lead) Merge(source string, fs FieldSet) []string {
	fs = fs.normalized()

	var changed []string
	theirs := fs.scalars()
	for i, mine := range l.scalars() {
		v := strings.TrimSpace(*theirs[i].val)
		if v == "" || strings.TrimSpace(*mine.val) != "" {
			continue
		}
		*mine.val = v
		changed = append(changed, mine.key)
	}

	if len(l.Officers) == 0 && len(fs.Officers) > 0 {
		l.Officers = UniqueFold(fs.Officers)
		changed = append(changed, FieldOfficers)
	}

	socialChanged := false
	for _, p := range Platforms {
		u := fs.SocialLinks[p]
		if u == "" || l.SocialLinks[p] != "" {
			continue
		}
		if l.SocialLinks == nil {
			l.SocialLinks = make(map[string]string)
		}
		l.SocialLinks[p] = u
		socialChanged = true
	}
	if socialChanged {
		changed = append(changed, FieldSocialLinks)
	}

	if len(changed) > 0 && source != "" && !slices.Contains(l.Sources, source) {
		l.Sources = append(l.Sources, source)
	}
	return changed
}

// Absorb merges another lead into l with first-non-empty-wins, used when
// collapsing duplicates. l keeps its name; other's name is offered as trade
// name when it differs.
func (l *Lead) Absorb(other Lead) {
	fs := other.FieldSet()
	if other.Name != "" && !strings.EqualFold(other.Name, l.Name) {
		if fs.TradeName == "" {
			fs.TradeName = other.Name
		}
	}
	l.Merge("", fs)
	for _, s := range other.Sources {
		if !slices.Contains(l.Sources, s) {
			l.Sources = append(l.Sources, s)
		}
	}
	if l.Rating == 0 {
		l.Rating = other.Rating
	}
	if l.Latitude == 0 && l.Longitude == 0 {
		l.Latitude, l.Longitude = other.Latitude, other.Longitude
	}
}

// FieldSet returns the lead's mergeable fields.
func (l *Lead) FieldSet() FieldSet {
	fs := FieldSet{
		LegalName:           l.LegalName,
		TradeName:           l.TradeName,
		Address:             l.Address,
		City:                l.City,
		State:               l.State,
		PostalCode:          l.PostalCode,
		Phone:               l.Phone,
		Email:               l.Email,
		Website:             l.Website,
		RegistrationID:      l.RegistrationID,
		RegistrationStatus:  l.RegistrationStatus,
		ActivityCode:        l.ActivityCode,
		ActivityDescription: l.ActivityDescription,
		Officers:            slices.Clone(l.Officers),
	}
	if len(l.SocialLinks) > 0 {
		fs.SocialLinks = make(map[string]string, len(l.SocialLinks))
		for k, v := range l.SocialLinks {
			fs.SocialLinks[k] = v
		}
	}
	return fs
}

// Clone returns a deep copy of the lead.
func (l Lead) Clone() Lead {
	c := l
	c.Officers = slices.Clone(l.Officers)
	c.Sources = slices.Clone(l.Sources)
	if l.SocialLinks != nil {
		c.SocialLinks = make(map[string]string, len(l.SocialLinks))
		for k, v := range l.SocialLinks {
			c.SocialLinks[k] = v
		}
	}
	return c
}

// Tier classifies the lead; see Classify.
func (l *Lead) Tier() Tier {
	return Classify(*l)
}

// normalized applies field normalization before merge.
func (f FieldSet) normalized() FieldSet {
	if f.Phone != "" {
		f.Phone = NormalizePhone(f.Phone)
	}
	if f.RegistrationID != "" {
		f.RegistrationID = NormalizeRegistrationID(f.RegistrationID)
	}
	if f.Email != "" {
		f.Email = NormalizeEmail(f.Email)
	}
	if len(f.SocialLinks) > 0 {
		links := make(map[string]string, len(f.SocialLinks))
		for p, u := range f.SocialLinks {
			if slices.Contains(Platforms, p) && strings.TrimSpace(u) != "" {
				links[p] = strings.TrimSpace(u)
			}
		}
		f.SocialLinks = links
	}
	return f
}

// UniqueFold removes blanks and case-insensitive duplicates, keeping the
// first spelling seen.
func UniqueFold(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Join(strings.Fields(n), " ")
		if n == "" {
			continue
		}
		k := strings.ToLower(n)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}
