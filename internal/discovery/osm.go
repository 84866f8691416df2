package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/pkg/osm"
)

// OSMMaxResults caps an Overpass query.
const OSMMaxResults = 200

// Tag is one OSM key=value selector.
type Tag struct {
	Key   string
	Value string
}

type nicheTags struct {
	niche string
	tags  []Tag
}

// nicheTagTable maps common niche terms to OSM categories. Longer terms
// come first so "clinica odontologica" wins over "clinica".
var nicheTagTable = []nicheTags{
	{"clinica odontologica", []Tag{{"amenity", "dentist"}, {"healthcare", "dentist"}}},
	{"dentista", []Tag{{"amenity", "dentist"}, {"healthcare", "dentist"}}},
	{"restaurante", []Tag{{"amenity", "restaurant"}}},
	{"pizzaria", []Tag{{"amenity", "restaurant"}, {"cuisine", "pizza"}}},
	{"lanchonete", []Tag{{"amenity", "fast_food"}}},
	{"academia", []Tag{{"leisure", "fitness_centre"}, {"sport", "fitness"}}},
	{"hotel", []Tag{{"tourism", "hotel"}}},
	{"pousada", []Tag{{"tourism", "guest_house"}}},
	{"supermercado", []Tag{{"shop", "supermarket"}}},
	{"mercado", []Tag{{"shop", "supermarket"}}},
	{"materiais de construcao", []Tag{{"shop", "doityourself"}, {"shop", "hardware"}}},
	{"loja de pisos", []Tag{{"shop", "doityourself"}, {"shop", "hardware"}, {"shop", "flooring"}}},
	{"pet shop", []Tag{{"shop", "pet"}}},
	{"clinica", []Tag{{"amenity", "clinic"}, {"healthcare", "clinic"}}},
	{"farmacia", []Tag{{"amenity", "pharmacy"}, {"shop", "chemist"}}},
	{"escritorio de contabilidade", []Tag{{"office", "accountant"}}},
	{"advogado", []Tag{{"office", "lawyer"}}},
	{"autoescola", []Tag{{"amenity", "driving_school"}}},
	{"oficina mecanica", []Tag{{"craft", "car_repair"}, {"shop", "car_repair"}}},
}

// NicheTags returns the OSM category selectors for a niche, or nil when
// the niche is not in the table. Matching ignores case and accents.
func NicheTags(niche string) []Tag {
	n := model.NormalizeName(niche)
	for _, e := range nicheTagTable {
		if strings.Contains(n, e.niche) {
			return e.tags
		}
	}
	return nil
}

// nicheWords splits a niche into the words matched against element names.
func nicheWords(niche string) []string {
	return strings.Fields(strings.ToLower(strings.ReplaceAll(niche, "/", " ")))
}

// BuildOverpassQuery selects nodes, ways and relations inside box whose
// name matches any niche word, plus any element carrying one of tags.
func BuildOverpassQuery(words []string, box osm.BBox, limit int, tags []Tag) string {
	b := box.String()
	var sel strings.Builder
	if len(words) > 0 {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = qlEscape(regexp.QuoteMeta(w))
		}
		re := strings.Join(quoted, "|")
		for _, typ := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&sel, "  %s[\"name\"~\"%s\",i](%s);\n", typ, re, b)
		}
	}
	for _, t := range tags {
		for _, typ := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&sel, "  %s[\"%s\"=\"%s\"](%s);\n", typ, qlEscape(t.Key), qlEscape(t.Value), b)
		}
	}
	return fmt.Sprintf("[out:json][timeout:60];\n(\n%s);\nout center %d;\n", sel.String(), limit)
}

// qlEscape escapes backslashes and double quotes inside an Overpass string.
func qlEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// OSM discovers businesses from OpenStreetMap: the location is geocoded
// with Nominatim to a bounding box and the box is searched with Overpass.
type OSM struct {
	client osm.Client
}

// NewOSM creates the osm source.
func NewOSM(c osm.Client) *OSM {
	return &OSM{client: c}
}

func (s *OSM) Name() string    { return "osm" }
func (s *OSM) MaxResults() int { return OSMMaxResults }

func (s *OSM) Discover(ctx context.Context, q model.Query) ([]model.Lead, error) {
	place, err := s.client.Geocode(ctx, q.Location)
	if err != nil {
		return nil, eris.Wrapf(err, "osm: geocode %q", q.Location)
	}
	box, err := place.BBox()
	if err != nil {
		return nil, err
	}

	ql := BuildOverpassQuery(nicheWords(q.Niche), box, q.Limit, NicheTags(q.Niche))
	resp, err := s.client.Query(ctx, ql)
	if err != nil {
		return nil, eris.Wrap(err, "osm: overpass query")
	}

	leads := make([]model.Lead, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		leads = append(leads, elementLead(el))
	}
	return leads, nil
}

// elementLead maps an element's tags to a stub. Elements without a name
// produce a stub with an empty name, which Run counts as malformed.
func elementLead(el osm.Element) model.Lead {
	t := el.Tags
	l := model.Lead{
		Name:       strings.TrimSpace(t["name"]),
		City:       firstTag(t, "addr:city", "addr:town", "addr:suburb"),
		State:      t["addr:state"],
		PostalCode: t["addr:postcode"],
		Phone:      firstTag(t, "contact:phone", "phone"),
		Email:      firstTag(t, "contact:email", "email"),
	}
	applyWebsite(&l, firstTag(t, "contact:website", "website"))
	for _, p := range model.Platforms {
		if u := t["contact:"+p]; u != "" && model.SocialPlatform(u) == p {
			applyWebsite(&l, u)
		}
	}

	var parts []string
	for _, v := range []string{t["addr:street"], t["addr:housenumber"], l.City, l.State, l.PostalCode} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	l.Address = strings.Join(parts, ", ")
	l.Latitude, l.Longitude = el.Coordinates()
	return l
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}
