package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/pkg/google"
)

const (
	// PlacesMaxResults is the most Text Search returns across its pages.
	PlacesMaxResults = 60
	placesPageSize   = 20
)

// Places discovers businesses with Google Places Text Search.
type Places struct {
	client   google.Client
	calc     *cost.Calculator
	region   string
	language string
}

// NewPlaces creates the places source. region and language bias results,
// e.g. "br" and "pt-BR".
func NewPlaces(c google.Client, calc *cost.Calculator, region, language string) *Places {
	if calc == nil {
		calc = cost.NewCalculator(cost.Rates{})
	}
	return &Places{client: c, calc: calc, region: region, language: language}
}

func (s *Places) Name() string    { return "places" }
func (s *Places) MaxResults() int { return PlacesMaxResults }

func (s *Places) Discover(ctx context.Context, q model.Query) ([]model.Lead, error) {
	req := google.TextSearchRequest{
		TextQuery:    q.Niche + " " + q.Location,
		RegionCode:   s.region,
		LanguageCode: s.language,
		PageSize:     min(placesPageSize, q.Limit),
	}

	var leads []model.Lead
	for len(leads) < q.Limit {
		resp, err := s.client.TextSearch(ctx, req)
		if err != nil {
			return nil, eris.Wrap(err, "places: text search")
		}
		cost.Charge(ctx, s.Name(), s.calc.Places(1))

		for _, p := range resp.Places {
			leads = append(leads, placeLead(p))
		}
		if resp.NextPageToken == "" || len(resp.Places) == 0 {
			break
		}
		req.PageToken = resp.NextPageToken
	}
	return leads, nil
}

func placeLead(p google.Place) model.Lead {
	l := model.Lead{
		Name:      strings.TrimSpace(p.DisplayName.Text),
		Address:   p.FormattedAddress,
		Phone:     p.NationalPhoneNumber,
		Rating:    p.Rating,
		Latitude:  p.Location.Latitude,
		Longitude: p.Location.Longitude,
	}
	if l.Phone == "" {
		l.Phone = p.InternationalPhoneNumber
	}
	l.City, l.State, l.PostalCode = parseAddress(p.FormattedAddress)
	applyWebsite(&l, p.WebsiteURI)
	return l
}
