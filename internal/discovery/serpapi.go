package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/pkg/serpapi"
)

// SerpAPIMaxResults caps Google Maps pagination through SerpAPI.
const SerpAPIMaxResults = 100

// SerpAPI discovers businesses from Google Maps results scraped by SerpAPI.
type SerpAPI struct {
	client   serpapi.Client
	calc     *cost.Calculator
	country  string
	language string
}

// NewSerpAPI creates the serpapi source.
func NewSerpAPI(c serpapi.Client, calc *cost.Calculator, country, language string) *SerpAPI {
	if calc == nil {
		calc = cost.NewCalculator(cost.Rates{})
	}
	return &SerpAPI{client: c, calc: calc, country: country, language: language}
}

func (s *SerpAPI) Name() string    { return "serpapi" }
func (s *SerpAPI) MaxResults() int { return SerpAPIMaxResults }

func (s *SerpAPI) Discover(ctx context.Context, q model.Query) ([]model.Lead, error) {
	var leads []model.Lead
	for start := 0; len(leads) < q.Limit; start += serpapi.PageSize {
		resp, err := s.client.MapsSearch(ctx, serpapi.MapsRequest{
			Query:    q.Niche,
			Location: q.Location,
			Language: s.language,
			Country:  s.country,
			Start:    start,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "serpapi: page at %d", start)
		}
		cost.Charge(ctx, s.Name(), s.calc.SerpAPI(1))

		for _, r := range resp.LocalResults {
			leads = append(leads, localResultLead(r))
		}
		if len(resp.LocalResults) < serpapi.PageSize || resp.Pagination == nil || resp.Pagination.Next == "" {
			break
		}
	}
	return leads, nil
}

func localResultLead(r serpapi.LocalResult) model.Lead {
	l := model.Lead{
		Name:      strings.TrimSpace(r.Title),
		Address:   r.Address,
		Phone:     r.Phone,
		Rating:    r.Rating,
		Latitude:  r.GPSCoordinates.Latitude,
		Longitude: r.GPSCoordinates.Longitude,
	}
	l.City, l.State, l.PostalCode = parseAddress(r.Address)
	applyWebsite(&l, r.Website)
	return l
}
