package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/cost"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/pkg/google"
	"github.com/sells-group/leads-cli/pkg/google/mocks"
)

func place(name, addr, site string) google.Place {
	return google.Place{DisplayName: google.DisplayName{Text: name}, FormattedAddress: addr, WebsiteURI: site, NationalPhoneNumber: "(31) 3333-4444"}
}

func TestPlaces_PaginatesWithToken(t *testing.T) {
	g := mocks.NewMockClient(t)
	g.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.PageToken == "" && r.TextQuery == "dentista Belo Horizonte" && r.RegionCode == "br" && r.PageSize == 20
	})).Return(&google.TextSearchResponse{
		Places:        []google.Place{place("Acme Dental", "R. A, 100 - Centro, Belo Horizonte - MG, 30110-000, Brazil", "https://acme.com.br")},
		NextPageToken: "page-2",
	}, nil).Once()
	g.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.PageToken == "page-2"
	})).Return(&google.TextSearchResponse{
		Places: []google.Place{place("Sorriso", "", "https://facebook.com/sorriso")},
	}, nil).Once()

	src := NewPlaces(g, cost.NewCalculator(cost.Rates{PlacesPerRequest: 0.032}), "br", "pt-BR")
	res, err := Run(context.Background(), src, model.Query{Niche: "dentista", Location: "Belo Horizonte", Limit: 40})
	require.NoError(t, err)

	require.Len(t, res.Leads, 2)
	assert.InDelta(t, 0.064, res.CostUSD, 1e-9)

	acme := res.Leads[0]
	assert.Equal(t, "Belo Horizonte", acme.City)
	assert.Equal(t, "MG", acme.State)
	assert.Equal(t, "30110-000", acme.PostalCode)
	assert.Equal(t, "3133334444", acme.Phone)
	assert.Equal(t, "https://acme.com.br", acme.Website)

	sorriso := res.Leads[1]
	assert.Empty(t, sorriso.Website)
	assert.Equal(t, "https://facebook.com/sorriso", sorriso.SocialLinks[model.PlatformFacebook])
}

func TestPlaces_StopsAtLimit(t *testing.T) {
	g := mocks.NewMockClient(t)
	g.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.PageSize == 2
	})).Return(&google.TextSearchResponse{
		Places:        []google.Place{place("A", "", ""), place("B", "", "")},
		NextPageToken: "more",
	}, nil).Once()

	src := NewPlaces(g, nil, "br", "pt-BR")
	res, err := Run(context.Background(), src, model.Query{Niche: "dentista", Location: "BH", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Leads, 2)
}

func TestPlaces_ErrorFailsDiscovery(t *testing.T) {
	g := mocks.NewMockClient(t)
	g.On("TextSearch", mock.Anything, mock.Anything).Return(nil, errors.New("403 forbidden")).Once()

	_, err := Run(context.Background(), NewPlaces(g, nil, "", ""), model.Query{Niche: "dentista", Location: "BH"})
	var df *DiscoveryFailure
	require.ErrorAs(t, err, &df)
	assert.Equal(t, "places", df.Source)
}
