package discovery

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/pkg/serpapi"
)

type fakeSerp struct {
	pages  map[int]*serpapi.MapsResponse
	starts []int
}

func (f *fakeSerp) MapsSearch(_ context.Context, req serpapi.MapsRequest) (*serpapi.MapsResponse, error) {
	f.starts = append(f.starts, req.Start)
	if p, ok := f.pages[req.Start]; ok {
		return p, nil
	}
	return &serpapi.MapsResponse{}, nil
}

func fullPage(prefix string) *serpapi.MapsResponse {
	resp := &serpapi.MapsResponse{Pagination: &serpapi.Pagination{Next: "https://serpapi.com/next"}}
	for i := range serpapi.PageSize {
		resp.LocalResults = append(resp.LocalResults, serpapi.LocalResult{Title: fmt.Sprintf("%s %d", prefix, i)})
	}
	return resp
}

func TestSerpAPI_PaginatesByStart(t *testing.T) {
	last := &serpapi.MapsResponse{LocalResults: []serpapi.LocalResult{{
		Title:          "Acme Dental",
		Address:        "R. A, 100 - Centro, Belo Horizonte - MG, 30110-000",
		Phone:          "(31) 3333-4444",
		Website:        "https://acme.com.br/",
		Rating:         4.8,
		GPSCoordinates: serpapi.GPSCoordinates{Latitude: -19.92, Longitude: -43.94},
	}}}
	f := &fakeSerp{pages: map[int]*serpapi.MapsResponse{0: fullPage("a"), 20: fullPage("b"), 40: last}}

	res, err := Run(context.Background(), NewSerpAPI(f, nil, "br", "pt"), model.Query{Niche: "dentista", Location: "BH", Limit: 100})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 20, 40}, f.starts)
	require.Len(t, res.Leads, 41)
	acme := res.Leads[40]
	assert.Equal(t, "Acme Dental", acme.Name)
	assert.Equal(t, "MG", acme.State)
	assert.InDelta(t, 4.8, acme.Rating, 1e-9)
	assert.InDelta(t, -43.94, acme.Longitude, 1e-9)
}

func TestSerpAPI_LimitStopsPaging(t *testing.T) {
	f := &fakeSerp{pages: map[int]*serpapi.MapsResponse{0: fullPage("a"), 20: fullPage("b")}}
	res, err := Run(context.Background(), NewSerpAPI(f, nil, "br", "pt"), model.Query{Niche: "dentista", Location: "BH", Limit: 15})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, f.starts)
	assert.Len(t, res.Leads, 15)
}
