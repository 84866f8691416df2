package registry

import (
	"context"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

// Match confidences for registry search hits.
const (
	confidenceExact    = 1.0
	confidenceContains = 0.7
	// unlocatedPenalty scales confidence when the lead has no city or state
	// to narrow the search.
	unlocatedPenalty = 0.8
)

// SearchPageSize is the largest page the search API returns.
const SearchPageSize = 20

// SearchFields are the fields a registry search by name can supply.
var SearchFields = []string{
	model.FieldRegistrationID,
	model.FieldLegalName,
	model.FieldTradeName,
}

// SearchRequest filters the Casa dos Dados company search. Empty filters
// are omitted.
type SearchRequest struct {
	Term         string
	ActivityCode string
	City         string
	State        string
	ActiveOnly   bool
	Page         int
}

// SearchCompany is one search hit.
type SearchCompany struct {
	CNPJ         string `json:"cnpj"`
	RazaoSocial  string `json:"razao_social"`
	NomeFantasia string `json:"nome_fantasia"`
	Situacao     string `json:"situacao_cadastral"`
	Municipio    string `json:"municipio"`
	UF           string `json:"uf"`
}

// SearchResponse is one page of search hits.
type SearchResponse struct {
	Total int             `json:"total"`
	CNPJs []SearchCompany `json:"cnpjs"`
}

type searchBody struct {
	Query searchQuery `json:"query"`
	Page  int         `json:"pagina"`
	Limit int         `json:"limite"`
}

type searchQuery struct {
	Term          []string `json:"termo,omitempty"`
	Activity      []string `json:"atividade_principal,omitempty"`
	Municipio     []string `json:"municipio,omitempty"`
	UF            []string `json:"uf,omitempty"`
	SituacaoAtiva []string `json:"situacao_cadastral,omitempty"`
}

// CasaDosDados searches the registry by name or activity code. It backs
// both the cnae discovery source and the casadosdados enrichment provider.
type CasaDosDados struct {
	client
}

// NewCasaDosDados creates the Casa dos Dados client.
func NewCasaDosDados(f *fetcher.Client, opts ...Option) *CasaDosDados {
	return &CasaDosDados{client: newClient("casadosdados", "https://api.casadosdados.com.br", f, opts)}
}

// Search returns one page of companies matching req.
func (p *CasaDosDados) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var q searchQuery
	if t := squash(req.Term); t != "" {
		q.Term = []string{t}
	}
	if a := model.Digits(req.ActivityCode); a != "" {
		q.Activity = []string{a}
	}
	if c := squash(req.City); c != "" {
		q.Municipio = []string{strings.ToLower(c)}
	}
	if s := squash(req.State); s != "" {
		q.UF = []string{strings.ToLower(s)}
	}
	if req.ActiveOnly {
		q.SituacaoAtiva = []string{"ATIVA"}
	}
	page := max(req.Page, 1)

	var h http.Header
	if p.token != "" {
		h = http.Header{"api-key": {p.token}}
	}

	var resp SearchResponse
	if err := p.post(ctx, "/v5/cnpj/pesquisa", h, searchBody{Query: q, Page: page, Limit: SearchPageSize}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *CasaDosDados) Name() string              { return p.name }
func (p *CasaDosDados) SupportedFields() []string { return SearchFields }

// Ready requires a name and no registration id; leads that already carry
// one are served by the lookup providers.
func (p *CasaDosDados) Ready(lead model.Lead) bool {
	return strings.TrimSpace(lead.Name) != "" && model.NormalizeRegistrationID(lead.RegistrationID) == ""
}

func (p *CasaDosDados) Enrich(ctx context.Context, lead model.Lead) (*provider.Result, error) {
	resp, err := p.Search(ctx, SearchRequest{Term: lead.Name, City: lead.City, State: lead.State})
	if err != nil {
		return nil, err
	}
	usd := p.calc.Registry(1)

	hit, confidence := bestMatch(lead.Name, resp.CNPJs)
	if hit == nil {
		return nil, eris.Wrapf(provider.ErrNoMatch, "casadosdados: no company named %q", lead.Name)
	}
	if strings.TrimSpace(lead.City) == "" && strings.TrimSpace(lead.State) == "" {
		confidence *= unlocatedPenalty
	}

	return &provider.Result{
		Provider: p.name,
		Fields: model.FieldSet{
			RegistrationID: hit.CNPJ,
			LegalName:      hit.RazaoSocial,
			TradeName:      hit.NomeFantasia,
		},
		MatchConfidence: confidence,
		CostUSD:         usd,
	}, nil
}

// bestMatch picks the first hit whose legal or trade name equals name
// after normalization, falling back to the first containment match.
func bestMatch(name string, hits []SearchCompany) (*SearchCompany, float64) {
	want := model.NormalizeName(name)
	if want == "" {
		return nil, 0
	}
	var contains *SearchCompany
	for i := range hits {
		h := &hits[i]
		if model.NormalizeRegistrationID(h.CNPJ) == "" {
			continue
		}
		for _, n := range []string{h.NomeFantasia, h.RazaoSocial} {
			got := model.NormalizeName(n)
			if got == "" {
				continue
			}
			if got == want {
				return h, confidenceExact
			}
			if contains == nil && (strings.Contains(got, want) || strings.Contains(want, got)) {
				contains = h
			}
		}
	}
	if contains != nil {
		return contains, confidenceContains
	}
	return nil, 0
}
