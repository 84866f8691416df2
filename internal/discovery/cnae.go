package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/registry"
)

// CNAEMaxResults caps a registry activity-code crawl.
const CNAEMaxResults = 200

// nicheCNAETable maps niche terms to CNAE subclasses. Longer terms first.
var nicheCNAETable = []struct {
	niche string
	code  string
}{
	{"clinica odontologica", "8630504"},
	{"dentista", "8630504"},
	{"restaurante", "5611201"},
	{"pizzaria", "5611201"},
	{"lanchonete", "5611203"},
	{"academia", "9313100"},
	{"hotel", "5510801"},
	{"pousada", "5590601"},
	{"supermercado", "4711302"},
	{"mercado", "4712100"},
	{"materiais de construcao", "4744099"},
	{"loja de pisos", "4744099"},
	{"pet shop", "4789004"},
	{"clinica", "8630503"},
	{"farmacia", "4771701"},
	{"escritorio de contabilidade", "6920601"},
	{"contabilidade", "6920601"},
	{"advogado", "6911701"},
	{"autoescola", "8599601"},
	{"oficina mecanica", "4520001"},
}

// ActivityCode resolves a niche to a 7-digit CNAE code. A niche that is
// already a code, in any punctuation, is returned as digits.
func ActivityCode(niche string) (string, bool) {
	if d := model.Digits(niche); len(d) == 7 {
		return d, true
	}
	n := model.NormalizeName(niche)
	for _, e := range nicheCNAETable {
		if strings.Contains(n, e.niche) {
			return e.code, true
		}
	}
	return "", false
}

// Searcher is the registry search the cnae source pages through.
type Searcher interface {
	Search(ctx context.Context, req registry.SearchRequest) (*registry.SearchResponse, error)
}

// CNAE discovers active companies registered under an activity code in a
// city or state. Stubs carry only name and registration id.
type CNAE struct {
	searcher Searcher
}

// NewCNAE creates the cnae source.
func NewCNAE(s Searcher) *CNAE {
	return &CNAE{searcher: s}
}

func (s *CNAE) Name() string    { return "cnae" }
func (s *CNAE) MaxResults() int { return CNAEMaxResults }

func (s *CNAE) Discover(ctx context.Context, q model.Query) ([]model.Lead, error) {
	code, ok := ActivityCode(q.Niche)
	if !ok {
		return nil, eris.Wrapf(ErrInvalidQuery, "cnae: no activity code for niche %q", q.Niche)
	}
	city, state := parseLocation(q.Location)

	var leads []model.Lead
	for page := 1; len(leads) < q.Limit; page++ {
		resp, err := s.searcher.Search(ctx, registry.SearchRequest{
			ActivityCode: code,
			City:         city,
			State:        state,
			ActiveOnly:   true,
			Page:         page,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "cnae: search page %d", page)
		}
		for _, c := range resp.CNPJs {
			name := strings.TrimSpace(c.NomeFantasia)
			if name == "" {
				name = strings.TrimSpace(c.RazaoSocial)
			}
			leads = append(leads, model.Lead{
				Name:           name,
				LegalName:      c.RazaoSocial,
				RegistrationID: c.CNPJ,
			})
		}
		if len(resp.CNPJs) < registry.SearchPageSize {
			break
		}
	}
	return leads, nil
}
