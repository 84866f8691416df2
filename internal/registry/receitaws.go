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

// ReceitaWS looks companies up on receitaws.com.br. The free tier allows
// three requests per minute; a token lifts that.
type ReceitaWS struct {
	client
}

// NewReceitaWS creates the receitaws provider.
func NewReceitaWS(f *fetcher.Client, opts ...Option) *ReceitaWS {
	return &ReceitaWS{client: newClient("receitaws", "https://receitaws.com.br/v1", f, opts)}
}

// receitaWSCompany uses the service's short, flat field names.
type receitaWSCompany struct {
	Status      string           `json:"status"`
	Message     string           `json:"message"`
	Nome        string           `json:"nome"`
	Fantasia    string           `json:"fantasia"`
	Situacao    string           `json:"situacao"`
	Atividade   []receitaWSCode  `json:"atividade_principal"`
	Logradouro  string           `json:"logradouro"`
	Numero      string           `json:"numero"`
	Complemento string           `json:"complemento"`
	Bairro      string           `json:"bairro"`
	Municipio   string           `json:"municipio"`
	UF          string           `json:"uf"`
	CEP         string           `json:"cep"`
	Telefone    string           `json:"telefone"`
	Email       string           `json:"email"`
	QSA         []receitaWSSocio `json:"qsa"`
}

type receitaWSCode struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

type receitaWSSocio struct {
	Nome string `json:"nome"`
	Qual string `json:"qual"`
}

func (p *ReceitaWS) Name() string               { return p.name }
func (p *ReceitaWS) SupportedFields() []string  { return LookupFields }
func (p *ReceitaWS) Ready(lead model.Lead) bool { return lookupReady(lead) }

func (p *ReceitaWS) Enrich(ctx context.Context, lead model.Lead) (*provider.Result, error) {
	id := model.NormalizeRegistrationID(lead.RegistrationID)

	var h http.Header
	if p.token != "" {
		h = http.Header{"Authorization": {"Bearer " + p.token}}
	}

	var c receitaWSCompany
	if err := p.get(ctx, "/cnpj/"+id, h, &c); err != nil {
		return nil, err
	}
	// Errors come back as 200 with status ERROR.
	if strings.EqualFold(c.Status, "ERROR") || c.Nome == "" {
		return nil, eris.Wrapf(provider.ErrNoMatch, "receitaws: %s", c.Message)
	}

	fs := model.FieldSet{
		LegalName:          c.Nome,
		TradeName:          c.Fantasia,
		RegistrationStatus: c.Situacao,
		Address:            joinAddress(c.Logradouro, c.Numero, c.Complemento, c.Bairro),
		City:               titleCity(c.Municipio),
		State:              c.UF,
		PostalCode:         postalCode(c.CEP),
		Phone:              firstPhone(c.Telefone),
		Email:              c.Email,
	}
	if len(c.Atividade) > 0 {
		fs.ActivityCode = model.Digits(c.Atividade[0].Code)
		fs.ActivityDescription = c.Atividade[0].Text
	}
	for _, s := range c.QSA {
		fs.Officers = append(fs.Officers, s.Nome)
	}
	return lookupResult(p.name, fs, 0), nil
}
