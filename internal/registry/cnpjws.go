package registry

import (
	"context"
	"net/http"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

// CNPJWS looks companies up on cnpj.ws. Without a token it uses the public
// API; with one, the commercial host passed through WithBaseURL.
type CNPJWS struct {
	client
}

// NewCNPJWS creates the cnpjws provider.
func NewCNPJWS(f *fetcher.Client, opts ...Option) *CNPJWS {
	return &CNPJWS{client: newClient("cnpjws", "https://publica.cnpj.ws", f, opts)}
}

// cnpjWSCompany nests the establishment under "estabelecimento" and the
// partners under "socios".
type cnpjWSCompany struct {
	RazaoSocial     string                `json:"razao_social"`
	Estabelecimento cnpjWSEstabelecimento `json:"estabelecimento"`
	Socios          []cnpjWSSocio         `json:"socios"`
}

type cnpjWSEstabelecimento struct {
	CNPJ               string         `json:"cnpj"`
	NomeFantasia       string         `json:"nome_fantasia"`
	SituacaoCadastral  string         `json:"situacao_cadastral"`
	AtividadePrincipal cnpjWSActivity `json:"atividade_principal"`
	TipoLogradouro     string         `json:"tipo_logradouro"`
	Logradouro         string         `json:"logradouro"`
	Numero             string         `json:"numero"`
	Complemento        string         `json:"complemento"`
	Bairro             string         `json:"bairro"`
	CEP                string         `json:"cep"`
	DDD1               string         `json:"ddd1"`
	Telefone1          string         `json:"telefone1"`
	Email              string         `json:"email"`
	Cidade             cnpjWSNamed    `json:"cidade"`
	Estado             cnpjWSEstado   `json:"estado"`
}

type cnpjWSActivity struct {
	ID        string `json:"id"`
	Subclasse string `json:"subclasse"`
	Descricao string `json:"descricao"`
}

type cnpjWSNamed struct {
	Nome string `json:"nome"`
}

type cnpjWSEstado struct {
	Sigla string `json:"sigla"`
}

type cnpjWSSocio struct {
	Nome string `json:"nome"`
}

func (p *CNPJWS) Name() string               { return p.name }
func (p *CNPJWS) SupportedFields() []string  { return LookupFields }
func (p *CNPJWS) Ready(lead model.Lead) bool { return lookupReady(lead) }

func (p *CNPJWS) Enrich(ctx context.Context, lead model.Lead) (*provider.Result, error) {
	id := model.NormalizeRegistrationID(lead.RegistrationID)

	var h http.Header
	usd := 0.0
	if p.token != "" {
		h = http.Header{"x_api_token": {p.token}}
		usd = p.calc.CNPJWS(1)
	}

	var c cnpjWSCompany
	if err := p.get(ctx, "/cnpj/"+id, h, &c); err != nil {
		return nil, err
	}
	if c.RazaoSocial == "" {
		return nil, provider.ErrNoMatch
	}

	e := c.Estabelecimento
	street := e.Logradouro
	if e.TipoLogradouro != "" {
		street = e.TipoLogradouro + " " + e.Logradouro
	}
	fs := model.FieldSet{
		LegalName:           c.RazaoSocial,
		TradeName:           e.NomeFantasia,
		RegistrationStatus:  e.SituacaoCadastral,
		ActivityCode:        model.Digits(firstNonEmpty(e.AtividadePrincipal.Subclasse, e.AtividadePrincipal.ID)),
		ActivityDescription: e.AtividadePrincipal.Descricao,
		Address:             joinAddress(street, e.Numero, e.Complemento, e.Bairro),
		City:                titleCity(e.Cidade.Nome),
		State:               e.Estado.Sigla,
		PostalCode:          postalCode(e.CEP),
		Email:               e.Email,
	}
	if e.Telefone1 != "" {
		fs.Phone = e.DDD1 + e.Telefone1
	}
	for _, s := range c.Socios {
		fs.Officers = append(fs.Officers, s.Nome)
	}
	return lookupResult(p.name, fs, usd), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
