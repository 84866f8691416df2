package registry

import (
	"context"
	"strconv"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/waterfall/provider"
)

// BrasilAPI looks companies up on the free BrasilAPI CNPJ endpoint, which
// mirrors the federal registry with snake_case Portuguese field names.
type BrasilAPI struct {
	client
}

// NewBrasilAPI creates the brasilapi provider.
func NewBrasilAPI(f *fetcher.Client, opts ...Option) *BrasilAPI {
	return &BrasilAPI{client: newClient("brasilapi", "https://brasilapi.com.br/api", f, opts)}
}

type brasilAPICompany struct {
	CNPJ                string           `json:"cnpj"`
	RazaoSocial         string           `json:"razao_social"`
	NomeFantasia        string           `json:"nome_fantasia"`
	SituacaoCadastral   string           `json:"descricao_situacao_cadastral"`
	CNAEFiscal          int64            `json:"cnae_fiscal"`
	CNAEFiscalDescricao string           `json:"cnae_fiscal_descricao"`
	Logradouro          string           `json:"logradouro"`
	Numero              string           `json:"numero"`
	Complemento         string           `json:"complemento"`
	Bairro              string           `json:"bairro"`
	Municipio           string           `json:"municipio"`
	UF                  string           `json:"uf"`
	CEP                 string           `json:"cep"`
	DDDTelefone1        string           `json:"ddd_telefone_1"`
	DDDTelefone2        string           `json:"ddd_telefone_2"`
	Email               string           `json:"email"`
	QSA                 []brasilAPISocio `json:"qsa"`
}

type brasilAPISocio struct {
	NomeSocio string `json:"nome_socio"`
}

func (p *BrasilAPI) Name() string               { return p.name }
func (p *BrasilAPI) SupportedFields() []string  { return LookupFields }
func (p *BrasilAPI) Ready(lead model.Lead) bool { return lookupReady(lead) }

func (p *BrasilAPI) Enrich(ctx context.Context, lead model.Lead) (*provider.Result, error) {
	id := model.NormalizeRegistrationID(lead.RegistrationID)

	var c brasilAPICompany
	if err := p.get(ctx, "/cnpj/v1/"+id, nil, &c); err != nil {
		return nil, err
	}
	if c.RazaoSocial == "" {
		return nil, provider.ErrNoMatch
	}

	fs := model.FieldSet{
		LegalName:           c.RazaoSocial,
		TradeName:           c.NomeFantasia,
		RegistrationStatus:  c.SituacaoCadastral,
		ActivityDescription: c.CNAEFiscalDescricao,
		Address:             joinAddress(c.Logradouro, c.Numero, c.Complemento, c.Bairro),
		City:                titleCity(c.Municipio),
		State:               c.UF,
		PostalCode:          postalCode(c.CEP),
		Phone:               firstPhone(c.DDDTelefone1 + "/" + c.DDDTelefone2),
		Email:               c.Email,
	}
	if c.CNAEFiscal > 0 {
		fs.ActivityCode = strconv.FormatInt(c.CNAEFiscal, 10)
	}
	for _, s := range c.QSA {
		fs.Officers = append(fs.Officers, s.NomeSocio)
	}
	return lookupResult(p.name, fs, 0), nil
}
