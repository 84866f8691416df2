package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
)

// CNPJListMaxResults caps how many rows one file import reads.
const CNPJListMaxResults = 10000

// CNPJList reads registration ids from a CSV or XLSX file. The column is
// the first whose header contains "cnpj"; without one, the first column
// is used and every row is data.
type CNPJList struct {
	path string
}

// NewCNPJList creates a file source for path.
func NewCNPJList(path string) *CNPJList {
	return &CNPJList{path: path}
}

func (s *CNPJList) Name() string    { return "cnpjlist" }
func (s *CNPJList) MaxResults() int { return CNPJListMaxResults }
func (s *CNPJList) Path() string    { return s.path }

// Discover returns one stub per row named by the formatted registration
// id. Rows whose id does not normalize produce unnamed stubs.
func (s *CNPJList) Discover(_ context.Context, q model.Query) ([]model.Lead, error) {
	rows, err := fetcher.ReadTable(s.path)
	if err != nil {
		return nil, eris.Wrap(err, "cnpjlist: read file")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col, start := 0, 0
	for i, h := range rows[0] {
		if strings.Contains(strings.ToLower(h), "cnpj") {
			col, start = i, 1
			break
		}
	}

	var leads []model.Lead
	for _, row := range rows[start:] {
		if len(leads) == q.Limit {
			break
		}
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		id := model.NormalizeRegistrationID(row[col])
		leads = append(leads, model.Lead{
			Name:           model.FormatRegistrationID(id),
			RegistrationID: id,
		})
	}
	return leads, nil
}
