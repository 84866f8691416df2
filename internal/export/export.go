// Package export flattens leads into spreadsheet rows and writes them as
// CSV, XLSX or a terminal table.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leads-cli/internal/model"
)

// Column keys beyond the lead field keys.
const (
	ColName      = "name"
	ColRating    = "rating"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColTier      = "tier"
	ColSources   = "sources"
)

const bom = "\ufeff"

// Formats accepted by Write.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Columns is the stable export column order.
var Columns = []string{
	ColName,
	model.FieldLegalName,
	model.FieldTradeName,
	model.FieldRegistrationID,
	model.FieldRegistrationStatus,
	model.FieldActivityCode,
	model.FieldActivityDescription,
	model.FieldAddress,
	model.FieldCity,
	model.FieldState,
	model.FieldPostalCode,
	model.FieldPhone,
	model.FieldEmail,
	model.FieldWebsite,
	model.FieldSocialLinks,
	model.FieldOfficers,
	ColRating,
	ColLatitude,
	ColLongitude,
	ColTier,
	ColSources,
}

// tableColumns is the narrow set rendered in the terminal.
var tableColumns = []string{ColTier, ColName, model.FieldPhone, model.FieldEmail, model.FieldWebsite, model.FieldRegistrationID}

// Row flattens a lead into column values. Officers are joined with "; "
// and social links render as "platform: url" joined with " | " in
// platform order.
func Row(l model.Lead) map[string]string {
	row := map[string]string{
		ColName:                        l.Name,
		model.FieldLegalName:           l.LegalName,
		model.FieldTradeName:           l.TradeName,
		model.FieldRegistrationID:      model.FormatRegistrationID(l.RegistrationID),
		model.FieldRegistrationStatus:  l.RegistrationStatus,
		model.FieldActivityCode:        l.ActivityCode,
		model.FieldActivityDescription: l.ActivityDescription,
		model.FieldAddress:             l.Address,
		model.FieldCity:                l.City,
		model.FieldState:               l.State,
		model.FieldPostalCode:          l.PostalCode,
		model.FieldPhone:               l.Phone,
		model.FieldEmail:               l.Email,
		model.FieldWebsite:             l.Website,
		model.FieldSocialLinks:         socialLinks(l.SocialLinks),
		model.FieldOfficers:            strings.Join(l.Officers, "; "),
		ColRating:                      formatFloat(l.Rating),
		ColLatitude:                    formatFloat(l.Latitude),
		ColLongitude:                   formatFloat(l.Longitude),
		ColTier:                        l.Tier().String(),
		ColSources:                     strings.Join(l.Sources, ", "),
	}
	return row
}

func socialLinks(links map[string]string) string {
	var parts []string
	for _, p := range model.Platforms {
		if u := links[p]; u != "" {
			parts = append(parts, p+": "+u)
		}
	}
	// Unknown platforms go last, sorted.
	var extra []string
	for p, u := range links {
		if u != "" && !isPlatform(p) {
			extra = append(extra, p+": "+u)
		}
	}
	sort.Strings(extra)
	return strings.Join(append(parts, extra...), " | ")
}

func isPlatform(p string) bool {
	for _, k := range model.Platforms {
		if k == p {
			return true
		}
	}
	return false
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func values(l model.Lead, cols []string) []string {
	row := Row(l)
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = row[c]
	}
	return out
}

// WriteCSV writes a header and one row per lead. The output starts with a
// UTF-8 byte order mark so spreadsheet apps detect the encoding.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return eris.Wrap(err, "export: write bom")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, l := range leads {
		if err := cw.Write(values(l, Columns)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteXLSX writes a single "leads" sheet.
func WriteXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	addRow(sheet, Columns)
	for _, l := range leads {
		addRow(sheet, values(l, Columns))
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// Write encodes leads in format to w.
func Write(w io.Writer, format string, leads []model.Lead) error {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		return WriteCSV(w, leads)
	case FormatXLSX:
		return WriteXLSX(w, leads)
	}
	return eris.Errorf("export: unknown format %q", format)
}

// WriteFile writes leads to dir/name.<format>, creating dir, and returns
// the path written.
func WriteFile(dir, name, format string, leads []model.Lead) (string, error) {
	if format == "" {
		format = FormatCSV
	}
	format = strings.ToLower(format)
	if format != FormatCSV && format != FormatXLSX {
		return "", eris.Errorf("export: unknown format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create dir %s", dir)
	}
	path := filepath.Join(dir, name+"."+format)
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "export: create %s", path)
	}
	if err := Write(f, format, leads); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "export: close %s", path)
	}
	return path, nil
}

// ContentType returns the HTTP media type for format.
func ContentType(format string) string {
	if strings.EqualFold(format, FormatXLSX) {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// RenderTable writes a compact table of leads for the terminal.
func RenderTable(w io.Writer, leads []model.Lead) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := make(table.Row, len(tableColumns))
	for i, c := range tableColumns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, l := range leads {
		vals := values(l, tableColumns)
		row := make(table.Row, len(vals))
		for i, v := range vals {
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", strconv.Itoa(len(leads)) + " leads"})
	t.Render()
}
