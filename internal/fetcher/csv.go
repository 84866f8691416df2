// Package fetcher issues provider HTTP calls and reads tabular input files.
package fetcher

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures ReadCSV.
type CSVOptions struct {
	// Delimiter is detected from the first line when zero: ';' when it
	// appears more often than ',', else ','.
	Delimiter rune
	TrimSpace bool
}

// ReadCSV reads every record from r. A leading UTF-8 BOM is skipped and rows
// may have different lengths.
func ReadCSV(r io.Reader, opts CSVOptions) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(3)
	}

	if opts.Delimiter == 0 {
		opts.Delimiter = sniffDelimiter(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if opts.TrimSpace {
			for i := range rec {
				rec[i] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, rec)
	}
}

func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// ReadTable reads a CSV or XLSX file, chosen by extension, into rows.
func ReadTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "csv: open file")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f, CSVOptions{TrimSpace: true})
	default:
		return nil, eris.Errorf("fetcher: unsupported table file %q", filepath.Base(path))
	}
}
