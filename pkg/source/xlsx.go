// Package source reads legacy spreadsheet exports as ordered rows of named
// fields. Everything downstream works on Row values, so the orchestrator
// never sees the spreadsheet library.
package source

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one spreadsheet row keyed by the header row's column names.
// Index is the 1-based data row position (header excluded), used for
// error messages and duplicate-identifier suffixes.
type Row struct {
	Index  int
	fields map[string]string
}

// NewRow builds a row directly; tests and fixtures use it in place of a
// spreadsheet file.
func NewRow(index int, fields map[string]string) Row {
	return Row{Index: index, fields: fields}
}

// Get returns the trimmed cell under a header name, "" when the column is
// missing or empty.
func (r Row) Get(name string) string {
	return strings.TrimSpace(r.fields[name])
}

// ReadSheet loads the first sheet of an xlsx export. The first row is the
// header; every later row becomes a Row keyed by those headers. A limit
// above zero caps the number of data rows read.
func ReadSheet(path string, limit int) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []Row
	for i, cells := range raw[1:] {
		if limit > 0 && len(rows) >= limit {
			break
		}
		fields := make(map[string]string, len(headers))
		for col, header := range headers {
			if header == "" {
				continue
			}
			if col < len(cells) {
				fields[header] = cells[col]
			}
		}
		rows = append(rows, Row{Index: i + 1, fields: fields})
	}

	return rows, nil
}
