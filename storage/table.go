package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Table is a header-mapped view of a spreadsheet: rows above the header row
// are ignored, and blank rows below it are skipped.
type Table struct {
	Header []string
	Rows   []Row
}

// Row is one data row. Number is the 1-based line/row number in the source
// so problems can be reported against what the user sees in the sheet.
type Row struct {
	Number int
	cells  map[string]string
}

// NewRow maps record onto header. Short records leave trailing columns absent.
func NewRow(number int, header, record []string) Row {
	cells := make(map[string]string, len(header))
	for i, h := range header {
		if i >= len(record) {
			break
		}
		if _, dup := cells[h]; dup {
			continue
		}
		cells[h] = record[i]
	}
	return Row{Number: number, cells: cells}
}

// Lookup returns the trimmed cell under col. A cell that is missing or blank
// reports ok=false.
func (r Row) Lookup(col string) (string, bool) {
	v, ok := r.cells[col]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// HasColumn reports whether the header names col exactly.
func (t *Table) HasColumn(col string) bool {
	for _, h := range t.Header {
		if h == col {
			return true
		}
	}
	return false
}

// buildTable turns raw records into a Table. headerRow is 1-based.
func buildTable(records [][]string, headerRow int) (*Table, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	if len(records) < headerRow {
		return nil, fmt.Errorf("table: header row %d beyond end of data (%d rows)", headerRow, len(records))
	}

	header := make([]string, len(records[headerRow-1]))
	for i, h := range records[headerRow-1] {
		header[i] = strings.TrimPrefix(h, "\ufeff")
	}

	t := &Table{Header: header}
	for i := headerRow; i < len(records); i++ {
		if blank(records[i]) {
			continue
		}
		t.Rows = append(t.Rows, NewRow(i+1, header, records[i]))
	}
	return t, nil
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// OpenTable reads a .csv or .xlsx file. sheet is only used for workbooks
// (empty selects the first sheet).
func OpenTable(path, sheet string, headerRow int) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSXFile(path, sheet, headerRow)
	case ".csv", ".txt":
		return ReadCSVFile(path, headerRow)
	default:
		return nil, fmt.Errorf("table: unsupported file type %q", filepath.Ext(path))
	}
}
