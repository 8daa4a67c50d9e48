package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV parses a historical table export. The delimiter is sniffed from
// the header line: spreadsheet exports with a German locale use ';'.
func ReadCSV(r io.Reader, headerRow int) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("csv: read: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data, headerRow)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse: %w", err)
	}
	return buildTable(records, headerRow)
}

// ReadCSVFile opens path and calls ReadCSV.
func ReadCSVFile(path string, headerRow int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, headerRow)
}

func sniffDelimiter(data []byte, headerRow int) rune {
	lines := bytes.SplitN(data, []byte("\n"), headerRow+1)
	line := lines[len(lines)-1]
	if headerRow >= 1 && headerRow <= len(lines) {
		line = lines[headerRow-1]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
