package storage

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReadXLSXFile reads one sheet of a workbook. Cell values come back as the
// sheet displays them, so numeric cells may carry a decimal comma.
func ReadXLSXFile(path, sheet string, headerRow int) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open %q: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx: %q has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}
	return buildTable(rows, headerRow)
}
