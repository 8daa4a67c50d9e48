package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"zeitprognose/models"
)

// CSVWriter exports estimates, one line per system plus a project total line.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"label", "system", "product_type", "area_m2", "side_cladding", "roof_type", "trade_count",
		"drawing_time", "bom_time", "source", "provenance",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteEstimate appends the per-system lines of est followed by a "total" line.
func (c *CSVWriter) WriteEstimate(label string, systems []models.System, est models.ProjectEstimate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range est.Systems {
		var s models.System
		if r.Index >= 0 && r.Index < len(systems) {
			s = systems[r.Index]
		}
		row := []string{
			label,
			strconv.Itoa(r.Index + 1),
			cellString(s.ProductType),
			cellFloat(s.AreaM2),
			cellString(s.SideCladding),
			cellString(s.RoofType),
			cellInt(s.TradeCount),
			cellHours(r.Times.Drawing),
			cellHours(r.Times.BOM),
			string(r.Source),
			r.Provenance,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	total := []string{label, "total", "", "", "", "", "",
		cellHours(est.Times.Drawing), cellHours(est.Times.BOM), "", est.Provenance}
	if err := c.writer.Write(total); err != nil {
		return fmt.Errorf("csv: write total: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func cellString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cellFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func cellInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func cellHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}
