package services

import (
	"context"
	"fmt"
	"strconv"

	"zeitprognose/config"
	"zeitprognose/models"
	"zeitprognose/storage"
	"zeitprognose/utils"
)

// ParseReport summarises one pass over the historical table.
type ParseReport struct {
	RowsRead    int
	RowsSkipped int
	Warnings    []error // *models.RowError, or a bare missing-column error
}

// HistoryParser turns sheet rows into HistoricalProjects. Rows whose
// system count or totals are unusable are skipped; attribute cells that
// cannot be parsed leave that attribute absent.
type HistoryParser struct {
	columns config.ColumnMapping
	logger  *utils.Logger
}

// NewHistoryParser creates a HistoryParser for the given column mapping.
func NewHistoryParser(columns config.ColumnMapping, logger *utils.Logger) *HistoryParser {
	return &HistoryParser{columns: columns, logger: logger}
}

// Parse reads every row of t. It never fails: problems are reported as
// warnings and the affected rows or attributes are dropped.
func (h *HistoryParser) Parse(t *storage.Table) ([]models.HistoricalProject, ParseReport) {
	report := ParseReport{RowsRead: len(t.Rows)}

	for _, col := range []string{h.columns.SystemCount, h.columns.DrawingTime, h.columns.BOMTime} {
		if !t.HasColumn(col) {
			err := fmt.Errorf("column %q: %w", col, models.ErrMissingColumn)
			report.Warnings = append(report.Warnings, err)
			h.logger.Warn("[history] %v, every row will be skipped", err)
		}
	}

	maxSystems := h.systemSlots(t)
	projects := make([]models.HistoricalProject, 0, len(t.Rows))
	for _, row := range t.Rows {
		p, err := h.parseRow(row, maxSystems)
		if err != nil {
			report.RowsSkipped++
			report.Warnings = append(report.Warnings, err)
			h.logger.Warn("[history] skipping %v", err)
			continue
		}
		for _, w := range p.warnings {
			report.Warnings = append(report.Warnings, w)
			h.logger.Debug("[history] %v", w)
		}
		projects = append(projects, p.HistoricalProject)
	}

	h.logger.Info("[history] Parsed %d rows → %d projects (skipped %d)",
		report.RowsRead, len(projects), report.RowsSkipped)
	return projects, report
}

type parsedProject struct {
	models.HistoricalProject
	warnings []error
}

// systemSlots returns the highest system suffix the header carries columns
// for. A row cannot declare more systems than that.
func (h *HistoryParser) systemSlots(t *storage.Table) int {
	attrs := []string{
		models.AttrProductType, models.AttrAreaM2, models.AttrSideCladding,
		models.AttrRoofType, models.AttrTradeCount,
	}
	slots := 0
	for i := 1; i <= len(t.Header); i++ {
		for _, a := range attrs {
			if t.HasColumn(h.columns.SystemColumn(a, i)) {
				slots = i
				break
			}
		}
	}
	return slots
}

func (h *HistoryParser) parseRow(row storage.Row, maxSystems int) (parsedProject, error) {
	rowErr := func(col string, err error) error {
		return &models.RowError{Row: row.Number, Column: col, Err: err}
	}

	countCell, ok := row.Lookup(h.columns.SystemCount)
	if !ok {
		return parsedProject{}, rowErr(h.columns.SystemCount, models.ErrMissingColumn)
	}
	count, err := utils.ParsePositiveInt(countCell)
	if err != nil {
		return parsedProject{}, rowErr(h.columns.SystemCount, err)
	}
	if count > maxSystems {
		return parsedProject{}, rowErr(h.columns.SystemCount,
			fmt.Errorf("%d systems declared, the table has columns for %d: %w", count, maxSystems, models.ErrTypeCoercion))
	}

	drawing, err := h.parseTotal(row, h.columns.DrawingTime)
	if err != nil {
		return parsedProject{}, rowErr(h.columns.DrawingTime, err)
	}
	bom, err := h.parseTotal(row, h.columns.BOMTime)
	if err != nil {
		return parsedProject{}, rowErr(h.columns.BOMTime, err)
	}

	p := parsedProject{HistoricalProject: models.HistoricalProject{
		Row:              row.Number,
		SystemCount:      count,
		DrawingTimeTotal: drawing,
		BOMTimeTotal:     bom,
		Systems:          make([]models.System, count),
	}}
	if id, ok := row.Lookup(h.columns.ProjectID); ok {
		p.ProjectID = id
	} else {
		p.ProjectID = "row " + strconv.Itoa(row.Number)
	}
	if emp, ok := row.Lookup(h.columns.AssignedEmployee); ok {
		p.AssignedEmployee = emp
	}

	for i := 1; i <= count; i++ {
		s, warnings := h.parseSystem(row, i)
		p.Systems[i-1] = s
		p.warnings = append(p.warnings, warnings...)
	}
	return p, nil
}

func (h *HistoryParser) parseTotal(row storage.Row, col string) (float64, error) {
	cell, ok := row.Lookup(col)
	if !ok {
		return 0, models.ErrMissingColumn
	}
	v, err := utils.ParseNumber(cell)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative time %v: %w", v, models.ErrTypeCoercion)
	}
	return v, nil
}

func (h *HistoryParser) parseSystem(row storage.Row, i int) (models.System, []error) {
	var (
		s        models.System
		warnings []error
	)
	col := func(attr string) string { return h.columns.SystemColumn(attr, i) }
	warn := func(attr string, err error) {
		warnings = append(warnings, &models.RowError{Row: row.Number, Column: col(attr), Err: err})
	}

	if v, ok := row.Lookup(col(models.AttrProductType)); ok {
		s.ProductType = &v
	}
	if v, ok := row.Lookup(col(models.AttrSideCladding)); ok {
		s.SideCladding = &v
	}
	if v, ok := row.Lookup(col(models.AttrRoofType)); ok {
		s.RoofType = &v
	}
	if cell, ok := row.Lookup(col(models.AttrAreaM2)); ok {
		area, err := utils.ParsePositiveNumber(cell)
		if err != nil {
			warn(models.AttrAreaM2, err)
		} else {
			s.AreaM2 = &area
		}
	}
	if cell, ok := row.Lookup(col(models.AttrTradeCount)); ok {
		n, err := utils.ParsePositiveInt(cell)
		if err != nil {
			warn(models.AttrTradeCount, err)
		} else {
			s.TradeCount = &n
		}
	}
	return s, warnings
}

// FileHistory reads the historical table from a .csv or .xlsx file.
type FileHistory struct {
	Path      string
	Sheet     string
	HeaderRow int
	Parser    *HistoryParser
}

// Projects reads and parses the file.
func (f *FileHistory) Projects(ctx context.Context) ([]models.HistoricalProject, error) {
	projects, _, err := f.Load(ctx)
	return projects, err
}

// Load is Projects plus the parse report.
func (f *FileHistory) Load(ctx context.Context) ([]models.HistoricalProject, ParseReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, ParseReport{}, err
	}
	t, err := storage.OpenTable(f.Path, f.Sheet, f.HeaderRow)
	if err != nil {
		return nil, ParseReport{}, err
	}
	projects, report := f.Parser.Parse(t)
	return projects, report, nil
}

func (f *FileHistory) Close() error { return nil }

// OpenHistory returns the configured historical table source.
func OpenHistory(ctx context.Context, cfg *config.Config, columns config.ColumnMapping, logger *utils.Logger) (storage.HistoryReader, error) {
	switch cfg.HistorySource {
	case "postgres":
		ph, err := storage.NewPostgresHistory(ctx, cfg.DSN(), logger)
		if err != nil {
			return nil, err
		}
		return ph, nil
	case "", "file":
		return &FileHistory{
			Path:      cfg.HistoryPath,
			Sheet:     cfg.HistorySheet,
			HeaderRow: cfg.HistoryHeaderRow,
			Parser:    NewHistoryParser(columns, logger),
		}, nil
	default:
		return nil, fmt.Errorf("history: unknown source %q", cfg.HistorySource)
	}
}
