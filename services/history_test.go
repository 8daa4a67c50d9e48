package services

import (
	"errors"
	"strings"
	"testing"

	"zeitprognose/config"
	"zeitprognose/models"
	"zeitprognose/storage"
	"zeitprognose/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func testDomains(t *testing.T) *config.Domains {
	t.Helper()
	d, err := config.LoadDomains("")
	if err != nil {
		t.Fatalf("LoadDomains: %v", err)
	}
	return d
}

const historyHeader = "Projekt-ID;Systemanzahl;Zeichnungszeit;Stücklistenzeit;Zugewiesener_Mitarbeiter;" +
	"Produkttyp 1;Größe 1;Seitenverkleidung 1;Dachtyp 1;Anzahl 1;" +
	"Produkttyp 2;Größe 2;Seitenverkleidung 2;Dachtyp 2;Anzahl 2\n"

func parseHistory(t *testing.T, rows string) ([]models.HistoricalProject, ParseReport) {
	t.Helper()
	tbl, err := storage.ReadCSV(strings.NewReader(historyHeader+rows), 1)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return NewHistoryParser(testDomains(t).Columns, newTestLogger()).Parse(tbl)
}

func TestHistoryParserSkipsBadRows(t *testing.T) {
	projects, report := parseHistory(t,
		"P-1;1;10;6;Müller;Carport;100;Ohne;Trapezblech;2;;;;;\n"+
			"P-2;;10;6;;Carport;100;Ohne;Trapezblech;2;;;;;\n"+
			"P-3;0;10;6;;Carport;100;Ohne;Trapezblech;2;;;;;\n"+
			"P-4;zwei;10;6;;Carport;100;Ohne;Trapezblech;2;;;;;\n"+
			"P-5;1;;6;;Carport;100;Ohne;Trapezblech;2;;;;;\n"+
			"P-6;1;10;sechs;;Carport;100;Ohne;Trapezblech;2;;;;;\n")

	if len(projects) != 1 || projects[0].ProjectID != "P-1" {
		t.Fatalf("projects = %+v; want only P-1", projects)
	}
	if report.RowsRead != 6 || report.RowsSkipped != 5 {
		t.Errorf("report = %d read / %d skipped; want 6 / 5", report.RowsRead, report.RowsSkipped)
	}

	var rowErr *models.RowError
	if !errors.As(report.Warnings[0], &rowErr) || rowErr.Row != 3 || rowErr.Column != "Systemanzahl" {
		t.Errorf("first warning = %v; want row 3 Systemanzahl", report.Warnings[0])
	}

	p := projects[0]
	if p.AssignedEmployee != "Müller" || p.Totals() != (models.Times{Drawing: 10, BOM: 6}) {
		t.Errorf("project = %+v", p)
	}
	if !p.Systems[0].SameConfiguration(models.NewSystem("Carport", 100, "Ohne", "Trapezblech", 2)) {
		t.Errorf("system 1 = %+v", p.Systems[0])
	}
}

func TestHistoryParserDropsBadAttributes(t *testing.T) {
	projects, report := parseHistory(t,
		"P-1;2;20;12;;Carport;groß;Ohne;Trapezblech;2;Carport;50;Ohne;Ohne;1,5\n")

	if len(projects) != 1 {
		t.Fatalf("projects = %d; want 1", len(projects))
	}
	p := projects[0]
	if p.Systems[0].AreaM2 != nil {
		t.Error("unparseable area must be absent")
	}
	if p.Systems[1].TradeCount != nil {
		t.Error("fractional trade count must be absent")
	}
	if p.CompleteSystems() != 0 {
		t.Errorf("CompleteSystems = %d; want 0", p.CompleteSystems())
	}
	if len(report.Warnings) != 2 {
		t.Errorf("warnings = %v; want 2", report.Warnings)
	}
}

func TestHistoryParserMissingColumn(t *testing.T) {
	tbl, err := storage.ReadCSV(strings.NewReader("Projekt-ID;Zeichnungszeit;Stücklistenzeit\nP-1;10;6\n"), 1)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	projects, report := NewHistoryParser(testDomains(t).Columns, newTestLogger()).Parse(tbl)
	if len(projects) != 0 {
		t.Errorf("projects = %d; want 0", len(projects))
	}
	if len(report.Warnings) == 0 || !errors.Is(report.Warnings[0], models.ErrMissingColumn) {
		t.Errorf("warnings = %v; want ErrMissingColumn first", report.Warnings)
	}
}

func TestHistoryParserRejectsCountBeyondHeader(t *testing.T) {
	projects, report := parseHistory(t,
		"P-1;3;30;18;;Carport;100;Ohne;Trapezblech;2;Carport;80;Ohne;Ohne;2\n"+
			"P-2;1000000000;10;6;;Carport;100;Ohne;Trapezblech;2;;;;;\n"+
			"P-3;2;20;12;;Carport;100;Ohne;Trapezblech;2;Carport;80;Ohne;Ohne;2\n")

	if len(projects) != 1 || projects[0].ProjectID != "P-3" {
		t.Fatalf("projects = %+v; want only P-3", projects)
	}
	if report.RowsSkipped != 2 {
		t.Errorf("RowsSkipped = %d; want 2", report.RowsSkipped)
	}
	for _, w := range report.Warnings[:2] {
		var rowErr *models.RowError
		if !errors.As(w, &rowErr) || rowErr.Column != "Systemanzahl" || !errors.Is(w, models.ErrTypeCoercion) {
			t.Errorf("warning = %v; want a Systemanzahl coercion error", w)
		}
	}
}
