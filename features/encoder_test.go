package features

import (
	"errors"
	"reflect"
	"testing"

	"zeitprognose/config"
	"zeitprognose/models"
)

func testCategories(t *testing.T) config.Categories {
	t.Helper()
	d, err := config.LoadDomains("")
	if err != nil {
		t.Fatalf("LoadDomains: %v", err)
	}
	return d.Categories
}

func TestSystemColumnsDropReference(t *testing.T) {
	e := NewEncoder(KindSystem, testCategories(t))

	want := []string{
		"product_type=Fahrradeinhausung",
		"product_type=Mülleinhausung",
		"side_cladding=Vorhanden",
		"roof_type=Gründach-Light",
		"roof_type=Ohne",
		"roof_type=Trapezblech",
		"area_m2",
		"trade_count",
	}
	if got := e.Columns(); !reflect.DeepEqual(got, want) {
		t.Errorf("Columns() = %v; want %v", got, want)
	}
}

func TestEncodeSystemIsStable(t *testing.T) {
	e := NewEncoder(KindSystem, testCategories(t))
	s := models.NewSystem("Fahrradeinhausung", 40, "Vorhanden", "Trapezblech", 2)

	a, err := e.EncodeSystem(s)
	if err != nil {
		t.Fatalf("EncodeSystem: %v", err)
	}
	b, err := e.EncodeSystem(s)
	if err != nil {
		t.Fatalf("EncodeSystem: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("encoding twice differs: %v vs %v", a.Values, b.Values)
	}

	want := []float64{1, 0, 1, 0, 0, 1, 40, 2}
	if !reflect.DeepEqual(a.Values, want) {
		t.Errorf("values = %v; want %v", a.Values, want)
	}
}

func TestEncodeReferenceValuesAreAllZero(t *testing.T) {
	e := NewEncoder(KindSystem, testCategories(t))
	v, err := e.EncodeSystem(models.NewSystem("Carport", 100, "Ohne", "Gründach", 3))
	if err != nil {
		t.Fatalf("EncodeSystem: %v", err)
	}
	for i, c := range v.Columns[:6] {
		if v.Values[i] != 0 {
			t.Errorf("column %s = %v; want 0 for reference values", c, v.Values[i])
		}
	}
}

func TestEncodeUnknownCategoryYieldsZeros(t *testing.T) {
	e := NewEncoder(KindSystem, testCategories(t))
	s := models.NewSystem("Überdachung", 50, "Vorhanden", "Ohne", 1)

	v, err := e.EncodeSystem(s)
	if err != nil {
		t.Fatalf("unknown category must not error: %v", err)
	}
	for _, col := range []string{"product_type=Fahrradeinhausung", "product_type=Mülleinhausung"} {
		if x, _ := v.Get(col); x != 0 {
			t.Errorf("%s = %v; want 0", col, x)
		}
	}
	if got := e.UnknownValues(s); !reflect.DeepEqual(got, []string{"product_type=Überdachung"}) {
		t.Errorf("UnknownValues = %v", got)
	}
}

func TestEncodeImputesMissingNumeric(t *testing.T) {
	e := NewEncoder(KindSystem, testCategories(t))
	v1, _ := e.EncodeSystem(models.NewSystem("Carport", 100, "Ohne", "Ohne", 2))
	v2, _ := e.EncodeSystem(models.NewSystem("Carport", 300, "Ohne", "Ohne", 4))
	e.FitDefaults([]Vector{v1, v2})

	product := "Carport"
	v, err := e.EncodeSystem(models.System{ProductType: &product})
	if err != nil {
		t.Fatalf("EncodeSystem: %v", err)
	}
	if area, _ := v.Get(ColAreaM2); area != 200 {
		t.Errorf("imputed area = %v; want 200", area)
	}
	if trades, _ := v.Get(ColTradeCount); trades != 3 {
		t.Errorf("imputed trades = %v; want 3", trades)
	}
}

func TestReindexFillsAndDrops(t *testing.T) {
	schema := Schema{Kind: KindSystem, Columns: []string{"a", "b", "c"}}

	tests := []struct {
		name         string
		in           Vector
		want         []float64
		wantMismatch bool
	}{
		{"exact", Vector{Columns: []string{"a", "b", "c"}, Values: []float64{1, 2, 3}}, []float64{1, 2, 3}, false},
		{"reordered", Vector{Columns: []string{"c", "a", "b"}, Values: []float64{3, 1, 2}}, []float64{1, 2, 3}, true},
		{"missing", Vector{Columns: []string{"a"}, Values: []float64{1}}, []float64{1, 0, 0}, true},
		{"extra", Vector{Columns: []string{"a", "b", "c", "z"}, Values: []float64{1, 2, 3, 9}}, []float64{1, 2, 3}, true},
	}
	for _, tt := range tests {
		got, mismatch := schema.Reindex(tt.in)
		if !reflect.DeepEqual(got.Values, tt.want) {
			t.Errorf("%s: values = %v; want %v", tt.name, got.Values, tt.want)
		}
		if !reflect.DeepEqual(got.Columns, schema.Columns) {
			t.Errorf("%s: columns = %v; want %v", tt.name, got.Columns, schema.Columns)
		}
		if mismatch != tt.wantMismatch {
			t.Errorf("%s: mismatch = %v; want %v", tt.name, mismatch, tt.wantMismatch)
		}
	}
}

func TestEncodeProjectAggregates(t *testing.T) {
	e := NewEncoder(KindProject, testCategories(t))
	v, err := e.EncodeProject([]models.System{
		models.NewSystem("Carport", 100, "Ohne", "Trapezblech", 2),
		models.NewSystem("Carport", 50, "Vorhanden", "Trapezblech", 3),
	})
	if err != nil {
		t.Fatalf("EncodeProject: %v", err)
	}

	checks := map[string]float64{
		"product_type=Carport":    2,
		"side_cladding=Ohne":      1,
		"side_cladding=Vorhanden": 1,
		"roof_type=Trapezblech":   2,
		ColSystemCount:            2,
		ColTotalArea:              150,
		ColAvgArea:                75,
		ColTotalTrades:            5,
	}
	for col, want := range checks {
		if got, ok := v.Get(col); !ok || got != want {
			t.Errorf("%s = %v (present %v); want %v", col, got, ok, want)
		}
	}
}

func TestEncoderKindMismatch(t *testing.T) {
	e := NewEncoder(KindProject, testCategories(t))
	if _, err := e.EncodeSystem(models.NewSystem("Carport", 1, "Ohne", "Ohne", 1)); err == nil {
		t.Error("expected error encoding a system with a project encoder")
	}
}

func TestEncodeRejectsNonPositiveNumbers(t *testing.T) {
	sys := NewEncoder(KindSystem, testCategories(t))
	proj := NewEncoder(KindProject, testCategories(t))

	tests := []struct {
		name string
		s    models.System
	}{
		{"negative area", models.NewSystem("Carport", -100, "Ohne", "Trapezblech", 2)},
		{"zero area", models.NewSystem("Carport", 0, "Ohne", "Trapezblech", 2)},
		{"negative trades", models.NewSystem("Carport", 100, "Ohne", "Trapezblech", -3)},
		{"zero trades", models.NewSystem("Carport", 100, "Ohne", "Trapezblech", 0)},
	}
	for _, tt := range tests {
		if _, err := sys.EncodeSystem(tt.s); !errors.Is(err, models.ErrTypeCoercion) {
			t.Errorf("EncodeSystem(%s) error = %v; want ErrTypeCoercion", tt.name, err)
		}
		if _, err := proj.EncodeProject([]models.System{tt.s}); !errors.Is(err, models.ErrTypeCoercion) {
			t.Errorf("EncodeProject(%s) error = %v; want ErrTypeCoercion", tt.name, err)
		}
	}
}

func TestResolveCategoriesLearnsEmptyDomains(t *testing.T) {
	cats := testCategories(t)
	cats.RoofType = config.Category{}

	resolved := ResolveCategories(cats, []models.System{
		models.NewSystem("Carport", 1, "Ohne", "Trapezblech", 1),
		models.NewSystem("Carport", 1, "Ohne", "Gründach", 1),
	})
	if resolved.RoofType.Reference != "Gründach" {
		t.Errorf("reference = %q; want Gründach", resolved.RoofType.Reference)
	}
	if !reflect.DeepEqual(resolved.RoofType.Values, []string{"Gründach", "Trapezblech"}) {
		t.Errorf("values = %v", resolved.RoofType.Values)
	}
	if len(resolved.ProductType.Values) != 3 {
		t.Errorf("configured domain must be kept, got %v", resolved.ProductType.Values)
	}
}
