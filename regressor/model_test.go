package regressor

import (
	"context"
	"errors"
	"math"
	"testing"

	"zeitprognose/config"
	"zeitprognose/features"
	"zeitprognose/forest"
	"zeitprognose/models"
)

func testEncoder(t *testing.T, kind features.Kind) *features.Encoder {
	t.Helper()
	d, err := config.LoadDomains("")
	if err != nil {
		t.Fatalf("LoadDomains: %v", err)
	}
	return features.NewEncoder(kind, d.Categories)
}

func smallParams() forest.Params {
	return forest.Params{Trees: 10, Seed: 42, MinLeaf: 1, Workers: 2, Bootstrap: true}
}

func TestTrainSingleExamplePredictsIt(t *testing.T) {
	enc := testEncoder(t, features.KindSystem)
	s := models.NewSystem("Carport", 100, "Ohne", "Trapezblech", 2)
	v, err := enc.EncodeSystem(s)
	if err != nil {
		t.Fatalf("EncodeSystem: %v", err)
	}

	m, err := Train(context.Background(), enc, []features.Vector{v}, []models.Times{{Drawing: 10, BOM: 6}},
		Options{Params: smallParams(), TestFraction: 0.2})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.Bundle().Metrics != nil {
		t.Error("one example must not be split for evaluation")
	}

	got, err := m.PredictSystem(models.NewSystem("Carport", 150, "Ohne", "Trapezblech", 2))
	if err != nil {
		t.Fatalf("PredictSystem: %v", err)
	}
	if got != (models.Times{Drawing: 10, BOM: 6}) {
		t.Errorf("PredictSystem = %+v; want {10 6}", got)
	}
}

func TestTrainRejectsEmpty(t *testing.T) {
	enc := testEncoder(t, features.KindSystem)
	_, err := Train(context.Background(), enc, nil, nil, Options{Params: smallParams()})
	if !errors.Is(err, models.ErrNoTrainingData) {
		t.Errorf("Train(nil) error = %v; want ErrNoTrainingData", err)
	}
}

func TestTrainReportsHoldoutMetrics(t *testing.T) {
	enc := testEncoder(t, features.KindSystem)
	var vectors []features.Vector
	var targets []models.Times
	for i := 1; i <= 20; i++ {
		v, err := enc.EncodeSystem(models.NewSystem("Carport", float64(i*10), "Ohne", "Trapezblech", 2))
		if err != nil {
			t.Fatalf("EncodeSystem: %v", err)
		}
		vectors = append(vectors, v)
		targets = append(targets, models.Times{Drawing: float64(i), BOM: float64(i) / 2})
	}

	m, err := Train(context.Background(), enc, vectors, targets, Options{Params: smallParams(), TestFraction: 0.2})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	met := m.Bundle().Metrics
	if met == nil {
		t.Fatal("expected hold-out metrics")
	}
	if met.TrainSize != 16 || met.TestSize != 4 {
		t.Errorf("split = %d/%d; want 16/4", met.TrainSize, met.TestSize)
	}
	if met.MAE.Drawing < 0 || met.MAE.BOM < 0 {
		t.Errorf("MAE must be non-negative, got %+v", met.MAE)
	}
	if m.Bundle().Examples != 20 {
		t.Errorf("Examples = %d; want 20 (final refit on all data)", m.Bundle().Examples)
	}
}

func TestPredictReindexesForeignVector(t *testing.T) {
	enc := testEncoder(t, features.KindSystem)
	v, _ := enc.EncodeSystem(models.NewSystem("Carport", 100, "Ohne", "Ohne", 1))
	m, err := Train(context.Background(), enc, []features.Vector{v}, []models.Times{{Drawing: 4, BOM: 2}},
		Options{Params: smallParams()})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	foreign := features.Vector{Columns: []string{"trade_count", "area_m2", "roof_type=Blech"}, Values: []float64{1, 100, 1}}
	got, err := m.Predict(foreign)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != (models.Times{Drawing: 4, BOM: 2}) {
		t.Errorf("Predict = %+v; want {4 2}", got)
	}
}

func TestNewRejectsBrokenBundle(t *testing.T) {
	tests := []struct {
		name string
		b    Bundle
	}{
		{"no forest", Bundle{Schema: features.Schema{Columns: []string{"a"}}}},
		{"no columns", Bundle{Forest: &forest.Forest{Features: 1, Outputs: 2, Trees: []forest.Tree{{}}}}},
		{"width", Bundle{
			Schema: features.Schema{Columns: []string{"a", "b"}},
			Forest: &forest.Forest{Features: 1, Outputs: 2, Trees: []forest.Tree{{}}},
		}},
	}
	for _, tt := range tests {
		if _, err := New(tt.b, nil); !errors.Is(err, models.ErrModelLoad) {
			t.Errorf("%s: error = %v; want ErrModelLoad", tt.name, err)
		}
	}
}

func TestSplitIsSeeded(t *testing.T) {
	tr1, te1 := Split(10, 0.2, 42)
	tr2, te2 := Split(10, 0.2, 42)
	if len(te1) != 2 || len(tr1) != 8 {
		t.Fatalf("Split(10, 0.2) sizes = %d/%d; want 8/2", len(tr1), len(te1))
	}
	for i := range te1 {
		if te1[i] != te2[i] {
			t.Fatalf("same seed gave different test sets: %v vs %v", te1, te2)
		}
	}
	for i := range tr1 {
		if tr1[i] != tr2[i] {
			t.Fatalf("same seed gave different train sets: %v vs %v", tr1, tr2)
		}
	}
}

func TestMetrics(t *testing.T) {
	actual := []models.Times{{Drawing: 1, BOM: 2}, {Drawing: 3, BOM: 2}}
	pred := []models.Times{{Drawing: 2, BOM: 2}, {Drawing: 2, BOM: 2}}

	if got := MAE(pred, actual); got != (models.Times{Drawing: 1, BOM: 0}) {
		t.Errorf("MAE = %+v; want {1 0}", got)
	}
	r := R2(pred, actual)
	if math.Abs(r.Drawing) > 1e-12 {
		t.Errorf("R2.Drawing = %v; want 0 (mean predictor)", r.Drawing)
	}
	if r.BOM != 1 {
		t.Errorf("R2.BOM = %v; want 1 (constant target predicted exactly)", r.BOM)
	}
}
