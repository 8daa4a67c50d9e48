package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"zeitprognose/features"
	"zeitprognose/forest"
	"zeitprognose/lookup"
	"zeitprognose/models"
	"zeitprognose/regressor"
)

// oneRowTable is the single-row history used by the end-to-end scenarios.
const oneRowTable = "P-1;1;10;6;;Carport;100;Ohne;Trapezblech;2;;;;;\n"

func trainOn(t *testing.T, projects []models.HistoricalProject, kind features.Kind) *regressor.Model {
	t.Helper()
	tr := NewTrainer(testDomains(t).Categories, TrainOptions{
		Kind:         kind,
		Policy:       Lenient,
		Params:       forest.Params{Trees: 10, Seed: 42, MinLeaf: 1, Workers: 2, Bootstrap: true},
		TestFraction: 0.2,
	}, newTestLogger())
	m, _, err := tr.Train(context.Background(), projects)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	return m
}

func newScenarioEstimator(t *testing.T, rows string) *Estimator {
	t.Helper()
	projects, _ := parseHistory(t, rows)
	return NewEstimator(lookup.New(projects), trainOn(t, projects, features.KindSystem), newTestLogger())
}

func TestScenarioExactMatch(t *testing.T) {
	e := newScenarioEstimator(t, oneRowTable)
	est := e.Estimate(context.Background(), models.EstimateRequest{
		Systems: []models.System{models.NewSystem("Carport", 100, "Ohne", "Trapezblech", 2)},
	})

	if est.Times != (models.Times{Drawing: 10, BOM: 6}) {
		t.Errorf("times = %+v; want {10 6}", est.Times)
	}
	if est.Provenance != models.ProvenanceAllHistorical {
		t.Errorf("provenance = %q; want %q", est.Provenance, models.ProvenanceAllHistorical)
	}
	if !strings.HasPrefix(est.Systems[0].Provenance, "historical lookup") {
		t.Errorf("system provenance = %q", est.Systems[0].Provenance)
	}
}

func TestScenarioNearMissUsesRegressor(t *testing.T) {
	e := newScenarioEstimator(t, oneRowTable)
	est := e.Estimate(context.Background(), models.EstimateRequest{
		Systems: []models.System{models.NewSystem("Carport", 101, "Ohne", "Trapezblech", 2)},
	})

	r := est.Systems[0]
	if r.Source != models.SourceRegressor {
		t.Fatalf("source = %s (%s); want regressor", r.Source, r.Provenance)
	}
	for _, v := range []float64{r.Times.Drawing, r.Times.BOM} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("prediction %v is not finite", v)
		}
	}
	if est.Provenance != models.ProvenanceAllRegressor {
		t.Errorf("provenance = %q; want %q", est.Provenance, models.ProvenanceAllRegressor)
	}
}

func TestEstimateEmptyRequest(t *testing.T) {
	e := NewEstimator(nil, nil, newTestLogger())
	est := e.Estimate(context.Background(), models.EstimateRequest{})

	if !est.Times.IsZero() || est.Provenance != models.ProvenanceNoSystems {
		t.Errorf("empty estimate = %+v; want zero and %q", est, models.ProvenanceNoSystems)
	}
}

func TestDegenerateMatchFallsBack(t *testing.T) {
	projects, _ := parseHistory(t,
		"P-0;1;0;0;;Carport;100;Ohne;Trapezblech;2;;;;;\n"+
			"P-1;1;8;4;;Carport;60;Ohne;Trapezblech;2;;;;;\n")
	// model fit on P-1 alone predicts its per-system time everywhere
	e := NewEstimator(lookup.New(projects), trainOn(t, projects[1:], features.KindSystem), newTestLogger())

	est := e.Estimate(context.Background(), models.EstimateRequest{
		Systems: []models.System{models.NewSystem("Carport", 100, "Ohne", "Trapezblech", 2)},
	})
	r := est.Systems[0]
	if r.Source != models.SourceRegressor {
		t.Errorf("source = %s; want regressor after a zero-time match", r.Source)
	}
	if r.Times != (models.Times{Drawing: 8, BOM: 4}) {
		t.Errorf("times = %+v; want regressor's {8 4}, not the degenerate (0, 0)", r.Times)
	}
}

func TestEstimateIsAdditive(t *testing.T) {
	e := newScenarioEstimator(t,
		"P-1;1;10;6;;Carport;100;Ohne;Trapezblech;2;;;;;\n"+
			"P-2;2;9;5;;Fahrradeinhausung;30;Vorhanden;Gründach;1;Mülleinhausung;8;Ohne;Ohne;1\n"+
			"P-3;1;14;8;;Carport;160;Vorhanden;Trapezblech;3;;;;;\n")
	a := models.NewSystem("Carport", 100, "Ohne", "Trapezblech", 2)
	b := models.NewSystem("Carport", 120, "Ohne", "Gründach", 2)
	ctx := context.Background()

	both := e.Estimate(ctx, models.EstimateRequest{Systems: []models.System{a, b}})
	onlyA := e.Estimate(ctx, models.EstimateRequest{Systems: []models.System{a}})
	onlyB := e.Estimate(ctx, models.EstimateRequest{Systems: []models.System{b}})

	sum := onlyA.Times.Add(onlyB.Times)
	if math.Abs(both.Times.Drawing-sum.Drawing) > 1e-9 || math.Abs(both.Times.BOM-sum.BOM) > 1e-9 {
		t.Errorf("estimate([A,B]) = %+v; want A+B = %+v", both.Times, sum)
	}
	if both.Provenance != models.ProvenanceMixed {
		t.Errorf("provenance = %q; want %q", both.Provenance, models.ProvenanceMixed)
	}
}

func TestFailedSystemDoesNotAbortProject(t *testing.T) {
	e := newScenarioEstimator(t, oneRowTable)
	bad := models.NewSystem("Carport", math.Inf(1), "Ohne", "Trapezblech", 2)
	good := models.NewSystem("Carport", 100, "Ohne", "Trapezblech", 2)

	est := e.Estimate(context.Background(), models.EstimateRequest{Systems: []models.System{bad, good}})

	if !est.Systems[0].Failed() || !strings.HasPrefix(est.Systems[0].Provenance, "error: ") {
		t.Errorf("system 1 = %+v; want an error tag", est.Systems[0])
	}
	if !est.Systems[0].Times.IsZero() {
		t.Errorf("failed system contributes %+v; want (0, 0)", est.Systems[0].Times)
	}
	if est.Times != (models.Times{Drawing: 10, BOM: 6}) {
		t.Errorf("project times = %+v; want sibling's {10 6}", est.Times)
	}
	if est.Provenance != models.ProvenanceMixed {
		t.Errorf("provenance = %q; want mixed", est.Provenance)
	}
}

func TestNonPositiveAttributesAreTaggedErrors(t *testing.T) {
	e := newScenarioEstimator(t, oneRowTable)
	est := e.Estimate(context.Background(), models.EstimateRequest{Systems: []models.System{
		models.NewSystem("Carport", -100, "Ohne", "Trapezblech", 2),
		models.NewSystem("Carport", 100, "Ohne", "Trapezblech", -3),
	}})

	for i, r := range est.Systems {
		if !r.Failed() || !strings.HasPrefix(r.Provenance, "error: ") || !r.Times.IsZero() {
			t.Errorf("system %d = %+v; want (0, 0) with an error tag", i+1, r)
		}
	}
	if !est.Times.IsZero() || est.Provenance != models.ProvenanceAllFailed {
		t.Errorf("project = %+v %q; want zeros and %q", est.Times, est.Provenance, models.ProvenanceAllFailed)
	}
}

func TestProjectTrainingWithReorderedAreas(t *testing.T) {
	project := func(id string, areas ...float64) models.HistoricalProject {
		p := models.HistoricalProject{ProjectID: id, SystemCount: len(areas), DrawingTimeTotal: 12, BOMTimeTotal: 6}
		for _, a := range areas {
			p.Systems = append(p.Systems, models.NewSystem("Carport", a, "Ohne", "Trapezblech", 2))
		}
		return p
	}
	// the two area sums differ only in the last bit
	projects := []models.HistoricalProject{
		project("A", 15, 15.1, 15.3),
		project("B", 15.3, 15.1, 15),
	}
	projects[1].DrawingTimeTotal, projects[1].BOMTimeTotal = 18, 9

	m := trainOn(t, projects, features.KindProject)
	got, err := m.PredictProject(projects[0].Systems)
	if err != nil {
		t.Fatalf("PredictProject: %v", err)
	}
	if math.IsNaN(got.Drawing) || got.Drawing < 12 || got.Drawing > 18 {
		t.Errorf("PredictProject = %+v; want drawing within [12, 18]", got)
	}
}

func TestNoModelFailsOnlyUnmatched(t *testing.T) {
	projects, _ := parseHistory(t, oneRowTable)
	e := NewEstimator(lookup.New(projects), nil, newTestLogger())

	est := e.Estimate(context.Background(), models.EstimateRequest{Systems: []models.System{
		models.NewSystem("Carport", 5, "Ohne", "Ohne", 1),
	}})
	if est.Provenance != models.ProvenanceAllFailed {
		t.Errorf("provenance = %q; want %q", est.Provenance, models.ProvenanceAllFailed)
	}
	if !strings.Contains(est.Systems[0].Provenance, errNoModel.Error()) {
		t.Errorf("system provenance = %q", est.Systems[0].Provenance)
	}
}

func TestIncompleteSystemIsImputed(t *testing.T) {
	e := newScenarioEstimator(t, oneRowTable)
	product := "Carport"
	est := e.Estimate(context.Background(), models.EstimateRequest{Systems: []models.System{{ProductType: &product}}})

	r := est.Systems[0]
	if r.Source != models.SourceRegressor || !strings.Contains(r.Provenance, "imputed") {
		t.Errorf("result = %+v; want an imputed regressor estimate", r)
	}
}

func TestProjectKindPredictsUnmatchedTogether(t *testing.T) {
	projects, _ := parseHistory(t,
		"P-1;2;20;12;;Carport;100;Ohne;Trapezblech;2;Carport;50;Ohne;Ohne;1\n")
	e := NewEstimator(lookup.New(projects), trainOn(t, projects, features.KindProject), newTestLogger())

	est := e.Estimate(context.Background(), models.EstimateRequest{Systems: []models.System{
		models.NewSystem("Carport", 70, "Ohne", "Ohne", 1),
		models.NewSystem("Carport", 90, "Ohne", "Ohne", 1),
	}})
	if est.Times != (models.Times{Drawing: 20, BOM: 12}) {
		t.Errorf("times = %+v; want the single project's totals {20 12}", est.Times)
	}
	for _, r := range est.Systems {
		if r.Times != (models.Times{Drawing: 10, BOM: 6}) || !strings.Contains(r.Provenance, "aggregate of 2") {
			t.Errorf("system %d = %+v", r.Index, r)
		}
	}
}

func TestTrainWithoutExamples(t *testing.T) {
	projects, _ := parseHistory(t, partialRow)
	tr := NewTrainer(testDomains(t).Categories, TrainOptions{Kind: features.KindSystem, Policy: Strict,
		Params: forest.DefaultParams()}, newTestLogger())

	if _, _, err := tr.Train(context.Background(), projects); !errors.Is(err, models.ErrNoTrainingData) {
		t.Errorf("Train error = %v; want ErrNoTrainingData", err)
	}
}

func TestClassify(t *testing.T) {
	hist := models.EstimationResult{Source: models.SourceHistorical}
	reg := models.EstimationResult{Source: models.SourceRegressor}
	bad := models.EstimationResult{Source: models.SourceError, Provenance: "error: x"}

	tests := []struct {
		name string
		in   []models.EstimationResult
		want string
	}{
		{"empty", nil, models.ProvenanceNoSystems},
		{"historical", []models.EstimationResult{hist, hist}, models.ProvenanceAllHistorical},
		{"regressor", []models.EstimationResult{reg}, models.ProvenanceAllRegressor},
		{"mixed", []models.EstimationResult{hist, reg}, models.ProvenanceMixed},
		{"failed", []models.EstimationResult{bad, bad}, models.ProvenanceAllFailed},
		{"partial failure", []models.EstimationResult{hist, bad}, models.ProvenanceMixed},
	}
	for _, tt := range tests {
		if got := Classify(tt.in); got != tt.want {
			t.Errorf("Classify(%s) = %q; want %q", tt.name, got, tt.want)
		}
	}
}

func TestAggregateSkipsFailed(t *testing.T) {
	est := Aggregate([]models.EstimationResult{
		{Times: models.Times{Drawing: 1, BOM: 2}, Source: models.SourceHistorical},
		{Times: models.Times{Drawing: 3, BOM: 4}, Source: models.SourceRegressor},
		{Times: models.Times{Drawing: 99, BOM: 99}, Source: models.SourceError, Provenance: "error: boom"},
	})
	if est.Times != (models.Times{Drawing: 4, BOM: 6}) {
		t.Errorf("Aggregate = %+v; want {4 6}", est.Times)
	}
}
