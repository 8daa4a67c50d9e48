// Package regressor adapts the forest learner to the estimation domain: it
// owns the fitted feature schema and always reindexes inference vectors onto
// it before predicting.
package regressor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"zeitprognose/features"
	"zeitprognose/forest"
	"zeitprognose/models"
	"zeitprognose/utils"
)

// Bundle is the persisted model state.
type Bundle struct {
	ID        string          `json:"id"`
	TrainedAt time.Time       `json:"trained_at"`
	Examples  int             `json:"examples"`
	Schema    features.Schema `json:"schema"`
	Params    forest.Params   `json:"params"`
	Metrics   *Metrics        `json:"metrics,omitempty"`
	Forest    *forest.Forest  `json:"forest"`
}

// Model predicts (drawing, bom) pairs from encoded vectors.
type Model struct {
	bundle  Bundle
	encoder *features.Encoder
	logger  *utils.Logger
}

// Options configures Train.
type Options struct {
	Params       forest.Params
	TestFraction float64
	Logger       *utils.Logger
}

// minHoldout is the smallest example count that still gets a hold-out split.
const minHoldout = 5

// Train evaluates the learner on a seeded hold-out split, then refits on all
// examples. The returned model carries the hold-out metrics (nil when the
// data set was too small to split).
func Train(ctx context.Context, enc *features.Encoder, vectors []features.Vector, targets []models.Times, opts Options) (*Model, error) {
	if len(vectors) == 0 {
		return nil, models.ErrNoTrainingData
	}
	if len(vectors) != len(targets) {
		return nil, fmt.Errorf("train: %d vectors but %d targets", len(vectors), len(targets))
	}
	log := opts.Logger
	if log == nil {
		log = utils.NewNopLogger()
	}

	schema := enc.Schema()
	x := make([][]float64, len(vectors))
	for i, v := range vectors {
		aligned, mismatch := schema.Reindex(v)
		if mismatch {
			return nil, fmt.Errorf("train: vector %d: %w", i, models.ErrSchemaMismatch)
		}
		x[i] = aligned.Values
	}
	y := make([][]float64, len(targets))
	for i, t := range targets {
		y[i] = []float64{t.Drawing, t.BOM}
	}

	var metrics *Metrics
	if len(x) >= minHoldout && opts.TestFraction > 0 {
		m, err := Evaluate(ctx, x, y, opts.TestFraction, opts.Params)
		if err != nil {
			return nil, fmt.Errorf("train: evaluate: %w", err)
		}
		metrics = m
		log.Info("[regressor] hold-out (%d train / %d test): MAE drawing=%.3f bom=%.3f, R² drawing=%.3f bom=%.3f",
			m.TrainSize, m.TestSize, m.MAE.Drawing, m.MAE.BOM, m.R2.Drawing, m.R2.BOM)
	} else {
		log.Warn("[regressor] %d examples, skipping hold-out evaluation", len(x))
	}

	f, err := forest.Fit(ctx, x, y, opts.Params)
	if err != nil {
		return nil, fmt.Errorf("train: fit: %w", err)
	}

	return &Model{
		bundle: Bundle{
			ID:        uuid.NewString(),
			TrainedAt: time.Now().UTC(),
			Examples:  len(x),
			Schema:    schema,
			Params:    opts.Params,
			Metrics:   metrics,
			Forest:    f,
		},
		encoder: enc,
		logger:  log,
	}, nil
}

// New restores a model from a persisted bundle.
func New(b Bundle, log *utils.Logger) (*Model, error) {
	if b.Forest == nil || len(b.Forest.Trees) == 0 {
		return nil, fmt.Errorf("bundle %s has no forest: %w", b.ID, models.ErrModelLoad)
	}
	if len(b.Schema.Columns) == 0 {
		return nil, fmt.Errorf("bundle %s has no schema columns: %w", b.ID, models.ErrModelLoad)
	}
	if b.Forest.Features != len(b.Schema.Columns) {
		return nil, fmt.Errorf("bundle %s: forest expects %d features, schema has %d: %w",
			b.ID, b.Forest.Features, len(b.Schema.Columns), models.ErrModelLoad)
	}
	if b.Forest.Outputs != 2 {
		return nil, fmt.Errorf("bundle %s: forest has %d outputs, want 2: %w", b.ID, b.Forest.Outputs, models.ErrModelLoad)
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &Model{bundle: b, encoder: features.NewEncoderFromSchema(b.Schema), logger: log}, nil
}

// Bundle returns the persisted state.
func (m *Model) Bundle() Bundle { return m.bundle }

// Kind returns the feature schema kind the model was fit with.
func (m *Model) Kind() features.Kind { return m.bundle.Schema.Kind }

// Encoder returns the encoder matching the fitted schema.
func (m *Model) Encoder() *features.Encoder { return m.encoder }

// Predict reindexes v onto the fitted columns and runs the forest.
func (m *Model) Predict(v features.Vector) (models.Times, error) {
	aligned, mismatch := m.bundle.Schema.Reindex(v)
	if mismatch {
		m.logger.Debug("[regressor] reindexed vector with %d columns onto %d fitted columns", len(v.Columns), len(aligned.Columns))
	}

	out, err := m.bundle.Forest.Predict(aligned.Values)
	if err != nil {
		return models.Times{}, fmt.Errorf("%v: %w", err, models.ErrPrediction)
	}
	t := models.Times{Drawing: out[0], BOM: out[1]}
	if !finite(t.Drawing) || !finite(t.BOM) {
		return models.Times{}, fmt.Errorf("non-finite prediction: %w", models.ErrPrediction)
	}
	return t, nil
}

// PredictSystem encodes and predicts one system (per-system schema).
func (m *Model) PredictSystem(s models.System) (models.Times, error) {
	v, err := m.encoder.EncodeSystem(s)
	if err != nil {
		return models.Times{}, err
	}
	return m.Predict(v)
}

// PredictProject encodes and predicts a group of systems as one aggregate
// (project schema).
func (m *Model) PredictProject(systems []models.System) (models.Times, error) {
	if len(systems) == 0 {
		return models.Times{}, errors.New("predict project: no systems")
	}
	v, err := m.encoder.EncodeProject(systems)
	if err != nil {
		return models.Times{}, err
	}
	return m.Predict(v)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
