package services

import (
	"context"
	"fmt"

	"zeitprognose/config"
	"zeitprognose/features"
	"zeitprognose/forest"
	"zeitprognose/models"
	"zeitprognose/regressor"
	"zeitprognose/utils"
)

// TrainOptions configures a training run.
type TrainOptions struct {
	Kind         features.Kind
	Policy       FlattenPolicy
	Params       forest.Params
	TestFraction float64
}

// Trainer runs flatten → encode → fit. Encoding goes through the same
// features.Encoder the estimator later rebuilds from the persisted schema.
type Trainer struct {
	categories config.Categories
	opts       TrainOptions
	logger     *utils.Logger
}

// NewTrainer creates a Trainer. Empty category domains are learned from the
// training data.
func NewTrainer(categories config.Categories, opts TrainOptions, logger *utils.Logger) *Trainer {
	return &Trainer{categories: categories, opts: opts, logger: logger}
}

// Train fits a model on projects. It returns models.ErrNoTrainingData when
// flattening leaves nothing to learn from.
func (t *Trainer) Train(ctx context.Context, projects []models.HistoricalProject) (*regressor.Model, FlattenStats, error) {
	flattener := NewFlattener(t.opts.Policy, t.logger)

	var (
		systems []models.System
		vectors []features.Vector
		targets []models.Times
		stats   FlattenStats
		enc     *features.Encoder
	)

	switch t.opts.Kind {
	case features.KindProject:
		var examples []models.ProjectExample
		examples, stats = flattener.FlattenProjects(projects)
		if len(examples) == 0 {
			return nil, stats, fmt.Errorf("train: %w", models.ErrNoTrainingData)
		}
		for _, ex := range examples {
			systems = append(systems, ex.Systems...)
		}
		enc = features.NewEncoder(features.KindProject, features.ResolveCategories(t.categories, systems))
		for _, ex := range examples {
			v, err := enc.EncodeProject(ex.Systems)
			if err != nil {
				t.logger.Warn("[trainer] project %s dropped: %v", ex.ProjectID, err)
				continue
			}
			vectors = append(vectors, v)
			targets = append(targets, ex.Times)
		}

	default:
		var examples []models.TrainingExample
		examples, stats = flattener.Flatten(projects)
		if len(examples) == 0 {
			return nil, stats, fmt.Errorf("train: %w", models.ErrNoTrainingData)
		}
		for _, ex := range examples {
			systems = append(systems, ex.System)
		}
		enc = features.NewEncoder(features.KindSystem, features.ResolveCategories(t.categories, systems))
		for _, ex := range examples {
			for _, u := range enc.UnknownValues(ex.System) {
				t.logger.Warn("[trainer] project %s system %d: %s is not in the configured domain", ex.ProjectID, ex.Position, u)
			}
			v, err := enc.EncodeSystem(ex.System)
			if err != nil {
				t.logger.Warn("[trainer] project %s system %d dropped: %v", ex.ProjectID, ex.Position, err)
				continue
			}
			vectors = append(vectors, v)
			targets = append(targets, ex.Times)
		}
	}

	if len(vectors) == 0 {
		return nil, stats, fmt.Errorf("train: %w", models.ErrNoTrainingData)
	}
	enc.FitDefaults(vectors)

	t.logger.Info("[trainer] Fitting %d trees on %d examples × %d features",
		t.opts.Params.Trees, len(vectors), len(enc.Columns()))

	model, err := regressor.Train(ctx, enc, vectors, targets, regressor.Options{
		Params:       t.opts.Params,
		TestFraction: t.opts.TestFraction,
		Logger:       t.logger,
	})
	if err != nil {
		return nil, stats, err
	}
	return model, stats, nil
}
