package services

import (
	"context"
	"errors"
	"fmt"

	"zeitprognose/features"
	"zeitprognose/lookup"
	"zeitprognose/models"
	"zeitprognose/regressor"
	"zeitprognose/utils"
)

// step is a state of the per-system estimation flow:
//
//	start → lookup → found → done
//	start → lookup → not found | degenerate → regressor → done
type step string

const (
	stepStart      step = "start"
	stepLookup     step = "lookup"
	stepFound      step = "found"
	stepNotFound   step = "not_found"
	stepDegenerate step = "degenerate"
	stepRegressor  step = "regressor"
	stepDone       step = "done"
)

var errNoModel = errors.New("no regression model loaded")

// Estimator resolves systems by exact historical match first and falls back
// to the regressor. It only reads shared state and is safe for concurrent use.
type Estimator struct {
	history *lookup.Engine
	model   *regressor.Model
	logger  *utils.Logger
}

// NewEstimator creates an Estimator. model may be nil, in which case every
// system without a usable historical match fails individually.
func NewEstimator(history *lookup.Engine, model *regressor.Model, logger *utils.Logger) *Estimator {
	if history == nil {
		history = lookup.New(nil)
	}
	return &Estimator{history: history, model: model, logger: logger}
}

// Estimate produces the project estimate for req. It never fails as a
// whole: a system that cannot be estimated contributes (0, 0) and carries an
// "error: ..." provenance.
func (e *Estimator) Estimate(ctx context.Context, req models.EstimateRequest) models.ProjectEstimate {
	if len(req.Systems) == 0 {
		return Aggregate(nil)
	}

	results := make([]models.EstimationResult, len(req.Systems))
	var pending []int
	for i, s := range req.Systems {
		if err := ctx.Err(); err != nil {
			results[i] = failure(i, err)
			continue
		}
		r, fallback := e.resolve(i, s, req.Employee)
		results[i] = r
		if fallback {
			pending = append(pending, i)
		}
	}

	if len(pending) > 0 {
		if e.model != nil && e.model.Kind() == features.KindProject {
			e.predictTogether(req.Systems, pending, results)
		} else {
			for _, i := range pending {
				results[i] = e.predictOne(i, req.Systems[i])
			}
		}
	}

	est := Aggregate(results)
	e.logger.Info("[estimator] %d systems → drawing=%.2fh bom=%.2fh (%s)",
		len(results), est.Times.Drawing, est.Times.BOM, est.Provenance)
	return est
}

// resolve runs the lookup part of the flow. It reports fallback=true when
// the system must go to the regressor.
func (e *Estimator) resolve(i int, s models.System, employee string) (r models.EstimationResult, fallback bool) {
	defer func() {
		if p := recover(); p != nil {
			r, fallback = failure(i, fmt.Errorf("lookup panicked: %v", p)), false
		}
	}()

	e.trace(i, stepStart, stepLookup)
	m, ok := e.history.Find(s, employee)
	switch {
	case !ok:
		e.trace(i, stepNotFound, stepRegressor)
		return models.EstimationResult{Index: i}, true
	case m.Degenerate():
		e.logger.Warn("[estimator] system %d: match in project %s has zero time, using regressor", i+1, m.ProjectID)
		e.trace(i, stepDegenerate, stepRegressor)
		return models.EstimationResult{Index: i}, true
	default:
		e.trace(i, stepFound, stepDone)
		return models.EstimationResult{
			Index:      i,
			Times:      m.Times,
			Source:     models.SourceHistorical,
			Provenance: m.Provenance(),
		}, false
	}
}

func (e *Estimator) predictOne(i int, s models.System) (r models.EstimationResult) {
	defer func() {
		if p := recover(); p != nil {
			r = failure(i, fmt.Errorf("regressor panicked: %v", p))
		}
	}()

	if e.model == nil {
		return failure(i, errNoModel)
	}
	e.warnUnknown(i, s)

	t, err := e.model.PredictSystem(s)
	if err != nil {
		return failure(i, err)
	}
	e.trace(i, stepRegressor, stepDone)

	prov := "regressor"
	if missing := s.MissingAttributes(); len(missing) > 0 {
		prov = fmt.Sprintf("regressor (imputed %v)", missing)
	}
	return models.EstimationResult{Index: i, Times: t, Source: models.SourceRegressor, Provenance: prov}
}

// predictTogether predicts all unmatched systems as one project aggregate and
// splits the result evenly between them.
func (e *Estimator) predictTogether(systems []models.System, pending []int, results []models.EstimationResult) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("regressor panicked: %v", p)
			for _, i := range pending {
				results[i] = failure(i, err)
			}
		}
	}()

	group := make([]models.System, len(pending))
	for j, i := range pending {
		group[j] = systems[i]
		e.warnUnknown(i, systems[i])
	}

	t, err := e.model.PredictProject(group)
	if err != nil {
		for _, i := range pending {
			results[i] = failure(i, err)
		}
		return
	}

	share := t.Div(float64(len(pending)))
	prov := fmt.Sprintf("regressor (project aggregate of %d systems)", len(pending))
	for _, i := range pending {
		e.trace(i, stepRegressor, stepDone)
		results[i] = models.EstimationResult{Index: i, Times: share, Source: models.SourceRegressor, Provenance: prov}
	}
}

func (e *Estimator) warnUnknown(i int, s models.System) {
	if unknown := e.model.Encoder().UnknownValues(s); len(unknown) > 0 {
		e.logger.Warn("[estimator] system %d: values unseen in training %v encode as zeros", i+1, unknown)
	}
}

func (e *Estimator) trace(i int, from, to step) {
	if !e.logger.DebugEnabled() {
		return
	}
	e.logger.Debug("[estimator] system %d: %s → %s", i+1, from, to)
}

func failure(i int, err error) models.EstimationResult {
	return models.EstimationResult{
		Index:      i,
		Source:     models.SourceError,
		Provenance: "error: " + err.Error(),
	}
}
