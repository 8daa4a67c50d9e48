package services

import "zeitprognose/models"

// Aggregate sums per-system results into a project estimate and classifies
// where the numbers came from. Failed systems contribute (0, 0).
func Aggregate(results []models.EstimationResult) models.ProjectEstimate {
	est := models.ProjectEstimate{Systems: results}
	for _, r := range results {
		if r.Failed() {
			continue
		}
		est.Times = est.Times.Add(r.Times)
	}
	est.Provenance = Classify(results)
	return est
}

// Classify returns the project-level provenance.
func Classify(results []models.EstimationResult) string {
	if len(results) == 0 {
		return models.ProvenanceNoSystems
	}
	var historical, regressor, failed int
	for _, r := range results {
		switch {
		case r.Failed():
			failed++
		case r.Source == models.SourceHistorical:
			historical++
		default:
			regressor++
		}
	}
	switch len(results) {
	case historical:
		return models.ProvenanceAllHistorical
	case regressor:
		return models.ProvenanceAllRegressor
	case failed:
		return models.ProvenanceAllFailed
	default:
		return models.ProvenanceMixed
	}
}
