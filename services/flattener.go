package services

import (
	"zeitprognose/models"
	"zeitprognose/utils"
)

// FlattenPolicy decides what happens to a project with incomplete systems.
type FlattenPolicy int

const (
	// Lenient keeps every complete system of a project.
	Lenient FlattenPolicy = iota
	// Strict drops a project unless all of its declared systems are complete.
	Strict
)

func (p FlattenPolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// FlattenStats counts what the flattener kept and dropped.
type FlattenStats struct {
	Projects         int
	ProjectsRejected int
	SystemsSkipped   int
	Examples         int
}

// Flattener turns historical projects into training examples. Project
// totals are split evenly over the declared system count.
type Flattener struct {
	policy FlattenPolicy
	logger *utils.Logger
}

// NewFlattener creates a Flattener with the given policy.
func NewFlattener(policy FlattenPolicy, logger *utils.Logger) *Flattener {
	return &Flattener{policy: policy, logger: logger}
}

// Flatten emits one example per complete system.
func (f *Flattener) Flatten(projects []models.HistoricalProject) ([]models.TrainingExample, FlattenStats) {
	stats := FlattenStats{Projects: len(projects)}
	var out []models.TrainingExample

	for i := range projects {
		p := &projects[i]
		complete, skipped := f.completeSystems(p)
		if complete == nil && skipped < 0 {
			stats.ProjectsRejected++
			continue
		}
		stats.SystemsSkipped += skipped

		share := p.PerSystem()
		for _, c := range complete {
			out = append(out, models.TrainingExample{
				ProjectID: p.ProjectID,
				Position:  c.position,
				System:    c.system,
				Times:     share,
			})
		}
	}

	stats.Examples = len(out)
	f.logger.Info("[flattener] %s: %d projects → %d examples (rejected %d projects, skipped %d systems)",
		f.policy, stats.Projects, stats.Examples, stats.ProjectsRejected, stats.SystemsSkipped)
	return out, stats
}

// FlattenProjects emits one example per project holding its complete systems
// and the undivided totals. Used for the project-aggregate schema.
func (f *Flattener) FlattenProjects(projects []models.HistoricalProject) ([]models.ProjectExample, FlattenStats) {
	stats := FlattenStats{Projects: len(projects)}
	var out []models.ProjectExample

	for i := range projects {
		p := &projects[i]
		complete, skipped := f.completeSystems(p)
		if len(complete) == 0 {
			stats.ProjectsRejected++
			continue
		}
		stats.SystemsSkipped += skipped

		systems := make([]models.System, len(complete))
		for j, c := range complete {
			systems[j] = c.system
		}
		out = append(out, models.ProjectExample{ProjectID: p.ProjectID, Systems: systems, Times: p.Totals()})
	}

	stats.Examples = len(out)
	f.logger.Info("[flattener] %s: %d projects → %d project examples (rejected %d, skipped %d systems)",
		f.policy, stats.Projects, stats.Examples, stats.ProjectsRejected, stats.SystemsSkipped)
	return out, stats
}

type positioned struct {
	position int
	system   models.System
}

// completeSystems returns the complete systems of p within its declared
// count and how many were skipped. Under the strict policy a project with
// any incomplete system yields (nil, -1).
func (f *Flattener) completeSystems(p *models.HistoricalProject) ([]positioned, int) {
	if p.SystemCount <= 0 {
		return nil, -1
	}
	var complete []positioned
	skipped := 0
	for i := 0; i < p.SystemCount; i++ {
		if i >= len(p.Systems) || !p.Systems[i].Complete() {
			skipped++
			if i < len(p.Systems) {
				f.logger.Debug("[flattener] row %d system %d incomplete, missing %v",
					p.Row, i+1, p.Systems[i].MissingAttributes())
			}
			continue
		}
		complete = append(complete, positioned{position: i + 1, system: p.Systems[i]})
	}
	if f.policy == Strict && skipped > 0 {
		f.logger.Warn("[flattener] row %d rejected: %d of %d systems complete",
			p.Row, len(complete), p.SystemCount)
		return nil, -1
	}
	return complete, skipped
}
