// Package lookup finds exact historical matches for a system.
package lookup

import (
	"fmt"
	"strings"

	"zeitprognose/models"
)

// Match is the first historical system equal to the query.
type Match struct {
	ProjectID string
	Row       int
	Position  int // 1-based suffix within the project
	Employee  string
	Times     models.Times
}

// Degenerate reports a match whose per-system times are both exactly zero.
// Such a match is not trusted; the caller falls back to the regressor.
func (m Match) Degenerate() bool { return m.Times.IsZero() }

// Provenance describes the match for the estimation result.
func (m Match) Provenance() string {
	if m.Employee != "" {
		return fmt.Sprintf("historical lookup (project %s, system %d, employee %s)", m.ProjectID, m.Position, m.Employee)
	}
	return fmt.Sprintf("historical lookup (project %s, system %d)", m.ProjectID, m.Position)
}

// Engine holds the historical table in its original order. It is read-only
// after construction and safe for concurrent use.
type Engine struct {
	projects []models.HistoricalProject
}

// New keeps projects in the given (table) order.
func New(projects []models.HistoricalProject) *Engine {
	return &Engine{projects: append([]models.HistoricalProject(nil), projects...)}
}

// Len returns the number of projects.
func (e *Engine) Len() int { return len(e.projects) }

// Find returns the first project (table order) containing a system equal to
// s, scanning systems in suffix order. Incomplete queries never match.
//
// When employee is non-empty, that employee's projects are searched first;
// the whole table is searched only when they hold no match. The first match
// found is returned even if degenerate; the search does not continue past it.
func (e *Engine) Find(s models.System, employee string) (Match, bool) {
	if !s.Complete() {
		return Match{}, false
	}
	employee = strings.TrimSpace(employee)
	if employee != "" {
		if m, ok := e.scan(s, func(p *models.HistoricalProject) bool {
			return strings.EqualFold(strings.TrimSpace(p.AssignedEmployee), employee)
		}); ok {
			m.Employee = employee
			return m, true
		}
	}
	return e.scan(s, nil)
}

func (e *Engine) scan(s models.System, keep func(*models.HistoricalProject) bool) (Match, bool) {
	for i := range e.projects {
		p := &e.projects[i]
		if p.SystemCount <= 0 {
			continue
		}
		if keep != nil && !keep(p) {
			continue
		}
		n := min(p.SystemCount, len(p.Systems))
		for j := 0; j < n; j++ {
			if s.SameConfiguration(p.Systems[j]) {
				return Match{
					ProjectID: p.ProjectID,
					Row:       p.Row,
					Position:  j + 1,
					Times:     p.PerSystem(),
				}, true
			}
		}
	}
	return Match{}, false
}
