package models

// HistoricalProject is one row of the historical table.
// Systems holds SystemCount slots in suffix order (index 0 is suffix 1);
// a slot is incomplete when the sheet left one of its attributes empty.
type HistoricalProject struct {
	Row              int
	ProjectID        string
	SystemCount      int
	DrawingTimeTotal float64
	BOMTimeTotal     float64
	AssignedEmployee string
	Systems          []System
}

// Totals returns the project-level time pair.
func (p *HistoricalProject) Totals() Times {
	return Times{Drawing: p.DrawingTimeTotal, BOM: p.BOMTimeTotal}
}

// PerSystem returns the totals evenly divided by the declared system count.
func (p *HistoricalProject) PerSystem() Times {
	if p.SystemCount <= 0 {
		return Times{}
	}
	return p.Totals().Div(float64(p.SystemCount))
}

// CompleteSystems counts the embedded systems with all attributes present.
func (p *HistoricalProject) CompleteSystems() int {
	n := 0
	for _, s := range p.Systems {
		if s.Complete() {
			n++
		}
	}
	return n
}

// TrainingExample pairs a complete system with its share of the project time.
type TrainingExample struct {
	ProjectID string
	Position  int
	System    System
	Times     Times
}

// ProjectExample is the training row for the project-aggregate schema:
// all complete systems of one project with the undivided totals.
type ProjectExample struct {
	ProjectID string
	Systems   []System
	Times     Times
}
