package models

import "strings"

// Source says where a per-system value came from.
type Source string

const (
	SourceHistorical Source = "historical"
	SourceRegressor  Source = "regressor"
	SourceError      Source = "error"
)

// Project-level provenance classifications.
const (
	ProvenanceAllHistorical = "all systems matched historically"
	ProvenanceMixed         = "mixed"
	ProvenanceAllRegressor  = "all via regressor"
	ProvenanceAllFailed     = "all systems failed"
	ProvenanceNoSystems     = "no system to estimate"
)

// EstimationResult is the estimate for one system.
// Provenance is human readable, e.g. "historical lookup (project P-17)"
// or "error: encode: area_m2 must be positive".
type EstimationResult struct {
	Index      int    `json:"index"`
	Times      Times  `json:"times"`
	Source     Source `json:"source"`
	Provenance string `json:"provenance"`
}

// Failed reports whether the result carries an error tag.
func (r EstimationResult) Failed() bool {
	return r.Source == SourceError || strings.HasPrefix(r.Provenance, "error:")
}

// ProjectEstimate is the aggregated estimate for a list of systems.
type ProjectEstimate struct {
	Times      Times              `json:"times"`
	Provenance string             `json:"provenance"`
	Systems    []EstimationResult `json:"systems"`
}

// EstimateRequest is one estimation call. Employee optionally restricts the
// first lookup pass to projects handled by that employee.
type EstimateRequest struct {
	Systems  []System `json:"systems"`
	Employee string   `json:"employee,omitempty"`
}
