// Package features turns systems into the numeric vectors the regressor is
// fit on. Trainer and estimator share the same Encoder so the column set
// cannot drift between the two code paths.
package features

import (
	"zeitprognose/config"
)

// Kind selects the feature schema.
type Kind string

const (
	// KindSystem encodes one system: one-hot categories plus area and trades.
	KindSystem Kind = "system"
	// KindProject encodes a whole project: category counts plus size figures.
	KindProject Kind = "project"
)

// ParseKind maps a config value to a Kind, defaulting to KindSystem.
func ParseKind(s string) Kind {
	if Kind(s) == KindProject {
		return KindProject
	}
	return KindSystem
}

// Numeric column names.
const (
	ColAreaM2      = "area_m2"
	ColTradeCount  = "trade_count"
	ColSystemCount = "system_count"
	ColTotalArea   = "total_area_m2"
	ColAvgArea     = "avg_area_m2"
	ColTotalTrades = "total_trade_count"
)

// Vector is an encoded row with its column names.
type Vector struct {
	Columns []string
	Values  []float64
}

// Get returns the value of column col.
func (v Vector) Get(col string) (float64, bool) {
	for i, c := range v.Columns {
		if c == col {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Schema is the fitted column layout persisted next to the model.
type Schema struct {
	Kind            Kind               `json:"kind"`
	Columns         []string           `json:"columns"`
	Categories      config.Categories  `json:"categories"`
	NumericDefaults map[string]float64 `json:"numeric_defaults,omitempty"`
}

// Reindex projects v onto the schema's column list: columns missing from v
// become 0 and columns unknown to the schema are dropped. The second return
// value reports whether v's layout differed from the schema.
func (s Schema) Reindex(v Vector) (Vector, bool) {
	mismatch := len(v.Columns) != len(s.Columns)
	index := make(map[string]int, len(v.Columns))
	for i, c := range v.Columns {
		index[c] = i
	}

	out := Vector{
		Columns: append([]string(nil), s.Columns...),
		Values:  make([]float64, len(s.Columns)),
	}
	for i, c := range s.Columns {
		j, ok := index[c]
		if !ok {
			mismatch = true
			continue
		}
		if j != i {
			mismatch = true
		}
		out.Values[i] = v.Values[j]
	}
	return out, mismatch
}
