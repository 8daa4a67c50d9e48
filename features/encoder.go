package features

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"zeitprognose/config"
	"zeitprognose/models"
)

// Encoder maps systems onto a fixed, explicit column order.
type Encoder struct {
	kind       Kind
	categories config.Categories
	columns    []string
	defaults   map[string]float64
}

// NewEncoder builds an encoder for the given schema kind and domains.
// Domains must already be resolved (see ResolveCategories).
func NewEncoder(kind Kind, cats config.Categories) *Encoder {
	e := &Encoder{kind: kind, categories: cats, defaults: map[string]float64{}}
	e.columns = e.buildColumns()
	return e
}

// NewEncoderFromSchema rebuilds the encoder a model was fit with.
func NewEncoderFromSchema(s Schema) *Encoder {
	e := NewEncoder(s.Kind, s.Categories)
	for k, v := range s.NumericDefaults {
		e.defaults[k] = v
	}
	return e
}

// Kind returns the schema kind.
func (e *Encoder) Kind() Kind { return e.kind }

// Columns returns a copy of the canonical column order.
func (e *Encoder) Columns() []string {
	return append([]string(nil), e.columns...)
}

// Schema returns the layout to persist with a fitted model.
func (e *Encoder) Schema() Schema {
	defaults := make(map[string]float64, len(e.defaults))
	for k, v := range e.defaults {
		defaults[k] = v
	}
	return Schema{
		Kind:            e.kind,
		Columns:         e.Columns(),
		Categories:      e.categories,
		NumericDefaults: defaults,
	}
}

func (e *Encoder) buildColumns() []string {
	var cols []string
	switch e.kind {
	case KindProject:
		for _, g := range e.groups() {
			for _, v := range g.cat.Values {
				cols = append(cols, g.name+"="+v)
			}
		}
		cols = append(cols, ColSystemCount, ColTotalArea, ColAvgArea, ColTotalTrades)
	default:
		for _, g := range e.groups() {
			for _, v := range g.cat.Values {
				if v == g.cat.Reference {
					continue
				}
				cols = append(cols, g.name+"="+v)
			}
		}
		cols = append(cols, ColAreaM2, ColTradeCount)
	}
	return cols
}

type group struct {
	name string
	cat  config.Category
	get  func(models.System) *string
}

func (e *Encoder) groups() []group {
	return []group{
		{models.AttrProductType, e.categories.ProductType, func(s models.System) *string { return s.ProductType }},
		{models.AttrSideCladding, e.categories.SideCladding, func(s models.System) *string { return s.SideCladding }},
		{models.AttrRoofType, e.categories.RoofType, func(s models.System) *string { return s.RoofType }},
	}
}

// EncodeSystem encodes one system with the per-system schema. Absent or
// unknown category values yield all-zero indicators for that group; absent
// numeric values are imputed from the fitted defaults.
func (e *Encoder) EncodeSystem(s models.System) (Vector, error) {
	if e.kind != KindSystem {
		return Vector{}, fmt.Errorf("encode system: encoder kind is %q: %w", e.kind, models.ErrSchemaMismatch)
	}

	values := make([]float64, len(e.columns))
	index := e.columnIndex()

	for _, g := range e.groups() {
		if v := g.get(s); v != nil {
			if i, ok := index[g.name+"="+*v]; ok {
				values[i] = 1
			}
		}
	}

	area, err := e.areaOf(s)
	if err != nil {
		return Vector{}, err
	}
	values[index[ColAreaM2]] = area

	trades, err := e.tradesOf(s)
	if err != nil {
		return Vector{}, err
	}
	values[index[ColTradeCount]] = trades

	return Vector{Columns: e.Columns(), Values: values}, nil
}

// EncodeProject encodes a list of systems with the project-aggregate schema.
func (e *Encoder) EncodeProject(systems []models.System) (Vector, error) {
	if e.kind != KindProject {
		return Vector{}, fmt.Errorf("encode project: encoder kind is %q: %w", e.kind, models.ErrSchemaMismatch)
	}
	if len(systems) == 0 {
		return Vector{}, errors.New("encode project: no systems")
	}

	values := make([]float64, len(e.columns))
	index := e.columnIndex()

	var totalArea, totalTrades float64
	for _, s := range systems {
		for _, g := range e.groups() {
			if v := g.get(s); v != nil {
				if i, ok := index[g.name+"="+*v]; ok {
					values[i]++
				}
			}
		}

		area := e.defaults[ColAvgArea]
		if s.AreaM2 != nil {
			if err := checkArea(*s.AreaM2); err != nil {
				return Vector{}, err
			}
			area = *s.AreaM2
		}
		totalArea += area

		trades, err := e.tradesOf(s)
		if err != nil {
			return Vector{}, err
		}
		totalTrades += trades
	}

	n := float64(len(systems))
	values[index[ColSystemCount]] = n
	values[index[ColTotalArea]] = totalArea
	values[index[ColAvgArea]] = totalArea / n
	values[index[ColTotalTrades]] = totalTrades

	return Vector{Columns: e.Columns(), Values: values}, nil
}

// UnknownValues lists category values of s that have no column in this
// encoder's domains (reference values are known).
func (e *Encoder) UnknownValues(s models.System) []string {
	var unknown []string
	for _, g := range e.groups() {
		v := g.get(s)
		if v == nil {
			continue
		}
		if !containsValue(g.cat.Values, *v) {
			unknown = append(unknown, g.name+"="+*v)
		}
	}
	return unknown
}

// FitDefaults stores per-column means of the numeric columns of vectors.
// They replace absent numeric attributes at inference time.
func (e *Encoder) FitDefaults(vectors []Vector) {
	numeric := []string{ColAreaM2, ColTradeCount, ColAvgArea}
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, v := range vectors {
		for _, col := range numeric {
			if x, ok := v.Get(col); ok {
				sums[col] += x
				counts[col]++
			}
		}
	}
	for col, n := range counts {
		if n > 0 {
			e.defaults[col] = sums[col] / float64(n)
		}
	}
	if _, ok := e.defaults[ColTradeCount]; !ok && e.kind == KindProject {
		// project vectors only carry totals; derive a per-system mean
		var trades, systems float64
		for _, v := range vectors {
			t, _ := v.Get(ColTotalTrades)
			n, _ := v.Get(ColSystemCount)
			trades += t
			systems += n
		}
		if systems > 0 {
			e.defaults[ColTradeCount] = trades / systems
		}
	}
}

func (e *Encoder) areaOf(s models.System) (float64, error) {
	if s.AreaM2 == nil {
		return e.defaults[ColAreaM2], nil
	}
	if err := checkArea(*s.AreaM2); err != nil {
		return 0, err
	}
	return *s.AreaM2, nil
}

func checkArea(a float64) error {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return fmt.Errorf("encode: area_m2 is not finite: %w", models.ErrTypeCoercion)
	}
	if a <= 0 {
		return fmt.Errorf("encode: area_m2 must be positive, got %g: %w", a, models.ErrTypeCoercion)
	}
	return nil
}

func (e *Encoder) tradesOf(s models.System) (float64, error) {
	if s.TradeCount == nil {
		return e.defaults[ColTradeCount], nil
	}
	if *s.TradeCount < 1 {
		return 0, fmt.Errorf("encode: trade_count must be at least 1, got %d: %w", *s.TradeCount, models.ErrTypeCoercion)
	}
	return float64(*s.TradeCount), nil
}

func (e *Encoder) columnIndex() map[string]int {
	idx := make(map[string]int, len(e.columns))
	for i, c := range e.columns {
		idx[c] = i
	}
	return idx
}

// ResolveCategories fills every empty domain in cats with the sorted distinct
// values seen in systems; the first sorted value becomes the reference.
func ResolveCategories(cats config.Categories, systems []models.System) config.Categories {
	learn := func(c config.Category, get func(models.System) *string) config.Category {
		if len(c.Values) > 0 {
			return c
		}
		seen := map[string]struct{}{}
		for _, s := range systems {
			if v := get(s); v != nil {
				seen[*v] = struct{}{}
			}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		out := config.Category{Values: values}
		if len(values) > 0 {
			out.Reference = values[0]
		}
		return out
	}

	return config.Categories{
		ProductType:  learn(cats.ProductType, func(s models.System) *string { return s.ProductType }),
		SideCladding: learn(cats.SideCladding, func(s models.System) *string { return s.SideCladding }),
		RoofType:     learn(cats.RoofType, func(s models.System) *string { return s.RoofType }),
	}
}

func containsValue(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
