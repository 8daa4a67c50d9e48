package models

// Attribute names, used in logs, error messages and API payloads.
const (
	AttrProductType  = "product_type"
	AttrAreaM2       = "area_m2"
	AttrSideCladding = "side_cladding"
	AttrRoofType     = "roof_type"
	AttrTradeCount   = "trade_count"
)

// System is one physical unit of a project (a carport, a bike shelter, ...).
// Every attribute may be absent; nil means "not provided".
type System struct {
	ProductType  *string  `json:"product_type,omitempty"`
	AreaM2       *float64 `json:"area_m2,omitempty"`
	SideCladding *string  `json:"side_cladding,omitempty"`
	RoofType     *string  `json:"roof_type,omitempty"`
	TradeCount   *int     `json:"trade_count,omitempty"`
}

// NewSystem builds a System with all five attributes present.
func NewSystem(productType string, areaM2 float64, sideCladding, roofType string, tradeCount int) System {
	return System{
		ProductType:  &productType,
		AreaM2:       &areaM2,
		SideCladding: &sideCladding,
		RoofType:     &roofType,
		TradeCount:   &tradeCount,
	}
}

// Complete reports whether all five attributes are present.
func (s System) Complete() bool {
	return len(s.MissingAttributes()) == 0
}

// MissingAttributes lists the names of absent attributes in canonical order.
func (s System) MissingAttributes() []string {
	var missing []string
	if s.ProductType == nil {
		missing = append(missing, AttrProductType)
	}
	if s.AreaM2 == nil {
		missing = append(missing, AttrAreaM2)
	}
	if s.SideCladding == nil {
		missing = append(missing, AttrSideCladding)
	}
	if s.RoofType == nil {
		missing = append(missing, AttrRoofType)
	}
	if s.TradeCount == nil {
		missing = append(missing, AttrTradeCount)
	}
	return missing
}

// SameConfiguration reports exact equality on all five attributes.
// Area is compared as float64 without tolerance. Incomplete systems never match.
func (s System) SameConfiguration(o System) bool {
	if !s.Complete() || !o.Complete() {
		return false
	}
	return *s.ProductType == *o.ProductType &&
		*s.SideCladding == *o.SideCladding &&
		*s.RoofType == *o.RoofType &&
		*s.TradeCount == *o.TradeCount &&
		*s.AreaM2 == *o.AreaM2
}

// Times is a (drawing, bom) pair in hours.
type Times struct {
	Drawing float64 `json:"drawing_time"`
	BOM     float64 `json:"bom_time"`
}

// Add returns the component-wise sum.
func (t Times) Add(o Times) Times {
	return Times{Drawing: t.Drawing + o.Drawing, BOM: t.BOM + o.BOM}
}

// Div divides both components by n.
func (t Times) Div(n float64) Times {
	return Times{Drawing: t.Drawing / n, BOM: t.BOM / n}
}

// IsZero reports whether both components are exactly zero.
func (t Times) IsZero() bool {
	return t.Drawing == 0 && t.BOM == 0
}
