package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"zeitprognose/models"
)

//go:embed domains.yaml
var defaultDomainsYAML []byte

// SystemPrefixes are the per-system column prefixes; the 1-based position is
// appended to form the column name ("Produkttyp " + "2").
type SystemPrefixes struct {
	ProductType  string `yaml:"product_type" json:"product_type"`
	AreaM2       string `yaml:"area_m2" json:"area_m2"`
	SideCladding string `yaml:"side_cladding" json:"side_cladding"`
	RoofType     string `yaml:"roof_type" json:"roof_type"`
	TradeCount   string `yaml:"trade_count" json:"trade_count"`
}

// ColumnMapping names the columns of the historical table.
type ColumnMapping struct {
	ProjectID        string         `yaml:"project_id" json:"project_id"`
	SystemCount      string         `yaml:"system_count" json:"system_count"`
	DrawingTime      string         `yaml:"drawing_time" json:"drawing_time"`
	BOMTime          string         `yaml:"bom_time" json:"bom_time"`
	AssignedEmployee string         `yaml:"assigned_employee" json:"assigned_employee"`
	SystemPrefixes   SystemPrefixes `yaml:"system_prefixes" json:"system_prefixes"`
}

// SystemColumn returns the column name of attribute attr for system position i.
func (m ColumnMapping) SystemColumn(attr string, i int) string {
	var prefix string
	switch attr {
	case models.AttrProductType:
		prefix = m.SystemPrefixes.ProductType
	case models.AttrAreaM2:
		prefix = m.SystemPrefixes.AreaM2
	case models.AttrSideCladding:
		prefix = m.SystemPrefixes.SideCladding
	case models.AttrRoofType:
		prefix = m.SystemPrefixes.RoofType
	case models.AttrTradeCount:
		prefix = m.SystemPrefixes.TradeCount
	}
	return prefix + strconv.Itoa(i)
}

// Category is one categorical domain.
type Category struct {
	Reference string   `yaml:"reference" json:"reference"`
	Values    []string `yaml:"values" json:"values"`
}

// Categories holds the three categorical domains.
type Categories struct {
	ProductType  Category `yaml:"product_type" json:"product_type"`
	SideCladding Category `yaml:"side_cladding" json:"side_cladding"`
	RoofType     Category `yaml:"roof_type" json:"roof_type"`
}

// Domains is the parsed domains.yaml.
type Domains struct {
	Columns    ColumnMapping `yaml:"columns" json:"columns"`
	Categories Categories    `yaml:"categories" json:"categories"`
}

// LoadDomains reads the YAML at path, or the embedded default when path is empty.
func LoadDomains(path string) (*Domains, error) {
	raw := defaultDomainsYAML
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("domains: read %q: %w", path, err)
		}
		raw = b
	}
	return ParseDomains(raw)
}

// ParseDomains parses and validates a domains document.
func ParseDomains(raw []byte) (*Domains, error) {
	var d Domains
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("domains: parse yaml: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the column mapping and that each reference value is part
// of its (non-empty) domain.
func (d *Domains) Validate() error {
	c := d.Columns
	required := map[string]string{
		"columns.system_count":                  c.SystemCount,
		"columns.drawing_time":                  c.DrawingTime,
		"columns.bom_time":                      c.BOMTime,
		"columns.system_prefixes.product_type":  c.SystemPrefixes.ProductType,
		"columns.system_prefixes.area_m2":       c.SystemPrefixes.AreaM2,
		"columns.system_prefixes.side_cladding": c.SystemPrefixes.SideCladding,
		"columns.system_prefixes.roof_type":     c.SystemPrefixes.RoofType,
		"columns.system_prefixes.trade_count":   c.SystemPrefixes.TradeCount,
	}
	for key, val := range required {
		if val == "" {
			return fmt.Errorf("domains: %s is required", key)
		}
	}

	for name, cat := range map[string]Category{
		models.AttrProductType:  d.Categories.ProductType,
		models.AttrSideCladding: d.Categories.SideCladding,
		models.AttrRoofType:     d.Categories.RoofType,
	} {
		if len(cat.Values) == 0 {
			continue
		}
		if cat.Reference == "" {
			return fmt.Errorf("domains: %s: reference value is required", name)
		}
		if !contains(cat.Values, cat.Reference) {
			return fmt.Errorf("domains: %s: reference %q not in values", name, cat.Reference)
		}
		seen := map[string]struct{}{}
		for _, v := range cat.Values {
			if _, dup := seen[v]; dup {
				return errors.New("domains: " + name + ": duplicate value " + strconv.Quote(v))
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
