// Package applus reads orders (Aufträge) from the ap+ project-management
// system: either a fixed set of simulated orders or the ap+ web portal.
package applus

import (
	"context"
	"fmt"
	"strings"

	"zeitprognose/models"
	"zeitprognose/utils"
)

// OrderSource resolves order numbers to their systems.
type OrderSource interface {
	Order(ctx context.Context, number string) (models.Order, error)
	Orders(ctx context.Context) ([]models.Order, error)
}

// rawSystem is one system row as the portal renders it, all cells as text.
type rawSystem struct {
	ProductType  string `json:"product_type"`
	Area         string `json:"area"`
	SideCladding string `json:"side_cladding"`
	RoofType     string `json:"roof_type"`
	Trades       string `json:"trades"`
}

type rawOrder struct {
	Number   string      `json:"number"`
	Employee string      `json:"employee"`
	Systems  []rawSystem `json:"systems"`
}

// toOrder converts portal text into an Order. Empty cells stay absent so the
// estimator can still impute them; unparseable numbers are an error.
func (r rawOrder) toOrder() (models.Order, error) {
	o := models.Order{
		Number:           strings.TrimSpace(r.Number),
		AssignedEmployee: strings.TrimSpace(r.Employee),
	}
	if o.Number == "" {
		return o, fmt.Errorf("applus: order without number")
	}

	for i, rs := range r.Systems {
		var s models.System
		if v := strings.TrimSpace(rs.ProductType); v != "" {
			s.ProductType = &v
		}
		if v := strings.TrimSpace(rs.SideCladding); v != "" {
			s.SideCladding = &v
		}
		if v := strings.TrimSpace(rs.RoofType); v != "" {
			s.RoofType = &v
		}
		if v := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rs.Area), "m²")); v != "" {
			area, err := utils.ParsePositiveNumber(v)
			if err != nil {
				return o, fmt.Errorf("applus: order %s system %d area: %w", o.Number, i+1, err)
			}
			s.AreaM2 = &area
		}
		if v := strings.TrimSpace(rs.Trades); v != "" {
			n, err := utils.ParsePositiveInt(v)
			if err != nil {
				return o, fmt.Errorf("applus: order %s system %d trades: %w", o.Number, i+1, err)
			}
			s.TradeCount = &n
		}
		o.Systems = append(o.Systems, s)
	}
	return o, nil
}
