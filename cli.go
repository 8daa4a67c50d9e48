package main

import (
	"fmt"
	"strings"

	"zeitprognose/models"
	"zeitprognose/utils"
)

// parseSystemFlag reads "product;area;cladding;roof;trades". Empty fields stay
// absent so the estimator imputes them.
func parseSystemFlag(v string) (models.System, error) {
	parts := strings.Split(v, ";")
	if len(parts) != 5 {
		return models.System{}, fmt.Errorf("--system %q: want 5 fields separated by ';', got %d", v, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var s models.System
	if parts[0] != "" {
		s.ProductType = &parts[0]
	}
	if parts[1] != "" {
		area, err := utils.ParsePositiveNumber(parts[1])
		if err != nil {
			return models.System{}, fmt.Errorf("--system %q: area: %w", v, err)
		}
		s.AreaM2 = &area
	}
	if parts[2] != "" {
		s.SideCladding = &parts[2]
	}
	if parts[3] != "" {
		s.RoofType = &parts[3]
	}
	if parts[4] != "" {
		n, err := utils.ParsePositiveInt(parts[4])
		if err != nil {
			return models.System{}, fmt.Errorf("--system %q: trades: %w", v, err)
		}
		s.TradeCount = &n
	}
	return s, nil
}
