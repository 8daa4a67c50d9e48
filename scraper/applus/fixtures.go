package applus

import (
	"context"
	"fmt"
	"strings"

	"zeitprognose/models"
)

// Simulated serves a fixed set of orders. It stands in for ap+ until the
// portal is reachable, and backs the tests.
type Simulated struct {
	orders []models.Order
}

// NewSimulated returns the five demo orders AUFTRAG-001 … AUFTRAG-005.
func NewSimulated() *Simulated {
	return &Simulated{orders: []models.Order{
		{Number: "AUFTRAG-001", AssignedEmployee: "1", Systems: []models.System{models.NewSystem("Carport", 180, "Vorhanden", "Gründach", 4)}},
		{Number: "AUFTRAG-002", AssignedEmployee: "2", Systems: []models.System{models.NewSystem("Fahrradeinhausung", 40, "Vorhanden", "Trapezblech", 2)}},
		{Number: "AUFTRAG-003", AssignedEmployee: "1", Systems: []models.System{models.NewSystem("Mülleinhausung", 90, "Ohne", "Gründach-Light", 3)}},
		{Number: "AUFTRAG-004", AssignedEmployee: "2", Systems: []models.System{models.NewSystem("Carport", 300, "Ohne", "Ohne", 2)}},
		{Number: "AUFTRAG-005", AssignedEmployee: "1", Systems: []models.System{models.NewSystem("Fahrradeinhausung", 55, "Vorhanden", "Gründach", 1)}},
	}}
}

// NewSimulatedFrom serves the given orders.
func NewSimulatedFrom(orders []models.Order) *Simulated {
	return &Simulated{orders: append([]models.Order(nil), orders...)}
}

// Order returns the order with the given number (case-insensitive).
func (s *Simulated) Order(ctx context.Context, number string) (models.Order, error) {
	if err := ctx.Err(); err != nil {
		return models.Order{}, err
	}
	number = strings.TrimSpace(number)
	for _, o := range s.orders {
		if strings.EqualFold(o.Number, number) {
			return o, nil
		}
	}
	return models.Order{}, fmt.Errorf("order %q: %w", number, models.ErrOrderNotFound)
}

// Orders returns all orders.
func (s *Simulated) Orders(ctx context.Context) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]models.Order(nil), s.orders...), nil
}
