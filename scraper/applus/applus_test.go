package applus

import (
	"context"
	"errors"
	"testing"

	"zeitprognose/config"
	"zeitprognose/models"
	"zeitprognose/utils"
)

func TestSimulatedOrder(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	tests := []struct {
		number   string
		product  string
		area     float64
		employee string
	}{
		{"AUFTRAG-001", "Carport", 180, "1"},
		{"auftrag-002", "Fahrradeinhausung", 40, "2"},
		{" AUFTRAG-004 ", "Carport", 300, "2"},
	}
	for _, tt := range tests {
		o, err := s.Order(ctx, tt.number)
		if err != nil {
			t.Fatalf("Order(%q): %v", tt.number, err)
		}
		if len(o.Systems) != 1 {
			t.Fatalf("Order(%q) has %d systems; want 1", tt.number, len(o.Systems))
		}
		sys := o.Systems[0]
		if *sys.ProductType != tt.product || *sys.AreaM2 != tt.area || o.AssignedEmployee != tt.employee {
			t.Errorf("Order(%q) = %s %v employee %s; want %s %v employee %s",
				tt.number, *sys.ProductType, *sys.AreaM2, o.AssignedEmployee, tt.product, tt.area, tt.employee)
		}
	}
}

func TestSimulatedOrderNotFound(t *testing.T) {
	_, err := NewSimulated().Order(context.Background(), "AUFTRAG-999")
	if !errors.Is(err, models.ErrOrderNotFound) {
		t.Errorf("Order(AUFTRAG-999) error = %v; want ErrOrderNotFound", err)
	}
}

func TestSimulatedOrdersAreComplete(t *testing.T) {
	orders, err := NewSimulated().Orders(context.Background())
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(orders) != 5 {
		t.Fatalf("Orders = %d; want 5", len(orders))
	}
	for _, o := range orders {
		for _, s := range o.Systems {
			if !s.Complete() {
				t.Errorf("%s: incomplete system %v", o.Number, s.MissingAttributes())
			}
		}
	}
}

func TestRawOrderConversion(t *testing.T) {
	raw := rawOrder{
		Number:   " AUFTRAG-100 ",
		Employee: "3",
		Systems: []rawSystem{
			{ProductType: "Carport", Area: "120,5 m²", SideCladding: "Ohne", RoofType: "Trapezblech", Trades: "2"},
			{ProductType: "Mülleinhausung", Area: "", SideCladding: "", RoofType: "Ohne", Trades: ""},
		},
	}
	o, err := raw.toOrder()
	if err != nil {
		t.Fatalf("toOrder: %v", err)
	}
	if o.Number != "AUFTRAG-100" || len(o.Systems) != 2 {
		t.Fatalf("order = %+v", o)
	}
	if !o.Systems[0].SameConfiguration(models.NewSystem("Carport", 120.5, "Ohne", "Trapezblech", 2)) {
		t.Errorf("system 1 = %+v", o.Systems[0])
	}
	missing := o.Systems[1].MissingAttributes()
	want := []string{models.AttrAreaM2, models.AttrSideCladding, models.AttrTradeCount}
	if len(missing) != len(want) {
		t.Errorf("system 2 missing = %v; want %v", missing, want)
	}
}

func TestRawOrderRejectsBadNumbers(t *testing.T) {
	tests := []rawOrder{
		{Number: ""},
		{Number: "A", Systems: []rawSystem{{Area: "groß"}}},
		{Number: "A", Systems: []rawSystem{{Trades: "2,5"}}},
	}
	for i, raw := range tests {
		if _, err := raw.toOrder(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestNewSourceWithoutURLIsSimulated(t *testing.T) {
	src := NewSource(&config.Config{}, utils.NewNopLogger())
	if _, ok := src.(*Simulated); !ok {
		t.Errorf("NewSource without URL = %T; want *Simulated", src)
	}
	src = NewSource(&config.Config{APPlusURL: "https://applus.example"}, utils.NewNopLogger())
	if _, ok := src.(*Portal); !ok {
		t.Errorf("NewSource with URL = %T; want *Portal", src)
	}
}
