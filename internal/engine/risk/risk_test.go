package risk

import (
	"errors"
	"math"
	"testing"

	"TradePulse/internal/domain/models"
)

func TestRoundDownStep(t *testing.T) {
	cases := []struct {
		value, step, want float64
	}{
		{1.2345, 0.001, 1.234},
		{1.9999, 0.01, 1.99},
		{5, 1, 5},
		{0.0009, 0.001, 0},
		{1.2345, 0, 1.2345},
	}
	for _, c := range cases {
		if got := RoundDownStep(c.value, c.step); math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("RoundDownStep(%v, %v) = %v, want %v", c.value, c.step, got, c.want)
		}
	}
}

func TestRoundPrice(t *testing.T) {
	if got := RoundPrice(100.456, 0.1); math.Abs(got-100.5) > 1e-12 {
		t.Fatalf("got %v", got)
	}
	if got := RoundPrice(100.44, 0.1); math.Abs(got-100.4) > 1e-12 {
		t.Fatalf("got %v", got)
	}
	if got := RoundPrice(100.44, 0); got != 100.44 {
		t.Fatalf("zero tick should pass through: %v", got)
	}
}

func TestComputeQuantity(t *testing.T) {
	filters := models.SymbolFilters{StepSize: 0.001, TickSize: 0.1, MinNotional: 100}

	// riskCash = 10000 * 0.01 = 100, stopDistance = 2 * 500 = 1000,
	// qty = 0.1, notional = 0.1 * 50000 = 5000 >= 100.
	qty, err := ComputeQuantity(10000, 0.01, 500, 2, 50000, filters)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if math.Abs(qty-0.1) > 1e-12 {
		t.Fatalf("unexpected qty %v", qty)
	}

	// Floor to step: qty = 100 / 900 = 0.1111.. -> 0.111.
	qty, err = ComputeQuantity(10000, 0.01, 450, 2, 50000, filters)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if math.Abs(qty-0.111) > 1e-12 {
		t.Fatalf("unexpected qty %v", qty)
	}
}

func TestComputeQuantityRejections(t *testing.T) {
	filters := models.SymbolFilters{StepSize: 0.001, MinNotional: 100}

	if _, err := ComputeQuantity(10000, 0.01, 0, 2, 50000, filters); !errors.Is(err, ErrUnsizable) {
		t.Fatalf("zero atr: %v", err)
	}
	if _, err := ComputeQuantity(10000, 0.01, 500, 2, 0, filters); !errors.Is(err, ErrUnsizable) {
		t.Fatalf("zero price: %v", err)
	}
	// Floors to zero quantity.
	if _, err := ComputeQuantity(10, 0.001, 500, 2, 50000, filters); !errors.Is(err, ErrUnsizable) {
		t.Fatalf("dust qty: %v", err)
	}
	// Notional under the exchange minimum: qty 0.002 * 50 = 0.1.
	if _, err := ComputeQuantity(1, 0.1, 50, 1, 50, filters); !errors.Is(err, ErrUnsizable) {
		t.Fatalf("min notional: %v", err)
	}
}
