package pos

import (
	"errors"
	"testing"

	"warungpos/backend/internal/domain"
)

func TestCalculateTaxDefaultRate(t *testing.T) {
	got := CalculateTax(100000, DefaultTaxRate, 0)

	want := domain.TaxBreakdown{
		SubtotalCents:   100000,
		DiscountCents:   0,
		DiscountedCents: 100000,
		TaxCents:        11000,
		TotalCents:      111000,
		TaxRatePercent:  11,
	}
	if got != want {
		t.Fatalf("unexpected breakdown: %+v", got)
	}
}

func TestCalculateTaxWithDiscount(t *testing.T) {
	got := CalculateTax(100000, 0.11, 10000)

	if got.DiscountedCents != 90000 {
		t.Fatalf("expected discounted 90000, got %d", got.DiscountedCents)
	}
	if got.TaxCents != 9900 {
		t.Fatalf("expected tax 9900, got %d", got.TaxCents)
	}
	if got.TotalCents != 99900 {
		t.Fatalf("expected total 99900, got %d", got.TotalCents)
	}
}

func TestCalculateTaxRoundsHalfUp(t *testing.T) {
	cases := []struct {
		name     string
		subtotal int64
		rate     float64
		wantTax  int64
	}{
		{"exact half rounds up", 50, 0.11, 6},       // 5.5 -> 6
		{"below half rounds down", 40, 0.11, 4},     // 4.4 -> 4
		{"above half rounds up", 70, 0.11, 8},       // 7.7 -> 8
		{"single cent", 1, 0.11, 0},                 // 0.11 -> 0
		{"ten percent odd cents", 15, 0.10, 2},      // 1.5 -> 2
	}
	for _, tc := range cases {
		got := CalculateTax(tc.subtotal, tc.rate, 0)
		if got.TaxCents != tc.wantTax {
			t.Fatalf("%s: expected tax %d, got %d", tc.name, tc.wantTax, got.TaxCents)
		}
		if got.TotalCents != tc.subtotal+tc.wantTax {
			t.Fatalf("%s: total %d does not equal subtotal plus tax", tc.name, got.TotalCents)
		}
	}
}

func TestCalculateTaxZeroRate(t *testing.T) {
	got := CalculateTax(123456, 0, 0)
	if got.TaxCents != 0 || got.TotalCents != 123456 || got.TaxRatePercent != 0 {
		t.Fatalf("unexpected breakdown for zero rate: %+v", got)
	}
}

func TestCalculatePOSTotal(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "PRD-A", UnitPriceCents: 3500, Quantity: 2, StockLimit: 10},
		{ProductID: "PRD-B", UnitPriceCents: 2500, Quantity: 4, StockLimit: 24},
	}
	got := CalculatePOSTotal(lines, 2000, 0.11)

	if got.SubtotalCents != 17000 {
		t.Fatalf("expected subtotal 17000, got %d", got.SubtotalCents)
	}
	if got.DiscountedCents != 15000 {
		t.Fatalf("expected discounted 15000, got %d", got.DiscountedCents)
	}
	if got.TaxCents != 1650 {
		t.Fatalf("expected tax 1650, got %d", got.TaxCents)
	}
	if got.TotalCents != 16650 {
		t.Fatalf("expected total 16650, got %d", got.TotalCents)
	}
}

func TestValidateTaxInputs(t *testing.T) {
	if err := ValidateTaxInputs(100, 0.11, 10); err != nil {
		t.Fatalf("expected valid inputs to pass: %v", err)
	}
	if err := ValidateTaxInputs(-1, 0.11, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative subtotal, got %v", err)
	}
	if err := ValidateTaxInputs(100, -0.01, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative rate, got %v", err)
	}
	if err := ValidateTaxInputs(100, 0.11, -5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative discount, got %v", err)
	}
}
