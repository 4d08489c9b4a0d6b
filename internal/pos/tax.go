package pos

import (
	"math"

	"warungpos/backend/internal/domain"
)

// DefaultTaxRate is the standard PPN rate applied when the caller does not
// override it.
const DefaultTaxRate = 0.11

// CalculateTax computes the monetary breakdown for a subtotal, discount and
// fractional tax rate (0.11 for 11%). Each output field is rounded to whole
// minor units independently, using round-half-up, so no field is ever derived
// by subtracting already-rounded components. Negative inputs are not rejected
// here; validation is the caller's job.
func CalculateTax(subtotalCents int64, taxRate float64, discountCents int64) domain.TaxBreakdown {
	discounted := subtotalCents - discountCents
	tax := roundHalfUp(float64(discounted) * taxRate)

	return domain.TaxBreakdown{
		SubtotalCents:   subtotalCents,
		DiscountCents:   discountCents,
		DiscountedCents: discounted,
		TaxCents:        tax,
		TotalCents:      discounted + tax,
		TaxRatePercent:  taxRate * 100,
	}
}

// CalculatePOSTotal derives the subtotal from the cart lines and delegates to
// CalculateTax. Used for checkout preview.
func CalculatePOSTotal(lines []domain.CartLine, discountCents int64, taxRate float64) domain.TaxBreakdown {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}
	return CalculateTax(subtotal, taxRate, discountCents)
}

// ValidateTaxInputs applies the boundary validation CalculateTax itself
// skips: negative subtotal, discount, or tax rate yields ErrInvalidAmount.
func ValidateTaxInputs(subtotalCents int64, taxRate float64, discountCents int64) error {
	if subtotalCents < 0 || discountCents < 0 || taxRate < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// roundHalfUp rounds to the nearest integer with ties going up, for all
// signs. math.Round rounds halves away from zero, which disagrees on
// negative midpoints (-0.5 must round to 0, not -1).
func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
