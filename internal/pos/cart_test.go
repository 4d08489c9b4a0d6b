package pos

import (
	"errors"
	"testing"

	"warungpos/backend/internal/domain"
)

func mie() domain.Product {
	return domain.Product{ID: "PRD-MIE-01", Name: "Mie Instan", PriceCents: 3500, StockQty: 10, Active: true}
}

func telur() domain.Product {
	return domain.Product{ID: "PRD-TELUR-01", Name: "Telur Ayam", PriceCents: 2500, StockQty: 24, Active: true}
}

func TestAddItemInsertsAndIncrements(t *testing.T) {
	cart := NewCart()

	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	lines := cart.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", lines[0].Quantity)
	}
	if cart.SubtotalCents() != 7000 {
		t.Fatalf("expected subtotal 7000, got %d", cart.SubtotalCents())
	}
	if cart.TotalItems() != 2 {
		t.Fatalf("expected 2 total items, got %d", cart.TotalItems())
	}
}

func TestAddItemBeyondStockLimit(t *testing.T) {
	cart := NewCart()
	product := mie()
	product.StockQty = 2

	if err := cart.AddItem(product); err != nil {
		t.Fatalf("add #1 failed: %v", err)
	}
	if err := cart.AddItem(product); err != nil {
		t.Fatalf("add #2 failed: %v", err)
	}

	err := cart.AddItem(product)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock on add #3, got %v", err)
	}
	if got := cart.Lines()[0].Quantity; got != 2 {
		t.Fatalf("expected quantity to stay 2 after rejected add, got %d", got)
	}
}

func TestAddItemZeroStockRejected(t *testing.T) {
	cart := NewCart()
	product := mie()
	product.StockQty = 0

	if err := cart.AddItem(product); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock for zero-stock product, got %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("expected cart to stay empty")
	}
}

func TestUpdateQuantityRespectsStockCeiling(t *testing.T) {
	cart := NewCart()
	product := mie()
	product.StockQty = 3
	if err := cart.AddItem(product); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := cart.UpdateQuantity(product.ID, 2); err != nil {
		t.Fatalf("update +2 failed: %v", err)
	}
	if err := cart.UpdateQuantity(product.ID, 1); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock above ceiling, got %v", err)
	}
	if got := cart.Lines()[0].Quantity; got != 3 {
		t.Fatalf("expected quantity unchanged at 3, got %d", got)
	}
}

func TestUpdateQuantityToZeroRemovesLine(t *testing.T) {
	cart := NewCart()
	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := cart.UpdateQuantity("PRD-MIE-01", -1); err != nil {
		t.Fatalf("update -1 failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("expected line removed when quantity reaches zero")
	}

	// Driving far below zero must behave the same.
	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("re-add failed: %v", err)
	}
	if err := cart.UpdateQuantity("PRD-MIE-01", -5); err != nil {
		t.Fatalf("update -5 failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("expected line removed for negative result")
	}
}

func TestUpdateQuantityUnknownProductIsNoop(t *testing.T) {
	cart := NewCart()
	if err := cart.UpdateQuantity("PRD-GHOST", 1); err != nil {
		t.Fatalf("expected no-op for unknown product, got %v", err)
	}
}

func TestRemoveItemNoopWhenAbsent(t *testing.T) {
	cart := NewCart()
	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	cart.RemoveItem("PRD-GHOST")
	if len(cart.Lines()) != 1 {
		t.Fatalf("expected remove of absent id to leave cart untouched")
	}

	cart.RemoveItem("PRD-MIE-01")
	if !cart.IsEmpty() {
		t.Fatalf("expected cart empty after remove")
	}
}

func TestRemovePreservesOrderAndIndex(t *testing.T) {
	cart := NewCart()
	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("add mie failed: %v", err)
	}
	if err := cart.AddItem(telur()); err != nil {
		t.Fatalf("add telur failed: %v", err)
	}
	third := domain.Product{ID: "PRD-KOPI-01", Name: "Kopi Sachet", PriceCents: 1500, StockQty: 50, Active: true}
	if err := cart.AddItem(third); err != nil {
		t.Fatalf("add kopi failed: %v", err)
	}

	cart.RemoveItem("PRD-MIE-01")

	lines := cart.Lines()
	if len(lines) != 2 || lines[0].ProductID != "PRD-TELUR-01" || lines[1].ProductID != "PRD-KOPI-01" {
		t.Fatalf("unexpected lines after remove: %+v", lines)
	}

	// Index must still resolve the shifted lines.
	if err := cart.UpdateQuantity("PRD-KOPI-01", 1); err != nil {
		t.Fatalf("update after remove failed: %v", err)
	}
	if got := cart.Lines()[1].Quantity; got != 2 {
		t.Fatalf("expected kopi quantity 2, got %d", got)
	}
}

func TestTotalConsistency(t *testing.T) {
	cart := NewCart()
	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := cart.AddItem(telur()); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := cart.UpdateQuantity("PRD-TELUR-01", 3); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := cart.SetDiscount(1000); err != nil {
		t.Fatalf("set discount failed: %v", err)
	}
	if err := cart.SetTax(1430); err != nil {
		t.Fatalf("set tax failed: %v", err)
	}

	wantSubtotal := int64(3500 + 4*2500)
	if cart.SubtotalCents() != wantSubtotal {
		t.Fatalf("expected subtotal %d, got %d", wantSubtotal, cart.SubtotalCents())
	}
	wantTotal := wantSubtotal - 1000 + 1430
	if cart.TotalCents() != wantTotal {
		t.Fatalf("expected total %d, got %d", wantTotal, cart.TotalCents())
	}
}

func TestClearIsIdempotent(t *testing.T) {
	cart := NewCart()
	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := cart.SetDiscount(500); err != nil {
		t.Fatalf("set discount failed: %v", err)
	}
	if err := cart.SetTax(300); err != nil {
		t.Fatalf("set tax failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		cart.Clear()
		if !cart.IsEmpty() {
			t.Fatalf("clear #%d: expected empty cart", i+1)
		}
		if cart.DiscountCents() != 0 || cart.TaxCents() != 0 {
			t.Fatalf("clear #%d: expected discount and tax reset", i+1)
		}
	}
}

func TestNegativeDiscountAndTaxRejected(t *testing.T) {
	cart := NewCart()
	if err := cart.SetDiscount(-1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative discount, got %v", err)
	}
	if err := cart.SetTax(-1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative tax, got %v", err)
	}
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	cart := NewCart()
	if err := cart.AddItem(mie()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	bad := []domain.CartLine{{ProductID: "PRD-X", UnitPriceCents: 100, Quantity: 5, StockLimit: 2}}
	if err := cart.Restore(bad, 0, 0); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock for over-limit snapshot, got %v", err)
	}
	// Failed restore must not touch existing state.
	if len(cart.Lines()) != 1 || cart.Lines()[0].ProductID != "PRD-MIE-01" {
		t.Fatalf("expected cart unchanged after failed restore")
	}

	good := []domain.CartLine{{ProductID: "PRD-X", Name: "X", UnitPriceCents: 100, Quantity: 2, StockLimit: 2}}
	if err := cart.Restore(good, 50, 10); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if cart.SubtotalCents() != 200 || cart.DiscountCents() != 50 || cart.TaxCents() != 10 {
		t.Fatalf("unexpected state after restore: subtotal=%d discount=%d tax=%d",
			cart.SubtotalCents(), cart.DiscountCents(), cart.TaxCents())
	}
}

func TestStockCeilingInvariantUnderMixedOps(t *testing.T) {
	cart := NewCart()
	product := mie()
	product.StockQty = 4

	ops := []func() error{
		func() error { return cart.AddItem(product) },
		func() error { return cart.AddItem(product) },
		func() error { return cart.UpdateQuantity(product.ID, 5) },
		func() error { return cart.AddItem(product) },
		func() error { return cart.UpdateQuantity(product.ID, 1) },
		func() error { return cart.UpdateQuantity(product.ID, -2) },
		func() error { return cart.AddItem(product) },
	}
	for i, op := range ops {
		err := op()
		if err != nil && !errors.Is(err, ErrOutOfStock) {
			t.Fatalf("op #%d: unexpected error %v", i, err)
		}
		for _, line := range cart.Lines() {
			if line.Quantity > line.StockLimit {
				t.Fatalf("op #%d: quantity %d exceeds stock limit %d", i, line.Quantity, line.StockLimit)
			}
			if line.Quantity < 1 {
				t.Fatalf("op #%d: zero-quantity line stored", i)
			}
		}
	}
}
