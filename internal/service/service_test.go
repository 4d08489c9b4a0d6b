package service

import (
	"context"
	"errors"
	"testing"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/pos"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NewMemoryHeldCartCache(), pos.DefaultTaxRate)
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "kasir-a",
		Role:     "cashier",
	})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     "admin",
	})
}

func TestAddItemBuildsCartView(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	view, err := svc.AddItem(ctx, "terminal-a1", "PRD-MIE-01")
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(view.Lines))
	}
	if view.SubtotalCents != 3500 {
		t.Fatalf("expected subtotal 3500, got %d", view.SubtotalCents)
	}

	view, err = svc.AddItem(ctx, "terminal-a1", "PRD-MIE-01")
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if view.Lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", view.Lines[0].Quantity)
	}
	if view.TotalItems != 2 {
		t.Fatalf("expected 2 total items, got %d", view.TotalItems)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddItem(cashierCtx(), "terminal-a1", "PRD-GHOST-99")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTerminalsHaveIndependentCarts(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-MIE-01"); err != nil {
		t.Fatalf("add on terminal-a1 failed: %v", err)
	}

	other, err := svc.GetCart(ctx, "terminal-b2")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(other.Lines) != 0 {
		t.Fatalf("expected empty cart on terminal-b2, got %d lines", len(other.Lines))
	}
}

func TestCashCheckoutLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	for i := 0; i < 2; i++ {
		if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-MIE-01"); err != nil {
			t.Fatalf("add item failed: %v", err)
		}
	}

	pv, err := svc.OpenPayment(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("open payment failed: %v", err)
	}
	if pv.State != pos.PaymentOpen {
		t.Fatalf("expected open state, got %s", pv.State)
	}

	// 11% of 7000 rounds to 770.
	view, err := svc.GetCart(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if view.TaxCents != 770 {
		t.Fatalf("expected tax 770, got %d", view.TaxCents)
	}
	if view.TotalCents != 7770 {
		t.Fatalf("expected total 7770, got %d", view.TotalCents)
	}

	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "cash"); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if _, err := svc.SetTendered(ctx, "terminal-a1", 10000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}

	resp, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-cash-1", "")
	if err != nil {
		t.Fatalf("confirm checkout failed: %v", err)
	}
	if resp.TotalCents != 7770 {
		t.Fatalf("expected total 7770, got %d", resp.TotalCents)
	}
	if resp.ChangeCents != 2230 {
		t.Fatalf("expected change 2230, got %d", resp.ChangeCents)
	}
	if resp.Status != domain.TxStatusPaid {
		t.Fatalf("expected status paid, got %s", resp.Status)
	}

	after, err := svc.GetCart(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(after.Lines) != 0 {
		t.Fatalf("expected cart cleared after checkout")
	}

	product, err := svc.GetProduct(ctx, "PRD-MIE-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockQty != 118 {
		t.Fatalf("expected stock 118 after sale, got %d", product.StockQty)
	}
}

func TestNonCashCheckoutAutoFillsTender(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-TELUR-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("open payment failed: %v", err)
	}

	pv, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "qris")
	if err != nil {
		t.Fatalf("select qris failed: %v", err)
	}
	// 26500 + 11% tax (2915) = 29415, filled automatically.
	if pv.TenderedCents != 29415 {
		t.Fatalf("expected tendered 29415, got %d", pv.TenderedCents)
	}

	resp, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-qris-1", "")
	if err != nil {
		t.Fatalf("confirm checkout failed: %v", err)
	}
	if resp.ChangeCents != 0 {
		t.Fatalf("expected zero change for qris, got %d", resp.ChangeCents)
	}
}

func TestInsufficientCashKeepsDialogOpen(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-SUSU-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("open payment failed: %v", err)
	}
	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "cash"); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if _, err := svc.SetTendered(ctx, "terminal-a1", 1000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}

	_, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-short", "")
	if !errors.Is(err, pos.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}

	// Still open: topping up the tender and retrying must succeed.
	if _, err := svc.SetTendered(ctx, "terminal-a1", 25000); err != nil {
		t.Fatalf("second set tendered failed: %v", err)
	}
	if _, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-short", ""); err != nil {
		t.Fatalf("retry checkout failed: %v", err)
	}
}

func TestConfirmCheckoutReplaysIdempotencyKey(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-KOPI-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("open payment failed: %v", err)
	}
	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "cash"); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if _, err := svc.SetTendered(ctx, "terminal-a1", 5000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}

	first, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-replay", "")
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	if first.Duplicate {
		t.Fatalf("first checkout must not be flagged duplicate")
	}

	// Same key on a fresh cart replays the stored transaction.
	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-KOPI-01"); err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "cash"); err != nil {
		t.Fatalf("second select failed: %v", err)
	}
	if _, err := svc.SetTendered(ctx, "terminal-a1", 5000); err != nil {
		t.Fatalf("second set tendered failed: %v", err)
	}

	second, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-replay", "")
	if err != nil {
		t.Fatalf("replay checkout failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected replay to be flagged duplicate")
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("expected same transaction id on replay")
	}

	lookup, err := svc.LookupCheckoutByIdempotency(ctx, "idem-replay")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if lookup == nil || lookup.TransactionID != first.TransactionID {
		t.Fatalf("expected lookup to return the committed transaction")
	}
}

// flakyLookupRepo simulates a store whose idempotency lookup fails
// transiently, as a flaky network to postgres would.
type flakyLookupRepo struct {
	store.Repository
	fail bool
}

func (r *flakyLookupRepo) FindTransactionByIdempotency(ctx context.Context, key string) (*domain.Transaction, error) {
	if r.fail {
		return nil, errors.New("store unavailable")
	}
	return r.Repository.FindTransactionByIdempotency(ctx, key)
}

func TestConfirmCheckoutLookupFailureFreesDialog(t *testing.T) {
	repo := &flakyLookupRepo{Repository: memory.NewSeeded(), fail: true}
	svc := New(repo, cache.NewMemoryHeldCartCache(), pos.DefaultTaxRate)
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-KOPI-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("open payment failed: %v", err)
	}
	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "cash"); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if _, err := svc.SetTendered(ctx, "terminal-a1", 5000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}

	if _, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-flaky-1", ""); err == nil {
		t.Fatalf("expected checkout to fail while the store is down")
	}

	// The cart survived and the dialog is free to reopen for a retry.
	view, err := svc.GetCart(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected cart preserved, got %d lines", len(view.Lines))
	}

	repo.fail = false
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("reopen payment failed: %v", err)
	}
	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "cash"); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if _, err := svc.SetTendered(ctx, "terminal-a1", 5000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}

	resp, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-flaky-1", "")
	if err != nil {
		t.Fatalf("retry checkout failed: %v", err)
	}
	if resp.Duplicate {
		t.Fatalf("retry should commit, not replay")
	}
}

func TestConfirmCheckoutEmptyCartRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.ConfirmCheckout(cashierCtx(), "terminal-a1", "idem-empty", "")
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction, got %v", err)
	}
}

func TestConfirmCheckoutMapsStockRaceToOutOfStock(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-ROTI-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("open payment failed: %v", err)
	}
	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "cash"); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if _, err := svc.SetTendered(ctx, "terminal-a1", 50000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}

	// Another terminal drains the shelf before this one confirms.
	if err := svc.AdjustStock(adminCtx(), "PRD-ROTI-01", 0); err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}

	_, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-race", "")
	if !errors.Is(err, pos.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	view, err := svc.GetCart(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected cart preserved after failed commit")
	}
}

func TestApplyTaxRateAndPreview(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-GULA-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.SetDiscount(ctx, "terminal-a1", 400); err != nil {
		t.Fatalf("set discount failed: %v", err)
	}

	breakdown, err := svc.ApplyTaxRate(ctx, "terminal-a1", 0.10)
	if err != nil {
		t.Fatalf("apply tax rate failed: %v", err)
	}
	if breakdown.TaxCents != 1700 {
		t.Fatalf("expected tax 1700, got %d", breakdown.TaxCents)
	}
	if breakdown.TotalCents != 18700 {
		t.Fatalf("expected total 18700, got %d", breakdown.TotalCents)
	}

	view, err := svc.GetCart(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if view.TaxCents != 1700 {
		t.Fatalf("expected cart tax 1700, got %d", view.TaxCents)
	}

	preview, err := svc.Preview(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if preview.TaxRatePercent != 11 {
		t.Fatalf("expected preview at default rate, got %.2f", preview.TaxRatePercent)
	}
}

func TestOpenPaymentKeepsExplicitZeroTax(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	for i := 0; i < 2; i++ {
		if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-MIE-01"); err != nil {
			t.Fatalf("add item failed: %v", err)
		}
	}

	breakdown, err := svc.ApplyTaxRate(ctx, "terminal-a1", 0)
	if err != nil {
		t.Fatalf("apply zero tax rate failed: %v", err)
	}
	if breakdown.TaxCents != 0 {
		t.Fatalf("expected zero tax, got %d", breakdown.TaxCents)
	}

	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("open payment failed: %v", err)
	}

	view, err := svc.GetCart(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if view.TaxCents != 0 {
		t.Fatalf("exempt sale was taxed: tax %d", view.TaxCents)
	}
	if view.TotalCents != 7000 {
		t.Fatalf("expected total 7000, got %d", view.TotalCents)
	}

	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "cash"); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if _, err := svc.SetTendered(ctx, "terminal-a1", 7000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}

	resp, err := svc.ConfirmCheckout(ctx, "terminal-a1", "", "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.TaxCents != 0 {
		t.Fatalf("expected transaction tax 0, got %d", resp.TaxCents)
	}
	if resp.TotalCents != 7000 {
		t.Fatalf("expected transaction total 7000, got %d", resp.TotalCents)
	}

	// The flag is per sale: the next cart on this terminal defaults again.
	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-MIE-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("open payment failed: %v", err)
	}
	view, err = svc.GetCart(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if view.TaxCents != 385 {
		t.Fatalf("expected default tax 385 on the next sale, got %d", view.TaxCents)
	}
}

func TestHoldAndResumeCart(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-MIE-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-TELUR-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.SetDiscount(ctx, "terminal-a1", 500); err != nil {
		t.Fatalf("set discount failed: %v", err)
	}

	held, err := svc.HoldCart(ctx, "terminal-a1", domain.HoldCartRequest{Note: "customer ambil dompet"})
	if err != nil {
		t.Fatalf("hold cart failed: %v", err)
	}
	if held.CashierName != "kasir-a" {
		t.Fatalf("expected cashier name recorded, got %q", held.CashierName)
	}

	view, err := svc.GetCart(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("expected empty cart after hold")
	}

	list, err := svc.ListHeldCarts(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("list held carts failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 held cart, got %d", len(list))
	}

	resumed, err := svc.ResumeHeldCart(ctx, "terminal-a1", held.ID)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if len(resumed.Lines) != 2 {
		t.Fatalf("expected 2 restored lines, got %d", len(resumed.Lines))
	}
	if resumed.DiscountCents != 500 {
		t.Fatalf("expected discount restored, got %d", resumed.DiscountCents)
	}

	after, err := svc.ListHeldCarts(ctx, "terminal-a1")
	if err != nil {
		t.Fatalf("list after resume failed: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected no held carts after resume, got %d", len(after))
	}
}

func TestResumeUnknownHoldReturnsError(t *testing.T) {
	svc := newTestService()

	_, err := svc.ResumeHeldCart(cashierCtx(), "terminal-a1", "hold-ghost")
	if !errors.Is(err, cache.ErrHoldNotFound) {
		t.Fatalf("expected ErrHoldNotFound, got %v", err)
	}
}

func TestHoldEmptyCartRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.HoldCart(cashierCtx(), "terminal-a1", domain.HoldCartRequest{Note: "nothing here"})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction, got %v", err)
	}
}

func TestCreateProductAdminSuccess(t *testing.T) {
	svc := newTestService()

	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		ID:           "PRD-BARU-01",
		Name:         "Biskuit Coklat",
		Category:     "snack",
		PriceCents:   8500,
		InitialStock: 40,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if product.ID != "PRD-BARU-01" {
		t.Fatalf("unexpected product id: %s", product.ID)
	}
	if product.StockQty != 40 {
		t.Fatalf("expected initial stock 40, got %d", product.StockQty)
	}

	products, err := svc.ListProducts(adminCtx())
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	found := false
	for _, item := range products {
		if item.ID == "PRD-BARU-01" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected new product to be listed")
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(cashierCtx(), domain.ProductCreateRequest{
		Name:         "Kerupuk Udang",
		Category:     "snack",
		PriceCents:   7000,
		InitialStock: 30,
	})
	if err == nil {
		t.Fatalf("expected non-admin create product to fail")
	}
}

func TestUpdateProductPartialFields(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	newPrice := int64(4200)
	updated, err := svc.UpdateProduct(ctx, "PRD-MIE-01", domain.ProductUpdateRequest{PriceCents: &newPrice})
	if err != nil {
		t.Fatalf("update product failed: %v", err)
	}
	if updated.PriceCents != 4200 {
		t.Fatalf("expected price 4200, got %d", updated.PriceCents)
	}
	if updated.Name != "Mie Goreng Instan" {
		t.Fatalf("expected name untouched, got %q", updated.Name)
	}
	if updated.StockQty != 120 {
		t.Fatalf("expected stock untouched, got %d", updated.StockQty)
	}
}

func TestRestockProductAddsToShelfCount(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	if err := svc.RestockProduct(ctx, "PRD-MIE-01", 30); err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	product, err := svc.GetProduct(ctx, "PRD-MIE-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockQty != 150 {
		t.Fatalf("expected stock 150 after restock, got %d", product.StockQty)
	}

	if err := svc.RestockProduct(ctx, "PRD-MIE-01", 0); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected zero delta to be rejected, got %v", err)
	}
	if err := svc.RestockProduct(cashierCtx(), "PRD-MIE-01", 10); err == nil {
		t.Fatalf("expected non-admin restock to fail")
	}
}

func TestCheckoutWritesAuditLog(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	if _, err := svc.AddItem(ctx, "terminal-a1", "PRD-AIR-01"); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.OpenPayment(ctx, "terminal-a1"); err != nil {
		t.Fatalf("open payment failed: %v", err)
	}
	if _, err := svc.SelectPaymentMethod(ctx, "terminal-a1", "transfer"); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if _, err := svc.ConfirmCheckout(ctx, "terminal-a1", "idem-audit", ""); err != nil {
		t.Fatalf("confirm checkout failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, "", 100)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "checkout" && entry.ActorUsername == "kasir-a" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected checkout audit entry")
	}
}
