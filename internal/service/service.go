package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/pos"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// terminalSession is the in-memory working state for one POS terminal: its
// cart and its payment dialog. All access goes through the session mutex, so
// concurrent requests for the same terminal are serialized while different
// terminals proceed independently.
type terminalSession struct {
	mu      sync.Mutex
	cart    *pos.Cart
	payment *pos.PaymentSession

	// taxApplied records that the operator set a tax rate for this sale,
	// including an explicit zero. Only an unset tax falls back to the
	// configured default when the payment dialog opens.
	taxApplied bool
}

type Service struct {
	repo     store.Repository
	holds    cache.HeldCartCache
	taxRate  float64
	mu       sync.Mutex
	sessions map[string]*terminalSession
}

func New(repo store.Repository, holds cache.HeldCartCache, taxRate float64) *Service {
	if taxRate <= 0 {
		taxRate = pos.DefaultTaxRate
	}

	return &Service{
		repo:     repo,
		holds:    holds,
		taxRate:  taxRate,
		sessions: make(map[string]*terminalSession, 4),
	}
}

func (s *Service) session(terminalID string) (*terminalSession, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[terminalID]
	if !ok {
		sess = &terminalSession{
			cart:    pos.NewCart(),
			payment: pos.NewPaymentSession(),
		}
		s.sessions[terminalID] = sess
	}
	return sess, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.ID == "" {
		req.ID = xid.New("PRD")
	}

	if req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	if req.PriceCents < 1 || req.InitialStock < 0 {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	product := domain.Product{
		ID:         req.ID,
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		StockQty:   req.InitialStock,
		Active:     true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, req.InitialStock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	existing, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PriceCents))
	return *saved, nil
}

func (s *Service) AdjustStock(ctx context.Context, productID string, qty int) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	productID = strings.TrimSpace(productID)
	if productID == "" || qty < 0 {
		return store.ErrInvalidTransaction
	}

	if err := s.repo.SetStock(ctx, productID, qty); err != nil {
		return err
	}
	s.logAudit(ctx, "stock_adjust", "product", productID, fmt.Sprintf("qty=%d", qty))
	return nil
}

// RestockProduct adds delivered units on top of whatever is on the shelf,
// unlike AdjustStock which overwrites the count after an opname.
func (s *Service) RestockProduct(ctx context.Context, productID string, delta int) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	productID = strings.TrimSpace(productID)
	if productID == "" || delta <= 0 {
		return store.ErrInvalidTransaction
	}

	if err := s.repo.IncreaseStock(ctx, productID, delta); err != nil {
		return err
	}
	s.logAudit(ctx, "product_restock", "product", productID, fmt.Sprintf("delta=%d", delta))
	return nil
}

// AddItem puts one unit of product into the terminal's cart, snapshotting the
// current stock level as the line's limit. Inactive products are rejected the
// same way as unknown ones.
func (s *Service) AddItem(ctx context.Context, terminalID string, productID string) (domain.CartView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.CartView{}, err
	}

	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.CartView{}, err
	}
	if !product.Active {
		return domain.CartView{}, store.ErrNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.cart.AddItem(*product); err != nil {
		return domain.CartView{}, err
	}
	return cartView(terminalID, sess.cart), nil
}

func (s *Service) UpdateQuantity(_ context.Context, terminalID string, productID string, delta int) (domain.CartView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.CartView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.cart.UpdateQuantity(strings.TrimSpace(productID), delta); err != nil {
		return domain.CartView{}, err
	}
	return cartView(terminalID, sess.cart), nil
}

func (s *Service) RemoveItem(_ context.Context, terminalID string, productID string) (domain.CartView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.CartView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.cart.RemoveItem(strings.TrimSpace(productID))
	return cartView(terminalID, sess.cart), nil
}

func (s *Service) SetDiscount(_ context.Context, terminalID string, cents int64) (domain.CartView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.CartView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.cart.SetDiscount(cents); err != nil {
		return domain.CartView{}, err
	}
	return cartView(terminalID, sess.cart), nil
}

// ApplyTaxRate computes tax for the cart's current discounted subtotal at the
// given fractional rate and stores the rounded amount on the cart. A negative
// rate selects the configured default.
func (s *Service) ApplyTaxRate(_ context.Context, terminalID string, taxRate float64) (domain.TaxBreakdown, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.TaxBreakdown{}, err
	}
	if taxRate < 0 {
		taxRate = s.taxRate
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	subtotal := sess.cart.SubtotalCents()
	discount := sess.cart.DiscountCents()
	if err := pos.ValidateTaxInputs(subtotal, taxRate, discount); err != nil {
		return domain.TaxBreakdown{}, err
	}

	breakdown := pos.CalculateTax(subtotal, taxRate, discount)
	if err := sess.cart.SetTax(breakdown.TaxCents); err != nil {
		return domain.TaxBreakdown{}, err
	}
	sess.taxApplied = true
	return breakdown, nil
}

// Preview reports the checkout totals at the configured tax rate without
// touching the cart.
func (s *Service) Preview(_ context.Context, terminalID string) (domain.TaxBreakdown, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.TaxBreakdown{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return pos.CalculatePOSTotal(sess.cart.Lines(), sess.cart.DiscountCents(), s.taxRate), nil
}

func (s *Service) GetCart(_ context.Context, terminalID string) (domain.CartView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.CartView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return cartView(terminalID, sess.cart), nil
}

func (s *Service) ClearCart(ctx context.Context, terminalID string) (domain.CartView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.CartView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.cart.Clear()
	sess.payment.Reset()
	sess.taxApplied = false
	s.logAudit(ctx, "cart_clear", "cart", terminalID, "")
	return cartView(terminalID, sess.cart), nil
}

// OpenPayment brings up the payment dialog for the terminal. The cart has to
// hold at least one line; the tax defaults to the configured rate only when
// the operator never applied one, so an explicit zero-rate sale stays exempt.
func (s *Service) OpenPayment(ctx context.Context, terminalID string) (domain.PaymentView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.PaymentView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cart.IsEmpty() {
		return domain.PaymentView{}, store.ErrInvalidTransaction
	}
	if !sess.taxApplied {
		breakdown := pos.CalculateTax(sess.cart.SubtotalCents(), s.taxRate, sess.cart.DiscountCents())
		if err := sess.cart.SetTax(breakdown.TaxCents); err != nil {
			return domain.PaymentView{}, err
		}
	}

	if err := sess.payment.Open(); err != nil {
		return domain.PaymentView{}, err
	}
	s.logAudit(ctx, "payment_open", "cart", terminalID, fmt.Sprintf("total=%d", sess.cart.TotalCents()))
	return paymentView(sess.payment), nil
}

func (s *Service) SelectPaymentMethod(_ context.Context, terminalID string, method string) (domain.PaymentView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.PaymentView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.payment.SetMethod(strings.ToLower(strings.TrimSpace(method)), sess.cart.TotalCents()); err != nil {
		return domain.PaymentView{}, err
	}
	return paymentView(sess.payment), nil
}

func (s *Service) SetTendered(_ context.Context, terminalID string, cents int64) (domain.PaymentView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.PaymentView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.payment.SetTendered(cents); err != nil {
		return domain.PaymentView{}, err
	}
	return paymentView(sess.payment), nil
}

func (s *Service) SetCustomer(_ context.Context, terminalID string, customerID string) (domain.PaymentView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.PaymentView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.payment.SetCustomer(strings.TrimSpace(customerID))
	return paymentView(sess.payment), nil
}

func (s *Service) CancelPayment(ctx context.Context, terminalID string) (domain.PaymentView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.PaymentView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.payment.Reset()
	s.logAudit(ctx, "payment_cancel", "cart", terminalID, "")
	return paymentView(sess.payment), nil
}

// ConfirmCheckout validates the tender against the cart total, commits the
// transaction through the store's atomic write path and, on success, clears
// the terminal's cart and payment dialog. An empty idempotency key gets a
// generated one; replays of a used key return the stored transaction flagged
// as duplicate.
func (s *Service) ConfirmCheckout(ctx context.Context, terminalID string, idempotencyKey string, notes string) (domain.CheckoutResponse, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = xid.New("idem")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cart.IsEmpty() {
		return domain.CheckoutResponse{}, store.ErrInvalidTransaction
	}

	total := sess.cart.TotalCents()
	if err := sess.payment.Validate(total); err != nil {
		return domain.CheckoutResponse{}, err
	}

	lines := sess.cart.Lines()
	items := make([]domain.DraftItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.DraftItem{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			PriceCents: line.UnitPriceCents,
		})
	}

	draft := domain.TransactionDraft{
		TerminalID:           terminalID,
		IdempotencyKey:       idempotencyKey,
		Items:                items,
		CustomerID:           sess.payment.CustomerID(),
		DiscountCents:        sess.cart.DiscountCents(),
		TaxCents:             sess.cart.TaxCents(),
		PaymentMethod:        sess.payment.Method(),
		PaymentReceivedCents: sess.payment.TenderedCents(),
		Notes:                strings.TrimSpace(notes),
	}

	existing, err := s.repo.FindTransactionByIdempotency(ctx, idempotencyKey)
	if err == nil {
		sess.cart.Clear()
		sess.payment.Reset()
		sess.taxApplied = false
		return toCheckoutResponse(existing, true), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		// The dialog was already validated; reset it so the cashier can
		// reopen and retry instead of being stuck in a dead state.
		sess.payment.Reset()
		return domain.CheckoutResponse{}, err
	}

	created, err := s.repo.CommitTransaction(ctx, draft)
	if err != nil {
		// Commit failed; the cart stays intact and the dialog resets so the
		// cashier can retry the tender.
		sess.payment.Reset()
		if errors.Is(err, store.ErrInsufficientStock) {
			return domain.CheckoutResponse{}, pos.ErrOutOfStock
		}
		return domain.CheckoutResponse{}, err
	}

	sess.cart.Clear()
	sess.payment.Reset()
	sess.taxApplied = false

	s.logAudit(ctx, "checkout", "transaction", created.ID, fmt.Sprintf("total=%d,payment=%s,discount=%d", created.TotalCents, created.PaymentMethod, created.DiscountCents))
	return toCheckoutResponse(created, false), nil
}

func (s *Service) LookupCheckoutByIdempotency(ctx context.Context, idempotencyKey string) (*domain.CheckoutResponse, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return nil, store.ErrInvalidTransaction
	}

	tx, err := s.repo.FindTransactionByIdempotency(ctx, idempotencyKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	checkout := toCheckoutResponse(tx, false)
	return &checkout, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Transaction{}, store.ErrInvalidTransaction
	}
	tx, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, terminalID string, date string, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}

	from, to, err := dayWindow(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, strings.TrimSpace(terminalID), from, to, limit)
}

// HoldCart parks the terminal's cart so another customer can be served. The
// snapshot is written to the hold cache and the live cart is cleared only
// after the write succeeds.
func (s *Service) HoldCart(ctx context.Context, terminalID string, req domain.HoldCartRequest) (domain.HeldCart, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.HeldCart{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cart.IsEmpty() {
		return domain.HeldCart{}, store.ErrInvalidTransaction
	}

	actor, _ := ActorFromContext(ctx)
	held := domain.HeldCart{
		ID:            xid.New("hold"),
		TerminalID:    terminalID,
		CashierName:   actor.Username,
		Note:          strings.TrimSpace(req.Note),
		Lines:         sess.cart.Lines(),
		DiscountCents: sess.cart.DiscountCents(),
		TaxCents:      sess.cart.TaxCents(),
		HeldAt:        time.Now().UTC(),
	}

	if err := s.holds.Save(ctx, held); err != nil {
		return domain.HeldCart{}, err
	}
	sess.cart.Clear()
	sess.payment.Reset()
	sess.taxApplied = false

	s.logAudit(ctx, "cart_hold", "held_cart", held.ID, fmt.Sprintf("items=%d", len(held.Lines)))
	return held, nil
}

func (s *Service) ListHeldCarts(ctx context.Context, terminalID string) ([]domain.HeldCart, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil, store.ErrInvalidTransaction
	}
	return s.holds.List(ctx, terminalID)
}

// ResumeHeldCart pops a held snapshot and restores it as the terminal's live
// cart, replacing whatever was in progress. A snapshot that fails cart
// validation is put back so it is not silently lost.
func (s *Service) ResumeHeldCart(ctx context.Context, terminalID string, holdID string) (domain.CartView, error) {
	sess, err := s.session(terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return domain.CartView{}, store.ErrInvalidTransaction
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	held, err := s.holds.Pop(ctx, terminalID, holdID)
	if err != nil {
		return domain.CartView{}, err
	}

	if err := sess.cart.Restore(held.Lines, held.DiscountCents, held.TaxCents); err != nil {
		if saveErr := s.holds.Save(ctx, *held); saveErr != nil {
			log.Printf("[service] WARN: failed to re-save held cart id=%s: %v", held.ID, saveErr)
		}
		return domain.CartView{}, err
	}
	sess.payment.Reset()
	sess.taxApplied = held.TaxCents != 0

	s.logAudit(ctx, "cart_resume", "held_cart", held.ID, fmt.Sprintf("items=%d", len(held.Lines)))
	return cartView(terminalID, sess.cart), nil
}

func (s *Service) DiscardHeldCart(ctx context.Context, terminalID string, holdID string) error {
	terminalID = strings.TrimSpace(terminalID)
	holdID = strings.TrimSpace(holdID)
	if terminalID == "" || holdID == "" {
		return store.ErrInvalidTransaction
	}

	held, err := s.holds.Pop(ctx, terminalID, holdID)
	if err != nil {
		return err
	}

	s.logAudit(ctx, "cart_discard", "held_cart", held.ID, "discarded")
	return nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	from, to, err := dayWindow(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func cartView(terminalID string, cart *pos.Cart) domain.CartView {
	return domain.CartView{
		TerminalID:    terminalID,
		Lines:         cart.Lines(),
		SubtotalCents: cart.SubtotalCents(),
		DiscountCents: cart.DiscountCents(),
		TaxCents:      cart.TaxCents(),
		TotalCents:    cart.TotalCents(),
		TotalItems:    cart.TotalItems(),
	}
}

func paymentView(payment *pos.PaymentSession) domain.PaymentView {
	return domain.PaymentView{
		State:         payment.State(),
		Method:        payment.Method(),
		TenderedCents: payment.TenderedCents(),
		CustomerID:    payment.CustomerID(),
	}
}

func toCheckoutResponse(tx *domain.Transaction, duplicate bool) domain.CheckoutResponse {
	itemCount := 0
	for _, item := range tx.Items {
		itemCount += item.Quantity
	}

	return domain.CheckoutResponse{
		TransactionID:   tx.ID,
		Status:          tx.Status,
		PaymentMethod:   tx.PaymentMethod,
		SubtotalCents:   tx.SubtotalCents,
		DiscountCents:   tx.DiscountCents,
		TaxCents:        tx.TaxCents,
		TotalCents:      tx.TotalCents,
		PaymentReceived: tx.PaymentReceivedCents,
		ChangeCents:     tx.ChangeCents,
		ItemCount:       itemCount,
		Duplicate:       duplicate,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
}

// dayWindow resolves an optional YYYY-MM-DD date into a [from, to) window;
// empty means the trailing 24 hours.
func dayWindow(date string) (time.Time, time.Time, error) {
	if strings.TrimSpace(date) == "" {
		to := time.Now().UTC()
		return to.Add(-24 * time.Hour), to, nil
	}

	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, store.ErrInvalidTransaction
	}
	from := parsed.UTC()
	return from, from.Add(24 * time.Hour), nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
