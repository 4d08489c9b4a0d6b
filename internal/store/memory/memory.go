package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

type Store struct {
	mu                 sync.RWMutex
	products           map[string]domain.Product
	transactionsByID   map[string]*domain.Transaction
	transactionsByIdem map[string]*domain.Transaction
	auditLogs          []domain.AuditLog
	usersByUsername    map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; without
// them hardcoded dev defaults are used and a warning is logged. The memory
// backend is never selected when DATABASE_URL or SQLITE_PATH is set.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "PRD-MIE-01", Name: "Mie Goreng Instan", Category: "grocery", PriceCents: 3500, StockQty: 120, Active: true},
		{ID: "PRD-TELUR-01", Name: "Telur 10 Butir", Category: "grocery", PriceCents: 26500, StockQty: 80, Active: true},
		{ID: "PRD-SUSU-01", Name: "Susu UHT 1L", Category: "dairy", PriceCents: 18900, StockQty: 60, Active: true},
		{ID: "PRD-ROTI-01", Name: "Roti Tawar", Category: "bakery", PriceCents: 17800, StockQty: 40, Active: true},
		{ID: "PRD-KOPI-01", Name: "Kopi Sachet", Category: "beverage", PriceCents: 2600, StockQty: 200, Active: true},
		{ID: "PRD-GULA-01", Name: "Gula 1kg", Category: "grocery", PriceCents: 17400, StockQty: 90, Active: true},
		{ID: "PRD-TEH-01", Name: "Teh Celup", Category: "beverage", PriceCents: 9800, StockQty: 75, Active: true},
		{ID: "PRD-AIR-01", Name: "Air Mineral 600ml", Category: "beverage", PriceCents: 3900, StockQty: 300, Active: true},
		{ID: "PRD-KERIPIK-01", Name: "Keripik Singkong", Category: "snack", PriceCents: 12800, StockQty: 55, Active: true},
		{ID: "PRD-COKLAT-01", Name: "Coklat Batang", Category: "snack", PriceCents: 8600, StockQty: 45, Active: true},
		{ID: "PRD-SABUN-01", Name: "Sabun Mandi", Category: "household", PriceCents: 7400, StockQty: 70, Active: true},
		{ID: "PRD-SHAMPOO-01", Name: "Shampoo Sachet", Category: "household", PriceCents: 3200, StockQty: 150, Active: true},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	return &Store{
		products:           productMap,
		transactionsByID:   make(map[string]*domain.Transaction),
		transactionsByIdem: make(map[string]*domain.Transaction),
		auditLogs:          make([]domain.AuditLog, 0, 128),
		usersByUsername:    seedUsers(),
	}
}

// New returns an empty store. Used by tests that seed their own catalog.
func New() *Store {
	return &Store{
		products:           make(map[string]domain.Product),
		transactionsByID:   make(map[string]*domain.Transaction),
		transactionsByIdem: make(map[string]*domain.Transaction),
		auditLogs:          make([]domain.AuditLog, 0, 16),
		usersByUsername:    make(map[string]domain.UserAccount),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if product.StockQty < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrDuplicateProduct
	}

	product.Active = true
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, productIDs []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := s.products[id]; ok && p.Active {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Stock is adjusted through SetStock/IncreaseStock, not product updates.
	product.StockQty = existing.StockQty
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) SetStock(_ context.Context, productID string, qty int) error {
	if productID == "" || qty < 0 {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return fmt.Errorf("product %s unavailable", productID)
	}
	product.StockQty = qty
	s.products[productID] = product
	return nil
}

func (s *Store) IncreaseStock(_ context.Context, productID string, delta int) error {
	if productID == "" || delta < 1 {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	product.StockQty += delta
	s.products[productID] = product
	return nil
}

// CommitTransaction re-validates the draft against live catalog state,
// decrements stock and records the sale atomically under the store lock.
// Replays the stored transaction when the idempotency key was seen before.
func (s *Store) CommitTransaction(_ context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.IdempotencyKey == "" {
		return nil, store.ErrInvalidTransaction
	}
	if existing, ok := s.transactionsByIdem[draft.IdempotencyKey]; ok {
		return cloneTransaction(existing), nil
	}
	if len(draft.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if !domain.IsSupportedPaymentMethod(draft.PaymentMethod) {
		return nil, store.ErrInvalidTransaction
	}

	subtotal := int64(0)
	lines := make([]domain.TransactionLine, 0, len(draft.Items))
	for _, item := range draft.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidTransaction
		}
		product, exists := s.products[item.ProductID]
		if !exists || !product.Active {
			return nil, fmt.Errorf("product %s unavailable", item.ProductID)
		}
		if product.StockQty < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
		lines = append(lines, domain.TransactionLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
		})
		subtotal += int64(item.Quantity) * product.PriceCents
	}

	if draft.DiscountCents < 0 || draft.DiscountCents > subtotal {
		return nil, store.ErrInvalidTransaction
	}
	if draft.TaxCents < 0 {
		return nil, store.ErrInvalidTransaction
	}
	total := subtotal - draft.DiscountCents + draft.TaxCents

	change := int64(0)
	if draft.PaymentMethod == domain.PaymentMethodCash {
		if draft.PaymentReceivedCents < total {
			return nil, store.ErrInvalidTransaction
		}
		change = draft.PaymentReceivedCents - total
	} else if draft.PaymentReceivedCents != total {
		return nil, store.ErrInvalidTransaction
	}

	for _, line := range lines {
		product := s.products[line.ProductID]
		product.StockQty -= line.Quantity
		s.products[line.ProductID] = product
	}

	tx := domain.Transaction{
		ID:                   xid.New("tx"),
		TerminalID:           draft.TerminalID,
		IdempotencyKey:       draft.IdempotencyKey,
		CustomerID:           draft.CustomerID,
		PaymentMethod:        draft.PaymentMethod,
		SubtotalCents:        subtotal,
		DiscountCents:        draft.DiscountCents,
		TaxCents:             draft.TaxCents,
		TotalCents:           total,
		PaymentReceivedCents: draft.PaymentReceivedCents,
		ChangeCents:          change,
		Status:               domain.TxStatusPaid,
		Notes:                draft.Notes,
		CreatedAt:            time.Now().UTC(),
		Items:                lines,
	}

	txCopy := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = txCopy
	s.transactionsByIdem[tx.IdempotencyKey] = txCopy

	return cloneTransaction(txCopy), nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) FindTransactionByIdempotency(_ context.Context, key string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, terminalID string, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 64)
	for _, tx := range s.transactionsByID {
		if terminalID != "" && tx.TerminalID != terminalID {
			continue
		}
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidTransaction
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = passwordHash
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dupItems := make([]domain.TransactionLine, len(src.Items))
	copy(dupItems, src.Items)
	dup.Items = dupItems
	return &dup
}
