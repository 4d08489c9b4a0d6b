// Package sqlite backs the repository with a single-file embedded database.
// Meant for single-terminal deployments where running Postgres is overkill.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, err
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent checkouts.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			price_cents INTEGER NOT NULL,
			stock_qty INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			terminal_id TEXT NOT NULL,
			idempotency_key TEXT NOT NULL UNIQUE,
			customer_id TEXT,
			payment_method TEXT NOT NULL,
			subtotal_cents INTEGER NOT NULL,
			discount_cents INTEGER NOT NULL,
			tax_cents INTEGER NOT NULL,
			total_cents INTEGER NOT NULL,
			payment_received_cents INTEGER NOT NULL,
			change_cents INTEGER NOT NULL,
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id TEXT NOT NULL REFERENCES transactions(id),
			product_id TEXT NOT NULL,
			qty INTEGER NOT NULL,
			unit_price_cents INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transaction_items_tx ON transaction_items (transaction_id)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_username TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type productRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Category   string `db:"category"`
	PriceCents int64  `db:"price_cents"`
	StockQty   int    `db:"stock_qty"`
	Active     bool   `db:"active"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:         r.ID,
		Name:       r.Name,
		Category:   r.Category,
		PriceCents: r.PriceCents,
		StockQty:   r.StockQty,
		Active:     r.Active,
	}
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, category, price_cents, stock_qty, active
		FROM products
		WHERE active = 1
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toDomain())
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if product.StockQty < 0 {
		return nil, store.ErrInvalidTransaction
	}

	product.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, stock_qty, active)
		VALUES (?, ?, ?, ?, ?, 1)
	`, product.ID, product.Name, product.Category, product.PriceCents, product.StockQty)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateProduct
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, productID string) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, category, price_cents, stock_qty, active
		FROM products
		WHERE id = ?
	`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	product := row.toDomain()
	return &product, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, name, category, price_cents, stock_qty, active
		FROM products
		WHERE active = 1 AND id IN (?)
	`, productIDs)
	if err != nil {
		return nil, err
	}

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.ID] = r.toDomain()
	}
	return result, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, category = ?, price_cents = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, product.Name, product.Category, product.PriceCents, product.Active, product.ID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) SetStock(ctx context.Context, productID string, qty int) error {
	if productID == "" || qty < 0 {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IncreaseStock(ctx context.Context, productID string, delta int) error {
	if productID == "" || delta < 1 {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = stock_qty + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, delta, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CommitTransaction re-validates stock against the live rows, recomputes the
// subtotal from live prices, decrements stock and records the sale in one
// transaction. SQLite write transactions are exclusive, so no row locks are
// needed. A replayed idempotency key returns the stored transaction.
func (s *Store) CommitTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	if draft.IdempotencyKey == "" || len(draft.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if !domain.IsSupportedPaymentMethod(draft.PaymentMethod) {
		return nil, store.ErrInvalidTransaction
	}

	dbTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbTx.Rollback() }()

	subtotal := int64(0)
	lines := make([]domain.TransactionLine, 0, len(draft.Items))
	seen := make(map[string]struct{}, len(draft.Items))
	for _, item := range draft.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidTransaction
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, store.ErrInvalidTransaction
		}
		seen[item.ProductID] = struct{}{}

		var row productRow
		err := dbTx.GetContext(ctx, &row, `
			SELECT id, name, category, price_cents, stock_qty, active
			FROM products
			WHERE active = 1 AND id = ?
		`, item.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("product %s unavailable", item.ProductID)
			}
			return nil, err
		}
		if row.StockQty < item.Quantity {
			return nil, store.ErrInsufficientStock
		}

		if _, err := dbTx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty - ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, item.Quantity, item.ProductID); err != nil {
			return nil, err
		}

		lines = append(lines, domain.TransactionLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: row.PriceCents,
		})
		subtotal += row.PriceCents * int64(item.Quantity)
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

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, terminal_id, idempotency_key, customer_id, payment_method,
			subtotal_cents, discount_cents, tax_cents, total_cents,
			payment_received_cents, change_cents, status, notes, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.TerminalID, tx.IdempotencyKey, nullIfEmpty(tx.CustomerID), tx.PaymentMethod,
		tx.SubtotalCents, tx.DiscountCents, tx.TaxCents, tx.TotalCents,
		tx.PaymentReceivedCents, tx.ChangeCents, tx.Status, tx.Notes, tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Release the single connection before the lookup.
			_ = dbTx.Rollback()
			existing, lookupErr := s.FindTransactionByIdempotency(ctx, tx.IdempotencyKey)
			if lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	for _, line := range tx.Items {
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, product_id, qty, unit_price_cents)
			VALUES (?, ?, ?, ?)
		`, tx.ID, line.ProductID, line.Quantity, line.UnitPriceCents); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	return &tx, nil
}

type transactionRow struct {
	ID                   string         `db:"id"`
	TerminalID           string         `db:"terminal_id"`
	IdempotencyKey       string         `db:"idempotency_key"`
	CustomerID           sql.NullString `db:"customer_id"`
	PaymentMethod        string         `db:"payment_method"`
	SubtotalCents        int64          `db:"subtotal_cents"`
	DiscountCents        int64          `db:"discount_cents"`
	TaxCents             int64          `db:"tax_cents"`
	TotalCents           int64          `db:"total_cents"`
	PaymentReceivedCents int64          `db:"payment_received_cents"`
	ChangeCents          int64          `db:"change_cents"`
	Status               string         `db:"status"`
	Notes                string         `db:"notes"`
	CreatedAt            time.Time      `db:"created_at"`
}

func (r transactionRow) toDomain() domain.Transaction {
	tx := domain.Transaction{
		ID:                   r.ID,
		TerminalID:           r.TerminalID,
		IdempotencyKey:       r.IdempotencyKey,
		PaymentMethod:        r.PaymentMethod,
		SubtotalCents:        r.SubtotalCents,
		DiscountCents:        r.DiscountCents,
		TaxCents:             r.TaxCents,
		TotalCents:           r.TotalCents,
		PaymentReceivedCents: r.PaymentReceivedCents,
		ChangeCents:          r.ChangeCents,
		Status:               r.Status,
		Notes:                r.Notes,
		CreatedAt:            r.CreatedAt.UTC(),
	}
	if r.CustomerID.Valid {
		tx.CustomerID = r.CustomerID.String
	}
	return tx
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, "id", id)
}

func (s *Store) FindTransactionByIdempotency(ctx context.Context, key string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, "idempotency_key", key)
}

func (s *Store) findTransaction(ctx context.Context, column string, value string) (*domain.Transaction, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var row transactionRow
	query := fmt.Sprintf(`
		SELECT id, terminal_id, idempotency_key, customer_id, payment_method,
			subtotal_cents, discount_cents, tax_cents, total_cents,
			payment_received_cents, change_cents, status, notes, created_at
		FROM transactions
		WHERE %s = ?
	`, column)
	if err := s.db.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	tx := row.toDomain()

	type itemRow struct {
		ProductID      string `db:"product_id"`
		Qty            int    `db:"qty"`
		UnitPriceCents int64  `db:"unit_price_cents"`
	}
	var itemRows []itemRow
	err := s.db.SelectContext(ctx, &itemRows, `
		SELECT product_id, qty, unit_price_cents
		FROM transaction_items
		WHERE transaction_id = ?
		ORDER BY id ASC
	`, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Items = make([]domain.TransactionLine, 0, len(itemRows))
	for _, item := range itemRows {
		tx.Items = append(tx.Items, domain.TransactionLine{
			ProductID:      item.ProductID,
			Quantity:       item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, terminalID string, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}

	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, terminal_id, idempotency_key, customer_id, payment_method,
			subtotal_cents, discount_cents, tax_cents, total_cents,
			payment_received_cents, change_cents, status, notes, created_at
		FROM transactions
		WHERE (? = '' OR terminal_id = ?)
			AND created_at >= ?
			AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?
	`, terminalID, terminalID, from, to, limit)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	type auditRow struct {
		ID            string    `db:"id"`
		ActorUsername string    `db:"actor_username"`
		ActorRole     string    `db:"actor_role"`
		Action        string    `db:"action"`
		EntityType    string    `db:"entity_type"`
		EntityID      string    `db:"entity_id"`
		Detail        string    `db:"detail"`
		CreatedAt     time.Time `db:"created_at"`
	}
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= ?
			AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?
	`, from, to, limit)
	if err != nil {
		return nil, err
	}

	logs := make([]domain.AuditLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, domain.AuditLog{
			ID:            row.ID,
			ActorUsername: row.ActorUsername,
			ActorRole:     row.ActorRole,
			Action:        row.Action,
			EntityType:    row.EntityType,
			EntityID:      row.EntityID,
			Detail:        row.Detail,
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidTransaction
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	type userRow struct {
		Username  string    `db:"username"`
		Password  string    `db:"password"`
		Role      string    `db:"role"`
		Active    bool      `db:"active"`
		CreatedAt time.Time `db:"created_at"`
	}
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}

	users := make([]domain.UserAccount, 0, len(rows))
	for _, row := range rows {
		users = append(users, domain.UserAccount{
			Username:  row.Username,
			Password:  row.Password,
			Role:      row.Role,
			Active:    row.Active,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || passwordHash == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = ?
		WHERE username = ?
	`, passwordHash, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
