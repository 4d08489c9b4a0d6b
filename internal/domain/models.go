package domain

import "time"

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	StockQty   int    `json:"stock_qty"`
	Active     bool   `json:"active"`
}

type ProductCreateRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	PriceCents   int64  `json:"price_cents"`
	InitialStock int    `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// CartLine is one product row in a terminal's working cart. StockLimit is the
// inventory snapshot taken when the product was added; it is advisory and
// re-validated by the store at commit time.
type CartLine struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	StockLimit     int    `json:"stock_limit"`
}

// TaxBreakdown is the output of the tax calculator. Every monetary field is
// rounded independently to whole minor units; nothing here is persisted.
type TaxBreakdown struct {
	SubtotalCents   int64   `json:"subtotal_cents"`
	DiscountCents   int64   `json:"discount_cents"`
	DiscountedCents int64   `json:"discounted_cents"`
	TaxCents        int64   `json:"tax_cents"`
	TotalCents      int64   `json:"total_cents"`
	TaxRatePercent  float64 `json:"tax_rate_percent"`
}

type DraftItem struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// TransactionDraft is the hand-off payload assembled at checkout confirmation.
// ID assignment, authoritative stock decrement, and persistence belong to the
// store, not to the cart or payment engines.
type TransactionDraft struct {
	TerminalID           string      `json:"terminal_id"`
	IdempotencyKey       string      `json:"idempotency_key"`
	Items                []DraftItem `json:"items"`
	CustomerID           string      `json:"customer_id,omitempty"`
	DiscountCents        int64       `json:"discount_cents"`
	TaxCents             int64       `json:"tax_cents"`
	PaymentMethod        string      `json:"payment_method"`
	PaymentReceivedCents int64       `json:"payment_received_cents"`
	Notes                string      `json:"notes,omitempty"`
}

type TransactionLine struct {
	ProductID      string
	Quantity       int
	UnitPriceCents int64
}

type Transaction struct {
	ID                   string
	TerminalID           string
	IdempotencyKey       string
	CustomerID           string
	PaymentMethod        string
	SubtotalCents        int64
	DiscountCents        int64
	TaxCents             int64
	TotalCents           int64
	PaymentReceivedCents int64
	ChangeCents          int64
	Status               string
	Notes                string
	CreatedAt            time.Time
	Items                []TransactionLine
}

type CheckoutResponse struct {
	TransactionID   string `json:"transaction_id"`
	Status          string `json:"status"`
	PaymentMethod   string `json:"payment_method"`
	SubtotalCents   int64  `json:"subtotal_cents"`
	DiscountCents   int64  `json:"discount_cents"`
	TaxCents        int64  `json:"tax_cents"`
	TotalCents      int64  `json:"total_cents"`
	PaymentReceived int64  `json:"payment_received_cents"`
	ChangeCents     int64  `json:"change_cents"`
	ItemCount       int    `json:"item_count"`
	Duplicate       bool   `json:"duplicate"`
	CreatedAt       string `json:"created_at"`
}

// CartView is the read model returned to the UI after every cart mutation.
type CartView struct {
	TerminalID    string     `json:"terminal_id"`
	Lines         []CartLine `json:"lines"`
	SubtotalCents int64      `json:"subtotal_cents"`
	DiscountCents int64      `json:"discount_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	TotalItems    int        `json:"total_items"`
}

type PaymentView struct {
	State         string `json:"state"`
	Method        string `json:"method,omitempty"`
	TenderedCents int64  `json:"tendered_cents"`
	CustomerID    string `json:"customer_id,omitempty"`
}

type HeldCart struct {
	ID            string     `json:"id"`
	TerminalID    string     `json:"terminal_id"`
	CashierName   string     `json:"cashier_name"`
	Note          string     `json:"note"`
	Lines         []CartLine `json:"lines"`
	DiscountCents int64      `json:"discount_cents"`
	TaxCents      int64      `json:"tax_cents"`
	HeldAt        time.Time  `json:"held_at"`
}

type HoldCartRequest struct {
	Note string `json:"note"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	PaymentMethodCash       = "cash"
	PaymentMethodTransfer   = "transfer"
	PaymentMethodQRIS       = "qris"
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodDebitCard  = "debit_card"
)

const (
	TxStatusPaid = "paid"
)

// IsSupportedPaymentMethod reports whether method is one of the tender types
// the payment engine accepts.
func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodQRIS, PaymentMethodCreditCard, PaymentMethodDebitCard:
		return true
	default:
		return false
	}
}
