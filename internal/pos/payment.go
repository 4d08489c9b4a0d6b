package pos

import "warungpos/backend/internal/domain"

// Payment dialog states. A session starts closed, opens when the cashier
// brings up the payment dialog, and reaches validated only after a
// successful Validate call.
const (
	PaymentClosed    = "closed"
	PaymentOpen      = "open"
	PaymentValidated = "validated"
)

// PaymentSession tracks the tender for one checkout: method, amount offered,
// and optional customer link. All amounts are integer minor units; tender is
// never compared as floating point.
type PaymentSession struct {
	state         string
	method        string
	tenderedCents int64
	customerID    string
}

func NewPaymentSession() *PaymentSession {
	return &PaymentSession{state: PaymentClosed}
}

// Open transitions closed -> open and clears any prior tendered amount.
func (p *PaymentSession) Open() error {
	if p.state != PaymentClosed {
		return ErrInvalidPaymentState
	}
	p.state = PaymentOpen
	p.tenderedCents = 0
	return nil
}

// SetMethod selects the tender type. For any non-cash method the tendered
// amount is auto-filled to the total, since non-cash tender is always exact.
func (p *PaymentSession) SetMethod(method string, totalCents int64) error {
	if p.state != PaymentOpen {
		return ErrInvalidPaymentState
	}
	if !domain.IsSupportedPaymentMethod(method) {
		return ErrInvalidAmount
	}
	p.method = method
	if method != domain.PaymentMethodCash {
		p.tenderedCents = totalCents
	}
	return nil
}

// SetTendered records the cash amount offered by the customer. Only valid for
// the cash method while the dialog is open.
func (p *PaymentSession) SetTendered(cents int64) error {
	if p.state != PaymentOpen {
		return ErrInvalidPaymentState
	}
	if p.method != domain.PaymentMethodCash {
		return ErrInvalidPaymentState
	}
	if cents < 0 {
		return ErrInvalidAmount
	}
	p.tenderedCents = cents
	return nil
}

func (p *PaymentSession) SetCustomer(customerID string) {
	p.customerID = customerID
}

// Validate checks the tender against the total: cash succeeds when tendered
// >= total, every other method only on exact match. On success the session
// moves to validated; on failure it stays open and the state is unchanged.
func (p *PaymentSession) Validate(totalCents int64) error {
	if p.state != PaymentOpen {
		return ErrInvalidPaymentState
	}
	if p.method == "" {
		return ErrInvalidPaymentState
	}

	if p.method == domain.PaymentMethodCash {
		if p.tenderedCents < totalCents {
			return ErrInsufficientPayment
		}
	} else if p.tenderedCents != totalCents {
		return ErrInsufficientPayment
	}

	p.state = PaymentValidated
	return nil
}

// ChangeDueCents is the cash change owed to the customer. Non-cash tender is
// exact by construction, so change is always zero for those methods.
func (p *PaymentSession) ChangeDueCents(totalCents int64) int64 {
	if p.method != domain.PaymentMethodCash {
		return 0
	}
	if p.tenderedCents <= totalCents {
		return 0
	}
	return p.tenderedCents - totalCents
}

// Reset returns the session to closed, clearing method, amount, and customer.
// Called when the cart is cleared or the dialog is dismissed without paying.
func (p *PaymentSession) Reset() {
	p.state = PaymentClosed
	p.method = ""
	p.tenderedCents = 0
	p.customerID = ""
}

func (p *PaymentSession) State() string { return p.state }

func (p *PaymentSession) Method() string { return p.method }

func (p *PaymentSession) TenderedCents() int64 { return p.tenderedCents }

func (p *PaymentSession) CustomerID() string { return p.customerID }
