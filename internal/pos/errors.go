package pos

import "errors"

var (
	// ErrOutOfStock is returned when a cart mutation would push a line's
	// quantity past its stock-limit snapshot.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInsufficientPayment is returned when cash tender is below the total,
	// or a non-cash tender does not match the total exactly.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrInvalidQuantity is returned when a non-positive quantity reaches an
	// operation that expects a positive one.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidAmount is returned for negative monetary amounts or tax rates.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidPaymentState is returned when a payment operation is attempted
	// in a state that does not allow it.
	ErrInvalidPaymentState = errors.New("invalid payment state")
)
