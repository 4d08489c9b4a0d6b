package pos

import (
	"errors"
	"testing"

	"warungpos/backend/internal/domain"
)

func TestPaymentLifecycleCash(t *testing.T) {
	session := NewPaymentSession()
	if session.State() != PaymentClosed {
		t.Fatalf("expected new session closed, got %q", session.State())
	}

	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.SetMethod(domain.PaymentMethodCash, 111000); err != nil {
		t.Fatalf("set method failed: %v", err)
	}
	if err := session.SetTendered(150000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}
	if err := session.Validate(111000); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if session.State() != PaymentValidated {
		t.Fatalf("expected validated state, got %q", session.State())
	}
	if change := session.ChangeDueCents(111000); change != 39000 {
		t.Fatalf("expected change 39000, got %d", change)
	}
}

func TestPaymentCashInsufficient(t *testing.T) {
	session := NewPaymentSession()
	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.SetMethod(domain.PaymentMethodCash, 111000); err != nil {
		t.Fatalf("set method failed: %v", err)
	}
	if err := session.SetTendered(100000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}

	if err := session.Validate(111000); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if session.State() != PaymentOpen {
		t.Fatalf("expected session to stay open after failed validation, got %q", session.State())
	}
}

func TestPaymentNonCashExactMatch(t *testing.T) {
	session := NewPaymentSession()
	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// Selecting a non-cash method locks the tendered amount to the total.
	if err := session.SetMethod(domain.PaymentMethodQRIS, 50000); err != nil {
		t.Fatalf("set method failed: %v", err)
	}
	if session.TenderedCents() != 50000 {
		t.Fatalf("expected auto-filled tender 50000, got %d", session.TenderedCents())
	}
	if err := session.Validate(50000); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if change := session.ChangeDueCents(50000); change != 0 {
		t.Fatalf("expected zero change for non-cash, got %d", change)
	}
}

func TestPaymentNonCashMismatchRejected(t *testing.T) {
	session := NewPaymentSession()
	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.SetMethod(domain.PaymentMethodTransfer, 50001); err != nil {
		t.Fatalf("set method failed: %v", err)
	}

	// Cart total drifted after the method was selected.
	if err := session.Validate(50000); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment for mismatch, got %v", err)
	}
}

func TestPaymentTenderRestrictedToCash(t *testing.T) {
	session := NewPaymentSession()
	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.SetMethod(domain.PaymentMethodQRIS, 10000); err != nil {
		t.Fatalf("set method failed: %v", err)
	}
	if err := session.SetTendered(20000); !errors.Is(err, ErrInvalidPaymentState) {
		t.Fatalf("expected ErrInvalidPaymentState for non-cash tender, got %v", err)
	}
}

func TestPaymentStateTransitionsEnforced(t *testing.T) {
	session := NewPaymentSession()

	if err := session.SetMethod(domain.PaymentMethodCash, 1000); !errors.Is(err, ErrInvalidPaymentState) {
		t.Fatalf("expected ErrInvalidPaymentState on closed session, got %v", err)
	}
	if err := session.SetTendered(1000); !errors.Is(err, ErrInvalidPaymentState) {
		t.Fatalf("expected ErrInvalidPaymentState on closed session, got %v", err)
	}
	if err := session.Validate(1000); !errors.Is(err, ErrInvalidPaymentState) {
		t.Fatalf("expected ErrInvalidPaymentState on closed session, got %v", err)
	}

	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.Open(); !errors.Is(err, ErrInvalidPaymentState) {
		t.Fatalf("expected ErrInvalidPaymentState on double open, got %v", err)
	}
	if err := session.Validate(1000); !errors.Is(err, ErrInvalidPaymentState) {
		t.Fatalf("expected ErrInvalidPaymentState without method, got %v", err)
	}
}

func TestPaymentUnsupportedMethodRejected(t *testing.T) {
	session := NewPaymentSession()
	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.SetMethod("cek", 1000); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for unsupported method, got %v", err)
	}
}

func TestPaymentNegativeTenderRejected(t *testing.T) {
	session := NewPaymentSession()
	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.SetMethod(domain.PaymentMethodCash, 1000); err != nil {
		t.Fatalf("set method failed: %v", err)
	}
	if err := session.SetTendered(-1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative tender, got %v", err)
	}
}

func TestPaymentReset(t *testing.T) {
	session := NewPaymentSession()
	if err := session.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := session.SetMethod(domain.PaymentMethodCash, 5000); err != nil {
		t.Fatalf("set method failed: %v", err)
	}
	if err := session.SetTendered(6000); err != nil {
		t.Fatalf("set tendered failed: %v", err)
	}
	session.SetCustomer("CUS-1")

	session.Reset()
	if session.State() != PaymentClosed {
		t.Fatalf("expected closed after reset, got %q", session.State())
	}
	if session.Method() != "" || session.TenderedCents() != 0 || session.CustomerID() != "" {
		t.Fatalf("expected reset to clear method, tender and customer")
	}

	// A reset session supports a fresh cycle.
	if err := session.Open(); err != nil {
		t.Fatalf("re-open after reset failed: %v", err)
	}
}
