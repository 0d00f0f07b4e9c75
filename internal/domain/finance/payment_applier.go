package finance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

// PaymentRequest describes a payment to apply against a document
type PaymentRequest struct {
	Amount         decimal.Decimal
	Method         PaymentMethod
	Date           time.Time
	Reference      string
	Notes          string
	IdempotencyKey string // optional; a retried request with the same key is not applied twice
}

// PaymentResult is the outcome of applying a payment
type PaymentResult struct {
	Document *LedgerDocument
	Payment  *Payment
	Replayed bool // true when the key matched an earlier payment and nothing changed
}

// PaymentApplier is a domain service that applies payments to ledger documents
// using an injected clock for status recomputation.
type PaymentApplier struct {
	clock shared.Clock
}

// PaymentApplierOption is a functional option for configuring PaymentApplier
type PaymentApplierOption func(*PaymentApplier)

// WithPaymentClock sets the clock used to evaluate due dates
func WithPaymentClock(clock shared.Clock) PaymentApplierOption {
	return func(a *PaymentApplier) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewPaymentApplier creates a payment applier
func NewPaymentApplier(opts ...PaymentApplierOption) *PaymentApplier {
	a := &PaymentApplier{clock: shared.SystemClock{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply applies the payment to doc. When req carries an idempotency key that was
// already used on doc, the earlier payment is returned and doc is left untouched.
func (a *PaymentApplier) Apply(doc *LedgerDocument, req PaymentRequest) (*PaymentResult, error) {
	if doc == nil {
		return nil, shared.NewValidationError("INVALID_DOCUMENT", "Document cannot be nil")
	}
	if existing, ok := doc.Payments.FindByIdempotencyKey(req.IdempotencyKey); ok {
		return &PaymentResult{Document: doc, Payment: existing, Replayed: true}, nil
	}

	payment, err := doc.ApplyPayment(req, a.clock.Now())
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Document: doc, Payment: payment}, nil
}
