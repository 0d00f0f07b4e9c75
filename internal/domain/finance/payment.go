package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was settled
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
)

// IsValid checks if the payment method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck, PaymentMethodCreditCard:
		return true
	}
	return false
}

// Payment is a payment applied to a ledger document.
// It is a value object inside the LedgerDocument aggregate and is never
// modified once appended.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	DocumentID     uuid.UUID       `json:"document_id"`
	Date           time.Time       `json:"date"`
	Method         PaymentMethod   `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	Reference      string          `json:"reference,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// Payments is an ordered, append-only payment history
type Payments []Payment

// Total sums the payment amounts
func (p Payments) Total() decimal.Decimal {
	total := decimal.Zero
	for _, pay := range p {
		total = total.Add(pay.Amount)
	}
	return total
}

// FindByIdempotencyKey returns the payment recorded under key, if any
func (p Payments) FindByIdempotencyKey(key string) (*Payment, bool) {
	if key == "" {
		return nil, false
	}
	for i := range p {
		if p[i].IdempotencyKey == key {
			return &p[i], true
		}
	}
	return nil, false
}
