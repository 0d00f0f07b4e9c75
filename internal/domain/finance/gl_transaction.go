package finance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

// GLStatus is the clearing status of an internal ledger transaction
type GLStatus string

const (
	GLStatusOutstanding GLStatus = "outstanding"
	GLStatusCleared     GLStatus = "cleared"
	GLStatusCancelled   GLStatus = "cancelled"
)

// IsValid checks if the status is known
func (s GLStatus) IsValid() bool {
	return s == GLStatusOutstanding || s == GLStatusCleared || s == GLStatusCancelled
}

// GLTransaction is a transaction recorded in the internal ledger against a bank account
type GLTransaction struct {
	ID            uuid.UUID
	BankAccountID uuid.UUID
	Date          time.Time
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	ReferenceCode string
	Status        GLStatus
	Matched       bool
	MatchedBankID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewGLTransaction creates an outstanding, unmatched GL transaction
func NewGLTransaction(
	accountID uuid.UUID,
	date time.Time,
	description string,
	debit, credit decimal.Decimal,
	referenceCode string,
	now time.Time,
) (*GLTransaction, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ACCOUNT", "Bank account ID cannot be empty")
	}
	if date.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE", "Transaction date is required")
	}
	if strings.TrimSpace(description) == "" {
		return nil, shared.NewValidationError("INVALID_DESCRIPTION", "Description cannot be empty")
	}
	if err := validateOneSided(debit, credit); err != nil {
		return nil, err
	}
	return &GLTransaction{
		ID:            uuid.New(),
		BankAccountID: accountID,
		Date:          date,
		Description:   strings.TrimSpace(description),
		Debit:         debit,
		Credit:        credit,
		ReferenceCode: strings.TrimSpace(referenceCode),
		Status:        GLStatusOutstanding,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Amount is the non-zero side of the transaction
func (t *GLTransaction) Amount() decimal.Decimal {
	return decimal.Max(t.Debit, t.Credit)
}

// Net is debit minus credit
func (t *GLTransaction) Net() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// IsOutstanding returns true if the transaction has not cleared the bank yet
func (t *GLTransaction) IsOutstanding() bool {
	return t.Status == GLStatusOutstanding
}
