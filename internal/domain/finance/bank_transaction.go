package finance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

// BankTransactionKind classifies a line reported on a bank statement
type BankTransactionKind string

const (
	BankTransactionDeposit    BankTransactionKind = "deposit"
	BankTransactionWithdrawal BankTransactionKind = "withdrawal"
	BankTransactionFee        BankTransactionKind = "fee"
	BankTransactionInterest   BankTransactionKind = "interest"
	BankTransactionOther      BankTransactionKind = "other"
)

// IsValid checks if the kind is known
func (k BankTransactionKind) IsValid() bool {
	switch k {
	case BankTransactionDeposit, BankTransactionWithdrawal, BankTransactionFee,
		BankTransactionInterest, BankTransactionOther:
		return true
	}
	return false
}

// BankTransaction is a transaction reported by the bank. Its match fields are
// owned by BankMatcher; nothing else writes them.
type BankTransaction struct {
	ID             uuid.UUID
	BankAccountID  uuid.UUID
	Date           time.Time
	Description    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	RunningBalance decimal.Decimal
	Kind           BankTransactionKind
	Matched        bool
	MatchedGLID    *uuid.UUID
	Reconciled     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewBankTransaction creates an unmatched bank transaction
func NewBankTransaction(
	accountID uuid.UUID,
	date time.Time,
	description string,
	debit, credit, runningBalance decimal.Decimal,
	kind BankTransactionKind,
	now time.Time,
) (*BankTransaction, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ACCOUNT", "Bank account ID cannot be empty")
	}
	if date.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE", "Transaction date is required")
	}
	if err := validateOneSided(debit, credit); err != nil {
		return nil, err
	}
	if err := validateMoneyScale("Running balance", runningBalance); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_KIND", "Bank transaction kind %q is not supported", kind)
	}
	return &BankTransaction{
		ID:             uuid.New(),
		BankAccountID:  accountID,
		Date:           date,
		Description:    strings.TrimSpace(description),
		Debit:          debit,
		Credit:         credit,
		RunningBalance: runningBalance,
		Kind:           kind,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Amount is the non-zero side of the transaction
func (t *BankTransaction) Amount() decimal.Decimal {
	return decimal.Max(t.Debit, t.Credit)
}

// Net is debit minus credit
func (t *BankTransaction) Net() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// validateOneSided enforces that exactly one of debit and credit is non-zero and neither is negative
func validateOneSided(debit, credit decimal.Decimal) error {
	if debit.IsNegative() || credit.IsNegative() {
		return shared.NewValidationError("INVALID_AMOUNT", "Debit and credit cannot be negative")
	}
	if debit.IsZero() == credit.IsZero() {
		return shared.NewValidationError("INVALID_AMOUNT", "Exactly one of debit and credit must be non-zero")
	}
	return validateMoneyScale("Debit and credit", debit, credit)
}
