package finance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

// ReconciliationStatus is the status of a reconciliation record
type ReconciliationStatus string

const (
	ReconciliationPending   ReconciliationStatus = "pending"
	ReconciliationCompleted ReconciliationStatus = "completed"
	ReconciliationRejected  ReconciliationStatus = "rejected"
)

// Reconciliation is the immutable record of a closed reconciliation
type Reconciliation struct {
	ID                  uuid.UUID
	BankAccountID       uuid.UUID
	StatementDate       time.Time
	StatementBalance    decimal.Decimal
	GLBalance           decimal.Decimal
	OutstandingDeposits decimal.Decimal
	OutstandingChecks   decimal.Decimal
	BankFees            decimal.Decimal
	InterestEarned      decimal.Decimal
	Variance            decimal.Decimal
	Status              ReconciliationStatus
	Notes               string
	CreatedAt           time.Time
}

// ReconciliationBalances are the figures a reconciliation is judged on
type ReconciliationBalances struct {
	BankBalance         decimal.Decimal `json:"bank_balance"`
	GLBalance           decimal.Decimal `json:"gl_balance"`
	OutstandingDeposits decimal.Decimal `json:"outstanding_deposits"`
	OutstandingChecks   decimal.Decimal `json:"outstanding_checks"`
	BankFees            decimal.Decimal `json:"bank_fees"`
	InterestEarned      decimal.Decimal `json:"interest_earned"`
	Variance            decimal.Decimal `json:"variance"`
}

// IsBalanced returns true when variance is exactly zero
func (b ReconciliationBalances) IsBalanced() bool {
	return b.Variance.IsZero()
}

// ComputeBalances derives the reconciliation figures from one account's transactions:
//
//	bank_balance         = Σ(debit − credit) over bank transactions
//	gl_balance           = Σ(debit − credit) over non-cancelled GL transactions
//	outstanding_checks   = Σ credit over outstanding GL transactions
//	outstanding_deposits = Σ debit over outstanding GL transactions
//	variance             = bank_balance − (gl_balance − outstanding_checks + outstanding_deposits)
func ComputeBalances(bank []BankTransaction, gl []GLTransaction) ReconciliationBalances {
	b := ReconciliationBalances{
		BankBalance:         decimal.Zero,
		GLBalance:           decimal.Zero,
		OutstandingDeposits: decimal.Zero,
		OutstandingChecks:   decimal.Zero,
		BankFees:            decimal.Zero,
		InterestEarned:      decimal.Zero,
	}
	for i := range bank {
		t := &bank[i]
		b.BankBalance = b.BankBalance.Add(t.Net())
		switch t.Kind {
		case BankTransactionFee:
			b.BankFees = b.BankFees.Add(t.Amount())
		case BankTransactionInterest:
			b.InterestEarned = b.InterestEarned.Add(t.Amount())
		}
	}
	for i := range gl {
		t := &gl[i]
		if t.Status == GLStatusCancelled {
			continue
		}
		b.GLBalance = b.GLBalance.Add(t.Net())
		if t.Status == GLStatusOutstanding {
			if t.Credit.IsPositive() {
				b.OutstandingChecks = b.OutstandingChecks.Add(t.Credit)
			}
			if t.Debit.IsPositive() {
				b.OutstandingDeposits = b.OutstandingDeposits.Add(t.Debit)
			}
		}
	}
	adjusted := b.GLBalance.Sub(b.OutstandingChecks).Add(b.OutstandingDeposits)
	b.Variance = b.BankBalance.Sub(adjusted)
	return b
}

// ReconciliationSession closes a reconciliation for one bank account over a
// snapshot of its transactions. Commit is only possible at zero variance.
type ReconciliationSession struct {
	account  *BankAccount
	balances ReconciliationBalances
}

// NewReconciliationSession computes balances for account from the snapshot
func NewReconciliationSession(account *BankAccount, bank []BankTransaction, gl []GLTransaction) *ReconciliationSession {
	return &ReconciliationSession{
		account:  account,
		balances: ComputeBalances(bank, gl),
	}
}

// Balances returns the balances computed from the snapshot
func (s *ReconciliationSession) Balances() ReconciliationBalances {
	return s.balances
}

// Commit creates a completed reconciliation and marks the account reconciled.
// A non-zero variance is a conflict and leaves the account untouched.
func (s *ReconciliationSession) Commit(statementDate time.Time, notes string, now time.Time) (*Reconciliation, error) {
	if s.account == nil {
		return nil, shared.NewValidationError("INVALID_ACCOUNT", "Bank account is required")
	}
	if statementDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE", "Statement date is required")
	}
	if !s.balances.IsBalanced() {
		return nil, shared.NewConflictError("VARIANCE_NOT_ZERO",
			"Cannot commit reconciliation with variance %s", s.balances.Variance.StringFixed(2))
	}

	rec := &Reconciliation{
		ID:                  uuid.New(),
		BankAccountID:       s.account.ID,
		StatementDate:       statementDate,
		StatementBalance:    s.balances.BankBalance,
		GLBalance:           s.balances.GLBalance,
		OutstandingDeposits: s.balances.OutstandingDeposits,
		OutstandingChecks:   s.balances.OutstandingChecks,
		BankFees:            s.balances.BankFees,
		InterestEarned:      s.balances.InterestEarned,
		Variance:            s.balances.Variance,
		Status:              ReconciliationCompleted,
		Notes:               strings.TrimSpace(notes),
		CreatedAt:           now,
	}
	s.account.MarkReconciled(rec, now)
	return rec, nil
}
