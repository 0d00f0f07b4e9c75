package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

// AccountReconciliationStatus summarises where an account stands in reconciliation
type AccountReconciliationStatus string

const (
	AccountNeverReconciled AccountReconciliationStatus = "never"
	AccountReconciled      AccountReconciliationStatus = "reconciled"
)

// BankAccount is the aggregate root owning bank and GL transactions for reconciliation.
// Its version is bumped by every match, unmatch and commit so a commit computed
// from an older snapshot cannot be saved.
type BankAccount struct {
	shared.BaseAggregateRoot
	Name                 string
	BankName             string
	AccountNumber        string // masked, last four digits only
	CurrentBalance       decimal.Decimal
	LastStatementDate    *time.Time
	LastReconciledAt     *time.Time
	ReconciliationStatus AccountReconciliationStatus
}

// NewBankAccount creates a bank account that has never been reconciled
func NewBankAccount(name, bankName, accountNumber string, openingBalance decimal.Decimal, now time.Time) (*BankAccount, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("INVALID_ACCOUNT_NAME", "Bank account name cannot be empty")
	}
	if strings.TrimSpace(accountNumber) == "" {
		return nil, shared.NewValidationError("INVALID_ACCOUNT_NUMBER", "Bank account number cannot be empty")
	}
	if err := validateMoneyScale("Opening balance", openingBalance); err != nil {
		return nil, err
	}
	return &BankAccount{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(now),
		Name:                 strings.TrimSpace(name),
		BankName:             strings.TrimSpace(bankName),
		AccountNumber:        MaskAccountNumber(accountNumber),
		CurrentBalance:       openingBalance,
		ReconciliationStatus: AccountNeverReconciled,
	}, nil
}

// MaskAccountNumber keeps only the last four digits of an account number
func MaskAccountNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return "****" + digits
	}
	return "****" + digits[len(digits)-4:]
}

// RecordActivity bumps the version after a transaction pair changed
func (a *BankAccount) RecordActivity(now time.Time) {
	a.Touch(now)
	a.IncrementVersion()
}

// ApplyStatementBalance updates the balance reported by the latest imported statement
func (a *BankAccount) ApplyStatementBalance(balance decimal.Decimal, now time.Time) {
	a.CurrentBalance = balance
	a.RecordActivity(now)
}

// MarkReconciled records a completed reconciliation on the account
func (a *BankAccount) MarkReconciled(rec *Reconciliation, now time.Time) {
	statementDate := rec.StatementDate
	a.LastStatementDate = &statementDate
	a.LastReconciledAt = &now
	a.ReconciliationStatus = AccountReconciled
	a.RecordActivity(now)
	a.AddDomainEvent(NewReconciliationCompletedEvent(a, rec, now))
}
