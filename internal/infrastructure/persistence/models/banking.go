package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
)

// BankAccountModel is the persistence model for the BankAccount aggregate root
type BankAccountModel struct {
	AggregateModel
	Name                 string          `gorm:"type:varchar(100);not null"`
	BankName             string          `gorm:"type:varchar(100)"`
	AccountNumber        string          `gorm:"type:varchar(20);not null"`
	CurrentBalance       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	LastStatementDate    *time.Time
	LastReconciledAt     *time.Time
	ReconciliationStatus finance.AccountReconciliationStatus `gorm:"type:varchar(20);not null;default:'never'"`
}

// TableName returns the table name for GORM
func (BankAccountModel) TableName() string {
	return "bank_accounts"
}

// ToDomain converts the persistence model to a domain BankAccount
func (m *BankAccountModel) ToDomain() *finance.BankAccount {
	return &finance.BankAccount{
		BaseAggregateRoot:    m.ToDomainAggregateRoot(),
		Name:                 m.Name,
		BankName:             m.BankName,
		AccountNumber:        m.AccountNumber,
		CurrentBalance:       m.CurrentBalance,
		LastStatementDate:    m.LastStatementDate,
		LastReconciledAt:     m.LastReconciledAt,
		ReconciliationStatus: m.ReconciliationStatus,
	}
}

// FromDomain populates the persistence model from a domain BankAccount
func (m *BankAccountModel) FromDomain(a *finance.BankAccount) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.Name = a.Name
	m.BankName = a.BankName
	m.AccountNumber = a.AccountNumber
	m.CurrentBalance = a.CurrentBalance
	m.LastStatementDate = a.LastStatementDate
	m.LastReconciledAt = a.LastReconciledAt
	m.ReconciliationStatus = a.ReconciliationStatus
}

// BankAccountModelFromDomain creates a new persistence model from a domain BankAccount
func BankAccountModelFromDomain(a *finance.BankAccount) *BankAccountModel {
	m := &BankAccountModel{}
	m.FromDomain(a)
	return m
}

// BankTransactionModel is one line of an imported bank statement
type BankTransactionModel struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	BankAccountID  uuid.UUID                   `gorm:"type:uuid;not null;index:idx_bank_transactions_account_date,priority:1"`
	Date           time.Time                   `gorm:"not null;index:idx_bank_transactions_account_date,priority:2"`
	Description    string                      `gorm:"type:varchar(500)"`
	Debit          decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	Credit         decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	RunningBalance decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	Kind           finance.BankTransactionKind `gorm:"type:varchar(20);not null"`
	Matched        bool                        `gorm:"not null;default:false;index"`
	MatchedGLID    *uuid.UUID                  `gorm:"column:matched_gl_id;type:uuid"`
	Reconciled     bool                        `gorm:"not null;default:false"`
	CreatedAt      time.Time                   `gorm:"not null"`
	UpdatedAt      time.Time                   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BankTransactionModel) TableName() string {
	return "bank_transactions"
}

// ToDomain converts the persistence model to a domain BankTransaction
func (m *BankTransactionModel) ToDomain() *finance.BankTransaction {
	return &finance.BankTransaction{
		ID:             m.ID,
		BankAccountID:  m.BankAccountID,
		Date:           m.Date,
		Description:    m.Description,
		Debit:          m.Debit,
		Credit:         m.Credit,
		RunningBalance: m.RunningBalance,
		Kind:           m.Kind,
		Matched:        m.Matched,
		MatchedGLID:    m.MatchedGLID,
		Reconciled:     m.Reconciled,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// BankTransactionModelFromDomain creates a persistence model from a domain BankTransaction
func BankTransactionModelFromDomain(t *finance.BankTransaction) *BankTransactionModel {
	return &BankTransactionModel{
		ID:             t.ID,
		BankAccountID:  t.BankAccountID,
		Date:           t.Date,
		Description:    t.Description,
		Debit:          t.Debit,
		Credit:         t.Credit,
		RunningBalance: t.RunningBalance,
		Kind:           t.Kind,
		Matched:        t.Matched,
		MatchedGLID:    t.MatchedGLID,
		Reconciled:     t.Reconciled,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// GLTransactionModel is an internal ledger entry against a bank account
type GLTransactionModel struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	BankAccountID uuid.UUID        `gorm:"type:uuid;not null;index:idx_gl_transactions_account_date,priority:1"`
	Date          time.Time        `gorm:"not null;index:idx_gl_transactions_account_date,priority:2"`
	Description   string           `gorm:"type:varchar(500);not null"`
	Debit         decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	Credit        decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	ReferenceCode string           `gorm:"type:varchar(100)"`
	Status        finance.GLStatus `gorm:"type:varchar(20);not null;default:'outstanding';index"`
	Matched       bool             `gorm:"not null;default:false;index"`
	MatchedBankID *uuid.UUID       `gorm:"type:uuid"`
	CreatedAt     time.Time        `gorm:"not null"`
	UpdatedAt     time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (GLTransactionModel) TableName() string {
	return "gl_transactions"
}

// ToDomain converts the persistence model to a domain GLTransaction
func (m *GLTransactionModel) ToDomain() *finance.GLTransaction {
	return &finance.GLTransaction{
		ID:            m.ID,
		BankAccountID: m.BankAccountID,
		Date:          m.Date,
		Description:   m.Description,
		Debit:         m.Debit,
		Credit:        m.Credit,
		ReferenceCode: m.ReferenceCode,
		Status:        m.Status,
		Matched:       m.Matched,
		MatchedBankID: m.MatchedBankID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// GLTransactionModelFromDomain creates a persistence model from a domain GLTransaction
func GLTransactionModelFromDomain(t *finance.GLTransaction) *GLTransactionModel {
	return &GLTransactionModel{
		ID:            t.ID,
		BankAccountID: t.BankAccountID,
		Date:          t.Date,
		Description:   t.Description,
		Debit:         t.Debit,
		Credit:        t.Credit,
		ReferenceCode: t.ReferenceCode,
		Status:        t.Status,
		Matched:       t.Matched,
		MatchedBankID: t.MatchedBankID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// ReconciliationModel is an immutable reconciliation record
type ReconciliationModel struct {
	ID                  uuid.UUID                    `gorm:"type:uuid;primaryKey"`
	BankAccountID       uuid.UUID                    `gorm:"type:uuid;not null;index"`
	StatementDate       time.Time                    `gorm:"not null"`
	StatementBalance    decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	GLBalance           decimal.Decimal              `gorm:"column:gl_balance;type:decimal(18,2);not null"`
	OutstandingDeposits decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	OutstandingChecks   decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	BankFees            decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	InterestEarned      decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	Variance            decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	Status              finance.ReconciliationStatus `gorm:"type:varchar(20);not null"`
	Notes               string                       `gorm:"type:text"`
	CreatedAt           time.Time                    `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ReconciliationModel) TableName() string {
	return "reconciliations"
}

// ToDomain converts the persistence model to a domain Reconciliation
func (m *ReconciliationModel) ToDomain() *finance.Reconciliation {
	return &finance.Reconciliation{
		ID:                  m.ID,
		BankAccountID:       m.BankAccountID,
		StatementDate:       m.StatementDate,
		StatementBalance:    m.StatementBalance,
		GLBalance:           m.GLBalance,
		OutstandingDeposits: m.OutstandingDeposits,
		OutstandingChecks:   m.OutstandingChecks,
		BankFees:            m.BankFees,
		InterestEarned:      m.InterestEarned,
		Variance:            m.Variance,
		Status:              m.Status,
		Notes:               m.Notes,
		CreatedAt:           m.CreatedAt,
	}
}

// ReconciliationModelFromDomain creates a persistence model from a domain Reconciliation
func ReconciliationModelFromDomain(r *finance.Reconciliation) *ReconciliationModel {
	return &ReconciliationModel{
		ID:                  r.ID,
		BankAccountID:       r.BankAccountID,
		StatementDate:       r.StatementDate,
		StatementBalance:    r.StatementBalance,
		GLBalance:           r.GLBalance,
		OutstandingDeposits: r.OutstandingDeposits,
		OutstandingChecks:   r.OutstandingChecks,
		BankFees:            r.BankFees,
		InterestEarned:      r.InterestEarned,
		Variance:            r.Variance,
		Status:              r.Status,
		Notes:               r.Notes,
		CreatedAt:           r.CreatedAt,
	}
}
