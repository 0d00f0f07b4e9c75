package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

// Aggregate type names used on events
const (
	AggregateTypeLedgerDocument = "LedgerDocument"
	AggregateTypeBankAccount    = "BankAccount"
)

// Event type names
const (
	EventTypeLedgerDocumentCreated   = "LedgerDocumentCreated"
	EventTypeLedgerDocumentIssued    = "LedgerDocumentIssued"
	EventTypeLedgerDocumentCancelled = "LedgerDocumentCancelled"
	EventTypePaymentApplied          = "PaymentApplied"
	EventTypeTransactionsMatched     = "TransactionsMatched"
	EventTypeTransactionsUnmatched   = "TransactionsUnmatched"
	EventTypeReconciliationCompleted = "ReconciliationCompleted"
	EventTypeStatementImported       = "StatementImported"
)

// LedgerDocumentCreatedEvent is raised when a draft document is created
type LedgerDocumentCreatedEvent struct {
	shared.BaseDomainEvent
	Kind           DocumentKind    `json:"kind"`
	DocumentNumber string          `json:"document_number"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// NewLedgerDocumentCreatedEvent creates a LedgerDocumentCreatedEvent
func NewLedgerDocumentCreatedEvent(d *LedgerDocument, now time.Time) *LedgerDocumentCreatedEvent {
	return &LedgerDocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerDocumentCreated, AggregateTypeLedgerDocument, d.ID, now),
		Kind:            d.Kind,
		DocumentNumber:  d.DocumentNumber,
		TotalAmount:     d.TotalAmount,
	}
}

// LedgerDocumentIssuedEvent is raised when an invoice is sent or a bill is received
type LedgerDocumentIssuedEvent struct {
	shared.BaseDomainEvent
	Kind           DocumentKind   `json:"kind"`
	DocumentNumber string         `json:"document_number"`
	Status         DocumentStatus `json:"status"`
	DueDate        time.Time      `json:"due_date"`
}

// NewLedgerDocumentIssuedEvent creates a LedgerDocumentIssuedEvent
func NewLedgerDocumentIssuedEvent(d *LedgerDocument, now time.Time) *LedgerDocumentIssuedEvent {
	return &LedgerDocumentIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerDocumentIssued, AggregateTypeLedgerDocument, d.ID, now),
		Kind:            d.Kind,
		DocumentNumber:  d.DocumentNumber,
		Status:          d.Status,
		DueDate:         d.DueDate,
	}
}

// LedgerDocumentCancelledEvent is raised when a document is voided
type LedgerDocumentCancelledEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string `json:"document_number"`
	Reason         string `json:"reason"`
}

// NewLedgerDocumentCancelledEvent creates a LedgerDocumentCancelledEvent
func NewLedgerDocumentCancelledEvent(d *LedgerDocument, now time.Time) *LedgerDocumentCancelledEvent {
	return &LedgerDocumentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerDocumentCancelled, AggregateTypeLedgerDocument, d.ID, now),
		DocumentNumber:  d.DocumentNumber,
		Reason:          d.CancelReason,
	}
}

// PaymentAppliedEvent is raised for every payment appended to a document
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	Kind           DocumentKind    `json:"kind"`
	DocumentNumber string          `json:"document_number"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	Method         PaymentMethod   `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	BalanceAmount  decimal.Decimal `json:"balance_amount"`
	Status         DocumentStatus  `json:"status"`
}

// NewPaymentAppliedEvent creates a PaymentAppliedEvent
func NewPaymentAppliedEvent(d *LedgerDocument, p Payment, now time.Time) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApplied, AggregateTypeLedgerDocument, d.ID, now),
		Kind:            d.Kind,
		DocumentNumber:  d.DocumentNumber,
		PaymentID:       p.ID,
		Method:          p.Method,
		Amount:          p.Amount,
		PaidAmount:      d.PaidAmount,
		BalanceAmount:   d.BalanceAmount,
		Status:          d.Status,
	}
}

// TransactionsMatchedEvent is raised when a bank transaction is paired with a GL transaction
type TransactionsMatchedEvent struct {
	shared.BaseDomainEvent
	BankTransactionID uuid.UUID       `json:"bank_transaction_id"`
	GLTransactionID   uuid.UUID       `json:"gl_transaction_id"`
	Amount            decimal.Decimal `json:"amount"`
}

// NewTransactionsMatchedEvent creates a TransactionsMatchedEvent on the owning bank account
func NewTransactionsMatchedEvent(bank *BankTransaction, gl *GLTransaction, now time.Time) *TransactionsMatchedEvent {
	return &TransactionsMatchedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeTransactionsMatched, AggregateTypeBankAccount, bank.BankAccountID, now),
		BankTransactionID: bank.ID,
		GLTransactionID:   gl.ID,
		Amount:            bank.Amount(),
	}
}

// TransactionsUnmatchedEvent is raised when a match is reversed
type TransactionsUnmatchedEvent struct {
	shared.BaseDomainEvent
	BankTransactionID uuid.UUID `json:"bank_transaction_id"`
	GLTransactionID   uuid.UUID `json:"gl_transaction_id"`
}

// NewTransactionsUnmatchedEvent creates a TransactionsUnmatchedEvent on the owning bank account
func NewTransactionsUnmatchedEvent(bank *BankTransaction, gl *GLTransaction, now time.Time) *TransactionsUnmatchedEvent {
	return &TransactionsUnmatchedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeTransactionsUnmatched, AggregateTypeBankAccount, bank.BankAccountID, now),
		BankTransactionID: bank.ID,
		GLTransactionID:   gl.ID,
	}
}

// ReconciliationCompletedEvent is raised when a zero-variance reconciliation is committed
type ReconciliationCompletedEvent struct {
	shared.BaseDomainEvent
	ReconciliationID uuid.UUID       `json:"reconciliation_id"`
	StatementDate    time.Time       `json:"statement_date"`
	StatementBalance decimal.Decimal `json:"statement_balance"`
}

// NewReconciliationCompletedEvent creates a ReconciliationCompletedEvent
func NewReconciliationCompletedEvent(a *BankAccount, rec *Reconciliation, now time.Time) *ReconciliationCompletedEvent {
	return &ReconciliationCompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReconciliationCompleted, AggregateTypeBankAccount, a.ID, now),
		ReconciliationID: rec.ID,
		StatementDate:    rec.StatementDate,
		StatementBalance: rec.StatementBalance,
	}
}

// StatementImportedEvent is raised after a bank statement file was imported
type StatementImportedEvent struct {
	shared.BaseDomainEvent
	FileName     string `json:"file_name"`
	ContentHash  string `json:"content_hash"`
	Transactions int    `json:"transactions"`
}

// NewStatementImportedEvent creates a StatementImportedEvent
func NewStatementImportedEvent(accountID uuid.UUID, fileName, hash string, count int, now time.Time) *StatementImportedEvent {
	return &StatementImportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatementImported, AggregateTypeBankAccount, accountID, now),
		FileName:        fileName,
		ContentHash:     hash,
		Transactions:    count,
	}
}
