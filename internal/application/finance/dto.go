package finance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
)

// ==================== Ledger Document DTOs ====================

// CreateDocumentRequest represents a request to create a draft invoice or bill
type CreateDocumentRequest struct {
	Kind                string           `json:"kind" binding:"required,oneof=invoice bill"`
	DocumentNumber      string           `json:"document_number" binding:"required,min=1,max=50"`
	CounterpartyName    string           `json:"counterparty_name" binding:"required,min=1,max=200"`
	CounterpartyContact string           `json:"counterparty_contact" binding:"max=200"`
	DocumentDate        time.Time        `json:"document_date" binding:"required"`
	DueDate             time.Time        `json:"due_date" binding:"required"`
	Lines               []LineItemInput  `json:"lines" binding:"required,min=1,dive"`
	ShippingCost        *decimal.Decimal `json:"shipping_cost"`
	DiscountAmount      *decimal.Decimal `json:"discount_amount"`
	Notes               string           `json:"notes" binding:"max=1000"`
	IssueImmediately    bool             `json:"issue_immediately"`
}

// LineItemInput represents a line in the create document request
type LineItemInput struct {
	Description string          `json:"description" binding:"required,min=1,max=500"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// DocumentListFilter represents list_documents filters
type DocumentListFilter struct {
	Kind   string `form:"kind" binding:"omitempty,oneof=invoice bill"`
	Status string `form:"status" binding:"omitempty,oneof=draft sent received partial paid overdue cancelled"`
	Search string `form:"search" binding:"max=100"`
}

// CancelDocumentRequest represents a request to cancel a document
type CancelDocumentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// RecordPaymentRequest represents a payment submitted against a document
type RecordPaymentRequest struct {
	Date           time.Time       `json:"date"`
	Method         string          `json:"method" binding:"required,oneof=cash bank_transfer check credit_card"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Reference      string          `json:"reference" binding:"max=100"`
	Notes          string          `json:"notes" binding:"max=500"`
	IdempotencyKey string          `json:"idempotency_key" binding:"max=100"`
}

// AgingReportRequest represents aging report parameters
type AgingReportRequest struct {
	AsOf   time.Time
	Kind   string
	Scheme string
}

// LineItemResponse represents a document line in API responses
type LineItemResponse struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PaymentResponse represents an applied payment in API responses
type PaymentResponse struct {
	ID         uuid.UUID       `json:"id"`
	DocumentID uuid.UUID       `json:"document_id"`
	Date       time.Time       `json:"date"`
	Method     string          `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// DocumentResponse represents a ledger document in API responses
type DocumentResponse struct {
	ID                  uuid.UUID          `json:"id"`
	Kind                string             `json:"kind"`
	DocumentNumber      string             `json:"document_number"`
	CounterpartyName    string             `json:"counterparty_name"`
	CounterpartyContact string             `json:"counterparty_contact,omitempty"`
	DocumentDate        time.Time          `json:"document_date"`
	DueDate             time.Time          `json:"due_date"`
	LineItems           []LineItemResponse `json:"line_items"`
	Subtotal            decimal.Decimal    `json:"subtotal"`
	TaxAmount           decimal.Decimal    `json:"tax_amount"`
	ShippingCost        decimal.Decimal    `json:"shipping_cost"`
	DiscountAmount      decimal.Decimal    `json:"discount_amount"`
	TotalAmount         decimal.Decimal    `json:"total_amount"`
	PaidAmount          decimal.Decimal    `json:"paid_amount"`
	BalanceAmount       decimal.Decimal    `json:"balance_amount"`
	Status              string             `json:"status"`
	Payments            []PaymentResponse  `json:"payments"`
	Notes               string             `json:"notes,omitempty"`
	IssuedAt            *time.Time         `json:"issued_at,omitempty"`
	PaidAt              *time.Time         `json:"paid_at,omitempty"`
	CancelledAt         *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason        string             `json:"cancel_reason,omitempty"`
	Version             int                `json:"version"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// ToDocumentResponse converts a domain document to a response DTO
func ToDocumentResponse(d *finance.LedgerDocument) DocumentResponse {
	lines := make([]LineItemResponse, len(d.LineItems))
	for i, l := range d.LineItems {
		lines[i] = LineItemResponse{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			TaxAmount:   l.TaxAmount,
			LineTotal:   l.LineTotal,
		}
	}
	payments := make([]PaymentResponse, len(d.Payments))
	for i := range d.Payments {
		payments[i] = ToPaymentResponse(&d.Payments[i])
	}
	return DocumentResponse{
		ID:                  d.ID,
		Kind:                string(d.Kind),
		DocumentNumber:      d.DocumentNumber,
		CounterpartyName:    d.CounterpartyName,
		CounterpartyContact: d.CounterpartyContact,
		DocumentDate:        d.DocumentDate,
		DueDate:             d.DueDate,
		LineItems:           lines,
		Subtotal:            d.Subtotal,
		TaxAmount:           d.TaxAmount,
		ShippingCost:        d.ShippingCost,
		DiscountAmount:      d.DiscountAmount,
		TotalAmount:         d.TotalAmount,
		PaidAmount:          d.PaidAmount,
		BalanceAmount:       d.BalanceAmount,
		Status:              string(d.Status),
		Payments:            payments,
		Notes:               d.Notes,
		IssuedAt:            d.IssuedAt,
		PaidAt:              d.PaidAt,
		CancelledAt:         d.CancelledAt,
		CancelReason:        d.CancelReason,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// ToPaymentResponse converts a domain payment to a response DTO
func ToPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID,
		DocumentID: p.DocumentID,
		Date:       p.Date,
		Method:     string(p.Method),
		Amount:     p.Amount,
		Reference:  p.Reference,
		Notes:      p.Notes,
	}
}

// ToDocumentResponses converts a slice of documents
func ToDocumentResponses(docs []finance.LedgerDocument) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i := range docs {
		out[i] = ToDocumentResponse(&docs[i])
	}
	return out
}

// ==================== Bank Reconciliation DTOs ====================

// CreateBankAccountRequest represents a request to register a bank account
type CreateBankAccountRequest struct {
	Name           string           `json:"name" binding:"required,min=1,max=100"`
	BankName       string           `json:"bank_name" binding:"max=100"`
	AccountNumber  string           `json:"account_number" binding:"required,min=4,max=34"`
	OpeningBalance *decimal.Decimal `json:"opening_balance"`
}

// RecordGLTransactionRequest represents a ledger-side transaction entry
type RecordGLTransactionRequest struct {
	Date          time.Time       `json:"date" binding:"required"`
	Description   string          `json:"description" binding:"required,min=1,max=500"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	ReferenceCode string          `json:"reference_code" binding:"max=100"`
}

// MatchRequest identifies a bank/GL transaction pair
type MatchRequest struct {
	BankTransactionID uuid.UUID `json:"bank_transaction_id" binding:"required"`
	GLTransactionID   uuid.UUID `json:"gl_transaction_id" binding:"required"`
}

// CommitReconciliationRequest represents a request to close a reconciliation
type CommitReconciliationRequest struct {
	StatementDate time.Time `json:"statement_date" binding:"required"`
	Notes         string    `json:"notes" binding:"max=1000"`
}

// BankAccountResponse represents a bank account in API responses
type BankAccountResponse struct {
	ID                   uuid.UUID       `json:"id"`
	Name                 string          `json:"name"`
	BankName             string          `json:"bank_name"`
	AccountNumber        string          `json:"account_number"`
	CurrentBalance       decimal.Decimal `json:"current_balance"`
	LastStatementDate    *time.Time      `json:"last_statement_date,omitempty"`
	LastReconciledAt     *time.Time      `json:"last_reconciled_at,omitempty"`
	ReconciliationStatus string          `json:"reconciliation_status"`
}

// ToBankAccountResponse converts a domain bank account to a response DTO
func ToBankAccountResponse(a *finance.BankAccount) BankAccountResponse {
	return BankAccountResponse{
		ID:                   a.ID,
		Name:                 a.Name,
		BankName:             a.BankName,
		AccountNumber:        a.AccountNumber,
		CurrentBalance:       a.CurrentBalance,
		LastStatementDate:    a.LastStatementDate,
		LastReconciledAt:     a.LastReconciledAt,
		ReconciliationStatus: string(a.ReconciliationStatus),
	}
}

// BankTransactionResponse represents a bank transaction in API responses
type BankTransactionResponse struct {
	ID             uuid.UUID       `json:"id"`
	BankAccountID  uuid.UUID       `json:"bank_account_id"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	Kind           string          `json:"kind"`
	Matched        bool            `json:"matched"`
	MatchedGLID    *uuid.UUID      `json:"matched_gl_id,omitempty"`
	Reconciled     bool            `json:"reconciled"`
}

// ToBankTransactionResponse converts a domain bank transaction to a response DTO
func ToBankTransactionResponse(t *finance.BankTransaction) BankTransactionResponse {
	return BankTransactionResponse{
		ID:             t.ID,
		BankAccountID:  t.BankAccountID,
		Date:           t.Date,
		Description:    t.Description,
		Debit:          t.Debit,
		Credit:         t.Credit,
		RunningBalance: t.RunningBalance,
		Kind:           string(t.Kind),
		Matched:        t.Matched,
		MatchedGLID:    t.MatchedGLID,
		Reconciled:     t.Reconciled,
	}
}

// GLTransactionResponse represents a GL transaction in API responses
type GLTransactionResponse struct {
	ID            uuid.UUID       `json:"id"`
	BankAccountID uuid.UUID       `json:"bank_account_id"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	ReferenceCode string          `json:"reference_code,omitempty"`
	Status        string          `json:"status"`
	Matched       bool            `json:"matched"`
	MatchedBankID *uuid.UUID      `json:"matched_bank_id,omitempty"`
}

// ToGLTransactionResponse converts a domain GL transaction to a response DTO
func ToGLTransactionResponse(t *finance.GLTransaction) GLTransactionResponse {
	return GLTransactionResponse{
		ID:            t.ID,
		BankAccountID: t.BankAccountID,
		Date:          t.Date,
		Description:   t.Description,
		Debit:         t.Debit,
		Credit:        t.Credit,
		ReferenceCode: t.ReferenceCode,
		Status:        string(t.Status),
		Matched:       t.Matched,
		MatchedBankID: t.MatchedBankID,
	}
}

// UnreconciledResponse lists the unmatched transactions of one account
type UnreconciledResponse struct {
	Bank []BankTransactionResponse `json:"bank"`
	GL   []GLTransactionResponse   `json:"gl"`
}

// MatchResponse returns both sides of a pair after match or unmatch
type MatchResponse struct {
	Bank BankTransactionResponse `json:"bank"`
	GL   GLTransactionResponse   `json:"gl"`
}

// ReconciliationPreviewResponse shows the balances a commit would be judged on
type ReconciliationPreviewResponse struct {
	BankAccountID uuid.UUID                      `json:"bank_account_id"`
	Balances      finance.ReconciliationBalances `json:"balances"`
	CanCommit     bool                           `json:"can_commit"`
}

// ReconciliationResponse represents a committed reconciliation
type ReconciliationResponse struct {
	ID                  uuid.UUID       `json:"id"`
	BankAccountID       uuid.UUID       `json:"bank_account_id"`
	StatementDate       time.Time       `json:"statement_date"`
	StatementBalance    decimal.Decimal `json:"statement_balance"`
	GLBalance           decimal.Decimal `json:"gl_balance"`
	OutstandingDeposits decimal.Decimal `json:"outstanding_deposits"`
	OutstandingChecks   decimal.Decimal `json:"outstanding_checks"`
	BankFees            decimal.Decimal `json:"bank_fees"`
	InterestEarned      decimal.Decimal `json:"interest_earned"`
	Variance            decimal.Decimal `json:"variance"`
	Status              string          `json:"status"`
	Notes               string          `json:"notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ToReconciliationResponse converts a domain reconciliation to a response DTO
func ToReconciliationResponse(r *finance.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
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
		Status:              string(r.Status),
		Notes:               r.Notes,
		CreatedAt:           r.CreatedAt,
	}
}

// StatementImportResult summarises an imported statement file
type StatementImportResult struct {
	BankAccountID uuid.UUID `json:"bank_account_id"`
	FileName      string    `json:"file_name"`
	ContentHash   string    `json:"content_hash"`
	ArchiveKey    string    `json:"archive_key"`
	Imported      int       `json:"imported"`
}

// ==================== Audit DTOs ====================

// EventRecordResponse is one entry of an aggregate's event history
type EventRecordResponse struct {
	ID            uuid.UUID       `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	// Payload is the typed event when its type is known, otherwise the stored JSON
	Payload       any             `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// ToEventRecordResponses converts event log records to responses
func ToEventRecordResponses(records []shared.EventRecord) []EventRecordResponse {
	out := make([]EventRecordResponse, len(records))
	for i, r := range records {
		out[i] = EventRecordResponse{
			ID:            r.ID,
			EventType:     r.EventType,
			AggregateType: r.AggregateType,
			AggregateID:   r.AggregateID,
			Payload:       json.RawMessage(r.Payload),
			OccurredAt:    r.OccurredAt,
		}
	}
	return out
}
