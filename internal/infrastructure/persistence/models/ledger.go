package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
)

// LedgerDocumentModel is the persistence model for the LedgerDocument aggregate root.
// Line items are stored inline as JSON; payments live in their own table.
type LedgerDocumentModel struct {
	AggregateModel
	Kind                finance.DocumentKind   `gorm:"type:varchar(10);not null;uniqueIndex:idx_ledger_documents_kind_number,priority:1"`
	DocumentNumber      string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_ledger_documents_kind_number,priority:2"`
	CounterpartyName    string                 `gorm:"type:varchar(200);not null;index"`
	CounterpartyContact string                 `gorm:"type:varchar(200)"`
	DocumentDate        time.Time              `gorm:"not null"`
	DueDate             time.Time              `gorm:"not null;index"`
	LineItems           finance.LineItems      `gorm:"type:jsonb;not null"`
	Subtotal            decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	TaxAmount           decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	ShippingCost        decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	DiscountAmount      decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	TotalAmount         decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	PaidAmount          decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	BalanceAmount       decimal.Decimal        `gorm:"type:decimal(18,2);not null;index"`
	Status              finance.DocumentStatus `gorm:"type:varchar(20);not null;index"`
	Payments            []PaymentModel         `gorm:"foreignKey:DocumentID;references:ID"`
	Notes               string                 `gorm:"type:text"`
	IssuedAt            *time.Time
	PaidAt              *time.Time
	CancelledAt         *time.Time
	CancelReason        string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (LedgerDocumentModel) TableName() string {
	return "ledger_documents"
}

// ToDomain converts the persistence model to a domain LedgerDocument
func (m *LedgerDocumentModel) ToDomain() *finance.LedgerDocument {
	doc := &finance.LedgerDocument{
		BaseAggregateRoot:   m.ToDomainAggregateRoot(),
		Kind:                m.Kind,
		DocumentNumber:      m.DocumentNumber,
		CounterpartyName:    m.CounterpartyName,
		CounterpartyContact: m.CounterpartyContact,
		DocumentDate:        m.DocumentDate,
		DueDate:             m.DueDate,
		LineItems:           m.LineItems,
		Subtotal:            m.Subtotal,
		TaxAmount:           m.TaxAmount,
		ShippingCost:        m.ShippingCost,
		DiscountAmount:      m.DiscountAmount,
		TotalAmount:         m.TotalAmount,
		PaidAmount:          m.PaidAmount,
		BalanceAmount:       m.BalanceAmount,
		Status:              m.Status,
		Notes:               m.Notes,
		IssuedAt:            m.IssuedAt,
		PaidAt:              m.PaidAt,
		CancelledAt:         m.CancelledAt,
		CancelReason:        m.CancelReason,
		Payments:            make(finance.Payments, len(m.Payments)),
	}
	for i := range m.Payments {
		doc.Payments[i] = m.Payments[i].ToDomain()
	}
	return doc
}

// FromDomain populates the persistence model from a domain LedgerDocument
func (m *LedgerDocumentModel) FromDomain(d *finance.LedgerDocument) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.Kind = d.Kind
	m.DocumentNumber = d.DocumentNumber
	m.CounterpartyName = d.CounterpartyName
	m.CounterpartyContact = d.CounterpartyContact
	m.DocumentDate = d.DocumentDate
	m.DueDate = d.DueDate
	m.LineItems = d.LineItems
	m.Subtotal = d.Subtotal
	m.TaxAmount = d.TaxAmount
	m.ShippingCost = d.ShippingCost
	m.DiscountAmount = d.DiscountAmount
	m.TotalAmount = d.TotalAmount
	m.PaidAmount = d.PaidAmount
	m.BalanceAmount = d.BalanceAmount
	m.Status = d.Status
	m.Notes = d.Notes
	m.IssuedAt = d.IssuedAt
	m.PaidAt = d.PaidAt
	m.CancelledAt = d.CancelledAt
	m.CancelReason = d.CancelReason
	m.Payments = make([]PaymentModel, len(d.Payments))
	for i := range d.Payments {
		m.Payments[i] = PaymentModelFromDomain(d.Payments[i])
	}
}

// LedgerDocumentModelFromDomain creates a new persistence model from a domain LedgerDocument
func LedgerDocumentModelFromDomain(d *finance.LedgerDocument) *LedgerDocumentModel {
	m := &LedgerDocumentModel{}
	m.FromDomain(d)
	return m
}

// PaymentModel is one row of ledger_payments. Payments are append-only.
// A non-empty idempotency key is unique per document.
type PaymentModel struct {
	ID             uuid.UUID             `gorm:"type:uuid;primaryKey"`
	DocumentID     uuid.UUID             `gorm:"type:uuid;not null;index;uniqueIndex:idx_ledger_payments_idempotency,priority:1,where:idempotency_key <> ''"`
	Date           time.Time             `gorm:"not null"`
	Method         finance.PaymentMethod `gorm:"type:varchar(20);not null"`
	Amount         decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Reference      string                `gorm:"type:varchar(100)"`
	Notes          string                `gorm:"type:text"`
	IdempotencyKey string                `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_ledger_payments_idempotency,priority:2,where:idempotency_key <> ''"`
	RecordedAt     time.Time             `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "ledger_payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() finance.Payment {
	return finance.Payment{
		ID:             m.ID,
		DocumentID:     m.DocumentID,
		Date:           m.Date,
		Method:         m.Method,
		Amount:         m.Amount,
		Reference:      m.Reference,
		Notes:          m.Notes,
		IdempotencyKey: m.IdempotencyKey,
		RecordedAt:     m.RecordedAt,
	}
}

// PaymentModelFromDomain creates a persistence model from a domain Payment
func PaymentModelFromDomain(p finance.Payment) PaymentModel {
	return PaymentModel{
		ID:             p.ID,
		DocumentID:     p.DocumentID,
		Date:           p.Date,
		Method:         p.Method,
		Amount:         p.Amount,
		Reference:      p.Reference,
		Notes:          p.Notes,
		IdempotencyKey: p.IdempotencyKey,
		RecordedAt:     p.RecordedAt,
	}
}
