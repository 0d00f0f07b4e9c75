package finance

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

var hundred = decimal.NewFromInt(100)

// DocumentKind discriminates receivable invoices from payable bills
type DocumentKind string

const (
	DocumentKindInvoice DocumentKind = "invoice" // Accounts receivable
	DocumentKindBill    DocumentKind = "bill"    // Accounts payable
)

// IsValid checks if the document kind is known
func (k DocumentKind) IsValid() bool {
	return k == DocumentKindInvoice || k == DocumentKindBill
}

// IssuedStatus is the status a document of this kind takes once issued
func (k DocumentKind) IssuedStatus() DocumentStatus {
	if k == DocumentKindBill {
		return DocumentStatusReceived
	}
	return DocumentStatusSent
}

// LineItem is one priced line of a document. Amounts are frozen at creation.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // percent, 0..100
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Subtotal returns the pre-tax amount of the line
func (l LineItem) Subtotal() decimal.Decimal {
	return l.LineTotal.Sub(l.TaxAmount)
}

// LineInput carries the caller-supplied part of a line item
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
}

// NewLineItem validates a line and computes its tax and total
func NewLineItem(in LineInput) (LineItem, error) {
	if strings.TrimSpace(in.Description) == "" {
		return LineItem{}, shared.NewValidationError("INVALID_LINE", "Line description cannot be empty")
	}
	if !in.Quantity.IsPositive() {
		return LineItem{}, shared.NewValidationError("INVALID_LINE", "Line quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return LineItem{}, shared.NewValidationError("INVALID_LINE", "Line unit price cannot be negative")
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred) {
		return LineItem{}, shared.NewValidationError("INVALID_LINE", "Line tax rate must be between 0 and 100")
	}

	subtotal := in.Quantity.Mul(in.UnitPrice).Round(2)
	tax := subtotal.Mul(in.TaxRate).Div(hundred).Round(2)
	return LineItem{
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		TaxRate:     in.TaxRate,
		TaxAmount:   tax,
		LineTotal:   subtotal.Add(tax),
	}, nil
}

// LineItems is an ordered list of lines that implements GORM Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}
	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// LedgerDocument is the aggregate root for an invoice (receivable) or a bill (payable).
//
// Amount invariants, held after every operation:
//
//	TotalAmount   = Subtotal + TaxAmount + ShippingCost - DiscountAmount
//	PaidAmount    = sum of Payments
//	BalanceAmount = TotalAmount - PaidAmount >= 0
type LedgerDocument struct {
	shared.BaseAggregateRoot
	Kind                DocumentKind
	DocumentNumber      string
	CounterpartyName    string
	CounterpartyContact string
	DocumentDate        time.Time
	DueDate             time.Time
	LineItems           LineItems
	Subtotal            decimal.Decimal
	TaxAmount           decimal.Decimal
	ShippingCost        decimal.Decimal
	DiscountAmount      decimal.Decimal
	TotalAmount         decimal.Decimal
	PaidAmount          decimal.Decimal
	BalanceAmount       decimal.Decimal
	Status              DocumentStatus
	Payments            Payments
	Notes               string
	IssuedAt            *time.Time
	PaidAt              *time.Time
	CancelledAt         *time.Time
	CancelReason        string
}

// NewDocumentInput carries everything needed to create a document
type NewDocumentInput struct {
	Kind                DocumentKind
	DocumentNumber      string
	CounterpartyName    string
	CounterpartyContact string
	DocumentDate        time.Time
	DueDate             time.Time
	Lines               []LineInput
	ShippingCost        decimal.Decimal
	DiscountAmount      decimal.Decimal
	Notes               string
}

// NewLedgerDocument creates a draft document with its totals computed and frozen
func NewLedgerDocument(in NewDocumentInput, now time.Time) (*LedgerDocument, error) {
	if !in.Kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_KIND", "Document kind must be invoice or bill")
	}
	number := strings.TrimSpace(in.DocumentNumber)
	if number == "" {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_NUMBER", "Document number cannot exceed 50 characters")
	}
	if strings.TrimSpace(in.CounterpartyName) == "" {
		return nil, shared.NewValidationError("INVALID_COUNTERPARTY", "Counterparty name cannot be empty")
	}
	if in.DocumentDate.IsZero() || in.DueDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE", "Document date and due date are required")
	}
	// Dates are calendar days; storage keeps them as UTC midnight
	in.DocumentDate = shared.CalendarDate(in.DocumentDate)
	in.DueDate = shared.CalendarDate(in.DueDate)
	if in.DueDate.Before(in.DocumentDate) {
		return nil, shared.NewValidationError("INVALID_DATE", "Due date cannot be before document date")
	}
	if len(in.Lines) == 0 {
		return nil, shared.NewValidationError("INVALID_LINE", "Document must have at least one line item")
	}
	if in.ShippingCost.IsNegative() || in.DiscountAmount.IsNegative() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Shipping cost and discount cannot be negative")
	}
	if err := validateMoneyScale("Shipping cost and discount", in.ShippingCost, in.DiscountAmount); err != nil {
		return nil, err
	}

	lines := make(LineItems, 0, len(in.Lines))
	subtotal, tax := decimal.Zero, decimal.Zero
	for _, li := range in.Lines {
		line, err := NewLineItem(li)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
		subtotal = subtotal.Add(line.Subtotal())
		tax = tax.Add(line.TaxAmount)
	}

	total := subtotal.Add(tax).Add(in.ShippingCost).Sub(in.DiscountAmount)
	if !total.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Total amount must be positive")
	}

	doc := &LedgerDocument{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(now),
		Kind:                in.Kind,
		DocumentNumber:      number,
		CounterpartyName:    strings.TrimSpace(in.CounterpartyName),
		CounterpartyContact: strings.TrimSpace(in.CounterpartyContact),
		DocumentDate:        in.DocumentDate,
		DueDate:             in.DueDate,
		LineItems:           lines,
		Subtotal:            subtotal,
		TaxAmount:           tax,
		ShippingCost:        in.ShippingCost,
		DiscountAmount:      in.DiscountAmount,
		TotalAmount:         total,
		PaidAmount:          decimal.Zero,
		BalanceAmount:       total,
		Status:              DocumentStatusDraft,
		Payments:            Payments{},
		Notes:               in.Notes,
	}

	doc.AddDomainEvent(NewLedgerDocumentCreatedEvent(doc, now))
	return doc, nil
}

// Issue sends an invoice or records a bill, making it payable
func (d *LedgerDocument) Issue(now time.Time) error {
	if d.Status != DocumentStatusDraft {
		return shared.NewStateError("INVALID_STATE", "Cannot issue document in %s status", d.Status)
	}
	d.Status = d.Kind.IssuedStatus()
	d.Status = DeriveStatus(d.Kind, d.Status, d.PaidAmount, d.TotalAmount, d.DueDate, now)
	d.IssuedAt = &now
	d.Touch(now)
	d.IncrementVersion()
	d.AddDomainEvent(NewLedgerDocumentIssuedEvent(d, now))
	return nil
}

// Cancel voids the document. Only documents with no payments applied can be cancelled.
func (d *LedgerDocument) Cancel(reason string, now time.Time) error {
	if d.Status.IsTerminal() {
		return shared.NewStateError("INVALID_STATE", "Cannot cancel document in %s status", d.Status)
	}
	if d.PaidAmount.IsPositive() {
		return shared.NewStateError("HAS_PAYMENTS", "Cannot cancel a document with applied payments")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Cancel reason is required")
	}
	d.Status = DocumentStatusCancelled
	d.CancelledAt = &now
	d.CancelReason = strings.TrimSpace(reason)
	d.Touch(now)
	d.IncrementVersion()
	d.AddDomainEvent(NewLedgerDocumentCancelledEvent(d, now))
	return nil
}

// RefreshStatus recomputes the status against now without touching amounts.
// It reports whether the status changed.
func (d *LedgerDocument) RefreshStatus(now time.Time) bool {
	next := DeriveStatus(d.Kind, d.Status, d.PaidAmount, d.TotalAmount, d.DueDate, now)
	if next == d.Status {
		return false
	}
	d.Status = next
	return true
}

// ApplyPayment appends a payment and recomputes paid, balance and status.
// Nothing is modified when an error is returned.
func (d *LedgerDocument) ApplyPayment(req PaymentRequest, now time.Time) (*Payment, error) {
	if !req.Method.IsValid() {
		return nil, shared.NewValidationError("INVALID_METHOD", "Payment method %q is not supported", req.Method)
	}
	if !req.Amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if err := validateMoneyScale("Payment amount", req.Amount); err != nil {
		return nil, err
	}
	if d.Status == DocumentStatusCancelled {
		return nil, shared.NewStateError("DOCUMENT_CANCELLED", "Cannot apply payment to a cancelled document")
	}
	if !d.Status.CanApplyPayment() {
		return nil, shared.NewStateError("INVALID_STATE", "Cannot apply payment to document in %s status", d.Status)
	}
	if req.Amount.GreaterThan(d.BalanceAmount) {
		return nil, shared.NewValidationError("EXCEEDS_BALANCE",
			"Payment amount %s exceeds balance amount %s", req.Amount.StringFixed(2), d.BalanceAmount.StringFixed(2))
	}

	date := req.Date
	if date.IsZero() {
		date = now
	}
	payment := Payment{
		ID:             uuid.New(),
		DocumentID:     d.ID,
		Date:           date,
		Method:         req.Method,
		Amount:         req.Amount,
		Reference:      strings.TrimSpace(req.Reference),
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		RecordedAt:     now,
	}
	d.Payments = append(d.Payments, payment)
	d.PaidAmount = d.Payments.Total()
	d.BalanceAmount = d.TotalAmount.Sub(d.PaidAmount)
	d.Status = DeriveStatus(d.Kind, d.Status, d.PaidAmount, d.TotalAmount, d.DueDate, now)
	if d.Status == DocumentStatusPaid {
		d.PaidAt = &now
	}

	d.Touch(now)
	d.IncrementVersion()
	d.AddDomainEvent(NewPaymentAppliedEvent(d, payment, now))
	return &d.Payments[len(d.Payments)-1], nil
}

// CheckInvariants verifies the amount invariants of the document
func (d *LedgerDocument) CheckInvariants() error {
	if !d.TotalAmount.Equal(d.Subtotal.Add(d.TaxAmount).Add(d.ShippingCost).Sub(d.DiscountAmount)) {
		return shared.NewConflictError("TOTAL_MISMATCH", "Document %s total does not match its components", d.DocumentNumber)
	}
	if !d.PaidAmount.Equal(d.Payments.Total()) {
		return shared.NewConflictError("PAID_MISMATCH", "Document %s paid amount does not match its payments", d.DocumentNumber)
	}
	if !d.PaidAmount.Add(d.BalanceAmount).Equal(d.TotalAmount) {
		return shared.NewConflictError("BALANCE_MISMATCH", "Document %s paid plus balance does not equal total", d.DocumentNumber)
	}
	if d.BalanceAmount.IsNegative() {
		return shared.NewConflictError("NEGATIVE_BALANCE", "Document %s balance is negative", d.DocumentNumber)
	}
	return nil
}

// IsOpen returns true if the document still has a balance a counterparty owes or is owed
func (d *LedgerDocument) IsOpen() bool {
	return d.Status.IsOpen() && d.BalanceAmount.IsPositive()
}

// DaysOverdue returns the number of days past due as of asOf, or 0 if not yet due
func (d *LedgerDocument) DaysOverdue(asOf time.Time) int {
	days := DaysPastDue(d.DueDate, asOf)
	if days < 0 {
		return 0
	}
	return days
}

// MatchesSearch reports whether the document number or counterparty contains term, case-insensitively
func (d *LedgerDocument) MatchesSearch(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.DocumentNumber), term) ||
		strings.Contains(strings.ToLower(d.CounterpartyName), term) ||
		strings.Contains(strings.ToLower(d.CounterpartyContact), term)
}
