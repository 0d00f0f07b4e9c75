package finance

import (
	"time"

	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DocumentStatus is the lifecycle status of a ledger document.
// It is derived from the amounts and the due date by DeriveStatus and never assigned ad hoc.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"     // Not yet issued, not payable
	DocumentStatusSent      DocumentStatus = "sent"      // Issued invoice awaiting payment
	DocumentStatusReceived  DocumentStatus = "received"  // Recorded bill awaiting payment
	DocumentStatusPartial   DocumentStatus = "partial"   // 0 < paid < total
	DocumentStatusPaid      DocumentStatus = "paid"      // balance = 0
	DocumentStatusOverdue   DocumentStatus = "overdue"   // balance > 0 and past due date
	DocumentStatusCancelled DocumentStatus = "cancelled" // Voided before any payment
)

// AllDocumentStatuses lists every status in lifecycle order
var AllDocumentStatuses = []DocumentStatus{
	DocumentStatusDraft,
	DocumentStatusSent,
	DocumentStatusReceived,
	DocumentStatusPartial,
	DocumentStatusPaid,
	DocumentStatusOverdue,
	DocumentStatusCancelled,
}

// IsValid checks if the status is one of the known statuses
func (s DocumentStatus) IsValid() bool {
	for _, st := range AllDocumentStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// String returns the string representation of DocumentStatus
func (s DocumentStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses no operation can leave
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusPaid || s == DocumentStatusCancelled
}

// CanApplyPayment returns true if payments can be applied in this status
func (s DocumentStatus) CanApplyPayment() bool {
	switch s {
	case DocumentStatusSent, DocumentStatusReceived, DocumentStatusPartial, DocumentStatusOverdue:
		return true
	}
	return false
}

// IsOpen returns true if the document still carries an amount owed
func (s DocumentStatus) IsOpen() bool {
	return s.CanApplyPayment()
}

// DeriveStatus is the single place a document status is computed.
//
// Draft and cancelled documents keep their status. Otherwise the result is
// paid when nothing is left to pay, overdue when the due date has passed,
// partial when some but not all of the total was paid, and the kind's issued
// status (sent or received) when nothing was paid yet.
func DeriveStatus(kind DocumentKind, current DocumentStatus, paid, total decimal.Decimal, dueDate, now time.Time) DocumentStatus {
	if current == DocumentStatusDraft || current == DocumentStatusCancelled {
		return current
	}
	balance := total.Sub(paid)
	if !balance.IsPositive() {
		return DocumentStatusPaid
	}
	if IsPastDue(dueDate, now) {
		return DocumentStatusOverdue
	}
	if paid.IsPositive() {
		return DocumentStatusPartial
	}
	return kind.IssuedStatus()
}

// IsPastDue reports whether now falls on a calendar day after dueDate.
// A document due today is not overdue until tomorrow.
func IsPastDue(dueDate, now time.Time) bool {
	return DaysPastDue(dueDate, now) > 0
}

// DaysPastDue returns the number of whole calendar days from dueDate to asOf,
// negative when asOf is before the due date. The due date keeps the calendar
// day of its own location; asOf is taken in UTC.
func DaysPastDue(dueDate, asOf time.Time) int {
	due := shared.CalendarDate(dueDate)
	at := shared.StartOfDay(asOf.UTC())
	return int(at.Sub(due).Hours() / 24)
}
