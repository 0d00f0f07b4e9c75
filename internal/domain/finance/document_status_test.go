package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name    string
		kind    DocumentKind
		current DocumentStatus
		paid    string
		total   string
		due     time.Time
		want    DocumentStatus
	}{
		{"draft stays draft", DocumentKindInvoice, DocumentStatusDraft, "0", "100", day(-10), DocumentStatusDraft},
		{"cancelled stays cancelled", DocumentKindBill, DocumentStatusCancelled, "0", "100", day(-10), DocumentStatusCancelled},
		{"unpaid invoice not due", DocumentKindInvoice, DocumentStatusSent, "0", "100", day(5), DocumentStatusSent},
		{"unpaid bill not due", DocumentKindBill, DocumentStatusReceived, "0", "100", day(5), DocumentStatusReceived},
		{"partial not due", DocumentKindInvoice, DocumentStatusSent, "40", "100", day(5), DocumentStatusPartial},
		{"unpaid past due", DocumentKindInvoice, DocumentStatusSent, "0", "100", day(-1), DocumentStatusOverdue},
		{"partial past due", DocumentKindBill, DocumentStatusPartial, "40", "100", day(-1), DocumentStatusOverdue},
		{"due today is not overdue", DocumentKindInvoice, DocumentStatusSent, "0", "100", day(0), DocumentStatusSent},
		{"fully paid past due", DocumentKindInvoice, DocumentStatusOverdue, "100", "100", day(-30), DocumentStatusPaid},
		{"fully paid", DocumentKindBill, DocumentStatusPartial, "100", "100", day(5), DocumentStatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.kind, tt.current, dec(tt.paid), dec(tt.total), tt.due, testNow)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDaysPastDue(t *testing.T) {
	due := time.Date(2024, 6, 10, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysPastDue(due, time.Date(2024, 6, 10, 0, 1, 0, 0, time.UTC)))
	assert.Equal(t, 1, DaysPastDue(due, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -5, DaysPastDue(due, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 95, DaysPastDue(due, due.AddDate(0, 0, 95)))
}

func TestDocumentStatus_Predicates(t *testing.T) {
	assert.True(t, DocumentStatusPaid.IsTerminal())
	assert.True(t, DocumentStatusCancelled.IsTerminal())
	assert.False(t, DocumentStatusOverdue.IsTerminal())

	assert.True(t, DocumentStatusOverdue.CanApplyPayment())
	assert.False(t, DocumentStatusDraft.CanApplyPayment())
	assert.False(t, DocumentStatus("bogus").IsValid())
	assert.True(t, DocumentStatusReceived.IsValid())
}

func TestDaysPastDue_KeepsDueDateCalendarDay(t *testing.T) {
	jakarta := time.FixedZone("UTC+7", 7*3600)
	due := time.Date(2024, 6, 10, 0, 0, 0, 0, jakarta)

	assert.Equal(t, 0, DaysPastDue(due, time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsPastDue(due, time.Date(2024, 6, 10, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, DaysPastDue(due, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)))
}

func TestNewLedgerDocument_NormalisesDatesToCalendarDays(t *testing.T) {
	jakarta := time.FixedZone("UTC+7", 7*3600)
	doc, err := NewLedgerDocument(NewDocumentInput{
		Kind:             DocumentKindInvoice,
		DocumentNumber:   "INV-TZ",
		CounterpartyName: "Acme Supplies",
		DocumentDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, jakarta),
		DueDate:          time.Date(2024, 6, 10, 0, 0, 0, 0, jakarta),
		Lines:            []LineInput{{Description: "Services", Quantity: decimal.NewFromInt(1), UnitPrice: dec("100")}},
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), doc.DueDate)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), doc.DocumentDate)

	require.NoError(t, doc.Issue(time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, DocumentStatusSent, doc.Status)
}
