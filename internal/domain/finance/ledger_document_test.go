package finance

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/storefront/ledger/internal/domain/shared"
)

// ============================================
// Creation
// ============================================

func TestNewLedgerDocument_ComputesTotals(t *testing.T) {
	doc, err := NewLedgerDocument(NewDocumentInput{
		Kind:             DocumentKindInvoice,
		DocumentNumber:   "INV-001",
		CounterpartyName: "Jane Buyer",
		DocumentDate:     day(0),
		DueDate:          day(30),
		Lines: []LineInput{
			{Description: "Widget", Quantity: dec("3"), UnitPrice: dec("100"), TaxRate: dec("10")},
			{Description: "Gadget", Quantity: dec("1"), UnitPrice: dec("49.99"), TaxRate: dec("0")},
		},
		ShippingCost:   dec("15"),
		DiscountAmount: dec("20"),
	}, testNow)
	require.NoError(t, err)

	assert.True(t, dec("349.99").Equal(doc.Subtotal))
	assert.True(t, dec("30").Equal(doc.TaxAmount))
	assert.True(t, dec("374.99").Equal(doc.TotalAmount))
	assert.True(t, doc.PaidAmount.IsZero())
	assert.True(t, doc.BalanceAmount.Equal(doc.TotalAmount))
	assert.Equal(t, DocumentStatusDraft, doc.Status)
	assert.Equal(t, 1, doc.GetVersion())
	assert.Len(t, doc.GetDomainEvents(), 1)

	require.Len(t, doc.LineItems, 2)
	assert.True(t, dec("30").Equal(doc.LineItems[0].TaxAmount))
	assert.True(t, dec("330").Equal(doc.LineItems[0].LineTotal))
	assert.NoError(t, doc.CheckInvariants())
}

func TestNewLedgerDocument_Validation(t *testing.T) {
	valid := func() NewDocumentInput {
		return NewDocumentInput{
			Kind:             DocumentKindBill,
			DocumentNumber:   "BILL-1",
			CounterpartyName: "Vendor",
			DocumentDate:     day(0),
			DueDate:          day(10),
			Lines:            []LineInput{{Description: "Paper", Quantity: dec("1"), UnitPrice: dec("10")}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*NewDocumentInput)
	}{
		{"unknown kind", func(in *NewDocumentInput) { in.Kind = "receipt" }},
		{"empty number", func(in *NewDocumentInput) { in.DocumentNumber = "  " }},
		{"empty counterparty", func(in *NewDocumentInput) { in.CounterpartyName = "" }},
		{"due before document date", func(in *NewDocumentInput) { in.DueDate = day(-1) }},
		{"no lines", func(in *NewDocumentInput) { in.Lines = nil }},
		{"zero quantity", func(in *NewDocumentInput) { in.Lines[0].Quantity = decimal.Zero }},
		{"tax over 100", func(in *NewDocumentInput) { in.Lines[0].TaxRate = dec("101") }},
		{"negative shipping", func(in *NewDocumentInput) { in.ShippingCost = dec("-1") }},
		{"discount wipes total", func(in *NewDocumentInput) { in.DiscountAmount = dec("10") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			doc, err := NewLedgerDocument(in, testNow)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, shared.ErrValidation), "got %v", err)
		})
	}
}

// ============================================
// Lifecycle
// ============================================

func TestLedgerDocument_IssueSetsKindStatus(t *testing.T) {
	invoice := newIssuedDocument(t, DocumentKindInvoice, "100", 10)
	bill := newIssuedDocument(t, DocumentKindBill, "100", 10)

	assert.Equal(t, DocumentStatusSent, invoice.Status)
	assert.Equal(t, DocumentStatusReceived, bill.Status)
	assert.NotNil(t, invoice.IssuedAt)

	err := invoice.Issue(testNow)
	assert.True(t, errors.Is(err, shared.ErrState))
}

func TestLedgerDocument_Cancel(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindInvoice, "100", 10)
	require.NoError(t, doc.Cancel("duplicate order", testNow))
	assert.Equal(t, DocumentStatusCancelled, doc.Status)
	assert.Equal(t, "duplicate order", doc.CancelReason)

	err := doc.Cancel("again", testNow)
	assert.True(t, errors.Is(err, shared.ErrState))
}

func TestLedgerDocument_CancelRejectsPartiallyPaid(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindInvoice, "100", 10)
	_, err := doc.ApplyPayment(PaymentRequest{Amount: dec("10"), Method: PaymentMethodCash}, testNow)
	require.NoError(t, err)

	err = doc.Cancel("customer left", testNow)
	assert.True(t, errors.Is(err, shared.ErrState))
	assert.Equal(t, DocumentStatusPartial, doc.Status)
}

// ============================================
// Payments
// ============================================

func TestLedgerDocument_ApplyPayment_PartialThenPaid(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindInvoice, "1000", 10)

	p1, err := doc.ApplyPayment(PaymentRequest{Amount: dec("400"), Method: PaymentMethodBankTransfer, Date: day(0)}, testNow)
	require.NoError(t, err)
	assert.True(t, dec("400").Equal(doc.PaidAmount))
	assert.True(t, dec("600").Equal(doc.BalanceAmount))
	assert.Equal(t, DocumentStatusPartial, doc.Status)
	assert.Equal(t, doc.ID, p1.DocumentID)

	_, err = doc.ApplyPayment(PaymentRequest{Amount: dec("600"), Method: PaymentMethodCheck, Reference: "CHK-9"}, testNow)
	require.NoError(t, err)
	assert.True(t, doc.BalanceAmount.IsZero())
	assert.Equal(t, DocumentStatusPaid, doc.Status)
	assert.NotNil(t, doc.PaidAt)
	assert.Len(t, doc.Payments, 2)
	assert.NoError(t, doc.CheckInvariants())
}

func TestLedgerDocument_ApplyPayment_RejectsOverpayment(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindInvoice, "1000", 10)
	_, err := doc.ApplyPayment(PaymentRequest{Amount: dec("400"), Method: PaymentMethodCash}, testNow)
	require.NoError(t, err)
	version := doc.GetVersion()

	_, err = doc.ApplyPayment(PaymentRequest{Amount: dec("700"), Method: PaymentMethodCash}, testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "EXCEEDS_BALANCE", de.Code)
	assert.True(t, dec("600").Equal(doc.BalanceAmount))
	assert.Len(t, doc.Payments, 1)
	assert.Equal(t, version, doc.GetVersion())
}

func TestLedgerDocument_ApplyPayment_Failures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*LedgerDocument)
		req     PaymentRequest
		kind    *shared.DomainError
	}{
		{"zero amount", nil, PaymentRequest{Amount: decimal.Zero, Method: PaymentMethodCash}, shared.ErrValidation},
		{"negative amount", nil, PaymentRequest{Amount: dec("-5"), Method: PaymentMethodCash}, shared.ErrValidation},
		{"unknown method", nil, PaymentRequest{Amount: dec("5"), Method: "barter"}, shared.ErrValidation},
		{"cancelled", func(d *LedgerDocument) { _ = d.Cancel("void", testNow) },
			PaymentRequest{Amount: dec("5"), Method: PaymentMethodCash}, shared.ErrState},
		{"draft", func(d *LedgerDocument) { d.Status = DocumentStatusDraft },
			PaymentRequest{Amount: dec("5"), Method: PaymentMethodCash}, shared.ErrState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newIssuedDocument(t, DocumentKindBill, "100", 10)
			if tt.prepare != nil {
				tt.prepare(doc)
			}
			_, err := doc.ApplyPayment(tt.req, testNow)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Empty(t, doc.Payments)
			assert.True(t, doc.PaidAmount.IsZero())
		})
	}
}

func TestLedgerDocument_ApplyPayment_OverdueWhenPastDue(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindBill, "500", -3)

	_, err := doc.ApplyPayment(PaymentRequest{Amount: dec("100"), Method: PaymentMethodCash}, testNow)
	require.NoError(t, err)
	assert.Equal(t, DocumentStatusOverdue, doc.Status)

	_, err = doc.ApplyPayment(PaymentRequest{Amount: dec("400"), Method: PaymentMethodCash}, testNow)
	require.NoError(t, err)
	assert.Equal(t, DocumentStatusPaid, doc.Status)
}

func TestLedgerDocument_PaidPlusBalanceAlwaysEqualsTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 20; run++ {
		doc := newIssuedDocument(t, DocumentKindInvoice, "1000", 5)
		for i := 0; i < 30; i++ {
			amount := decimal.NewFromInt(int64(rng.Intn(400) - 50))
			_, _ = doc.ApplyPayment(PaymentRequest{Amount: amount, Method: PaymentMethodCash}, testNow)

			require.True(t, doc.PaidAmount.Add(doc.BalanceAmount).Equal(doc.TotalAmount))
			require.False(t, doc.BalanceAmount.IsNegative())
			require.NoError(t, doc.CheckInvariants())
		}
	}
}

func TestLedgerDocument_RefreshStatus(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindInvoice, "100", 0)

	assert.False(t, doc.RefreshStatus(testNow))
	assert.Equal(t, DocumentStatusSent, doc.Status)

	assert.True(t, doc.RefreshStatus(testNow.AddDate(0, 0, 1)))
	assert.Equal(t, DocumentStatusOverdue, doc.Status)
}

func TestLedgerDocument_MatchesSearch(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindInvoice, "100", 0)
	assert.True(t, doc.MatchesSearch("acme"))
	assert.True(t, doc.MatchesSearch(""))
	assert.True(t, doc.MatchesSearch(doc.DocumentNumber[:4]))
	assert.False(t, doc.MatchesSearch("globex"))
}

func TestLineItems_ValueScan(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindInvoice, "12.50", 0)

	v, err := doc.LineItems.Value()
	require.NoError(t, err)

	var scanned LineItems
	require.NoError(t, scanned.Scan(v))
	require.Len(t, scanned, 1)
	assert.True(t, dec("12.50").Equal(scanned[0].UnitPrice))
	assert.Equal(t, "Services", scanned[0].Description)

	var nilItems LineItems
	v, err = nilItems.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var empty LineItems
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)
	require.NoError(t, empty.Scan([]byte{}))
	assert.Error(t, empty.Scan(42))
}

func TestLedgerDocument_RejectsSubCentAmounts(t *testing.T) {
	doc := newIssuedDocument(t, DocumentKindInvoice, "1000", 5)

	_, err := doc.ApplyPayment(PaymentRequest{Amount: dec("0.005"), Method: PaymentMethodCash}, testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Empty(t, doc.Payments)
	assert.True(t, doc.BalanceAmount.Equal(dec("1000")))

	// Trailing zeros are not extra precision
	_, err = doc.ApplyPayment(PaymentRequest{Amount: dec("10.500"), Method: PaymentMethodCash}, testNow)
	require.NoError(t, err)
	assert.True(t, doc.PaidAmount.Add(doc.BalanceAmount).Equal(doc.TotalAmount))

	_, err = NewLedgerDocument(NewDocumentInput{
		Kind:             DocumentKindInvoice,
		DocumentNumber:   "INV-SCALE",
		CounterpartyName: "Acme Supplies",
		DocumentDate:     day(0),
		DueDate:          day(30),
		Lines:            []LineInput{{Description: "Services", Quantity: decimal.NewFromInt(1), UnitPrice: dec("100")}},
		ShippingCost:     dec("4.999"),
	}, testNow)
	assert.True(t, errors.Is(err, shared.ErrValidation), "got %v", err)
}

func TestHasMoneyScale(t *testing.T) {
	assert.True(t, HasMoneyScale(dec("12")))
	assert.True(t, HasMoneyScale(dec("12.34")))
	assert.True(t, HasMoneyScale(dec("12.3400")))
	assert.False(t, HasMoneyScale(dec("12.345")))
	assert.False(t, HasMoneyScale(dec("-0.001")))
}
