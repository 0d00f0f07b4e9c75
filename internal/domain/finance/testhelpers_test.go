package finance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(offset int) time.Time {
	return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

// newIssuedDocument creates an issued document whose total equals total and due date is dueOffset days from testNow
func newIssuedDocument(t *testing.T, kind DocumentKind, total string, dueOffset int) *LedgerDocument {
	t.Helper()
	doc, err := NewLedgerDocument(NewDocumentInput{
		Kind:             kind,
		DocumentNumber:   "DOC-" + uuid.NewString()[:8],
		CounterpartyName: "Acme Supplies",
		DocumentDate:     day(min(-30, dueOffset)),
		DueDate:          day(dueOffset),
		Lines: []LineInput{
			{Description: "Services", Quantity: decimal.NewFromInt(1), UnitPrice: dec(total), TaxRate: decimal.Zero},
		},
	}, testNow.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.NoError(t, doc.Issue(testNow.AddDate(0, 0, -30)))
	doc.ClearDomainEvents()
	return doc
}

func newBankTxn(t *testing.T, accountID uuid.UUID, debit, credit string, kind BankTransactionKind) *BankTransaction {
	t.Helper()
	txn, err := NewBankTransaction(accountID, day(-1), "statement line", dec(debit), dec(credit), decimal.Zero, kind, testNow)
	require.NoError(t, err)
	return txn
}

func newGLTxn(t *testing.T, accountID uuid.UUID, debit, credit string) *GLTransaction {
	t.Helper()
	txn, err := NewGLTransaction(accountID, day(-2), "ledger entry", dec(debit), dec(credit), "REF-1", testNow)
	require.NoError(t, err)
	return txn
}
