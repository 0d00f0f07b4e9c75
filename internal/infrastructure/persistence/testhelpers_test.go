package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

// newTestDB opens a migrated in-memory sqlite database
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newDraftDocument(t *testing.T, kind finance.DocumentKind, number, counterparty, amount string, dueOffset int) *finance.LedgerDocument {
	t.Helper()
	doc, err := finance.NewLedgerDocument(finance.NewDocumentInput{
		Kind:             kind,
		DocumentNumber:   number,
		CounterpartyName: counterparty,
		DocumentDate:     testNow.AddDate(0, 0, -30),
		DueDate:          testNow.AddDate(0, 0, dueOffset),
		Lines: []finance.LineInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: dec(amount), TaxRate: decimal.Zero},
		},
	}, testNow.Add(-time.Hour))
	require.NoError(t, err)
	doc.ClearDomainEvents()
	return doc
}

func newTestAccount(t *testing.T, name string) *finance.BankAccount {
	t.Helper()
	account, err := finance.NewBankAccount(name, "First Bank", "12345678", dec("1000"), testNow)
	require.NoError(t, err)
	return account
}

func newTestBankTxn(t *testing.T, accountID uuid.UUID, dayOffset int, debit, credit string) finance.BankTransaction {
	t.Helper()
	txn, err := finance.NewBankTransaction(accountID, testNow.AddDate(0, 0, dayOffset), "statement line",
		dec(debit), dec(credit), decimal.Zero, finance.InferTransactionKind(dec(debit), dec(credit)), testNow)
	require.NoError(t, err)
	return *txn
}

func newTestGLTxn(t *testing.T, accountID uuid.UUID, dayOffset int, debit, credit string) *finance.GLTransaction {
	t.Helper()
	txn, err := finance.NewGLTransaction(accountID, testNow.AddDate(0, 0, dayOffset), "ledger entry",
		dec(debit), dec(credit), "REF-1", testNow)
	require.NoError(t, err)
	return txn
}
