package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

// StatementLine is one parsed row of a bank statement file
type StatementLine struct {
	Row         int
	Date        time.Time
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Balance     decimal.Decimal
	Kind        BankTransactionKind
}

// BuildStatementTransactions turns parsed statement lines into bank transactions
// for account. The statement's closing balance is the balance of its last line.
// Any invalid line rejects the whole statement.
func BuildStatementTransactions(accountID uuid.UUID, lines []StatementLine, now time.Time) ([]BankTransaction, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, shared.NewValidationError("EMPTY_STATEMENT", "Statement contains no transactions")
	}
	txns := make([]BankTransaction, 0, len(lines))
	for _, line := range lines {
		kind := line.Kind
		if kind == "" {
			kind = InferTransactionKind(line.Debit, line.Credit)
		}
		t, err := NewBankTransaction(accountID, line.Date, line.Description, line.Debit, line.Credit, line.Balance, kind, now)
		if err != nil {
			return nil, decimal.Zero, shared.NewValidationError("INVALID_STATEMENT_ROW", "Row %d: %s", line.Row, err.Error())
		}
		txns = append(txns, *t)
	}
	return txns, lines[len(lines)-1].Balance, nil
}

// InferTransactionKind picks deposit or withdrawal from the side that carries the amount
func InferTransactionKind(debit, credit decimal.Decimal) BankTransactionKind {
	if debit.IsPositive() {
		return BankTransactionDeposit
	}
	if credit.IsPositive() {
		return BankTransactionWithdrawal
	}
	return BankTransactionOther
}
