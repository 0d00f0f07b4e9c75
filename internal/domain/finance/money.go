package finance

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/shared"
)

// MoneyScale is the number of decimal places every stored amount carries
const MoneyScale = 2

// HasMoneyScale reports whether amount fits MoneyScale decimal places exactly
func HasMoneyScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MoneyScale))
}

// validateMoneyScale rejects amounts a decimal(18,2) column would round
func validateMoneyScale(field string, amounts ...decimal.Decimal) error {
	for _, amount := range amounts {
		if !HasMoneyScale(amount) {
			return shared.NewValidationError("INVALID_AMOUNT",
				"%s %s has more than %d decimal places", field, amount.String(), MoneyScale)
		}
	}
	return nil
}
