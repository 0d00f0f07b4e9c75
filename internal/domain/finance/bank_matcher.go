package finance

import (
	"github.com/storefront/ledger/internal/domain/shared"
)

// BankMatcher pairs bank transactions with GL transactions.
//
// Match and Unmatch either change both sides or neither. Unmatch restores
// exactly the fields Match set, so Unmatch after Match leaves both
// transactions equal to their pre-match values.
type BankMatcher struct{}

// NewBankMatcher creates a bank matcher
func NewBankMatcher() *BankMatcher {
	return &BankMatcher{}
}

// Match links bank and gl. Both must be unmatched, on the same account, and
// carry the same amount; the GL side must still be outstanding.
func (m *BankMatcher) Match(bank *BankTransaction, gl *GLTransaction) error {
	if err := checkPair(bank, gl); err != nil {
		return err
	}
	if bank.Matched {
		return shared.NewConflictError("BANK_ALREADY_MATCHED", "Bank transaction %s is already matched", bank.ID)
	}
	if gl.Matched {
		return shared.NewConflictError("GL_ALREADY_MATCHED", "GL transaction %s is already matched", gl.ID)
	}
	if gl.Status != GLStatusOutstanding {
		return shared.NewConflictError("GL_NOT_OUTSTANDING", "GL transaction %s is %s and cannot be matched", gl.ID, gl.Status)
	}
	if !bank.Amount().Equal(gl.Amount()) {
		return shared.NewConflictError("AMOUNT_MISMATCH",
			"Bank amount %s does not equal GL amount %s", bank.Amount().StringFixed(2), gl.Amount().StringFixed(2))
	}

	glID, bankID := gl.ID, bank.ID
	bank.Matched = true
	bank.MatchedGLID = &glID
	bank.Reconciled = true
	gl.Matched = true
	gl.MatchedBankID = &bankID
	gl.Status = GLStatusCleared
	return nil
}

// Unmatch reverses a Match between bank and gl. The two must be matched to each other.
func (m *BankMatcher) Unmatch(bank *BankTransaction, gl *GLTransaction) error {
	if err := checkPair(bank, gl); err != nil {
		return err
	}
	if !bank.Matched || bank.MatchedGLID == nil || *bank.MatchedGLID != gl.ID ||
		!gl.Matched || gl.MatchedBankID == nil || *gl.MatchedBankID != bank.ID {
		return shared.NewConflictError("NOT_MATCHED_PAIR",
			"Bank transaction %s and GL transaction %s are not matched to each other", bank.ID, gl.ID)
	}

	bank.Matched = false
	bank.MatchedGLID = nil
	bank.Reconciled = false
	gl.Matched = false
	gl.MatchedBankID = nil
	gl.Status = GLStatusOutstanding
	return nil
}

func checkPair(bank *BankTransaction, gl *GLTransaction) error {
	if bank == nil || gl == nil {
		return shared.NewValidationError("INVALID_PAIR", "Both bank and GL transactions are required")
	}
	if bank.BankAccountID != gl.BankAccountID {
		return shared.NewValidationError("ACCOUNT_MISMATCH", "Bank and GL transactions belong to different bank accounts")
	}
	return nil
}
