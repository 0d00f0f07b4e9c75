package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/shared"
)

// DocumentFilter narrows document lists. Status is not stored reliably
// (overdue depends on the clock), so status filtering happens after refresh.
type DocumentFilter struct {
	shared.Filter
	Kind *DocumentKind
}

// LedgerDocumentRepository persists ledger documents
type LedgerDocumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerDocument, error)
	FindAll(ctx context.Context, filter DocumentFilter) ([]LedgerDocument, error)
	// FindOpen returns issued documents with a positive balance
	FindOpen(ctx context.Context, kind *DocumentKind) ([]LedgerDocument, error)
	ExistsByNumber(ctx context.Context, kind DocumentKind, number string) (bool, error)
	// Create inserts a new document
	Create(ctx context.Context, doc *LedgerDocument) error
	// SaveWithLock updates doc only if the stored version is doc.Version-1
	SaveWithLock(ctx context.Context, doc *LedgerDocument) error
}

// BankAccountRepository persists bank accounts
type BankAccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BankAccount, error)
	FindAll(ctx context.Context) ([]BankAccount, error)
	Create(ctx context.Context, account *BankAccount) error
}

// TransactionFilter narrows bank and GL transaction lists of one account
type TransactionFilter struct {
	BankAccountID uuid.UUID
	UnmatchedOnly bool
}

// BankTransactionRepository persists bank and GL transactions. Every write that
// changes match state also bumps the owning account's version in the same
// database transaction.
type BankTransactionRepository interface {
	FindBankByID(ctx context.Context, id uuid.UUID) (*BankTransaction, error)
	FindGLByID(ctx context.Context, id uuid.UUID) (*GLTransaction, error)
	FindBank(ctx context.Context, filter TransactionFilter) ([]BankTransaction, error)
	FindGL(ctx context.Context, filter TransactionFilter) ([]GLTransaction, error)
	// CreateGL inserts gl and saves the updated account atomically
	CreateGL(ctx context.Context, account *BankAccount, gl *GLTransaction) error
	// ImportStatement inserts statement lines and saves the updated account atomically
	ImportStatement(ctx context.Context, account *BankAccount, txns []BankTransaction) error
	// SavePair writes both sides of a match or unmatch and the account atomically.
	// wasMatched is the match state both rows must still have in storage.
	SavePair(ctx context.Context, account *BankAccount, bank *BankTransaction, gl *GLTransaction, wasMatched bool) error
}

// ReconciliationRepository persists reconciliation records
type ReconciliationRepository interface {
	// Commit inserts rec and saves account atomically, failing with a conflict
	// when the account version moved since the snapshot was read
	Commit(ctx context.Context, rec *Reconciliation, account *BankAccount) error
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]Reconciliation, error)
}
