package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// statementBatchSize bounds the rows per INSERT when importing a statement
const statementBatchSize = 500

// GormBankTransactionRepository implements BankTransactionRepository using GORM
type GormBankTransactionRepository struct {
	db *gorm.DB
}

// NewGormBankTransactionRepository creates a new GORM-based transaction repository
func NewGormBankTransactionRepository(db *gorm.DB) *GormBankTransactionRepository {
	return &GormBankTransactionRepository{db: db}
}

// FindBankByID finds a bank transaction by ID
func (r *GormBankTransactionRepository) FindBankByID(ctx context.Context, id uuid.UUID) (*finance.BankTransaction, error) {
	var model models.BankTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("BANK_TRANSACTION_NOT_FOUND", "Bank transaction %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindGLByID finds a GL transaction by ID
func (r *GormBankTransactionRepository) FindGLByID(ctx context.Context, id uuid.UUID) (*finance.GLTransaction, error) {
	var model models.GLTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("GL_TRANSACTION_NOT_FOUND", "GL transaction %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormBankTransactionRepository) transactionQuery(ctx context.Context, filter finance.TransactionFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Where("bank_account_id = ?", filter.BankAccountID)
	if filter.UnmatchedOnly {
		query = query.Where("matched = ?", false)
	}
	return query.Order("date ASC").Order("created_at ASC")
}

// FindBank lists an account's bank transactions by date
func (r *GormBankTransactionRepository) FindBank(ctx context.Context, filter finance.TransactionFilter) ([]finance.BankTransaction, error) {
	var txnModels []models.BankTransactionModel
	if err := r.transactionQuery(ctx, filter).Find(&txnModels).Error; err != nil {
		return nil, err
	}
	txns := make([]finance.BankTransaction, len(txnModels))
	for i := range txnModels {
		txns[i] = *txnModels[i].ToDomain()
	}
	return txns, nil
}

// FindGL lists an account's GL transactions by date
func (r *GormBankTransactionRepository) FindGL(ctx context.Context, filter finance.TransactionFilter) ([]finance.GLTransaction, error) {
	var txnModels []models.GLTransactionModel
	if err := r.transactionQuery(ctx, filter).Find(&txnModels).Error; err != nil {
		return nil, err
	}
	txns := make([]finance.GLTransaction, len(txnModels))
	for i := range txnModels {
		txns[i] = *txnModels[i].ToDomain()
	}
	return txns, nil
}

// CreateGL saves the account and inserts the GL transaction in one transaction
func (r *GormBankTransactionRepository) CreateGL(ctx context.Context, account *finance.BankAccount, gl *finance.GLTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveAccountWithLock(tx, account); err != nil {
			return err
		}
		return tx.Create(models.GLTransactionModelFromDomain(gl)).Error
	})
}

// ImportStatement saves the account and inserts the statement lines in one transaction
func (r *GormBankTransactionRepository) ImportStatement(ctx context.Context, account *finance.BankAccount, txns []finance.BankTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveAccountWithLock(tx, account); err != nil {
			return err
		}
		if len(txns) == 0 {
			return nil
		}
		rows := make([]*models.BankTransactionModel, len(txns))
		for i := range txns {
			rows[i] = models.BankTransactionModelFromDomain(&txns[i])
		}
		return tx.CreateInBatches(rows, statementBatchSize).Error
	})
}

// SavePair writes both sides of a match or unmatch. Each row is updated only if
// its stored match state is still wasMatched; otherwise nothing is written.
func (r *GormBankTransactionRepository) SavePair(
	ctx context.Context,
	account *finance.BankAccount,
	bank *finance.BankTransaction,
	gl *finance.GLTransaction,
	wasMatched bool,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.BankTransactionModel{}).
			Where("id = ? AND matched = ?", bank.ID, wasMatched).
			Select("matched", "matched_gl_id", "reconciled", "updated_at").
			Updates(models.BankTransactionModelFromDomain(bank))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		result = tx.Model(&models.GLTransactionModel{}).
			Where("id = ? AND matched = ?", gl.ID, wasMatched).
			Select("status", "matched", "matched_bank_id", "updated_at").
			Updates(models.GLTransactionModelFromDomain(gl))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		return saveAccountWithLock(tx, account)
	})
}

// Ensure GormBankTransactionRepository implements BankTransactionRepository
var _ finance.BankTransactionRepository = (*GormBankTransactionRepository)(nil)
