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

// GormBankAccountRepository implements BankAccountRepository using GORM
type GormBankAccountRepository struct {
	db *gorm.DB
}

// NewGormBankAccountRepository creates a new GORM-based bank account repository
func NewGormBankAccountRepository(db *gorm.DB) *GormBankAccountRepository {
	return &GormBankAccountRepository{db: db}
}

// FindByID finds a bank account by ID
func (r *GormBankAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.BankAccount, error) {
	var model models.BankAccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("BANK_ACCOUNT_NOT_FOUND", "Bank account %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every bank account ordered by name
func (r *GormBankAccountRepository) FindAll(ctx context.Context) ([]finance.BankAccount, error) {
	var accountModels []models.BankAccountModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&accountModels).Error; err != nil {
		return nil, err
	}
	accounts := make([]finance.BankAccount, len(accountModels))
	for i := range accountModels {
		accounts[i] = *accountModels[i].ToDomain()
	}
	return accounts, nil
}

// Create inserts a new bank account
func (r *GormBankAccountRepository) Create(ctx context.Context, account *finance.BankAccount) error {
	return r.db.WithContext(ctx).Create(models.BankAccountModelFromDomain(account)).Error
}

// saveAccountWithLock updates account inside tx only if the stored version is account.Version-1
func saveAccountWithLock(tx *gorm.DB, account *finance.BankAccount) error {
	result := tx.Model(&models.BankAccountModel{}).
		Where("id = ? AND version = ?", account.ID, account.Version-1).
		Select("*").
		Omit("id", "created_at").
		Updates(models.BankAccountModelFromDomain(account))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&models.BankAccountModel{}).Where("id = ?", account.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.NewNotFoundError("BANK_ACCOUNT_NOT_FOUND", "Bank account %s not found", account.ID)
	}
	return shared.ErrConcurrencyConflict
}

// Ensure GormBankAccountRepository implements BankAccountRepository
var _ finance.BankAccountRepository = (*GormBankAccountRepository)(nil)
