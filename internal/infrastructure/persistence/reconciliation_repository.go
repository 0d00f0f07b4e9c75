package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReconciliationRepository implements ReconciliationRepository using GORM
type GormReconciliationRepository struct {
	db *gorm.DB
}

// NewGormReconciliationRepository creates a new GORM-based reconciliation repository
func NewGormReconciliationRepository(db *gorm.DB) *GormReconciliationRepository {
	return &GormReconciliationRepository{db: db}
}

// Commit inserts the reconciliation record and saves the account atomically
func (r *GormReconciliationRepository) Commit(ctx context.Context, rec *finance.Reconciliation, account *finance.BankAccount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveAccountWithLock(tx, account); err != nil {
			return err
		}
		return tx.Create(models.ReconciliationModelFromDomain(rec)).Error
	})
}

// FindByAccount lists an account's reconciliations oldest first
func (r *GormReconciliationRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]finance.Reconciliation, error) {
	var recModels []models.ReconciliationModel
	if err := r.db.WithContext(ctx).
		Where("bank_account_id = ?", accountID).
		Order("created_at ASC").
		Find(&recModels).Error; err != nil {
		return nil, err
	}
	recs := make([]finance.Reconciliation, len(recModels))
	for i := range recModels {
		recs[i] = *recModels[i].ToDomain()
	}
	return recs, nil
}

// Ensure GormReconciliationRepository implements ReconciliationRepository
var _ finance.ReconciliationRepository = (*GormReconciliationRepository)(nil)
