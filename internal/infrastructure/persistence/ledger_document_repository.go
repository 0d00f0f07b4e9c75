package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// openStatuses are the stored statuses a document can have while money is still owed
var openStatuses = []finance.DocumentStatus{
	finance.DocumentStatusSent,
	finance.DocumentStatusReceived,
	finance.DocumentStatusPartial,
	finance.DocumentStatusOverdue,
}

// GormLedgerDocumentRepository implements LedgerDocumentRepository using GORM
type GormLedgerDocumentRepository struct {
	db *gorm.DB
}

// NewGormLedgerDocumentRepository creates a new GORM-based ledger document repository
func NewGormLedgerDocumentRepository(db *gorm.DB) *GormLedgerDocumentRepository {
	return &GormLedgerDocumentRepository{db: db}
}

func preloadPayments(db *gorm.DB) *gorm.DB {
	return db.Order("recorded_at ASC")
}

// FindByID finds a document by ID with its payments in recording order
func (r *GormLedgerDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.LedgerDocument, error) {
	var model models.LedgerDocumentModel
	if err := r.db.WithContext(ctx).
		Preload("Payments", preloadPayments).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Document %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds documents matching the filter
func (r *GormLedgerDocumentRepository) FindAll(ctx context.Context, filter finance.DocumentFilter) ([]finance.LedgerDocument, error) {
	var docModels []models.LedgerDocumentModel
	query := r.db.WithContext(ctx).Model(&models.LedgerDocumentModel{})

	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where(
			"LOWER(document_number) LIKE ? OR LOWER(counterparty_name) LIKE ? OR LOWER(counterparty_contact) LIKE ?",
			like, like, like,
		)
	}

	orderBy := ValidateSortField(filter.OrderBy, DocumentSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir).Order("document_number ASC")

	if err := query.
		Preload("Payments", preloadPayments).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&docModels).Error; err != nil {
		return nil, err
	}
	return toDocuments(docModels), nil
}

// FindOpen returns issued documents with a positive balance, ordered by due date
func (r *GormLedgerDocumentRepository) FindOpen(ctx context.Context, kind *finance.DocumentKind) ([]finance.LedgerDocument, error) {
	var docModels []models.LedgerDocumentModel
	query := r.db.WithContext(ctx).
		Where("status IN ?", openStatuses).
		Where("balance_amount > 0")
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}
	if err := query.
		Preload("Payments", preloadPayments).
		Order("due_date ASC").Order("document_number ASC").
		Find(&docModels).Error; err != nil {
		return nil, err
	}
	return toDocuments(docModels), nil
}

// ExistsByNumber checks whether a document number is taken within a kind
func (r *GormLedgerDocumentRepository) ExistsByNumber(ctx context.Context, kind finance.DocumentKind, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerDocumentModel{}).
		Where("kind = ? AND document_number = ?", kind, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new document together with any payments it already carries
func (r *GormLedgerDocumentRepository) Create(ctx context.Context, doc *finance.LedgerDocument) error {
	model := models.LedgerDocumentModelFromDomain(doc)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		return insertPayments(tx, model.Payments)
	})
	if isUniqueViolation(err) {
		return shared.NewConflictError("DUPLICATE_DOCUMENT_NUMBER",
			"Document number %s already exists for %s", doc.DocumentNumber, doc.Kind)
	}
	return err
}

// SaveWithLock updates the document only if the stored version is doc.Version-1.
// Payments are append-only, so only rows not yet stored are inserted.
func (r *GormLedgerDocumentRepository) SaveWithLock(ctx context.Context, doc *finance.LedgerDocument) error {
	model := models.LedgerDocumentModelFromDomain(doc)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.LedgerDocumentModel{}).
			Where("id = ? AND version = ?", doc.ID, doc.Version-1).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.LedgerDocumentModel{}).Where("id = ?", doc.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Document %s not found", doc.ID)
			}
			return shared.ErrConcurrencyConflict
		}
		return insertPayments(tx, model.Payments)
	})
}

func insertPayments(tx *gorm.DB, payments []models.PaymentModel) error {
	if len(payments) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&payments).Error
}

func toDocuments(docModels []models.LedgerDocumentModel) []finance.LedgerDocument {
	docs := make([]finance.LedgerDocument, len(docModels))
	for i := range docModels {
		docs[i] = *docModels[i].ToDomain()
	}
	return docs
}

// isUniqueViolation recognises unique constraint errors from both postgres and sqlite
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// Ensure GormLedgerDocumentRepository implements LedgerDocumentRepository
var _ finance.LedgerDocumentRepository = (*GormLedgerDocumentRepository)(nil)
