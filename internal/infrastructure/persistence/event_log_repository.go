package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormEventLog implements shared.EventLog on the ledger_events table
type GormEventLog struct {
	db *gorm.DB
}

// NewGormEventLog creates a new GORM-based event log
func NewGormEventLog(db *gorm.DB) *GormEventLog {
	return &GormEventLog{db: db}
}

// Append inserts records in one statement
func (l *GormEventLog) Append(ctx context.Context, records ...shared.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]models.EventRecordModel, len(records))
	for i := range records {
		rows[i] = models.EventRecordModelFromDomain(records[i])
	}
	return l.db.WithContext(ctx).Create(&rows).Error
}

// FindByAggregate returns an aggregate's events oldest first
func (l *GormEventLog) FindByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]shared.EventRecord, error) {
	var rows []models.EventRecordModel
	if err := l.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]shared.EventRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}

// Ensure GormEventLog implements shared.EventLog
var _ shared.EventLog = (*GormEventLog)(nil)
