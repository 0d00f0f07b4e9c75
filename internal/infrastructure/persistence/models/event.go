package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/shared"
)

// EventRecordModel is one row of the append-only ledger_events audit table
type EventRecordModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventType     string    `gorm:"type:varchar(100);not null;index"`
	AggregateType string    `gorm:"type:varchar(100);not null"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null;index:idx_ledger_events_aggregate,priority:1"`
	Payload       string    `gorm:"type:jsonb;not null"`
	OccurredAt    time.Time `gorm:"not null;index:idx_ledger_events_aggregate,priority:2"`
}

// TableName returns the table name for GORM
func (EventRecordModel) TableName() string {
	return "ledger_events"
}

// ToDomain converts the persistence model to a shared.EventRecord
func (m *EventRecordModel) ToDomain() shared.EventRecord {
	return shared.EventRecord{
		ID:            m.ID,
		EventType:     m.EventType,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		Payload:       []byte(m.Payload),
		OccurredAt:    m.OccurredAt,
	}
}

// EventRecordModelFromDomain creates a persistence model from a shared.EventRecord
func EventRecordModelFromDomain(r shared.EventRecord) EventRecordModel {
	return EventRecordModel{
		ID:            r.ID,
		EventType:     r.EventType,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		Payload:       string(r.Payload),
		OccurredAt:    r.OccurredAt,
	}
}

// AllModels lists every model, in dependency order, for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&LedgerDocumentModel{},
		&PaymentModel{},
		&BankAccountModel{},
		&BankTransactionModel{},
		&GLTransactionModel{},
		&ReconciliationModel{},
		&EventRecordModel{},
	}
}
