package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventRecord is a persisted domain event
type EventRecord struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   uuid.UUID
	Payload       []byte
	OccurredAt    time.Time
}

// EventLog is the append-only audit trail of domain events
type EventLog interface {
	Append(ctx context.Context, records ...EventRecord) error
	// FindByAggregate returns the aggregate's events oldest first
	FindByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]EventRecord, error)
}

// EventDecoder restores a typed domain event from its stored payload
type EventDecoder interface {
	Deserialize(eventType string, data []byte) (DomainEvent, error)
}
