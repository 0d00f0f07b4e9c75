package event

import (
	"context"
	"fmt"

	"github.com/storefront/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditHandler appends every event it receives to the event log
type AuditHandler struct {
	log        shared.EventLog
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewAuditHandler creates an audit handler
func NewAuditHandler(log shared.EventLog, serializer *EventSerializer, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{log: log, serializer: serializer, logger: logger}
}

// EventTypes is empty: the audit handler receives all events
func (h *AuditHandler) EventTypes() []string {
	return nil
}

// Handle serializes and appends the event
func (h *AuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.serializer.IsRegistered(event.EventType()) {
		h.logger.Warn("Recording unregistered event type; history will return its raw payload",
			zap.String("event_type", event.EventType()))
	}
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", event.EventType(), err)
	}
	record := shared.EventRecord{
		ID:            event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Payload:       payload,
		OccurredAt:    event.OccurredAt(),
	}
	if err := h.log.Append(ctx, record); err != nil {
		return fmt.Errorf("append %s: %w", event.EventType(), err)
	}
	h.logger.Debug("Event recorded", zap.String("event_id", record.ID.String()), zap.String("event_type", record.EventType))
	return nil
}

// Ensure AuditHandler implements EventHandler
var _ shared.EventHandler = (*AuditHandler)(nil)
