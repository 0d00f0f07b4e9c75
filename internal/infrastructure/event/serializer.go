package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
)

// EventSerializer handles JSON serialization/deserialization of domain events
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type // eventType -> Go type
}

// NewEventSerializer creates a new event serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]reflect.Type),
	}
}

// NewLedgerEventSerializer creates a serializer with every ledger event registered
func NewLedgerEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register(finance.EventTypeLedgerDocumentCreated, &finance.LedgerDocumentCreatedEvent{})
	s.Register(finance.EventTypeLedgerDocumentIssued, &finance.LedgerDocumentIssuedEvent{})
	s.Register(finance.EventTypeLedgerDocumentCancelled, &finance.LedgerDocumentCancelledEvent{})
	s.Register(finance.EventTypePaymentApplied, &finance.PaymentAppliedEvent{})
	s.Register(finance.EventTypeTransactionsMatched, &finance.TransactionsMatchedEvent{})
	s.Register(finance.EventTypeTransactionsUnmatched, &finance.TransactionsUnmatchedEvent{})
	s.Register(finance.EventTypeReconciliationCompleted, &finance.ReconciliationCompletedEvent{})
	s.Register(finance.EventTypeStatementImported, &finance.StatementImportedEvent{})
	return s
}

// Register registers an event type for deserialization
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Serialize serializes a domain event to JSON bytes
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Deserialize deserializes JSON bytes to a registered domain event type
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[eventType]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	eventPtr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, eventPtr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	event, ok := eventPtr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("deserialized object does not implement DomainEvent")
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}
