package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormEventLog(t *testing.T) {
	log := NewGormEventLog(newTestDB(t))
	ctx := context.Background()

	docID := uuid.New()
	record := func(eventType string, at time.Time, aggregateID uuid.UUID) shared.EventRecord {
		return shared.EventRecord{
			ID:            uuid.New(),
			EventType:     eventType,
			AggregateType: "LedgerDocument",
			AggregateID:   aggregateID,
			Payload:       []byte(`{"document_number":"INV-1"}`),
			OccurredAt:    at,
		}
	}

	require.NoError(t, log.Append(ctx,
		record("PaymentApplied", testNow.Add(2*time.Minute), docID),
		record("LedgerDocumentCreated", testNow, docID),
	))
	require.NoError(t, log.Append(ctx, record("LedgerDocumentIssued", testNow.Add(time.Minute), docID)))
	require.NoError(t, log.Append(ctx, record("LedgerDocumentCreated", testNow, uuid.New())))
	require.NoError(t, log.Append(ctx))

	records, err := log.FindByAggregate(ctx, docID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "LedgerDocumentCreated", records[0].EventType)
	assert.Equal(t, "LedgerDocumentIssued", records[1].EventType)
	assert.Equal(t, "PaymentApplied", records[2].EventType)
	assert.JSONEq(t, `{"document_number":"INV-1"}`, string(records[0].Payload))

	none, err := log.FindByAggregate(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
