package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/cache"
	"github.com/storefront/ledger/internal/infrastructure/event"
	"github.com/storefront/ledger/internal/infrastructure/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	svc       *LedgerService
	repo      *memoryDocumentRepo
	store     *cache.InMemoryIdempotencyStore
	publisher *recordingPublisher
	clock     *shared.FixedClock
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		repo:      newMemoryDocumentRepo(),
		store:     cache.NewInMemoryIdempotencyStore(),
		publisher: &recordingPublisher{},
		clock:     shared.NewFixedClock(testNow),
	}
	t.Cleanup(func() { _ = f.store.Close() })
	f.svc = NewLedgerService(LedgerServiceConfig{
		DocumentRepo:     f.repo,
		Clock:            f.clock,
		Locker:           lock.NewKeyedMutex(),
		IdempotencyStore: f.store,
		EventBus:         f.publisher,
	})
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func documentRequest(kind, number, amount string, dueInDays int, issue bool) CreateDocumentRequest {
	docDate := testNow.AddDate(0, 0, -10)
	if dueInDays < -10 {
		docDate = testNow.AddDate(0, 0, dueInDays)
	}
	return CreateDocumentRequest{
		Kind:             kind,
		DocumentNumber:   number,
		CounterpartyName: "Acme Corp",
		DocumentDate:     docDate,
		DueDate:          testNow.AddDate(0, 0, dueInDays),
		Lines: []LineItemInput{
			{Description: "Consulting", Quantity: dec("1"), UnitPrice: dec(amount), TaxRate: decimal.Zero},
		},
		IssueImmediately: issue,
	}
}

func (f *ledgerFixture) createDocument(t *testing.T, kind, number, amount string, dueInDays int) *DocumentResponse {
	t.Helper()
	doc, err := f.svc.CreateDocument(context.Background(), documentRequest(kind, number, amount, dueInDays, true))
	require.NoError(t, err)
	return doc
}

func payment(amount, key string) RecordPaymentRequest {
	return RecordPaymentRequest{Method: "bank_transfer", Amount: dec(amount), IdempotencyKey: key}
}

func TestLedgerService_CreateDocument(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	t.Run("invoice is issued as sent", func(t *testing.T) {
		doc := f.createDocument(t, "invoice", "INV-001", "1000", 30)
		assert.Equal(t, "sent", doc.Status)
		assert.True(t, doc.TotalAmount.Equal(dec("1000")))
		assert.True(t, doc.BalanceAmount.Equal(dec("1000")))
		assert.Contains(t, f.publisher.types(), finance.EventTypeLedgerDocumentCreated)
		assert.Contains(t, f.publisher.types(), finance.EventTypeLedgerDocumentIssued)
	})

	t.Run("bill is issued as received", func(t *testing.T) {
		doc := f.createDocument(t, "bill", "BILL-001", "250", 30)
		assert.Equal(t, "received", doc.Status)
	})

	t.Run("draft is not issued", func(t *testing.T) {
		doc, err := f.svc.CreateDocument(ctx, documentRequest("invoice", "INV-DRAFT", "100", 30, false))
		require.NoError(t, err)
		assert.Equal(t, "draft", doc.Status)
	})

	t.Run("duplicate number is a conflict", func(t *testing.T) {
		_, err := f.svc.CreateDocument(ctx, documentRequest("invoice", "INV-001", "10", 30, true))
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("same number on the other kind is allowed", func(t *testing.T) {
		_, err := f.svc.CreateDocument(ctx, documentRequest("bill", "INV-001", "10", 30, true))
		assert.NoError(t, err)
	})

	t.Run("invalid document is rejected", func(t *testing.T) {
		req := documentRequest("invoice", "INV-BAD", "100", 30, true)
		req.Lines = nil
		_, err := f.svc.CreateDocument(ctx, req)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestLedgerService_RecordPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("partial then full payment", func(t *testing.T) {
		f := newLedgerFixture(t)
		doc := f.createDocument(t, "invoice", "INV-100", "1000", 30)

		res, err := f.svc.RecordPayment(ctx, doc.ID, payment("400", ""))
		require.NoError(t, err)
		assert.False(t, res.Replayed)
		assert.Equal(t, "partial", res.Document.Status)
		assert.True(t, res.Document.PaidAmount.Equal(dec("400")))
		assert.True(t, res.Document.BalanceAmount.Equal(dec("600")))

		res, err = f.svc.RecordPayment(ctx, doc.ID, payment("600", ""))
		require.NoError(t, err)
		assert.Equal(t, "paid", res.Document.Status)
		assert.True(t, res.Document.BalanceAmount.IsZero())
		assert.NotNil(t, res.Document.PaidAt)
		assert.Len(t, res.Document.Payments, 2)
		assert.Contains(t, f.publisher.types(), finance.EventTypePaymentApplied)
	})

	t.Run("overpayment leaves the document unchanged", func(t *testing.T) {
		f := newLedgerFixture(t)
		doc := f.createDocument(t, "bill", "BILL-100", "500", 30)

		_, err := f.svc.RecordPayment(ctx, doc.ID, payment("500.01", ""))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrValidation)

		got, err := f.svc.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, "received", got.Status)
		assert.Empty(t, got.Payments)
	})

	t.Run("draft document cannot be paid", func(t *testing.T) {
		f := newLedgerFixture(t)
		doc, err := f.svc.CreateDocument(ctx, documentRequest("invoice", "INV-D", "100", 30, false))
		require.NoError(t, err)

		_, err = f.svc.RecordPayment(ctx, doc.ID, payment("10", ""))
		assert.ErrorIs(t, err, shared.ErrState)
	})

	t.Run("cancelled document cannot be paid", func(t *testing.T) {
		f := newLedgerFixture(t)
		doc := f.createDocument(t, "invoice", "INV-C", "100", 30)
		_, err := f.svc.CancelDocument(ctx, doc.ID, CancelDocumentRequest{Reason: "duplicate"})
		require.NoError(t, err)

		_, err = f.svc.RecordPayment(ctx, doc.ID, payment("10", ""))
		assert.ErrorIs(t, err, shared.ErrState)
	})

	t.Run("unknown document", func(t *testing.T) {
		f := newLedgerFixture(t)
		_, err := f.svc.RecordPayment(ctx, uuid.New(), payment("10", ""))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("overdue document moves to paid", func(t *testing.T) {
		f := newLedgerFixture(t)
		doc := f.createDocument(t, "invoice", "INV-OD", "300", -5)
		assert.Equal(t, "overdue", doc.Status)

		res, err := f.svc.RecordPayment(ctx, doc.ID, payment("100", ""))
		require.NoError(t, err)
		assert.Equal(t, "overdue", res.Document.Status)

		res, err = f.svc.RecordPayment(ctx, doc.ID, payment("200", ""))
		require.NoError(t, err)
		assert.Equal(t, "paid", res.Document.Status)
	})
}

func TestLedgerService_RecordPayment_Idempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("retry with the same key is replayed", func(t *testing.T) {
		f := newLedgerFixture(t)
		doc := f.createDocument(t, "invoice", "INV-200", "1000", 30)

		first, err := f.svc.RecordPayment(ctx, doc.ID, payment("250", "key-1"))
		require.NoError(t, err)
		second, err := f.svc.RecordPayment(ctx, doc.ID, payment("250", "key-1"))
		require.NoError(t, err)

		assert.True(t, second.Replayed)
		assert.Equal(t, first.Payment.ID, second.Payment.ID)
		assert.Len(t, second.Document.Payments, 1)
		assert.True(t, second.Document.PaidAmount.Equal(dec("250")))
		assert.Equal(t, 1, f.repo.saves)
	})

	t.Run("key in flight elsewhere is a conflict", func(t *testing.T) {
		f := newLedgerFixture(t)
		doc := f.createDocument(t, "invoice", "INV-201", "1000", 30)
		_, err := f.store.MarkProcessed(ctx, paymentIdempotencyKey(doc.ID, "key-2"), time.Hour)
		require.NoError(t, err)

		_, err = f.svc.RecordPayment(ctx, doc.ID, payment("100", "key-2"))
		assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)
	})

	t.Run("failed payment releases its key", func(t *testing.T) {
		f := newLedgerFixture(t)
		doc := f.createDocument(t, "invoice", "INV-202", "100", 30)

		_, err := f.svc.RecordPayment(ctx, doc.ID, payment("150", "key-3"))
		require.Error(t, err)

		res, err := f.svc.RecordPayment(ctx, doc.ID, payment("100", "key-3"))
		require.NoError(t, err)
		assert.False(t, res.Replayed)
		assert.Equal(t, "paid", res.Document.Status)
	})
}

func TestLedgerService_RecordPayment_Concurrent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, "invoice", "INV-300", "1000", 30)

	const workers = 12
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordPayment(ctx, doc.ID, payment("100", ""))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, rejected := 0, 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// Once paid, the document no longer accepts payments
		assert.ErrorIs(t, err, shared.ErrState)
		rejected++
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 2, rejected)

	got, err := f.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", got.Status)
	assert.True(t, got.PaidAmount.Equal(dec("1000")))
	assert.True(t, got.BalanceAmount.IsZero())
	assert.Len(t, got.Payments, 10)
}

func TestLedgerService_IssueAndCancel(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateDocument(ctx, documentRequest("bill", "BILL-400", "80", 30, false))
	require.NoError(t, err)

	issued, err := f.svc.IssueDocument(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "received", issued.Status)
	assert.NotNil(t, issued.IssuedAt)

	_, err = f.svc.IssueDocument(ctx, draft.ID)
	assert.ErrorIs(t, err, shared.ErrState)

	_, err = f.svc.RecordPayment(ctx, draft.ID, payment("10", ""))
	require.NoError(t, err)

	_, err = f.svc.CancelDocument(ctx, draft.ID, CancelDocumentRequest{Reason: "entered twice"})
	assert.ErrorIs(t, err, shared.ErrState)

	other := f.createDocument(t, "bill", "BILL-401", "80", 30)
	cancelled, err := f.svc.CancelDocument(ctx, other.ID, CancelDocumentRequest{Reason: "entered twice"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "entered twice", cancelled.CancelReason)
}

func TestLedgerService_ListDocuments(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.createDocument(t, "invoice", "INV-500", "100", 10)
	f.createDocument(t, "invoice", "INV-501", "100", 1)
	f.createDocument(t, "bill", "BILL-500", "100", 10)

	// Two days later INV-501 is overdue without any write
	f.clock.Advance(48 * time.Hour)

	overdue, err := f.svc.ListDocuments(ctx, DocumentListFilter{Status: "overdue"})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "INV-501", overdue[0].DocumentNumber)

	invoices, err := f.svc.ListDocuments(ctx, DocumentListFilter{Kind: "invoice"})
	require.NoError(t, err)
	assert.Len(t, invoices, 2)

	bills, err := f.svc.ListDocuments(ctx, DocumentListFilter{Search: "bill"})
	require.NoError(t, err)
	assert.Len(t, bills, 1)

	_, err = f.svc.ListDocuments(ctx, DocumentListFilter{Status: "bogus"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestLedgerService_ListDocumentsReadsEveryPage(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		f.createDocument(t, "invoice", fmt.Sprintf("INV-%03d", i), "100", 30)
	}
	f.createDocument(t, "invoice", "INV-999", "100", -5)

	overdue, err := f.svc.ListDocuments(ctx, DocumentListFilter{Status: "overdue"})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "INV-999", overdue[0].DocumentNumber)
	assert.Equal(t, 2, f.repo.listCalls)

	all, err := f.svc.ListDocuments(ctx, DocumentListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 101)
}

func TestLedgerService_GetAgingReport(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.createDocument(t, "invoice", "INV-600", "600", 10)
	f.createDocument(t, "invoice", "INV-601", "400", -45)
	paid := f.createDocument(t, "invoice", "INV-602", "50", -3)
	_, err := f.svc.RecordPayment(ctx, paid.ID, payment("50", ""))
	require.NoError(t, err)
	f.createDocument(t, "bill", "BILL-600", "999", -3)

	t.Run("binary scheme by default", func(t *testing.T) {
		report, err := f.svc.GetAgingReport(ctx, AgingReportRequest{Kind: "invoice"})
		require.NoError(t, err)
		assert.Equal(t, finance.AgingSchemeBinary, report.Scheme)
		assert.True(t, report.TotalDue.Equal(dec("1000")))
		require.Len(t, report.Buckets, 2)
		assert.Equal(t, finance.AgingCurrent, report.Buckets[0].Category)
		assert.True(t, report.Buckets[0].Amount.Equal(dec("600")))
		assert.True(t, report.Buckets[0].Percent.Equal(dec("60")))
		assert.Equal(t, 1, report.Buckets[1].Count)
		assert.True(t, report.Buckets[1].Percent.Equal(dec("40")))
	})

	t.Run("standard scheme", func(t *testing.T) {
		report, err := f.svc.GetAgingReport(ctx, AgingReportRequest{Kind: "invoice", Scheme: "standard"})
		require.NoError(t, err)
		require.Len(t, report.Buckets, 5)
		assert.Equal(t, finance.Aging31To60, report.Buckets[2].Category)
		assert.Equal(t, 1, report.Buckets[2].Count)
	})

	t.Run("as of date in the future", func(t *testing.T) {
		report, err := f.svc.GetAgingReport(ctx, AgingReportRequest{Kind: "invoice", AsOf: testNow.AddDate(0, 0, 11)})
		require.NoError(t, err)
		assert.True(t, report.Buckets[0].Amount.IsZero())
		assert.Equal(t, 2, report.Buckets[1].Count)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := f.svc.GetAgingReport(ctx, AgingReportRequest{Scheme: "weekly"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestLedgerService_GetDocumentHistory(t *testing.T) {
	ctx := context.Background()
	log := &memoryEventLog{}
	serializer := event.NewLedgerEventSerializer()
	bus := event.NewInMemoryEventBus(nil)
	bus.Subscribe(event.NewAuditHandler(log, serializer, nil))

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	svc := NewLedgerService(LedgerServiceConfig{
		DocumentRepo:     newMemoryDocumentRepo(),
		Clock:            shared.NewFixedClock(testNow),
		Locker:           lock.NewKeyedMutex(),
		IdempotencyStore: store,
		EventBus:         bus,
		EventLog:         log,
		EventDecoder:     serializer,
	})

	doc, err := svc.CreateDocument(ctx, documentRequest("invoice", "INV-H", "500", 30, true))
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, doc.ID, payment("200", "pay-1"))
	require.NoError(t, err)

	require.NoError(t, log.Append(ctx, shared.EventRecord{
		ID:            uuid.New(),
		EventType:     "LegacyNoteAdded",
		AggregateType: finance.AggregateTypeLedgerDocument,
		AggregateID:   doc.ID,
		Payload:       []byte(`{"note":"imported"}`),
		OccurredAt:    testNow,
	}))

	history, err := svc.GetDocumentHistory(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, finance.EventTypeLedgerDocumentCreated, history[0].EventType)
	assert.Equal(t, finance.EventTypeLedgerDocumentIssued, history[1].EventType)
	assert.Equal(t, finance.EventTypePaymentApplied, history[2].EventType)

	applied, ok := history[2].Payload.(*finance.PaymentAppliedEvent)
	require.True(t, ok, "payload is %T", history[2].Payload)
	assert.Equal(t, "INV-H", applied.DocumentNumber)
	assert.True(t, applied.Amount.Equal(decimal.NewFromInt(200)))
	assert.True(t, applied.BalanceAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, doc.ID, applied.AggregateID())

	assert.Equal(t, json.RawMessage(`{"note":"imported"}`), history[3].Payload)

	_, err = svc.GetDocumentHistory(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
