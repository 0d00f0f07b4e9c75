package integration

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	financeapp "github.com/storefront/ledger/internal/application/finance"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/cache"
	"github.com/storefront/ledger/internal/infrastructure/event"
	"github.com/storefront/ledger/internal/infrastructure/lock"
	"github.com/storefront/ledger/internal/infrastructure/persistence"
	"github.com/storefront/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

// LedgerTestSetup wires the ledger service to PostgreSQL
type LedgerTestSetup struct {
	DB      *TestDB
	Clock   *shared.FixedClock
	Events  *testutil.RecordingEventHandler
	Service *financeapp.LedgerService
}

// NewLedgerTestSetup creates a ledger service on the shared database. A nil
// locker selects the in-process keyed mutex.
func NewLedgerTestSetup(t *testing.T, locker shared.Locker) *LedgerTestSetup {
	t.Helper()

	testDB := NewSharedTestDB(t)
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	clock := shared.NewFixedClock(testNow)
	eventLog := persistence.NewGormEventLog(testDB.DB)
	recorder := testutil.NewRecordingEventHandler()
	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(event.NewAuditHandler(eventLog, event.NewLedgerEventSerializer(), zap.NewNop()))
	bus.Subscribe(recorder)

	svc := financeapp.NewLedgerService(financeapp.LedgerServiceConfig{
		DocumentRepo:     persistence.NewGormLedgerDocumentRepository(testDB.DB),
		Clock:            clock,
		Locker:           locker,
		IdempotencyStore: store,
		EventBus:         bus,
		EventLog:         eventLog,
		Logger:           zap.NewNop(),
	})

	return &LedgerTestSetup{DB: testDB, Clock: clock, Events: recorder, Service: svc}
}

// createIssuedInvoice creates and issues an invoice totalling 550
func (s *LedgerTestSetup) createIssuedInvoice(t *testing.T, number string, dueOffsetDays int) *financeapp.DocumentResponse {
	t.Helper()
	due := testNow.AddDate(0, 0, dueOffsetDays)
	doc, err := s.Service.CreateDocument(context.Background(), financeapp.CreateDocumentRequest{
		Kind:             string(finance.DocumentKindInvoice),
		DocumentNumber:   number,
		CounterpartyName: "Acme Corp",
		DocumentDate:     due.AddDate(0, 0, -30),
		DueDate:          due,
		Lines: []financeapp.LineItemInput{
			{Description: "Widgets", Quantity: testutil.Dec("2"), UnitPrice: testutil.Dec("250.00"), TaxRate: testutil.Dec("10")},
		},
		IssueImmediately: true,
	})
	require.NoError(t, err)
	return doc
}

func codeOf(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func TestLedger_DocumentLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := NewLedgerTestSetup(t, nil)
	ctx := context.Background()

	doc := setup.createIssuedInvoice(t, "INV-1001", 30)
	assert.Equal(t, "sent", doc.Status)
	assert.True(t, doc.TotalAmount.Equal(testutil.Dec("550")))

	t.Run("document number is unique", func(t *testing.T) {
		_, err := setup.Service.CreateDocument(ctx, financeapp.CreateDocumentRequest{
			Kind:             string(finance.DocumentKindInvoice),
			DocumentNumber:   "INV-1001",
			CounterpartyName: "Other",
			DocumentDate:     testNow,
			DueDate:          testNow.AddDate(0, 0, 30),
			Lines: []financeapp.LineItemInput{
				{Description: "x", Quantity: testutil.Dec("1"), UnitPrice: testutil.Dec("1")},
			},
		})
		assert.Equal(t, "DUPLICATE_NUMBER", codeOf(err))
	})

	t.Run("partial then full payment", func(t *testing.T) {
		result, err := setup.Service.RecordPayment(ctx, doc.ID, financeapp.RecordPaymentRequest{
			Method: "bank_transfer", Amount: testutil.Dec("200"), IdempotencyKey: "pay-1",
		})
		require.NoError(t, err)
		assert.False(t, result.Replayed)
		assert.Equal(t, "partial", result.Document.Status)
		assert.True(t, result.Document.BalanceAmount.Equal(testutil.Dec("350")))

		replay, err := setup.Service.RecordPayment(ctx, doc.ID, financeapp.RecordPaymentRequest{
			Method: "bank_transfer", Amount: testutil.Dec("200"), IdempotencyKey: "pay-1",
		})
		require.NoError(t, err)
		assert.True(t, replay.Replayed)
		assert.Equal(t, result.Payment.ID, replay.Payment.ID)

		_, err = setup.Service.RecordPayment(ctx, doc.ID, financeapp.RecordPaymentRequest{
			Method: "cash", Amount: testutil.Dec("350.01"),
		})
		assert.Equal(t, "EXCEEDS_BALANCE", codeOf(err))

		final, err := setup.Service.RecordPayment(ctx, doc.ID, financeapp.RecordPaymentRequest{
			Method: "check", Amount: testutil.Dec("350"), Reference: "CHK-77",
		})
		require.NoError(t, err)
		assert.Equal(t, "paid", final.Document.Status)
		assert.True(t, final.Document.BalanceAmount.IsZero())
		assert.NotNil(t, final.Document.PaidAt)
	})

	t.Run("reloaded document matches what was saved", func(t *testing.T) {
		reloaded, err := setup.Service.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "paid", reloaded.Status)
		require.Len(t, reloaded.Payments, 2)
		assert.True(t, reloaded.PaidAmount.Equal(testutil.Dec("550")))
		require.Len(t, reloaded.LineItems, 1)
		assert.True(t, reloaded.LineItems[0].TaxAmount.Equal(testutil.Dec("50")))
		assert.Equal(t, int64(2), setup.DB.CountRows("ledger_payments"))
	})

	t.Run("a paid document cannot be cancelled", func(t *testing.T) {
		_, err := setup.Service.CancelDocument(ctx, doc.ID, financeapp.CancelDocumentRequest{Reason: "duplicate"})
		assert.Equal(t, "HAS_PAYMENTS", codeOf(err))
	})

	t.Run("history is persisted", func(t *testing.T) {
		history, err := setup.Service.GetDocumentHistory(ctx, doc.ID)
		require.NoError(t, err)
		types := make([]string, len(history))
		for i, h := range history {
			types[i] = h.EventType
		}
		assert.Contains(t, types, finance.EventTypeLedgerDocumentCreated)
		assert.Contains(t, types, finance.EventTypeLedgerDocumentIssued)
		assert.Len(t, setup.Events.OfType(finance.EventTypePaymentApplied), 2)
	})
}

func TestLedger_CancelDraft(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := NewLedgerTestSetup(t, nil)
	ctx := context.Background()

	draft, err := setup.Service.CreateDocument(ctx, financeapp.CreateDocumentRequest{
		Kind:             string(finance.DocumentKindBill),
		DocumentNumber:   "BILL-7",
		CounterpartyName: "Paper Supplies Ltd",
		DocumentDate:     testNow,
		DueDate:          testNow.AddDate(0, 0, 14),
		Lines: []financeapp.LineItemInput{
			{Description: "Paper", Quantity: testutil.Dec("10"), UnitPrice: testutil.Dec("4.50")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", draft.Status)

	_, err = setup.Service.RecordPayment(ctx, draft.ID, financeapp.RecordPaymentRequest{Method: "cash", Amount: testutil.Dec("1")})
	assert.Equal(t, "INVALID_STATE", codeOf(err))

	cancelled, err := setup.Service.CancelDocument(ctx, draft.ID, financeapp.CancelDocumentRequest{Reason: "entered twice"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "entered twice", cancelled.CancelReason)

	_, err = setup.Service.RecordPayment(ctx, draft.ID, financeapp.RecordPaymentRequest{Method: "cash", Amount: testutil.Dec("1")})
	assert.Equal(t, "DOCUMENT_CANCELLED", codeOf(err))
}

func TestLedger_AgingReport(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := NewLedgerTestSetup(t, nil)
	ctx := context.Background()

	setup.createIssuedInvoice(t, "INV-CUR", 10)
	setup.createIssuedInvoice(t, "INV-45", -45)
	paid := setup.createIssuedInvoice(t, "INV-PAID", -100)
	_, err := setup.Service.RecordPayment(ctx, paid.ID, financeapp.RecordPaymentRequest{Method: "cash", Amount: testutil.Dec("550")})
	require.NoError(t, err)

	report, err := setup.Service.GetAgingReport(ctx, financeapp.AgingReportRequest{Scheme: "standard"})
	require.NoError(t, err)

	assert.Equal(t, testNow, report.AsOf)
	assert.True(t, report.TotalDue.Equal(testutil.Dec("1100")))
	require.Len(t, report.Entries, 2)

	byCategory := map[finance.AgingCategory]finance.AgingBucket{}
	for _, b := range report.Buckets {
		byCategory[b.Category] = b
	}
	assert.Equal(t, 1, byCategory[finance.AgingCurrent].Count)
	assert.Equal(t, 1, byCategory[finance.Aging31To60].Count)
	assert.Equal(t, 0, byCategory[finance.AgingOver90].Count)

	overdue, err := setup.Service.ListDocuments(ctx, financeapp.DocumentListFilter{Status: "overdue"})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "INV-45", overdue[0].DocumentNumber)
}

func TestLedger_ConcurrentPayments(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	lockers := map[string]func(t *testing.T) shared.Locker{
		"keyed mutex": func(t *testing.T) shared.Locker { return lock.NewKeyedMutex() },
		"redis": func(t *testing.T) shared.Locker {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			cfg := lock.DefaultRedisLockerConfig()
			cfg.RetryInterval = 2 * time.Millisecond
			return lock.NewRedisLocker(client, cfg, zap.NewNop())
		},
	}

	for name, newLocker := range lockers {
		t.Run(name, func(t *testing.T) {
			setup := NewLedgerTestSetup(t, newLocker(t))
			doc := setup.createIssuedInvoice(t, "INV-RACE", 30)

			const workers = 10
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
				codes     = map[string]int{}
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := setup.Service.RecordPayment(context.Background(), doc.ID, financeapp.RecordPaymentRequest{
						Method: "bank_transfer", Amount: testutil.Dec("100"),
					})
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						succeeded++
						return
					}
					codes[codeOf(err)]++
				}()
			}
			wg.Wait()

			assert.Equal(t, 5, succeeded)
			assert.Equal(t, map[string]int{"EXCEEDS_BALANCE": 5}, codes)

			reloaded, err := setup.Service.GetDocument(context.Background(), doc.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.PaidAmount.Equal(testutil.Dec("500")))
			assert.True(t, reloaded.BalanceAmount.Equal(testutil.Dec("50")))
			assert.Len(t, reloaded.Payments, 5)
		})
	}
}
