package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	financeapp "github.com/storefront/ledger/internal/application/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/cache"
	"github.com/storefront/ledger/internal/infrastructure/config"
	"github.com/storefront/ledger/internal/infrastructure/event"
	csvimport "github.com/storefront/ledger/internal/infrastructure/import"
	"github.com/storefront/ledger/internal/infrastructure/lock"
	"github.com/storefront/ledger/internal/infrastructure/persistence"
	"github.com/storefront/ledger/internal/infrastructure/storage"
	"github.com/storefront/ledger/internal/interfaces/http/dto"
	"github.com/storefront/ledger/internal/interfaces/http/middleware"
	"github.com/storefront/ledger/internal/interfaces/http/router"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

// testServer is the ledger API over an in-memory sqlite database
type testServer struct {
	engine  *gin.Engine
	clock   *shared.FixedClock
	archive *storage.MemoryArchive
	db      *persistence.Database
}

func newTestServer(t *testing.T, extra ...gin.HandlerFunc) *testServer {
	t.Helper()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate())

	logger := zap.NewNop()
	clock := shared.NewFixedClock(testNow)
	locker := lock.NewKeyedMutex()
	idempotency := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idempotency.Close() })

	eventLog := persistence.NewGormEventLog(db.DB)
	bus := event.NewInMemoryEventBus(logger)
	serializer := event.NewLedgerEventSerializer()
	bus.Subscribe(event.NewAuditHandler(eventLog, serializer, logger))

	documents := persistence.NewGormLedgerDocumentRepository(db.DB)
	accounts := persistence.NewGormBankAccountRepository(db.DB)
	transactions := persistence.NewGormBankTransactionRepository(db.DB)
	archive := storage.NewMemoryArchive()

	ledgerService := financeapp.NewLedgerService(financeapp.LedgerServiceConfig{
		DocumentRepo:     documents,
		Clock:            clock,
		Locker:           locker,
		IdempotencyStore: idempotency,
		EventBus:         bus,
		EventLog:         eventLog,
		EventDecoder:     serializer,
		Logger:           logger,
	})
	reconciliationService := financeapp.NewReconciliationService(financeapp.ReconciliationServiceConfig{
		AccountRepo:        accounts,
		TransactionRepo:    transactions,
		ReconciliationRepo: persistence.NewGormReconciliationRepository(db.DB),
		Clock:              clock,
		Locker:             locker,
		EventBus:           bus,
		Logger:             logger,
	})
	importService := financeapp.NewStatementImportService(financeapp.StatementImportServiceConfig{
		AccountRepo:      accounts,
		TransactionRepo:  transactions,
		Parser:           csvimport.NewStatementParser(),
		Archive:          archive,
		IdempotencyStore: idempotency,
		Clock:            clock,
		Locker:           locker,
		EventBus:         bus,
		Logger:           logger,
	})

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(extra...)
	router.NewRouter(engine).
		Root(http.MethodGet, "/health", NewSystemHandler("ledger", "test", db).Health).
		Register(NewDocumentHandler(ledgerService)).
		Register(NewReconciliationHandler(reconciliationService, importService)).
		Setup()

	return &testServer{engine: engine, clock: clock, archive: archive, db: db}
}

// envelope is a response body with typed data
type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, path, field, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func invoiceBody(number string, due time.Time, issue bool) map[string]any {
	return map[string]any{
		"kind":              "invoice",
		"document_number":   number,
		"counterparty_name": "Acme Retail",
		"document_date":     due.AddDate(0, 0, -30).Format(time.RFC3339),
		"due_date":          due.Format(time.RFC3339),
		"lines": []map[string]any{
			{"description": "Widgets", "quantity": "2", "unit_price": "250.00", "tax_rate": "10"},
		},
		"issue_immediately": issue,
	}
}

func (s *testServer) createInvoice(t *testing.T, number string, due time.Time) financeapp.DocumentResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/documents", invoiceBody(number, due, true))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[financeapp.DocumentResponse](t, w).Data
}
