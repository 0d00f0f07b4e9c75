package finance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// LedgerMetrics records business metrics for ledger activity
type LedgerMetrics interface {
	RecordPaymentApplied(ctx context.Context, kind finance.DocumentKind, method finance.PaymentMethod, amount decimal.Decimal)
	RecordDocumentCreated(ctx context.Context, kind finance.DocumentKind)
	RecordTransactionsMatched(ctx context.Context, amount decimal.Decimal)
	RecordTransactionsUnmatched(ctx context.Context)
	RecordReconciliationCompleted(ctx context.Context)
	RecordStatementImported(ctx context.Context, transactions int)
}

// LedgerEventHandler writes an audit log line and updates metrics for every ledger event
type LedgerEventHandler struct {
	logger  *zap.Logger
	metrics LedgerMetrics
}

// NewLedgerEventHandler creates a new ledger event handler
func NewLedgerEventHandler(logger *zap.Logger) *LedgerEventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerEventHandler{logger: logger}
}

// WithMetrics sets the metrics recorder
func (h *LedgerEventHandler) WithMetrics(metrics LedgerMetrics) *LedgerEventHandler {
	h.metrics = metrics
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LedgerEventHandler) EventTypes() []string {
	return []string{
		finance.EventTypeLedgerDocumentCreated,
		finance.EventTypeLedgerDocumentIssued,
		finance.EventTypeLedgerDocumentCancelled,
		finance.EventTypePaymentApplied,
		finance.EventTypeTransactionsMatched,
		finance.EventTypeTransactionsUnmatched,
		finance.EventTypeReconciliationCompleted,
		finance.EventTypeStatementImported,
	}
}

// Handle processes a ledger event
func (h *LedgerEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *finance.LedgerDocumentCreatedEvent:
		fields = append(fields, zap.String("document_number", e.DocumentNumber), zap.String("total", e.TotalAmount.String()))
		if h.metrics != nil {
			h.metrics.RecordDocumentCreated(ctx, e.Kind)
		}
	case *finance.LedgerDocumentIssuedEvent, *finance.LedgerDocumentCancelledEvent:
	case *finance.PaymentAppliedEvent:
		fields = append(fields,
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("amount", e.Amount.String()),
			zap.String("balance", e.BalanceAmount.String()),
			zap.String("status", string(e.Status)),
		)
		if h.metrics != nil {
			h.metrics.RecordPaymentApplied(ctx, e.Kind, e.Method, e.Amount)
		}
	case *finance.TransactionsMatchedEvent:
		fields = append(fields,
			zap.String("bank_transaction_id", e.BankTransactionID.String()),
			zap.String("gl_transaction_id", e.GLTransactionID.String()),
		)
		if h.metrics != nil {
			h.metrics.RecordTransactionsMatched(ctx, e.Amount)
		}
	case *finance.TransactionsUnmatchedEvent:
		fields = append(fields,
			zap.String("bank_transaction_id", e.BankTransactionID.String()),
			zap.String("gl_transaction_id", e.GLTransactionID.String()),
		)
		if h.metrics != nil {
			h.metrics.RecordTransactionsUnmatched(ctx)
		}
	case *finance.ReconciliationCompletedEvent:
		fields = append(fields,
			zap.String("reconciliation_id", e.ReconciliationID.String()),
			zap.String("statement_balance", e.StatementBalance.String()),
		)
		if h.metrics != nil {
			h.metrics.RecordReconciliationCompleted(ctx)
		}
	case *finance.StatementImportedEvent:
		fields = append(fields, zap.String("file_name", e.FileName), zap.Int("transactions", e.Transactions))
		if h.metrics != nil {
			h.metrics.RecordStatementImported(ctx, e.Transactions)
		}
	default:
		return fmt.Errorf("unexpected event type: %T", event)
	}

	h.logger.Info("Ledger event", fields...)
	return nil
}

// Ensure LedgerEventHandler implements shared.EventHandler
var _ shared.EventHandler = (*LedgerEventHandler)(nil)
