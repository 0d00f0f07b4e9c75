package telemetry

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// LedgerMetrics holds the business instruments for documents, payments and
// bank reconciliation.
type LedgerMetrics struct {
	documentsCreated    *Counter
	paymentsApplied     *Counter
	paymentAmount       *Histogram
	transactionsMatched *Counter
	matchedAmount       *Histogram
	transactionsUnmatch *Counter
	reconciliations     *Counter
	statementLines      *Counter
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &LedgerMetrics{}
	var err error

	counters := []struct {
		dst        **Counter
		name, desc string
		unit       string
	}{
		{&m.documentsCreated, "ledger_documents_created_total", "Invoices and bills created", "{document}"},
		{&m.paymentsApplied, "ledger_payments_applied_total", "Payments applied to documents", "{payment}"},
		{&m.transactionsMatched, "ledger_transactions_matched_total", "Bank and GL transaction pairs matched", "{pair}"},
		{&m.transactionsUnmatch, "ledger_transactions_unmatched_total", "Bank and GL transaction pairs unmatched", "{pair}"},
		{&m.reconciliations, "ledger_reconciliations_completed_total", "Completed bank reconciliations", "{reconciliation}"},
		{&m.statementLines, "ledger_statement_lines_imported_total", "Bank statement lines imported", "{line}"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	if m.paymentAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_payment_amount",
		Description: "Applied payment amounts",
		Unit:        "{currency}",
		Boundaries:  AmountBuckets,
	}); err != nil {
		return nil, err
	}
	if m.matchedAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_matched_amount",
		Description: "Amounts of matched transaction pairs",
		Unit:        "{currency}",
		Boundaries:  AmountBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDocumentCreated counts a new document
func (m *LedgerMetrics) RecordDocumentCreated(ctx context.Context, kind finance.DocumentKind) {
	m.documentsCreated.Inc(ctx, AttrDocumentKind.String(string(kind)))
}

// RecordPaymentApplied counts a payment and records its amount
func (m *LedgerMetrics) RecordPaymentApplied(ctx context.Context, kind finance.DocumentKind, method finance.PaymentMethod, amount decimal.Decimal) {
	kindAttr := AttrDocumentKind.String(string(kind))
	methodAttr := AttrPaymentMethod.String(string(method))
	m.paymentsApplied.Inc(ctx, kindAttr, methodAttr)
	m.paymentAmount.Record(ctx, amount.InexactFloat64(), kindAttr, methodAttr)
}

// RecordTransactionsMatched counts a matched pair
func (m *LedgerMetrics) RecordTransactionsMatched(ctx context.Context, amount decimal.Decimal) {
	m.transactionsMatched.Inc(ctx)
	m.matchedAmount.Record(ctx, amount.InexactFloat64())
}

// RecordTransactionsUnmatched counts an unmatched pair
func (m *LedgerMetrics) RecordTransactionsUnmatched(ctx context.Context) {
	m.transactionsUnmatch.Inc(ctx)
}

// RecordReconciliationCompleted counts a committed reconciliation
func (m *LedgerMetrics) RecordReconciliationCompleted(ctx context.Context) {
	m.reconciliations.Inc(ctx)
}

// RecordStatementImported counts the lines of an imported statement
func (m *LedgerMetrics) RecordStatementImported(ctx context.Context, transactions int) {
	m.statementLines.Add(ctx, int64(transactions))
}
