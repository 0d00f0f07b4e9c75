package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LedgerServiceConfig holds the dependencies of LedgerService
type LedgerServiceConfig struct {
	DocumentRepo     finance.LedgerDocumentRepository
	Clock            shared.Clock
	Locker           shared.Locker
	IdempotencyStore shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	EventBus         shared.EventPublisher
	EventLog         shared.EventLog
	EventDecoder     shared.EventDecoder
	Logger           *zap.Logger
	AgingScheme      finance.AgingScheme
}

// LedgerService handles invoice and bill lifecycle, payments and aging
type LedgerService struct {
	documentRepo     finance.LedgerDocumentRepository
	clock            shared.Clock
	locker           shared.Locker
	idempotencyStore shared.IdempotencyStore
	idempotencyTTL   time.Duration
	eventBus         shared.EventPublisher
	eventLog         shared.EventLog
	eventDecoder     shared.EventDecoder
	logger           *zap.Logger
	applier          *finance.PaymentApplier
	agingScheme      finance.AgingScheme
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(cfg LedgerServiceConfig) *LedgerService {
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = shared.DefaultIdempotencyConfig().TTL
	}
	if !cfg.AgingScheme.IsValid() {
		cfg.AgingScheme = finance.AgingSchemeBinary
	}
	return &LedgerService{
		documentRepo:     cfg.DocumentRepo,
		clock:            cfg.Clock,
		locker:           cfg.Locker,
		idempotencyStore: cfg.IdempotencyStore,
		idempotencyTTL:   cfg.IdempotencyTTL,
		eventBus:         cfg.EventBus,
		eventLog:         cfg.EventLog,
		eventDecoder:     cfg.EventDecoder,
		logger:           cfg.Logger,
		applier:          finance.NewPaymentApplier(finance.WithPaymentClock(cfg.Clock)),
		agingScheme:      cfg.AgingScheme,
	}
}

// CreateDocument creates a draft invoice or bill, optionally issuing it straight away
func (s *LedgerService) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_document")
	defer span.End()

	kind := finance.DocumentKind(req.Kind)
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentKind, req.Kind, telemetry.SpanAttrDocumentNumber, req.DocumentNumber)

	exists, err := s.documentRepo.ExistsByNumber(ctx, kind, strings.TrimSpace(req.DocumentNumber))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		return nil, shared.NewConflictError("DUPLICATE_NUMBER", "%s number %s already exists", req.Kind, req.DocumentNumber)
	}

	lines := make([]finance.LineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = finance.LineInput{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
		}
	}
	now := s.clock.Now()
	doc, err := finance.NewLedgerDocument(finance.NewDocumentInput{
		Kind:                kind,
		DocumentNumber:      req.DocumentNumber,
		CounterpartyName:    req.CounterpartyName,
		CounterpartyContact: req.CounterpartyContact,
		DocumentDate:        req.DocumentDate,
		DueDate:             req.DueDate,
		Lines:               lines,
		ShippingCost:        decimalOrZero(req.ShippingCost),
		DiscountAmount:      decimalOrZero(req.DiscountAmount),
		Notes:               req.Notes,
	}, now)
	if err != nil {
		return nil, err
	}
	if req.IssueImmediately {
		if err := doc.Issue(now); err != nil {
			return nil, err
		}
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	publishEvents(ctx, s.eventBus, s.logger, doc)

	s.logger.Info("Ledger document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(doc.Kind)),
		zap.String("number", doc.DocumentNumber),
		zap.String("total", doc.TotalAmount.String()),
	)

	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// GetDocument returns a document with its status refreshed against the clock
func (s *LedgerService) GetDocument(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.RefreshStatus(s.clock.Now())
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// GetDocumentHistory returns the recorded events of a document, oldest first.
// Without an event log the history is empty. Payloads the decoder cannot
// restore are returned as stored.
func (s *LedgerService) GetDocumentHistory(ctx context.Context, id uuid.UUID) ([]EventRecordResponse, error) {
	if _, err := s.documentRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if s.eventLog == nil {
		return []EventRecordResponse{}, nil
	}
	records, err := s.eventLog.FindByAggregate(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToEventRecordResponses(records)
	if s.eventDecoder == nil {
		return out, nil
	}
	for i, r := range records {
		evt, err := s.eventDecoder.Deserialize(r.EventType, r.Payload)
		if err != nil {
			s.logger.Warn("Event payload left undecoded",
				zap.String("event_id", r.ID.String()),
				zap.String("event_type", r.EventType),
				zap.Error(err))
			continue
		}
		out[i].Payload = evt
	}
	return out, nil
}

// ListDocuments lists every document matching the filter. Status is filtered
// after refresh because overdue depends on the current date, so the repository
// is read page by page until it runs out.
func (s *LedgerService) ListDocuments(ctx context.Context, filter DocumentListFilter) ([]DocumentResponse, error) {
	domainFilter := finance.DocumentFilter{Filter: shared.DefaultFilter()}
	domainFilter.Search = filter.Search
	if filter.Kind != "" {
		kind := finance.DocumentKind(filter.Kind)
		if !kind.IsValid() {
			return nil, shared.NewValidationError("INVALID_KIND", "Unknown document kind %q", filter.Kind)
		}
		domainFilter.Kind = &kind
	}
	var status finance.DocumentStatus
	if filter.Status != "" {
		status = finance.DocumentStatus(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewValidationError("INVALID_STATUS", "Unknown document status %q", filter.Status)
		}
	}

	now := s.clock.Now()
	result := make([]finance.LedgerDocument, 0)
	for page := 1; ; page++ {
		domainFilter.Page = page
		docs, err := s.documentRepo.FindAll(ctx, domainFilter)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			docs[i].RefreshStatus(now)
			if status != "" && docs[i].Status != status {
				continue
			}
			result = append(result, docs[i])
		}
		if len(docs) < domainFilter.Limit() {
			break
		}
	}
	return ToDocumentResponses(result), nil
}

// IssueDocument moves a draft document to sent (invoice) or received (bill)
func (s *LedgerService) IssueDocument(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	return s.mutateDocument(ctx, "issue_document", id, func(doc *finance.LedgerDocument, now time.Time) error {
		return doc.Issue(now)
	})
}

// CancelDocument cancels a document that has received no payments
func (s *LedgerService) CancelDocument(ctx context.Context, id uuid.UUID, req CancelDocumentRequest) (*DocumentResponse, error) {
	return s.mutateDocument(ctx, "cancel_document", id, func(doc *finance.LedgerDocument, now time.Time) error {
		return doc.Cancel(req.Reason, now)
	})
}

func (s *LedgerService) mutateDocument(ctx context.Context, method string, id uuid.UUID, fn func(*finance.LedgerDocument, time.Time) error) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", method)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, id.String())

	unlock, err := acquireLock(ctx, s.locker, shared.DocumentLockKey(id))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	doc, err := s.documentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(doc, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.documentRepo.SaveWithLock(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	publishEvents(ctx, s.eventBus, s.logger, doc)

	s.logger.Info("Ledger document updated",
		zap.String("operation", method),
		zap.String("document_id", doc.ID.String()),
		zap.String("status", string(doc.Status)),
	)

	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// RecordPayment applies a payment to a document under the document lock.
// A request whose idempotency key was already applied returns the earlier
// payment without changing the document.
func (s *LedgerService) RecordPayment(ctx context.Context, id uuid.UUID, req RecordPaymentRequest) (*PaymentResultResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "record_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, id.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		"payment.method", req.Method,
		telemetry.SpanAttrIdempotencyKey, req.IdempotencyKey,
	)

	unlock, err := acquireLock(ctx, s.locker, shared.DocumentLockKey(id))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	doc, err := s.documentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	paymentReq := finance.PaymentRequest{
		Amount:         req.Amount,
		Method:         finance.PaymentMethod(req.Method),
		Date:           req.Date,
		Reference:      req.Reference,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
	}

	// A key already on the document is a replay and never touches the store
	if existing, ok := doc.Payments.FindByIdempotencyKey(paymentReq.IdempotencyKey); ok {
		telemetry.AddEvent(span, "payment_replayed")
		return s.paymentResult(doc, existing, true), nil
	}

	storeKey := ""
	if paymentReq.IdempotencyKey != "" && s.idempotencyStore != nil {
		storeKey = paymentIdempotencyKey(id, paymentReq.IdempotencyKey)
		marked, err := s.idempotencyStore.MarkProcessed(ctx, storeKey, s.idempotencyTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if !marked {
			return nil, shared.NewConflictError("ALREADY_PROCESSED",
				"Payment with idempotency key %s is already being processed", paymentReq.IdempotencyKey)
		}
	}

	result, err := s.applier.Apply(doc, paymentReq)
	if err == nil {
		err = s.documentRepo.SaveWithLock(ctx, doc)
	}
	if err != nil {
		s.releaseKey(ctx, storeKey)
		telemetry.RecordError(span, err)
		return nil, err
	}
	publishEvents(ctx, s.eventBus, s.logger, doc)

	s.logger.Info("Payment recorded",
		zap.String("document_id", doc.ID.String()),
		zap.String("payment_id", result.Payment.ID.String()),
		zap.String("amount", result.Payment.Amount.String()),
		zap.String("balance", doc.BalanceAmount.String()),
		zap.String("status", string(doc.Status)),
	)

	return s.paymentResult(doc, result.Payment, result.Replayed), nil
}

// PaymentResultResponse is returned after a payment is recorded or replayed
type PaymentResultResponse struct {
	Document DocumentResponse `json:"document"`
	Payment  PaymentResponse  `json:"payment"`
	Replayed bool             `json:"replayed"`
}

func (s *LedgerService) paymentResult(doc *finance.LedgerDocument, p *finance.Payment, replayed bool) *PaymentResultResponse {
	return &PaymentResultResponse{
		Document: ToDocumentResponse(doc),
		Payment:  ToPaymentResponse(p),
		Replayed: replayed,
	}
}

// GetAgingReport classifies open documents into aging buckets as of a date
func (s *LedgerService) GetAgingReport(ctx context.Context, req AgingReportRequest) (*finance.AgingReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "aging_report")
	defer span.End()

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	scheme := s.agingScheme
	if req.Scheme != "" {
		scheme = finance.AgingScheme(req.Scheme)
		if !scheme.IsValid() {
			return nil, shared.NewValidationError("INVALID_SCHEME", "Unknown aging scheme %q", req.Scheme)
		}
	}
	var kind *finance.DocumentKind
	if req.Kind != "" {
		k := finance.DocumentKind(req.Kind)
		if !k.IsValid() {
			return nil, shared.NewValidationError("INVALID_KIND", "Unknown document kind %q", req.Kind)
		}
		kind = &k
	}
	telemetry.SetAttributes(span, "aging.scheme", string(scheme), "aging.as_of", asOf.Format(time.DateOnly))

	docs, err := s.documentRepo.FindOpen(ctx, kind)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := finance.NewAgingClassifier(finance.WithAgingScheme(scheme)).Report(docs, asOf)
	return &report, nil
}

func (s *LedgerService) releaseKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotencyStore.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func paymentIdempotencyKey(documentID uuid.UUID, key string) string {
	return fmt.Sprintf("payment:%s:%s", documentID, key)
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
