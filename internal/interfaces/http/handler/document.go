package handler

import (
	"github.com/gin-gonic/gin"
	financeapp "github.com/storefront/ledger/internal/application/finance"
	"github.com/storefront/ledger/internal/interfaces/http/middleware"
	"github.com/storefront/ledger/internal/interfaces/http/router"
)

// DocumentHandler handles invoice and bill endpoints and the aging report
type DocumentHandler struct {
	BaseHandler
	ledgerService *financeapp.LedgerService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(ledgerService *financeapp.LedgerService) *DocumentHandler {
	return &DocumentHandler{ledgerService: ledgerService}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	documents := router.NewDomainGroup("documents", "/documents").
		GET("", h.ListDocuments).
		POST("", h.CreateDocument).
		GET("/:id", h.GetDocument).
		GET("/:id/history", h.GetDocumentHistory).
		POST("/:id/issue", h.IssueDocument).
		POST("/:id/cancel", h.CancelDocument).
		POST("/:id/payments", h.RecordPayment)
	documents.RegisterRoutes(rg)

	router.NewDomainGroup("aging", "/aging").
		GET("", h.GetAgingReport).
		RegisterRoutes(rg)
}

// ListDocuments godoc
// @Summary      List invoices and bills
// @Tags         documents
// @Produce      json
// @Param        kind    query  string  false  "invoice or bill"
// @Param        status  query  string  false  "Document status"
// @Param        search  query  string  false  "Number or counterparty"
// @Router       /documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var filter financeapp.DocumentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	docs, err := h.ledgerService.ListDocuments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(c, docs)
}

// CreateDocument godoc
// @Summary      Create an invoice or bill
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request  body  financeapp.CreateDocumentRequest  true  "Document"
// @Router       /documents [post]
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req financeapp.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.ledgerService.CreateDocument(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// GetDocument returns one document with its payments
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, ok := h.ParseID(c, "document")
	if !ok {
		return
	}

	doc, err := h.ledgerService.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// GetDocumentHistory returns the audit trail of a document
func (h *DocumentHandler) GetDocumentHistory(c *gin.Context) {
	id, ok := h.ParseID(c, "document")
	if !ok {
		return
	}

	history, err := h.ledgerService.GetDocumentHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(c, history)
}

// IssueDocument godoc
// @Summary      Issue a draft document
// @Tags         documents
// @Produce      json
// @Param        id  path  string  true  "Document ID"
// @Router       /documents/{id}/issue [post]
func (h *DocumentHandler) IssueDocument(c *gin.Context) {
	id, ok := h.ParseID(c, "document")
	if !ok {
		return
	}

	doc, err := h.ledgerService.IssueDocument(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// CancelDocument godoc
// @Summary      Cancel a document without payments
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id       path  string                            true  "Document ID"
// @Param        request  body  financeapp.CancelDocumentRequest  true  "Reason"
// @Router       /documents/{id}/cancel [post]
func (h *DocumentHandler) CancelDocument(c *gin.Context) {
	id, ok := h.ParseID(c, "document")
	if !ok {
		return
	}
	var req financeapp.CancelDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.ledgerService.CancelDocument(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// RecordPayment godoc
// @Summary      Apply a payment to a document
// @Description  The Idempotency-Key header takes precedence over the idempotency_key body field.
// @Description  A replayed key returns the original payment with replayed=true and status 200.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id               path    string                           true   "Document ID"
// @Param        Idempotency-Key  header  string                           false  "Idempotency key"
// @Param        request          body    financeapp.RecordPaymentRequest  true   "Payment"
// @Router       /documents/{id}/payments [post]
func (h *DocumentHandler) RecordPayment(c *gin.Context) {
	id, ok := h.ParseID(c, "document")
	if !ok {
		return
	}
	var req financeapp.RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if key := c.GetHeader(middleware.IdempotencyKeyHeader); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.ledgerService.RecordPayment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// GetAgingReport godoc
// @Summary      Aging report of open documents
// @Tags         aging
// @Produce      json
// @Param        as_of   query  string  false  "Report date, YYYY-MM-DD (default today)"
// @Param        kind    query  string  false  "invoice or bill"
// @Param        scheme  query  string  false  "binary or standard"
// @Router       /aging [get]
func (h *DocumentHandler) GetAgingReport(c *gin.Context) {
	req := financeapp.AgingReportRequest{
		Kind:   c.Query("kind"),
		Scheme: c.Query("scheme"),
	}
	if asOf := c.Query("as_of"); asOf != "" {
		t, err := parseDate(asOf)
		if err != nil {
			h.BadRequest(c, "Invalid as_of date, expected YYYY-MM-DD")
			return
		}
		req.AsOf = t
	}

	report, err := h.ledgerService.GetAgingReport(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
