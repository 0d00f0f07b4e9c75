package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	financeapp "github.com/storefront/ledger/internal/application/finance"
	"github.com/storefront/ledger/internal/interfaces/http/dto"
	"github.com/storefront/ledger/internal/interfaces/http/router"
)

// StatementFormField is the multipart field carrying a statement file
const StatementFormField = "file"

// ReconciliationHandler handles bank account, statement and reconciliation endpoints
type ReconciliationHandler struct {
	BaseHandler
	reconciliationService *financeapp.ReconciliationService
	importService         *financeapp.StatementImportService
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(
	reconciliationService *financeapp.ReconciliationService,
	importService *financeapp.StatementImportService,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		importService:         importService,
	}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *ReconciliationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := router.NewDomainGroup("bank-accounts", "/bank-accounts").
		GET("", h.ListBankAccounts).
		POST("", h.CreateBankAccount).
		GET("/:id/unreconciled", h.GetUnreconciled).
		POST("/:id/gl-transactions", h.RecordGLTransaction).
		POST("/:id/statements", h.ImportStatement).
		GET("/:id/reconciliation/preview", h.PreviewReconciliation).
		POST("/:id/reconciliations", h.CommitReconciliation).
		GET("/:id/reconciliations", h.ListReconciliations)
	accounts.RegisterRoutes(rg)

	router.NewDomainGroup("reconciliation", "/reconciliation").
		POST("/match", h.MatchTransactions).
		POST("/unmatch", h.UnmatchTransactions).
		RegisterRoutes(rg)
}

// ListBankAccounts returns all bank accounts
func (h *ReconciliationHandler) ListBankAccounts(c *gin.Context) {
	accounts, err := h.reconciliationService.ListBankAccounts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(c, accounts)
}

// CreateBankAccount godoc
// @Summary      Open a bank account
// @Tags         bank-accounts
// @Accept       json
// @Produce      json
// @Param        request  body  financeapp.CreateBankAccountRequest  true  "Account"
// @Router       /bank-accounts [post]
func (h *ReconciliationHandler) CreateBankAccount(c *gin.Context) {
	var req financeapp.CreateBankAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	account, err := h.reconciliationService.CreateBankAccount(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, account)
}

// GetUnreconciled godoc
// @Summary      Unreconciled bank and GL transactions of an account
// @Tags         bank-accounts
// @Produce      json
// @Param        id  path  string  true  "Bank account ID"
// @Router       /bank-accounts/{id}/unreconciled [get]
func (h *ReconciliationHandler) GetUnreconciled(c *gin.Context) {
	id, ok := h.ParseID(c, "bank account")
	if !ok {
		return
	}

	result, err := h.reconciliationService.GetUnreconciled(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RecordGLTransaction records a ledger entry against a bank account
func (h *ReconciliationHandler) RecordGLTransaction(c *gin.Context) {
	id, ok := h.ParseID(c, "bank account")
	if !ok {
		return
	}
	var req financeapp.RecordGLTransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	gl, err := h.reconciliationService.RecordGLTransaction(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, gl)
}

// ImportStatement godoc
// @Summary      Import a bank statement CSV
// @Description  Columns: date,description,debit,credit,balance[,type]. Re-importing the same file is a conflict.
// @Tags         bank-accounts
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      string  true  "Bank account ID"
// @Param        file  formData  file    true  "Statement file"
// @Router       /bank-accounts/{id}/statements [post]
func (h *ReconciliationHandler) ImportStatement(c *gin.Context) {
	id, ok := h.ParseID(c, "bank account")
	if !ok {
		return
	}
	header, err := c.FormFile(StatementFormField)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Statement upload exceeds maximum allowed size")
		return
	}
	if err != nil {
		h.BadRequest(c, "Statement file is required in form field \""+StatementFormField+"\"")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.BadRequest(c, "Statement file could not be read")
		return
	}
	defer file.Close()

	result, err := h.importService.Import(c.Request.Context(), id, header.Filename, file)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// MatchTransactions pairs a bank transaction with a GL transaction
func (h *ReconciliationHandler) MatchTransactions(c *gin.Context) {
	var req financeapp.MatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.reconciliationService.MatchTransactions(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// UnmatchTransactions dissolves a pair made by MatchTransactions
func (h *ReconciliationHandler) UnmatchTransactions(c *gin.Context) {
	var req financeapp.MatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.reconciliationService.UnmatchTransactions(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PreviewReconciliation computes balances and variance without committing
func (h *ReconciliationHandler) PreviewReconciliation(c *gin.Context) {
	id, ok := h.ParseID(c, "bank account")
	if !ok {
		return
	}

	preview, err := h.reconciliationService.PreviewReconciliation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// CommitReconciliation godoc
// @Summary      Commit a reconciliation
// @Description  Fails with 409 VARIANCE_NOT_ZERO unless the variance is exactly zero.
// @Tags         bank-accounts
// @Accept       json
// @Produce      json
// @Param        id       path  string                                  true  "Bank account ID"
// @Param        request  body  financeapp.CommitReconciliationRequest  true  "Statement date"
// @Router       /bank-accounts/{id}/reconciliations [post]
func (h *ReconciliationHandler) CommitReconciliation(c *gin.Context) {
	id, ok := h.ParseID(c, "bank account")
	if !ok {
		return
	}
	var req financeapp.CommitReconciliationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec, err := h.reconciliationService.CommitReconciliation(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rec)
}

// ListReconciliations returns committed reconciliations of an account, oldest first
func (h *ReconciliationHandler) ListReconciliations(c *gin.Context) {
	id, ok := h.ParseID(c, "bank account")
	if !ok {
		return
	}

	recs, err := h.reconciliationService.ListReconciliations(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(c, recs)
}
