package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReconciliationServiceConfig holds the dependencies of ReconciliationService
type ReconciliationServiceConfig struct {
	AccountRepo        finance.BankAccountRepository
	TransactionRepo    finance.BankTransactionRepository
	ReconciliationRepo finance.ReconciliationRepository
	Clock              shared.Clock
	Locker             shared.Locker
	EventBus           shared.EventPublisher
	Logger             *zap.Logger
}

// ReconciliationService matches bank statement lines with ledger entries and
// closes reconciliations. Every mutation on an account runs under the account lock.
type ReconciliationService struct {
	accountRepo        finance.BankAccountRepository
	transactionRepo    finance.BankTransactionRepository
	reconciliationRepo finance.ReconciliationRepository
	clock              shared.Clock
	locker             shared.Locker
	eventBus           shared.EventPublisher
	logger             *zap.Logger
	matcher            *finance.BankMatcher
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(cfg ReconciliationServiceConfig) *ReconciliationService {
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ReconciliationService{
		accountRepo:        cfg.AccountRepo,
		transactionRepo:    cfg.TransactionRepo,
		reconciliationRepo: cfg.ReconciliationRepo,
		clock:              cfg.Clock,
		locker:             cfg.Locker,
		eventBus:           cfg.EventBus,
		logger:             cfg.Logger,
		matcher:            finance.NewBankMatcher(),
	}
}

// ListBankAccounts returns all bank accounts
func (s *ReconciliationService) ListBankAccounts(ctx context.Context) ([]BankAccountResponse, error) {
	accounts, err := s.accountRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BankAccountResponse, len(accounts))
	for i := range accounts {
		out[i] = ToBankAccountResponse(&accounts[i])
	}
	return out, nil
}

// CreateBankAccount registers a bank account
func (s *ReconciliationService) CreateBankAccount(ctx context.Context, req CreateBankAccountRequest) (*BankAccountResponse, error) {
	account, err := finance.NewBankAccount(req.Name, req.BankName, req.AccountNumber, decimalOrZero(req.OpeningBalance), s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("Bank account created", zap.String("account_id", account.ID.String()), zap.String("name", account.Name))
	resp := ToBankAccountResponse(account)
	return &resp, nil
}

// GetUnreconciled lists the unmatched bank and GL transactions of an account
func (s *ReconciliationService) GetUnreconciled(ctx context.Context, accountID uuid.UUID) (*UnreconciledResponse, error) {
	if _, err := s.accountRepo.FindByID(ctx, accountID); err != nil {
		return nil, err
	}
	filter := finance.TransactionFilter{BankAccountID: accountID, UnmatchedOnly: true}
	bank, err := s.transactionRepo.FindBank(ctx, filter)
	if err != nil {
		return nil, err
	}
	gl, err := s.transactionRepo.FindGL(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &UnreconciledResponse{
		Bank: make([]BankTransactionResponse, len(bank)),
		GL:   make([]GLTransactionResponse, 0, len(gl)),
	}
	for i := range bank {
		resp.Bank[i] = ToBankTransactionResponse(&bank[i])
	}
	for i := range gl {
		if gl[i].Status == finance.GLStatusCancelled {
			continue
		}
		resp.GL = append(resp.GL, ToGLTransactionResponse(&gl[i]))
	}
	return resp, nil
}

// RecordGLTransaction records an internal ledger entry against a bank account
// The account version moves with the new row, so a commit judged on an older snapshot fails.
func (s *ReconciliationService) RecordGLTransaction(ctx context.Context, accountID uuid.UUID, req RecordGLTransactionRequest) (*GLTransactionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "record_gl_transaction")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBankAccountID, accountID.String())

	unlock, err := acquireLock(ctx, s.locker, shared.BankAccountLockKey(accountID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	gl, err := finance.NewGLTransaction(accountID, req.Date, req.Description, req.Debit, req.Credit, req.ReferenceCode, now)
	if err != nil {
		return nil, err
	}
	account.RecordActivity(now)
	if err := s.transactionRepo.CreateGL(ctx, account, gl); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToGLTransactionResponse(gl)
	return &resp, nil
}

// MatchTransactions pairs a bank transaction with a GL transaction of equal amount
func (s *ReconciliationService) MatchTransactions(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	return s.changePair(ctx, "match_transactions", req, false)
}

// UnmatchTransactions reverses a match made by MatchTransactions
func (s *ReconciliationService) UnmatchTransactions(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	return s.changePair(ctx, "unmatch_transactions", req, true)
}

func (s *ReconciliationService) changePair(ctx context.Context, method string, req MatchRequest, unmatch bool) (*MatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", method)
	defer span.End()
	telemetry.SetAttributes(span,
		"bank_transaction.id", req.BankTransactionID.String(),
		"gl_transaction.id", req.GLTransactionID.String(),
	)

	bank, err := s.transactionRepo.FindBankByID(ctx, req.BankTransactionID)
	if err != nil {
		return nil, err
	}

	unlock, err := acquireLock(ctx, s.locker, shared.BankAccountLockKey(bank.BankAccountID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	// Reload under the lock
	bank, err = s.transactionRepo.FindBankByID(ctx, req.BankTransactionID)
	if err != nil {
		return nil, err
	}
	gl, err := s.transactionRepo.FindGLByID(ctx, req.GLTransactionID)
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.FindByID(ctx, bank.BankAccountID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if unmatch {
		err = s.matcher.Unmatch(bank, gl)
	} else {
		err = s.matcher.Match(bank, gl)
	}
	if err != nil {
		return nil, err
	}
	bank.UpdatedAt = now
	gl.UpdatedAt = now
	account.RecordActivity(now)
	if unmatch {
		account.AddDomainEvent(finance.NewTransactionsUnmatchedEvent(bank, gl, now))
	} else {
		account.AddDomainEvent(finance.NewTransactionsMatchedEvent(bank, gl, now))
	}

	if err := s.transactionRepo.SavePair(ctx, account, bank, gl, unmatch); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	publishEvents(ctx, s.eventBus, s.logger, account)

	s.logger.Info("Transaction pair updated",
		zap.String("operation", method),
		zap.String("account_id", account.ID.String()),
		zap.String("bank_transaction_id", bank.ID.String()),
		zap.String("gl_transaction_id", gl.ID.String()),
	)

	return &MatchResponse{
		Bank: ToBankTransactionResponse(bank),
		GL:   ToGLTransactionResponse(gl),
	}, nil
}

// PreviewReconciliation computes the balances a commit would be judged on
func (s *ReconciliationService) PreviewReconciliation(ctx context.Context, accountID uuid.UUID) (*ReconciliationPreviewResponse, error) {
	account, bank, gl, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	balances := finance.NewReconciliationSession(account, bank, gl).Balances()
	return &ReconciliationPreviewResponse{
		BankAccountID: accountID,
		Balances:      balances,
		CanCommit:     balances.IsBalanced(),
	}, nil
}

// CommitReconciliation closes a reconciliation for the account when the variance is zero
func (s *ReconciliationService) CommitReconciliation(ctx context.Context, accountID uuid.UUID, req CommitReconciliationRequest) (*ReconciliationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "commit")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBankAccountID, accountID.String())

	unlock, err := acquireLock(ctx, s.locker, shared.BankAccountLockKey(accountID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	account, bank, gl, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	session := finance.NewReconciliationSession(account, bank, gl)
	rec, err := session.Commit(req.StatementDate, req.Notes, s.clock.Now())
	if err != nil {
		balances := session.Balances()
		telemetry.SetAttributes(span, "reconciliation.variance", balances.Variance.String())
		s.logger.Info("Reconciliation rejected",
			zap.String("account_id", accountID.String()),
			zap.String("variance", balances.Variance.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.reconciliationRepo.Commit(ctx, rec, account); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	publishEvents(ctx, s.eventBus, s.logger, account)

	s.logger.Info("Reconciliation completed",
		zap.String("account_id", accountID.String()),
		zap.String("reconciliation_id", rec.ID.String()),
		zap.String("statement_balance", rec.StatementBalance.String()),
	)

	resp := ToReconciliationResponse(rec)
	return &resp, nil
}

// ListReconciliations returns the reconciliation history of an account
func (s *ReconciliationService) ListReconciliations(ctx context.Context, accountID uuid.UUID) ([]ReconciliationResponse, error) {
	if _, err := s.accountRepo.FindByID(ctx, accountID); err != nil {
		return nil, err
	}
	recs, err := s.reconciliationRepo.FindByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]ReconciliationResponse, len(recs))
	for i := range recs {
		out[i] = ToReconciliationResponse(&recs[i])
	}
	return out, nil
}

// snapshot reads the account and all of its transactions
func (s *ReconciliationService) snapshot(ctx context.Context, accountID uuid.UUID) (*finance.BankAccount, []finance.BankTransaction, []finance.GLTransaction, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, nil, nil, err
	}
	filter := finance.TransactionFilter{BankAccountID: accountID}
	bank, err := s.transactionRepo.FindBank(ctx, filter)
	if err != nil {
		return nil, nil, nil, err
	}
	gl, err := s.transactionRepo.FindGL(ctx, filter)
	if err != nil {
		return nil, nil, nil, err
	}
	return account, bank, gl, nil
}

