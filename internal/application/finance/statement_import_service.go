package finance

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// StatementParser parses a bank statement file into statement lines
type StatementParser interface {
	Parse(r io.Reader) ([]finance.StatementLine, error)
}

// StatementArchive stores raw statement files for audit
type StatementArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// StatementImportServiceConfig holds the dependencies of StatementImportService
type StatementImportServiceConfig struct {
	AccountRepo      finance.BankAccountRepository
	TransactionRepo  finance.BankTransactionRepository
	Parser           StatementParser
	Archive          StatementArchive
	IdempotencyStore shared.IdempotencyStore
	Clock            shared.Clock
	Locker           shared.Locker
	EventBus         shared.EventPublisher
	Logger           *zap.Logger
	MaxFileSize      int64
}

// DefaultMaxStatementSize is the largest statement file accepted
const DefaultMaxStatementSize int64 = 10 << 20

// StatementImportService imports bank statement files as unmatched bank transactions
type StatementImportService struct {
	accountRepo      finance.BankAccountRepository
	transactionRepo  finance.BankTransactionRepository
	parser           StatementParser
	archive          StatementArchive
	idempotencyStore shared.IdempotencyStore
	clock            shared.Clock
	locker           shared.Locker
	eventBus         shared.EventPublisher
	logger           *zap.Logger
	maxFileSize      int64
}

// NewStatementImportService creates a new StatementImportService
func NewStatementImportService(cfg StatementImportServiceConfig) *StatementImportService {
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxStatementSize
	}
	return &StatementImportService{
		accountRepo:      cfg.AccountRepo,
		transactionRepo:  cfg.TransactionRepo,
		parser:           cfg.Parser,
		archive:          cfg.Archive,
		idempotencyStore: cfg.IdempotencyStore,
		clock:            cfg.Clock,
		locker:           cfg.Locker,
		eventBus:         cfg.EventBus,
		logger:           cfg.Logger,
		maxFileSize:      cfg.MaxFileSize,
	}
}

// Import parses the statement, stores its lines as bank transactions and archives
// the raw file. A file whose content was already imported for the account is a conflict.
func (s *StatementImportService) Import(ctx context.Context, accountID uuid.UUID, fileName string, r io.Reader) (*StatementImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "statement", "import")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBankAccountID, accountID.String(), "statement.file_name", fileName)

	body, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("read statement: %w", err)
	}
	if int64(len(body)) > s.maxFileSize {
		return nil, shared.NewValidationError("FILE_TOO_LARGE", "Statement file exceeds %d bytes", s.maxFileSize)
	}
	if len(body) == 0 {
		return nil, shared.NewValidationError("EMPTY_FILE", "Statement file is empty")
	}

	lines, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

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
	txns, closing, err := finance.BuildStatementTransactions(accountID, lines, now)
	if err != nil {
		return nil, err
	}

	hash := contentHash(body)
	dedupeKey := statementIdempotencyKey(accountID, hash)
	if s.idempotencyStore != nil {
		// Imported statements are remembered for good
		marked, err := s.idempotencyStore.MarkProcessed(ctx, dedupeKey, 0)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if !marked {
			return nil, shared.NewConflictError("DUPLICATE_STATEMENT", "Statement %s was already imported", fileName)
		}
	}

	account.ApplyStatementBalance(closing, now)
	account.AddDomainEvent(finance.NewStatementImportedEvent(accountID, fileName, hash, len(txns), now))
	if err := s.transactionRepo.ImportStatement(ctx, account, txns); err != nil {
		if s.idempotencyStore != nil {
			if relErr := s.idempotencyStore.Release(ctx, dedupeKey); relErr != nil {
				s.logger.Warn("Failed to release statement key", zap.String("key", dedupeKey), zap.Error(relErr))
			}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	archiveKey := ""
	if s.archive != nil {
		key := path.Join("statements", accountID.String(), hash+path.Ext(fileName))
		if err := s.archive.Put(ctx, key, body, "text/csv"); err != nil {
			// The transactions are stored; a missing archive copy is not fatal
			s.logger.Warn("Failed to archive statement file",
				zap.String("account_id", accountID.String()),
				zap.String("key", key),
				zap.Error(err),
			)
		} else {
			archiveKey = key
		}
	}
	publishEvents(ctx, s.eventBus, s.logger, account)

	s.logger.Info("Bank statement imported",
		zap.String("account_id", accountID.String()),
		zap.String("file_name", fileName),
		zap.Int("transactions", len(txns)),
		zap.String("closing_balance", closing.String()),
	)

	return &StatementImportResult{
		BankAccountID: accountID,
		FileName:      fileName,
		ContentHash:   hash,
		ArchiveKey:    archiveKey,
		Imported:      len(txns),
	}, nil
}

func contentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func statementIdempotencyKey(accountID uuid.UUID, hash string) string {
	return fmt.Sprintf("statement:%s:%s", accountID, hash)
}
