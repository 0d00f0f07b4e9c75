package finance

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
)

// memoryDocumentRepo stores copies of documents and enforces the version check
type memoryDocumentRepo struct {
	mu    sync.Mutex
	docs      map[uuid.UUID]finance.LedgerDocument
	saves     int
	listCalls int
}

func newMemoryDocumentRepo() *memoryDocumentRepo {
	return &memoryDocumentRepo{docs: make(map[uuid.UUID]finance.LedgerDocument)}
}

func cloneDocument(d *finance.LedgerDocument) finance.LedgerDocument {
	c := *d
	c.LineItems = append(finance.LineItems(nil), d.LineItems...)
	c.Payments = append(finance.Payments(nil), d.Payments...)
	c.ClearDomainEvents()
	return c
}

func (r *memoryDocumentRepo) FindByID(_ context.Context, id uuid.UUID) (*finance.LedgerDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Document %s not found", id)
	}
	c := cloneDocument(&d)
	return &c, nil
}

func (r *memoryDocumentRepo) FindAll(_ context.Context, filter finance.DocumentFilter) ([]finance.LedgerDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]finance.LedgerDocument, 0, len(r.docs))
	for _, d := range r.docs {
		if filter.Kind != nil && d.Kind != *filter.Kind {
			continue
		}
		if !d.MatchesSearch(filter.Search) {
			continue
		}
		out = append(out, cloneDocument(&d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentNumber < out[j].DocumentNumber })
	r.listCalls++
	start := min(filter.Offset(), len(out))
	end := min(start+filter.Limit(), len(out))
	return out[start:end], nil
}

func (r *memoryDocumentRepo) FindOpen(_ context.Context, kind *finance.DocumentKind) ([]finance.LedgerDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]finance.LedgerDocument, 0)
	for _, d := range r.docs {
		if kind != nil && d.Kind != *kind {
			continue
		}
		if d.Status == finance.DocumentStatusDraft || d.Status == finance.DocumentStatusCancelled || !d.BalanceAmount.IsPositive() {
			continue
		}
		out = append(out, cloneDocument(&d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentNumber < out[j].DocumentNumber })
	return out, nil
}

func (r *memoryDocumentRepo) ExistsByNumber(_ context.Context, kind finance.DocumentKind, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.Kind == kind && d.DocumentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryDocumentRepo) Create(_ context.Context, doc *finance.LedgerDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (r *memoryDocumentRepo) SaveWithLock(_ context.Context, doc *finance.LedgerDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[doc.ID]
	if !ok {
		return shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Document %s not found", doc.ID)
	}
	if stored.Version != doc.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.docs[doc.ID] = cloneDocument(doc)
	r.saves++
	return nil
}

// memoryBankStore implements the account, transaction and reconciliation repositories
type memoryBankStore struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]finance.BankAccount
	bank      map[uuid.UUID]finance.BankTransaction
	gl        map[uuid.UUID]finance.GLTransaction
	recs      []finance.Reconciliation
	bankOrder []uuid.UUID
	glOrder   []uuid.UUID
}

func newMemoryBankStore() *memoryBankStore {
	return &memoryBankStore{
		accounts: make(map[uuid.UUID]finance.BankAccount),
		bank:     make(map[uuid.UUID]finance.BankTransaction),
		gl:       make(map[uuid.UUID]finance.GLTransaction),
	}
}

func cloneAccount(a *finance.BankAccount) finance.BankAccount {
	c := *a
	c.ClearDomainEvents()
	return c
}

func (s *memoryBankStore) FindByID(_ context.Context, id uuid.UUID) (*finance.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, shared.NewNotFoundError("BANK_ACCOUNT_NOT_FOUND", "Bank account %s not found", id)
	}
	c := cloneAccount(&a)
	return &c, nil
}

func (s *memoryBankStore) FindAll(_ context.Context) ([]finance.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.BankAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, cloneAccount(&a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryBankStore) Create(_ context.Context, account *finance.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (s *memoryBankStore) FindBankByID(_ context.Context, id uuid.UUID) (*finance.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.bank[id]
	if !ok {
		return nil, shared.NewNotFoundError("BANK_TRANSACTION_NOT_FOUND", "Bank transaction %s not found", id)
	}
	return &t, nil
}

func (s *memoryBankStore) FindGLByID(_ context.Context, id uuid.UUID) (*finance.GLTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.gl[id]
	if !ok {
		return nil, shared.NewNotFoundError("GL_TRANSACTION_NOT_FOUND", "GL transaction %s not found", id)
	}
	return &t, nil
}

func (s *memoryBankStore) FindBank(_ context.Context, filter finance.TransactionFilter) ([]finance.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.BankTransaction, 0)
	for _, id := range s.bankOrder {
		t := s.bank[id]
		if t.BankAccountID != filter.BankAccountID || (filter.UnmatchedOnly && t.Matched) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *memoryBankStore) FindGL(_ context.Context, filter finance.TransactionFilter) ([]finance.GLTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.GLTransaction, 0)
	for _, id := range s.glOrder {
		t := s.gl[id]
		if t.BankAccountID != filter.BankAccountID || (filter.UnmatchedOnly && t.Matched) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *memoryBankStore) CreateGL(_ context.Context, account *finance.BankAccount, gl *finance.GLTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveAccountLocked(account); err != nil {
		return err
	}
	s.gl[gl.ID] = *gl
	s.glOrder = append(s.glOrder, gl.ID)
	return nil
}

// saveAccountLocked applies the optimistic version check; s.mu must be held
func (s *memoryBankStore) saveAccountLocked(account *finance.BankAccount) error {
	stored, ok := s.accounts[account.ID]
	if !ok {
		return shared.NewNotFoundError("BANK_ACCOUNT_NOT_FOUND", "Bank account %s not found", account.ID)
	}
	if stored.Version != account.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	s.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (s *memoryBankStore) ImportStatement(_ context.Context, account *finance.BankAccount, txns []finance.BankTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveAccountLocked(account); err != nil {
		return err
	}
	for _, t := range txns {
		s.bank[t.ID] = t
		s.bankOrder = append(s.bankOrder, t.ID)
	}
	return nil
}

func (s *memoryBankStore) SavePair(_ context.Context, account *finance.BankAccount, bank *finance.BankTransaction, gl *finance.GLTransaction, wasMatched bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bank[bank.ID].Matched != wasMatched || s.gl[gl.ID].Matched != wasMatched {
		return shared.ErrConcurrencyConflict
	}
	if err := s.saveAccountLocked(account); err != nil {
		return err
	}
	s.bank[bank.ID] = *bank
	s.gl[gl.ID] = *gl
	return nil
}

func (s *memoryBankStore) Commit(_ context.Context, rec *finance.Reconciliation, account *finance.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveAccountLocked(account); err != nil {
		return err
	}
	s.recs = append(s.recs, *rec)
	return nil
}

func (s *memoryBankStore) FindByAccount(_ context.Context, accountID uuid.UUID) ([]finance.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.Reconciliation, 0)
	for _, r := range s.recs {
		if r.BankAccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

var (
	_ finance.BankAccountRepository     = (*memoryBankStore)(nil)
	_ finance.BankTransactionRepository = (*memoryBankStore)(nil)
	_ finance.ReconciliationRepository  = (*memoryBankStore)(nil)
)

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// memoryEventLog is an in-memory shared.EventLog
type memoryEventLog struct {
	mu      sync.Mutex
	records []shared.EventRecord
}

func (l *memoryEventLog) Append(_ context.Context, records ...shared.EventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, records...)
	return nil
}

func (l *memoryEventLog) FindByAggregate(_ context.Context, aggregateID uuid.UUID) ([]shared.EventRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []shared.EventRecord
	for _, r := range l.records {
		if r.AggregateID == aggregateID {
			out = append(out, r)
		}
	}
	return out, nil
}
