// Package memory holds the in-memory implementations of the store
// contracts. It is the default backend when no DATABASE_URL is configured
// and the backend every test runs against.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/giridharan-7/my-paytm/internal/interfaces"
	"github.com/giridharan-7/my-paytm/internal/models"
	"github.com/giridharan-7/my-paytm/internal/wallet"
)

// entry is one account's mutable state. Its mutex serializes every balance
// mutation of that account; disjoint accounts never contend.
type entry struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	createdAt time.Time
	updatedAt time.Time
}

// LedgerStore keeps stored balances plus the append-only record log.
type LedgerStore struct {
	mu       sync.RWMutex // guards the accounts map itself
	accounts map[string]*entry

	logMu   sync.RWMutex
	records []models.TransactionRecord
	byKey   map[string]int // idempotency key -> index into records
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts: make(map[string]*entry),
		byKey:    make(map[string]int),
	}
}

func (s *LedgerStore) CreateAccount(ctx context.Context, accountID string, initialBalance decimal.Decimal) error {
	if initialBalance.IsNegative() {
		return wallet.ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; ok {
		return wallet.ErrAlreadyExists
	}
	now := time.Now().UTC()
	s.accounts[accountID] = &entry{balance: initialBalance, createdAt: now, updatedAt: now}
	return nil
}

func (s *LedgerStore) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	e, ok := s.account(accountID)
	if !ok {
		return decimal.Zero, wallet.ErrAccountNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance, nil
}

func (s *LedgerStore) Begin(ctx context.Context) (interfaces.LedgerTx, error) {
	return &ledgerTx{store: s, deltas: make(map[string]decimal.Decimal)}, nil
}

func (s *LedgerStore) FindByIdempotencyKey(ctx context.Context, key string) (*models.TransactionRecord, error) {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	idx, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	rec := s.records[idx]
	return &rec, nil
}

func (s *LedgerStore) ListForAccount(ctx context.Context, accountID string, page, pageSize int) ([]models.TransactionRecord, int, error) {
	s.logMu.RLock()
	defer s.logMu.RUnlock()

	// Newest first: the log is append-only, so walk it backwards.
	var matched []models.TransactionRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.FromAccountID == accountID || r.ToAccountID == accountID {
			matched = append(matched, r)
		}
	}

	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return []models.TransactionRecord{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]models.TransactionRecord, end-start)
	copy(out, matched[start:end])
	return out, total, nil
}

func (s *LedgerStore) account(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.accounts[id]
	return e, ok
}

// ledgerTx stages deltas and records; Commit applies them under every
// touched account's lock, acquired in lexicographic id order so that two
// transfers between the same pair in opposite directions cannot deadlock.
type ledgerTx struct {
	store  *LedgerStore
	deltas map[string]decimal.Decimal
	recs   []models.TransactionRecord
	done   bool
}

func (t *ledgerTx) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	e, ok := t.store.account(accountID)
	if !ok {
		return wallet.ErrAccountNotFound
	}

	// Early rejection of a doomed debit against the current balance plus
	// whatever this tx already staged. Commit revalidates under the locks.
	e.mu.Lock()
	projected := e.balance.Add(t.deltas[accountID]).Add(delta)
	e.mu.Unlock()
	if projected.IsNegative() {
		return wallet.ErrInsufficientFunds
	}

	t.deltas[accountID] = t.deltas[accountID].Add(delta)
	return nil
}

func (t *ledgerTx) AppendRecord(ctx context.Context, rec models.TransactionRecord) error {
	t.recs = append(t.recs, rec)
	return nil
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	if t.done {
		return wallet.ErrTxConflict
	}
	t.done = true

	ids := make([]string, 0, len(t.deltas))
	for id := range t.deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]*entry, len(ids))
	for i, id := range ids {
		e, ok := t.store.account(id)
		if !ok {
			return wallet.ErrAccountNotFound
		}
		entries[i] = e
	}

	for _, e := range entries {
		e.mu.Lock()
	}
	defer func() {
		for _, e := range entries {
			e.mu.Unlock()
		}
	}()

	// Revalidate the non-negative invariant against the balances as they
	// are now, not as they were at staging time.
	for i, id := range ids {
		if entries[i].balance.Add(t.deltas[id]).IsNegative() {
			return wallet.ErrInsufficientFunds
		}
	}

	t.store.logMu.Lock()
	defer t.store.logMu.Unlock()
	for _, rec := range t.recs {
		if rec.IdempotencyKey == "" {
			continue
		}
		if _, taken := t.store.byKey[rec.IdempotencyKey]; taken {
			return wallet.ErrTxConflict
		}
	}

	now := time.Now().UTC()
	for i, id := range ids {
		entries[i].balance = entries[i].balance.Add(t.deltas[id])
		entries[i].updatedAt = now
	}
	for _, rec := range t.recs {
		t.store.records = append(t.store.records, rec)
		if rec.IdempotencyKey != "" {
			t.store.byKey[rec.IdempotencyKey] = len(t.store.records) - 1
		}
	}
	return nil
}

func (t *ledgerTx) Rollback() error {
	t.done = true
	return nil
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)
