package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/giridharan-7/my-paytm/internal/interfaces"
	"github.com/giridharan-7/my-paytm/internal/models"
	"github.com/giridharan-7/my-paytm/internal/wallet"
)

// LedgerStore implements the ledger contracts on postgres via lib/pq.
// Commit takes row locks in lexicographic account-id order, mirroring the
// in-memory store's locking discipline.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) CreateAccount(ctx context.Context, accountID string, initialBalance decimal.Decimal) error {
	if initialBalance.IsNegative() {
		return wallet.ErrInvalidRequest
	}
	const query = `INSERT INTO accounts (account_id, balance, created_at, updated_at)
		VALUES ($1, $2, now(), now())`
	_, err := s.db.ExecContext(ctx, query, accountID, initialBalance)
	if isUniqueViolation(err) {
		return wallet.ErrAlreadyExists
	}
	return err
}

func (s *LedgerStore) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	const query = `SELECT balance FROM accounts WHERE account_id = $1`
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, wallet.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *LedgerStore) Begin(ctx context.Context) (interfaces.LedgerTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &ledgerTx{tx: tx, deltas: make(map[string]decimal.Decimal)}, nil
}

func (s *LedgerStore) FindByIdempotencyKey(ctx context.Context, key string) (*models.TransactionRecord, error) {
	const query = `SELECT id, from_account_id, to_account_id, amount, description, status, idempotency_key, created_at
		FROM transactions WHERE idempotency_key = $1`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *LedgerStore) ListForAccount(ctx context.Context, accountID string, page, pageSize int) ([]models.TransactionRecord, int, error) {
	const countQuery = `SELECT count(*) FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1`
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `SELECT id, from_account_id, to_account_id, amount, description, status, idempotency_key, created_at
		FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, query, accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := []models.TransactionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

type ledgerTx struct {
	tx     *sql.Tx
	deltas map[string]decimal.Decimal
	recs   []models.TransactionRecord
}

// ApplyDelta only stages; existence was checked by the engine and the
// commit-time FOR UPDATE reads are authoritative.
func (t *ledgerTx) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	t.deltas[accountID] = t.deltas[accountID].Add(delta)
	return nil
}

func (t *ledgerTx) AppendRecord(ctx context.Context, rec models.TransactionRecord) error {
	t.recs = append(t.recs, rec)
	return nil
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	ids := make([]string, 0, len(t.deltas))
	for id := range t.deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Lock rows in id order, then validate against the locked balances.
	balances := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		var balance decimal.Decimal
		err := t.tx.QueryRowContext(ctx,
			`SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE`, id).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.ErrAccountNotFound
		}
		if err != nil {
			return mapTxErr(err)
		}
		balances[id] = balance
	}
	for _, id := range ids {
		if balances[id].Add(t.deltas[id]).IsNegative() {
			return wallet.ErrInsufficientFunds
		}
	}

	for _, id := range ids {
		_, err := t.tx.ExecContext(ctx,
			`UPDATE accounts SET balance = $1, updated_at = now() WHERE account_id = $2`,
			balances[id].Add(t.deltas[id]), id)
		if err != nil {
			return mapTxErr(err)
		}
	}

	for _, rec := range t.recs {
		key := sql.NullString{String: rec.IdempotencyKey, Valid: rec.IdempotencyKey != ""}
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO transactions (id, from_account_id, to_account_id, amount, description, status, idempotency_key, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.ID, rec.FromAccountID, rec.ToAccountID, rec.Amount, rec.Description, string(rec.Status), key, rec.CreatedAt)
		if err != nil {
			return mapTxErr(err)
		}
	}

	if err := t.tx.Commit(); err != nil {
		return mapTxErr(err)
	}
	return nil
}

func (t *ledgerTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	var status string
	var key sql.NullString
	err := row.Scan(&rec.ID, &rec.FromAccountID, &rec.ToAccountID, &rec.Amount,
		&rec.Description, &status, &key, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = models.TransactionStatus(status)
	rec.IdempotencyKey = key.String
	return &rec, nil
}

// mapTxErr folds retryable postgres failures into ErrTxConflict: duplicate
// idempotency keys (a concurrent twin won the race), serialization
// failures and deadlock aborts.
func mapTxErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%w: %s", wallet.ErrTxConflict, pqErr.Code)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)
