package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/giridharan-7/my-paytm/internal/models"
)

// LedgerTx is one unit of work against the ledger. Deltas and the log
// record are staged first; Commit applies everything indivisibly or not at
// all. Implementations must serialize commits touching the same account
// and must acquire per-account locks in a total order independent of the
// transfer direction.
type LedgerTx interface {
	// ApplyDelta stages a balance change. Implementations may reject an
	// obviously doomed debit early; Commit revalidates in any case.
	ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal) error

	// AppendRecord stages the audit record that describes the staged deltas.
	AppendRecord(ctx context.Context, rec models.TransactionRecord) error

	// Commit applies all staged work atomically. It fails with
	// wallet.ErrInsufficientFunds or wallet.ErrAccountNotFound if a
	// precondition no longer holds, and with wallet.ErrTxConflict when a
	// concurrent commit got in the way and the caller may retry.
	Commit(ctx context.Context) error

	// Rollback discards staged work. Safe to call after Commit.
	Rollback() error
}

type LedgerStore interface {
	// CreateAccount opens an account with a non-negative seed balance.
	// Fails with wallet.ErrAlreadyExists if the id is taken.
	CreateAccount(ctx context.Context, accountID string, initialBalance decimal.Decimal) error

	// GetBalance fails with wallet.ErrAccountNotFound for unknown accounts.
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)

	Begin(ctx context.Context) (LedgerTx, error)

	// FindByIdempotencyKey returns the committed record for a key, or
	// (nil, nil) when the key has not been used.
	FindByIdempotencyKey(ctx context.Context, key string) (*models.TransactionRecord, error)

	// ListForAccount returns one newest-first page of records in which the
	// account participates, plus the total match count.
	ListForAccount(ctx context.Context, accountID string, page, pageSize int) ([]models.TransactionRecord, int, error)
}
