package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// TransactionRecord is one row of the append-only audit log. Records are
// created exactly once, inside the same unit of work as the balance
// mutations they describe, and are never updated or deleted.
type TransactionRecord struct {
	ID             string            `json:"id"`
	FromAccountID  string            `json:"from_account_id"`
	ToAccountID    string            `json:"to_account_id"`
	Amount         decimal.Decimal   `json:"amount"`
	Description    string            `json:"description,omitempty"`
	Status         TransactionStatus `json:"status"`
	IdempotencyKey string            `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}
