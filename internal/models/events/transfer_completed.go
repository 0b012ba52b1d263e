package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferCompleted struct {
	TransactionID string          `json:"transaction_id"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
