package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user's wallet. The balance is stored, not derived, and is
// mutated only through the wallet service's unit of work.
type Account struct {
	ID        string          `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
