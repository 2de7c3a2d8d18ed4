package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds a user's credit balance and usage counters.
// Balance is never negative; totals only grow. All mutations go through
// the ledger so every change leaves a transaction behind.
type Account struct {
	ID               string          `db:"id" json:"id"`
	Balance          decimal.Decimal `db:"balance" json:"balance"`
	TotalSpent       decimal.Decimal `db:"total_spent" json:"total_spent"`
	TotalPredictions int64           `db:"total_predictions" json:"total_predictions"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
