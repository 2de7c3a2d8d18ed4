package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger mutation.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionDeduction  TransactionType = "deduction"
	TransactionRefund     TransactionType = "refund"
	TransactionAdjustment TransactionType = "adjustment"
)

// Transaction is one immutable ledger entry. Amount is signed (negative for
// deductions) and BalanceAfter = BalanceBefore + Amount always holds.
type Transaction struct {
	ID            string          `db:"id" json:"id"`
	AccountID     string          `db:"account_id" json:"account_id"`
	Type          TransactionType `db:"type" json:"type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	PredictionID  *string         `db:"prediction_id" json:"prediction_id,omitempty"`
	Description   string          `db:"description" json:"description"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
