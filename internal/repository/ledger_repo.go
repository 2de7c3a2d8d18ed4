package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"nutriadvisor/internal/models"
)

// LedgerRepository owns the accounts and transactions tables. Every balance
// mutation updates exactly one account row and appends exactly one
// transaction, inside one database transaction.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository returns repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// LedgerEntryParams describes one mutation. Amount is a positive magnitude;
// the sign stored on the transaction follows from the type.
type LedgerEntryParams struct {
	AccountID    string
	Type         models.TransactionType
	Amount       decimal.Decimal
	Description  string
	PredictionID *string
}

const insertTransactionQuery = `
	INSERT INTO transactions (id, account_id, type, amount, balance_before, balance_after, prediction_id, description, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	RETURNING created_at
`

// EnsureAccount creates a zero-balance account on first contact and returns
// the current row.
func (r *LedgerRepository) EnsureAccount(ctx context.Context, accountID string) (*models.Account, error) {
	const insert = `
		INSERT INTO accounts (id, balance, total_spent, total_predictions, created_at, updated_at)
		VALUES ($1, 0, 0, 0, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, accountID); err != nil {
		return nil, fmt.Errorf("ledger: ensure account: %w", err)
	}
	return r.Account(ctx, accountID)
}

// Account returns the account row.
func (r *LedgerRepository) Account(ctx context.Context, accountID string) (*models.Account, error) {
	const query = `
		SELECT id, balance, total_spent, total_predictions, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var acc models.Account
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&acc.ID,
		&acc.Balance,
		&acc.TotalSpent,
		&acc.TotalPredictions,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Credit increases the balance and appends a transaction of the given type
// (deposit, refund or adjustment).
func (r *LedgerRepository) Credit(ctx context.Context, p LedgerEntryParams) (*models.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback()

	const update = `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance
	`
	var after decimal.Decimal
	err = tx.QueryRowContext(ctx, update, p.AccountID, p.Amount).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: credit account: %w", err)
	}

	entry := &models.Transaction{
		ID:            uuid.NewString(),
		AccountID:     p.AccountID,
		Type:          p.Type,
		Amount:        p.Amount,
		BalanceBefore: after.Sub(p.Amount),
		BalanceAfter:  after,
		PredictionID:  p.PredictionID,
		Description:   p.Description,
	}
	if err := r.insertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ledger: commit: %w", err)
	}
	return entry, nil
}

// Debit decreases the balance and appends a deduction transaction. The
// update is conditional on balance >= amount, so concurrent debits against
// the same account cannot drive it negative; an over-debit is rejected
// without touching either table.
func (r *LedgerRepository) Debit(ctx context.Context, p LedgerEntryParams) (*models.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback()

	const update = `
		UPDATE accounts
		SET balance = balance - $2,
		    total_spent = total_spent + $2,
		    total_predictions = total_predictions + 1,
		    updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance
	`
	var after decimal.Decimal
	err = tx.QueryRowContext(ctx, update, p.AccountID, p.Amount).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.classifyRejectedDebit(ctx, tx, p.AccountID)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: debit account: %w", err)
	}

	entry := &models.Transaction{
		ID:            uuid.NewString(),
		AccountID:     p.AccountID,
		Type:          p.Type,
		Amount:        p.Amount.Neg(),
		BalanceBefore: after.Add(p.Amount),
		BalanceAfter:  after,
		PredictionID:  p.PredictionID,
		Description:   p.Description,
	}
	if err := r.insertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ledger: commit: %w", err)
	}
	return entry, nil
}

// Transactions returns the latest entries for an account, newest first.
func (r *LedgerRepository) Transactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, account_id, type, amount, balance_before, balance_after, prediction_id, description, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Transaction
	for rows.Next() {
		var entry models.Transaction
		if err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.Type,
			&entry.Amount,
			&entry.BalanceBefore,
			&entry.BalanceAfter,
			&entry.PredictionID,
			&entry.Description,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *LedgerRepository) insertEntry(ctx context.Context, tx *sql.Tx, entry *models.Transaction) error {
	err := tx.QueryRowContext(ctx, insertTransactionQuery,
		entry.ID,
		entry.AccountID,
		entry.Type,
		entry.Amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.PredictionID,
		entry.Description,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: insert transaction: %w", err)
	}
	return nil
}

// classifyRejectedDebit tells a missing account apart from an insufficient
// balance after the conditional update matched no row.
func (r *LedgerRepository) classifyRejectedDebit(ctx context.Context, tx *sql.Tx, accountID string) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ledger: classify rejected debit: %w", err)
	}
	if !exists {
		return models.ErrAccountNotFound
	}
	return models.ErrInsufficientBalance
}
