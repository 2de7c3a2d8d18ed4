package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriadvisor/internal/models"
)

func newLedgerMock(t *testing.T) (*LedgerRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLedgerRepository(db), mock
}

func TestEnsureAccountInsertsThenSelects(t *testing.T) {
	repo, mock := newLedgerMock(t)

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, balance, total_spent").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "total_spent", "total_predictions", "created_at", "updated_at"}).
			AddRow("user-1", "0", "0", 0, time.Now(), time.Now()))

	acc, err := repo.EnsureAccount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", acc.ID)
	assert.True(t, acc.Balance.Equal(decimal.Zero))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountNotFound(t *testing.T) {
	repo, mock := newLedgerMock(t)

	mock.ExpectQuery("SELECT id, balance, total_spent").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Account(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitAppendsEntryInOneTransaction(t *testing.T) {
	repo, mock := newLedgerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("40"))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "user-1", "deduction", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "pred-1", "ML request").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	predictionID := "pred-1"
	entry, err := repo.Debit(context.Background(), LedgerEntryParams{
		AccountID:    "user-1",
		Type:         models.TransactionDeduction,
		Amount:       decimal.NewFromInt(10),
		Description:  "ML request",
		PredictionID: &predictionID,
	})
	require.NoError(t, err)

	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-10)))
	assert.True(t, entry.BalanceBefore.Equal(decimal.NewFromInt(50)))
	assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(40)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitInsufficientBalanceRollsBack(t *testing.T) {
	repo, mock := newLedgerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.Debit(context.Background(), LedgerEntryParams{
		AccountID: "user-1",
		Type:      models.TransactionDeduction,
		Amount:    decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitMissingAccount(t *testing.T) {
	repo, mock := newLedgerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("ghost", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := repo.Debit(context.Background(), LedgerEntryParams{
		AccountID: "ghost",
		Type:      models.TransactionDeduction,
		Amount:    decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditComputesSnapshots(t *testing.T) {
	repo, mock := newLedgerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("150.50"))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "user-1", "deposit", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, "top up").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	entry, err := repo.Credit(context.Background(), LedgerEntryParams{
		AccountID:   "user-1",
		Type:        models.TransactionDeposit,
		Amount:      decimal.RequireFromString("50.50"),
		Description: "top up",
	})
	require.NoError(t, err)

	assert.True(t, entry.BalanceBefore.Equal(decimal.NewFromInt(100)))
	assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("150.50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditMissingAccount(t *testing.T) {
	repo, mock := newLedgerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("ghost", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Credit(context.Background(), LedgerEntryParams{
		AccountID: "ghost",
		Type:      models.TransactionDeposit,
		Amount:    decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionsScansNullablePredictionID(t *testing.T) {
	repo, mock := newLedgerMock(t)

	rows := sqlmock.NewRows([]string{
		"id", "account_id", "type", "amount", "balance_before", "balance_after", "prediction_id", "description", "created_at",
	}).
		AddRow("tx-2", "user-1", "deduction", "-10", "100", "90", "pred-1", "ML request", time.Now()).
		AddRow("tx-1", "user-1", "deposit", "100", "0", "100", nil, "top up", time.Now())
	mock.ExpectQuery("SELECT id, account_id, type").
		WithArgs("user-1", 10).
		WillReturnRows(rows)

	entries, err := repo.Transactions(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NotNil(t, entries[0].PredictionID)
	assert.Equal(t, "pred-1", *entries[0].PredictionID)
	assert.Nil(t, entries[1].PredictionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionsDefaultsLimit(t *testing.T) {
	repo, mock := newLedgerMock(t)

	mock.ExpectQuery("SELECT id, account_id, type").
		WithArgs("user-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "type", "amount", "balance_before", "balance_after", "prediction_id", "description", "created_at",
		}))

	entries, err := repo.Transactions(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
