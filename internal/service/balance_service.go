package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nutriadvisor/internal/models"
	"nutriadvisor/internal/repository"
)

// LedgerStore is the persistence surface the balance service drives. The
// store is responsible for keeping the account update and the transaction
// append atomic as a unit.
type LedgerStore interface {
	EnsureAccount(ctx context.Context, accountID string) (*models.Account, error)
	Account(ctx context.Context, accountID string) (*models.Account, error)
	Credit(ctx context.Context, p repository.LedgerEntryParams) (*models.Transaction, error)
	Debit(ctx context.Context, p repository.LedgerEntryParams) (*models.Transaction, error)
	Transactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error)
}

// BalanceService applies ledger operations and enforces the non-negative
// balance rule.
type BalanceService struct {
	ledger LedgerStore
	logger *zap.Logger
}

// NewBalanceService builds service.
func NewBalanceService(ledger LedgerStore, logger *zap.Logger) *BalanceService {
	return &BalanceService{ledger: ledger, logger: logger}
}

// Deposit tops up the account balance.
func (s *BalanceService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if _, err := s.ledger.EnsureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	entry, err := s.ledger.Credit(ctx, repository.LedgerEntryParams{
		AccountID:   accountID,
		Type:        models.TransactionDeposit,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("balance deposited",
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()),
	)
	return entry, nil
}

// Charge debits the account for a prediction. The debit is rejected with
// ErrInsufficientBalance when the balance does not cover the amount; no
// partial debit and no transaction is recorded in that case.
func (s *BalanceService) Charge(ctx context.Context, accountID string, amount decimal.Decimal, description string, predictionID *string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if _, err := s.ledger.EnsureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	entry, err := s.ledger.Debit(ctx, repository.LedgerEntryParams{
		AccountID:    accountID,
		Type:         models.TransactionDeduction,
		Amount:       amount,
		Description:  description,
		PredictionID: predictionID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("balance charged",
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()),
	)
	return entry, nil
}

// Refund credits back a previously charged amount, tagged as a refund and
// linked to the prediction that caused it.
func (s *BalanceService) Refund(ctx context.Context, accountID string, amount decimal.Decimal, description string, predictionID *string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	entry, err := s.ledger.Credit(ctx, repository.LedgerEntryParams{
		AccountID:    accountID,
		Type:         models.TransactionRefund,
		Amount:       amount,
		Description:  description,
		PredictionID: predictionID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("balance refunded",
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()),
	)
	return entry, nil
}

// Adjust applies an administrative credit outside the deposit/refund flows.
func (s *BalanceService) Adjust(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if _, err := s.ledger.EnsureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.ledger.Credit(ctx, repository.LedgerEntryParams{
		AccountID:   accountID,
		Type:        models.TransactionAdjustment,
		Amount:      amount,
		Description: description,
	})
}

// Balance returns the account, creating a zero-balance one on first contact.
func (s *BalanceService) Balance(ctx context.Context, accountID string) (*models.Account, error) {
	return s.ledger.EnsureAccount(ctx, accountID)
}

// History returns the transaction log for an account, newest first.
func (s *BalanceService) History(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	return s.ledger.Transactions(ctx, accountID, limit)
}
