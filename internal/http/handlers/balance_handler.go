package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nutriadvisor/internal/service"
)

// NewBalanceHandler returns GET /api/v1/balance handler.
func NewBalanceHandler(svc *service.BalanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountID(w, r)
		if !ok {
			return
		}
		acc, err := svc.Balance(r.Context(), account)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// NewTopUpHandler returns POST /api/v1/balance/topup handler.
func NewTopUpHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountID(w, r)
		if !ok {
			return
		}
		var req topUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		entry, err := svc.Deposit(r.Context(), account, req.Amount, "Balance top-up")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		logger.Info("top-up accepted",
			zap.String("account_id", account),
			zap.String("amount", req.Amount.String()),
		)
		writeJSON(w, http.StatusCreated, entry)
	}
}

type adjustRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// NewAdjustHandler returns POST /api/v1/balance/adjust handler. Adjustments
// are operator credits outside the deposit/refund flows (goodwill credits,
// support corrections) and land in the ledger like any other entry.
func NewAdjustHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountID(w, r)
		if !ok {
			return
		}
		var req adjustRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Description == "" {
			req.Description = "Balance adjustment"
		}

		entry, err := svc.Adjust(r.Context(), account, req.Amount, req.Description)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		logger.Info("adjustment applied",
			zap.String("account_id", account),
			zap.String("amount", req.Amount.String()),
		)
		writeJSON(w, http.StatusCreated, entry)
	}
}

// NewTransactionsHandler returns GET /api/v1/transactions handler.
func NewTransactionsHandler(svc *service.BalanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountID(w, r)
		if !ok {
			return
		}
		transactions, err := svc.History(r.Context(), account, limitParam(r, 50))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"transactions": transactions,
		})
	}
}
