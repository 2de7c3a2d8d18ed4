package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"nutriadvisor/internal/models"
	"nutriadvisor/internal/service"
)

type sendMessageRequest struct {
	ModelID             string            `json:"model_id"`
	Message             string            `json:"message"`
	ConversationHistory []models.ChatTurn `json:"conversation_history"`
}

// NewChatHandler returns POST /api/v1/chat/message handler. A queued
// request answers 202 with the pending prediction to poll; a synchronous
// deployment answers 200 with the settled record.
func NewChatHandler(svc *service.AdvisorService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountID(w, r)
		if !ok {
			return
		}
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.ModelID == "" {
			writeError(w, http.StatusBadRequest, "model_id required")
			return
		}

		prediction, err := svc.SendMessage(r.Context(), account, req.ModelID, req.Message, req.ConversationHistory)
		if err != nil {
			logger.Warn("chat request rejected",
				zap.String("account_id", account),
				zap.String("model_id", req.ModelID),
				zap.Error(err),
			)
			writeDomainError(w, err)
			return
		}

		status := http.StatusOK
		if !prediction.Status.Terminal() {
			status = http.StatusAccepted
		}
		writeJSON(w, status, prediction)
	}
}
