package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PredictionStatus is the lifecycle label of a prediction.
// Allowed transitions: pending -> processing -> completed | failed,
// plus pending -> failed. Terminal states are final.
type PredictionStatus string

const (
	PredictionPending    PredictionStatus = "pending"
	PredictionProcessing PredictionStatus = "processing"
	PredictionCompleted  PredictionStatus = "completed"
	PredictionFailed     PredictionStatus = "failed"
)

// Terminal reports whether the status can never change again.
func (s PredictionStatus) Terminal() bool {
	return s == PredictionCompleted || s == PredictionFailed
}

// ChatTurn is one message of the conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PredictionInput is the payload sent to the inference collaborator.
type PredictionInput struct {
	Message             string     `json:"message"`
	ConversationHistory []ChatTurn `json:"conversation_history,omitempty"`
}

// PredictionOutput is the stored result of a completed prediction.
type PredictionOutput struct {
	Response string `json:"response"`
}

// Prediction tracks one request against the inference collaborator.
type Prediction struct {
	ID           string            `db:"id" json:"id"`
	AccountID    string            `db:"account_id" json:"account_id"`
	ModelID      string            `db:"model_id" json:"model_id"`
	Input        PredictionInput   `db:"input" json:"input"`
	Output       *PredictionOutput `db:"output" json:"output,omitempty"`
	Status       PredictionStatus  `db:"status" json:"status"`
	Cost         decimal.Decimal   `db:"cost" json:"cost"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	StartedAt    *time.Time        `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	ProcessingMS *int64            `db:"processing_ms" json:"processing_ms,omitempty"`
}
