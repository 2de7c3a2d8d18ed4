package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nutriadvisor/internal/models"
	"nutriadvisor/internal/queue"
)

// ModelCatalog resolves capability references to catalog entries.
type ModelCatalog interface {
	Get(ctx context.Context, id string) (*models.MLModel, error)
	ListActive(ctx context.Context) ([]models.MLModel, error)
}

// Inferencer is the single operation the external inference collaborator
// exposes. Implementations live in internal/clients.
type Inferencer interface {
	Infer(ctx context.Context, model *models.MLModel, input models.PredictionInput) (string, error)
}

// TaskQueue hands accepted requests to the worker.
type TaskQueue interface {
	Publish(ctx context.Context, task queue.Task) error
}

// AdvisorService sequences a chat request: resolve the model, charge the
// ledger, record the prediction, dispatch to the inference collaborator and
// reconcile the outcome. A failed or timed-out inference is absorbed into
// the prediction's failed state and the charged cost is refunded.
type AdvisorService struct {
	catalog      ModelCatalog
	balance      *BalanceService
	predictions  *PredictionService
	tasks        TaskQueue // nil dispatches synchronously
	infer        Inferencer
	inferTimeout time.Duration
	logger       *zap.Logger
}

// NewAdvisorService builds the orchestrator. Pass a nil TaskQueue to run
// inference inline instead of through the worker.
func NewAdvisorService(
	catalog ModelCatalog,
	balance *BalanceService,
	predictions *PredictionService,
	tasks TaskQueue,
	infer Inferencer,
	inferTimeout time.Duration,
	logger *zap.Logger,
) *AdvisorService {
	if inferTimeout <= 0 {
		inferTimeout = 120 * time.Second
	}
	return &AdvisorService{
		catalog:      catalog,
		balance:      balance,
		predictions:  predictions,
		tasks:        tasks,
		infer:        infer,
		inferTimeout: inferTimeout,
		logger:       logger,
	}
}

// SendMessage accepts a chat request. The account is charged the model's
// cost and a pending prediction is recorded before anything slow happens;
// a rejected request (insufficient balance, unknown or disabled model)
// leaves no residual state.
func (s *AdvisorService) SendMessage(ctx context.Context, accountID, modelID, message string, history []models.ChatTurn) (*models.Prediction, error) {
	if strings.TrimSpace(message) == "" {
		return nil, models.ErrEmptyMessage
	}

	model, err := s.catalog.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !model.Active() {
		return nil, models.ErrModelUnavailable
	}

	predictionID := uuid.NewString()
	description := fmt.Sprintf("ML request: %s", truncate(message, 50))
	if _, err := s.balance.Charge(ctx, accountID, model.CostPerRequest, description, &predictionID); err != nil {
		return nil, err
	}

	input := models.PredictionInput{Message: message, ConversationHistory: history}
	prediction, err := s.predictions.Create(ctx, CreatePredictionParams{
		ID:        predictionID,
		AccountID: accountID,
		ModelID:   model.ID,
		Input:     input,
		Cost:      model.CostPerRequest,
	})
	if err != nil {
		// The debit landed but the prediction did not; give the money back.
		s.refund(ctx, accountID, predictionID, model.CostPerRequest)
		return nil, err
	}

	if s.tasks != nil {
		task := queue.Task{
			PredictionID:        predictionID,
			AccountID:           accountID,
			ModelID:             model.ID,
			Message:             message,
			ConversationHistory: history,
		}
		if err := s.tasks.Publish(ctx, task); err != nil {
			s.failAndRefund(ctx, prediction, fmt.Sprintf("dispatch failed: %v", err))
			return nil, fmt.Errorf("advisor: dispatch: %w", err)
		}
		return prediction, nil
	}

	if err := s.Execute(ctx, predictionID); err != nil {
		return nil, err
	}
	return s.predictions.Get(ctx, predictionID)
}

// Execute runs one accepted prediction to a terminal state: mark
// processing, call the collaborator under the configured timeout, then
// complete or fail (with refund). Safe to call again for a duplicate queue
// delivery: the guarded pending->processing transition rejects re-runs.
func (s *AdvisorService) Execute(ctx context.Context, predictionID string) error {
	prediction, err := s.predictions.Get(ctx, predictionID)
	if err != nil {
		return err
	}
	if prediction.Status.Terminal() {
		return fmt.Errorf("%w: prediction %s is %s", models.ErrInvalidTransition, predictionID, prediction.Status)
	}

	model, err := s.catalog.Get(ctx, prediction.ModelID)
	if err != nil {
		s.failAndRefund(ctx, prediction, fmt.Sprintf("model %s no longer available", prediction.ModelID))
		return err
	}

	if err := s.predictions.MarkProcessing(ctx, predictionID); err != nil {
		return err
	}

	inferCtx, cancel := context.WithTimeout(ctx, s.inferTimeout)
	defer cancel()

	started := time.Now()
	response, err := s.infer.Infer(inferCtx, model, prediction.Input)
	elapsed := time.Since(started)

	if err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(inferCtx.Err(), context.DeadlineExceeded) {
			message = fmt.Sprintf("inference timeout after %s", s.inferTimeout)
		}
		s.failAndRefund(ctx, prediction, message)
		return nil
	}

	if err := s.predictions.Complete(ctx, predictionID, response, elapsed.Milliseconds()); err != nil {
		// A sweeper or duplicate delivery got there first; the record is
		// already terminal and must not be resurrected.
		return err
	}
	return nil
}

// SweepStale force-fails predictions stuck in pending/processing beyond
// maxAge (for example after a worker crash) and refunds their charge.
// Returns how many records were swept.
func (s *AdvisorService) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	message := fmt.Sprintf("timed out: no result within %s", maxAge)
	stale, err := s.predictions.FailStale(ctx, cutoff, message)
	if err != nil {
		return 0, err
	}
	for i := range stale {
		p := stale[i]
		s.refund(ctx, p.AccountID, p.ID, p.Cost)
	}
	if len(stale) > 0 {
		s.logger.Warn("swept stale predictions", zap.Int("count", len(stale)))
	}
	return len(stale), nil
}

// failAndRefund writes the terminal failed state and, only when that
// transition actually applied, refunds the charged cost. A lost race
// (already terminal) must not produce a second refund.
func (s *AdvisorService) failAndRefund(ctx context.Context, prediction *models.Prediction, message string) {
	if err := s.predictions.Fail(ctx, prediction.ID, message); err != nil {
		s.logger.Warn("skip refund, prediction already settled",
			zap.String("prediction_id", prediction.ID),
			zap.Error(err),
		)
		return
	}
	s.refund(ctx, prediction.AccountID, prediction.ID, prediction.Cost)
}

func (s *AdvisorService) refund(ctx context.Context, accountID, predictionID string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	description := fmt.Sprintf("Refund for failed ML request: %s", truncate(predictionID, 8))
	if _, err := s.balance.Refund(ctx, accountID, amount, description, &predictionID); err != nil {
		s.logger.Error("refund failed",
			zap.String("account_id", accountID),
			zap.String("prediction_id", predictionID),
			zap.Error(err),
		)
	}
}

// truncate cuts after n runes, never mid-sequence in multi-byte text.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
