package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nutriadvisor/internal/models"
)

// PredictionStore is the persistence surface of the lifecycle tracker.
// Transition methods must be guarded on the current status and report
// ErrInvalidTransition when the guard matches nothing.
type PredictionStore interface {
	Create(ctx context.Context, p *models.Prediction) error
	Get(ctx context.Context, id string) (*models.Prediction, error)
	GetForAccount(ctx context.Context, id, accountID string) (*models.Prediction, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Prediction, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, output models.PredictionOutput, processingMS int64) error
	Fail(ctx context.Context, id, message string) error
	FailStale(ctx context.Context, cutoff time.Time, message string) ([]models.Prediction, error)
}

// PredictionService tracks the prediction lifecycle:
// pending -> processing -> completed | failed. It never touches the ledger;
// charging happens before Create and refunds are the orchestrator's call.
type PredictionService struct {
	store  PredictionStore
	logger *zap.Logger
}

// NewPredictionService builds service.
func NewPredictionService(store PredictionStore, logger *zap.Logger) *PredictionService {
	return &PredictionService{store: store, logger: logger}
}

// CreatePredictionParams describes a new pending prediction. ID may be
// pre-generated so the deduction transaction can reference it.
type CreatePredictionParams struct {
	ID        string
	AccountID string
	ModelID   string
	Input     models.PredictionInput
	Cost      decimal.Decimal
}

// Create records a new prediction in pending state.
func (s *PredictionService) Create(ctx context.Context, p CreatePredictionParams) (*models.Prediction, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	prediction := &models.Prediction{
		ID:        id,
		AccountID: p.AccountID,
		ModelID:   p.ModelID,
		Input:     p.Input,
		Status:    models.PredictionPending,
		Cost:      p.Cost,
	}
	if err := s.store.Create(ctx, prediction); err != nil {
		return nil, err
	}
	s.logger.Info("prediction created",
		zap.String("prediction_id", prediction.ID),
		zap.String("account_id", p.AccountID),
		zap.String("model_id", p.ModelID),
	)
	return prediction, nil
}

// MarkProcessing moves a pending prediction to processing.
func (s *PredictionService) MarkProcessing(ctx context.Context, id string) error {
	return s.store.MarkProcessing(ctx, id)
}

// Complete records the output and moves processing -> completed.
func (s *PredictionService) Complete(ctx context.Context, id, response string, processingMS int64) error {
	if err := s.store.Complete(ctx, id, models.PredictionOutput{Response: response}, processingMS); err != nil {
		return err
	}
	s.logger.Info("prediction completed",
		zap.String("prediction_id", id),
		zap.Int64("processing_ms", processingMS),
	)
	return nil
}

// Fail records the error message and moves a non-terminal prediction to
// failed.
func (s *PredictionService) Fail(ctx context.Context, id, message string) error {
	if err := s.store.Fail(ctx, id, message); err != nil {
		return err
	}
	s.logger.Warn("prediction failed",
		zap.String("prediction_id", id),
		zap.String("error", message),
	)
	return nil
}

// Get returns a prediction by id.
func (s *PredictionService) Get(ctx context.Context, id string) (*models.Prediction, error) {
	return s.store.Get(ctx, id)
}

// GetForAccount returns a prediction scoped to its owner.
func (s *PredictionService) GetForAccount(ctx context.Context, id, accountID string) (*models.Prediction, error) {
	return s.store.GetForAccount(ctx, id, accountID)
}

// ListByAccount returns an account's predictions, newest first.
func (s *PredictionService) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Prediction, error) {
	return s.store.ListByAccount(ctx, accountID, limit)
}

// FailStale force-fails predictions stuck in a non-terminal state since
// before the cutoff and returns them.
func (s *PredictionService) FailStale(ctx context.Context, cutoff time.Time, message string) ([]models.Prediction, error) {
	return s.store.FailStale(ctx, cutoff, message)
}
