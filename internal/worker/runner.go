package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"nutriadvisor/internal/models"
	"nutriadvisor/internal/queue"
)

// TaskSource abstracts the queue consumer for the runner loop.
type TaskSource interface {
	Next(ctx context.Context) (*queue.Delivery, error)
	Ack(ctx context.Context, d *queue.Delivery) error
	Nack(ctx context.Context, d *queue.Delivery, cause error) error
}

// Executor runs one accepted prediction to a terminal state.
type Executor interface {
	Execute(ctx context.Context, predictionID string) error
	SweepStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Runner consumes ML tasks and drives predictions to their terminal state.
// It also sweeps predictions left non-terminal by a crashed run.
type Runner struct {
	source        TaskSource
	executor      Executor
	staleAfter    time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger
}

// NewRunner builds runner.
func NewRunner(source TaskSource, executor Executor, staleAfter, sweepInterval time.Duration, logger *zap.Logger) *Runner {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Runner{
		source:        source,
		executor:      executor,
		staleAfter:    staleAfter,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Run consumes tasks until the context is cancelled. Read errors back off
// exponentially so a dead broker is re-dialed at second granularity, not in
// a tight loop.
func (r *Runner) Run(ctx context.Context) error {
	go r.sweepLoop(ctx)

	r.logger.Info("worker started",
		zap.Duration("stale_after", r.staleAfter),
		zap.Duration("sweep_interval", r.sweepInterval),
	)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delivery, err := r.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("failed to read task", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		if delivery == nil {
			continue
		}
		r.handle(ctx, delivery)
	}
}

// handle settles one delivery. Lifecycle conflicts (duplicate delivery,
// vanished prediction) are acked rather than retried: the record is already
// settled and redelivery cannot change that.
func (r *Runner) handle(ctx context.Context, delivery *queue.Delivery) {
	task := delivery.Task
	r.logger.Info("task received",
		zap.String("prediction_id", task.PredictionID),
		zap.String("model_id", task.ModelID),
		zap.Int("attempt", task.Attempt),
	)

	err := r.executor.Execute(ctx, task.PredictionID)
	switch {
	case err == nil:
		if ackErr := r.source.Ack(ctx, delivery); ackErr != nil {
			r.logger.Error("ack failed", zap.String("prediction_id", task.PredictionID), zap.Error(ackErr))
		}
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrPredictionNotFound):
		r.logger.Warn("task already settled, acking duplicate",
			zap.String("prediction_id", task.PredictionID),
			zap.Error(err),
		)
		if ackErr := r.source.Ack(ctx, delivery); ackErr != nil {
			r.logger.Error("ack failed", zap.String("prediction_id", task.PredictionID), zap.Error(ackErr))
		}
	default:
		r.logger.Error("task failed", zap.String("prediction_id", task.PredictionID), zap.Error(err))
		if nackErr := r.source.Nack(ctx, delivery, err); nackErr != nil {
			r.logger.Error("nack failed", zap.String("prediction_id", task.PredictionID), zap.Error(nackErr))
		}
	}
}

func (r *Runner) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := r.executor.SweepStale(ctx, r.staleAfter)
			if err != nil {
				r.logger.Error("sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				r.logger.Info("swept stale predictions", zap.Int("count", count))
			}
		}
	}
}
