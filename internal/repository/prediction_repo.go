package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nutriadvisor/internal/models"
)

// PredictionRepository persists prediction records. Status transitions are
// conditional updates guarded on the current status, so a duplicate or
// out-of-order transition matches zero rows instead of overwriting a
// terminal state.
type PredictionRepository struct {
	db *sql.DB
}

// NewPredictionRepository returns repository.
func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const predictionColumns = `id, account_id, model_id, input, output, status, cost, error_message, created_at, started_at, completed_at, processing_ms`

// Create inserts a new pending prediction.
func (r *PredictionRepository) Create(ctx context.Context, p *models.Prediction) error {
	input, err := json.Marshal(p.Input)
	if err != nil {
		return fmt.Errorf("prediction: encode input: %w", err)
	}
	const query = `
		INSERT INTO predictions (id, account_id, model_id, input, status, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		p.ID,
		p.AccountID,
		p.ModelID,
		input,
		p.Status,
		p.Cost,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("prediction: insert: %w", err)
	}
	return nil
}

// Get returns a prediction by id.
func (r *PredictionRepository) Get(ctx context.Context, id string) (*models.Prediction, error) {
	query := fmt.Sprintf(`SELECT %s FROM predictions WHERE id = $1`, predictionColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetForAccount returns a prediction only when it belongs to the account.
func (r *PredictionRepository) GetForAccount(ctx context.Context, id, accountID string) (*models.Prediction, error) {
	query := fmt.Sprintf(`SELECT %s FROM predictions WHERE id = $1 AND account_id = $2`, predictionColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, accountID))
}

// ListByAccount returns latest predictions for an account, newest first.
func (r *PredictionRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Prediction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s FROM predictions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, predictionColumns)
	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []models.Prediction
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return predictions, nil
}

// MarkProcessing moves pending -> processing and stamps started_at.
func (r *PredictionRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `
		UPDATE predictions
		SET status = $2, started_at = NOW()
		WHERE id = $1 AND status = $3
	`
	return r.transition(ctx, id, query, id, models.PredictionProcessing, models.PredictionPending)
}

// Complete moves processing -> completed and records the output.
func (r *PredictionRepository) Complete(ctx context.Context, id string, output models.PredictionOutput, processingMS int64) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("prediction: encode output: %w", err)
	}
	const query = `
		UPDATE predictions
		SET status = $2, output = $3, processing_ms = $4, error_message = NULL, completed_at = NOW()
		WHERE id = $1 AND status = $5
	`
	return r.transition(ctx, id, query, id, models.PredictionCompleted, data, processingMS, models.PredictionProcessing)
}

// Fail moves pending or processing -> failed and records the message.
func (r *PredictionRepository) Fail(ctx context.Context, id, message string) error {
	const query = `
		UPDATE predictions
		SET status = $2, error_message = $3, completed_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`
	return r.transition(ctx, id, query, id, models.PredictionFailed, message, models.PredictionPending, models.PredictionProcessing)
}

// FailStale force-fails every non-terminal prediction created before the
// cutoff and returns the failed rows so the caller can refund them.
func (r *PredictionRepository) FailStale(ctx context.Context, cutoff time.Time, message string) ([]models.Prediction, error) {
	const query = `
		UPDATE predictions
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE status IN ($3, $4) AND created_at < $5
		RETURNING id, account_id, cost
	`
	rows, err := r.db.QueryContext(ctx, query,
		models.PredictionFailed,
		message,
		models.PredictionPending,
		models.PredictionProcessing,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("prediction: fail stale: %w", err)
	}
	defer rows.Close()

	var failed []models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Cost); err != nil {
			return nil, err
		}
		p.Status = models.PredictionFailed
		failed = append(failed, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return failed, nil
}

func (r *PredictionRepository) transition(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("prediction: transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("prediction: transition result: %w", err)
	}
	if affected == 0 {
		return r.resolveRejectedTransition(ctx, id)
	}
	return nil
}

// resolveRejectedTransition tells a missing prediction apart from a guard
// that matched no row because the status had already moved on.
func (r *PredictionRepository) resolveRejectedTransition(ctx context.Context, id string) error {
	var status models.PredictionStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM predictions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrPredictionNotFound
	}
	if err != nil {
		return fmt.Errorf("prediction: resolve transition: %w", err)
	}
	return fmt.Errorf("%w: prediction %s is %s", models.ErrInvalidTransition, id, status)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PredictionRepository) scanOne(row *sql.Row) (*models.Prediction, error) {
	p, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPredictionNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PredictionRepository) scanRow(row rowScanner) (*models.Prediction, error) {
	var (
		p      models.Prediction
		input  []byte
		output []byte
	)
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.ModelID,
		&input,
		&output,
		&p.Status,
		&p.Cost,
		&p.ErrorMessage,
		&p.CreatedAt,
		&p.StartedAt,
		&p.CompletedAt,
		&p.ProcessingMS,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &p.Input); err != nil {
		return nil, fmt.Errorf("prediction: decode input: %w", err)
	}
	if len(output) > 0 {
		var out models.PredictionOutput
		if err := json.Unmarshal(output, &out); err != nil {
			return nil, fmt.Errorf("prediction: decode output: %w", err)
		}
		p.Output = &out
	}
	return &p, nil
}
