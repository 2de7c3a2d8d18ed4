package repository

import (
	"context"
	"database/sql"
	"errors"

	"nutriadvisor/internal/models"
)

// ModelRepository handles model catalog lookups.
type ModelRepository struct {
	db *sql.DB
}

// NewModelRepository returns repository.
func NewModelRepository(db *sql.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// Get returns a catalog entry by id.
func (r *ModelRepository) Get(ctx context.Context, id string) (*models.MLModel, error) {
	const query = `
		SELECT id, name, description, version, status, cost_per_request, provider, endpoint, created_at, updated_at
		FROM ml_models
		WHERE id = $1
	`
	var m models.MLModel
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Version,
		&m.Status,
		&m.CostPerRequest,
		&m.Provider,
		&m.Endpoint,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListActive returns models currently accepting requests.
func (r *ModelRepository) ListActive(ctx context.Context) ([]models.MLModel, error) {
	const query = `
		SELECT id, name, description, version, status, cost_per_request, provider, endpoint, created_at, updated_at
		FROM ml_models
		WHERE status = 'active'
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var catalog []models.MLModel
	for rows.Next() {
		var m models.MLModel
		if err := rows.Scan(
			&m.ID,
			&m.Name,
			&m.Description,
			&m.Version,
			&m.Status,
			&m.CostPerRequest,
			&m.Provider,
			&m.Endpoint,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		catalog = append(catalog, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return catalog, nil
}
