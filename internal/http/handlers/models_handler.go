package handlers

import (
	"context"
	"net/http"

	"nutriadvisor/internal/models"
)

// ModelLister exposes the active model catalog to clients choosing a model.
type ModelLister interface {
	ListActive(ctx context.Context) ([]models.MLModel, error)
}

// NewModelsHandler returns GET /api/v1/models handler.
func NewModelsHandler(catalog ModelLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := catalog.ListActive(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"models": active,
		})
	}
}
