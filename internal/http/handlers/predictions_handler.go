package handlers

import (
	"net/http"
	"strings"

	"nutriadvisor/internal/service"
)

// NewPredictionsHandler returns GET /api/v1/predictions handler.
func NewPredictionsHandler(svc *service.PredictionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountID(w, r)
		if !ok {
			return
		}
		predictions, err := svc.ListByAccount(r.Context(), account, limitParam(r, 50))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"predictions": predictions,
		})
	}
}

// NewPredictionGetHandler returns GET /api/v1/predictions/{id} handler for
// status polling. Lookups are owner-scoped: another account's prediction is
// indistinguishable from a missing one.
func NewPredictionGetHandler(svc *service.PredictionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountID(w, r)
		if !ok {
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/predictions/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusNotFound, "prediction not found")
			return
		}
		prediction, err := svc.GetForAccount(r.Context(), id, account)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prediction)
	}
}
