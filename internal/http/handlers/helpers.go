package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"nutriadvisor/internal/models"
)

const accountIDHeader = "X-User-ID"

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// accountID extracts the opaque account identifier supplied by the
// authentication layer in front of this service.
func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(accountIDHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing user id header")
		return "", false
	}
	return id, true
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

// writeDomainError maps domain errors to status codes; anything unmapped is
// an internal error with a generic body.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, models.ErrModelUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrModelNotFound),
		errors.Is(err, models.ErrPredictionNotFound),
		errors.Is(err, models.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
