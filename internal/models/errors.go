package models

import "errors"

// Domain errors shared by repositories and services. Handlers map these to
// HTTP status codes; everything else surfaces as an internal error.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrEmptyMessage        = errors.New("message must not be empty")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrModelNotFound       = errors.New("model not found")
	ErrModelUnavailable    = errors.New("model is not active")
	ErrPredictionNotFound  = errors.New("prediction not found")
	ErrInvalidTransition   = errors.New("invalid prediction status transition")
)
