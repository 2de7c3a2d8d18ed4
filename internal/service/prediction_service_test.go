package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutriadvisor/internal/models"
)

func newPredictionService(store *fakePredictionStore) *PredictionService {
	return NewPredictionService(store, zap.NewNop())
}

func createPending(t *testing.T, svc *PredictionService) *models.Prediction {
	t.Helper()
	p, err := svc.Create(context.Background(), CreatePredictionParams{
		AccountID: "user-1",
		ModelID:   "nutrition-advisor",
		Input:     models.PredictionInput{Message: "what should I eat after a run?"},
		Cost:      decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	return p
}

func TestCreateStartsPendingWithGeneratedID(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)

	p := createPending(t, svc)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.PredictionPending, p.Status)
	assert.Nil(t, p.Output)
	assert.Nil(t, p.ErrorMessage)
}

func TestCreateKeepsProvidedID(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)

	p, err := svc.Create(context.Background(), CreatePredictionParams{
		ID:        "pred-fixed",
		AccountID: "user-1",
		ModelID:   "nutrition-advisor",
		Input:     models.PredictionInput{Message: "hi"},
		Cost:      decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "pred-fixed", p.ID)
}

func TestLifecycleHappyPath(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)
	ctx := context.Background()

	p := createPending(t, svc)

	require.NoError(t, svc.MarkProcessing(ctx, p.ID))
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionProcessing, got.Status)
	assert.NotNil(t, got.StartedAt)

	require.NoError(t, svc.Complete(ctx, p.ID, "eat a banana", 120))
	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionCompleted, got.Status)
	require.NotNil(t, got.Output)
	assert.Equal(t, "eat a banana", got.Output.Response)
	require.NotNil(t, got.ProcessingMS)
	assert.Equal(t, int64(120), *got.ProcessingMS)
	assert.NotNil(t, got.CompletedAt)
}

func TestCompleteRequiresProcessing(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)
	ctx := context.Background()

	p := createPending(t, svc)
	err := svc.Complete(ctx, p.ID, "too soon", 1)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestTerminalStatesRejectFurtherTransitions(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)
	ctx := context.Background()

	p := createPending(t, svc)
	require.NoError(t, svc.MarkProcessing(ctx, p.ID))
	require.NoError(t, svc.Complete(ctx, p.ID, "done", 50))

	assert.ErrorIs(t, svc.MarkProcessing(ctx, p.ID), models.ErrInvalidTransition)
	assert.ErrorIs(t, svc.Complete(ctx, p.ID, "again", 51), models.ErrInvalidTransition)
	assert.ErrorIs(t, svc.Fail(ctx, p.ID, "late failure"), models.ErrInvalidTransition)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionCompleted, got.Status)
	assert.Equal(t, "done", got.Output.Response)
}

func TestFailFromPendingAndProcessing(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)
	ctx := context.Background()

	pending := createPending(t, svc)
	require.NoError(t, svc.Fail(ctx, pending.ID, "dispatch failed"))
	got, err := svc.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "dispatch failed", *got.ErrorMessage)

	processing := createPending(t, svc)
	require.NoError(t, svc.MarkProcessing(ctx, processing.ID))
	require.NoError(t, svc.Fail(ctx, processing.ID, "upstream error"))
	got, err = svc.Get(ctx, processing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionFailed, got.Status)
}

func TestGetUnknownPrediction(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrPredictionNotFound)
}

func TestGetForAccountScopesToOwner(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)
	ctx := context.Background()

	p := createPending(t, svc)

	got, err := svc.GetForAccount(ctx, p.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.GetForAccount(ctx, p.ID, "someone-else")
	assert.ErrorIs(t, err, models.ErrPredictionNotFound)
}

func TestFailStaleSkipsTerminalAndFresh(t *testing.T) {
	store := newFakePredictionStore()
	svc := newPredictionService(store)
	ctx := context.Background()

	stale := createPending(t, svc)
	store.preds[stale.ID].CreatedAt = time.Now().Add(-time.Hour)

	done := createPending(t, svc)
	store.preds[done.ID].CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, svc.MarkProcessing(ctx, done.ID))
	require.NoError(t, svc.Complete(ctx, done.ID, "ok", 10))

	fresh := createPending(t, svc)

	swept, err := svc.FailStale(ctx, time.Now().Add(-10*time.Minute), "timed out")
	require.NoError(t, err)
	require.Len(t, swept, 1)
	assert.Equal(t, stale.ID, swept[0].ID)

	got, err := svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionPending, got.Status)
}
