package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"nutriadvisor/internal/models"
	"nutriadvisor/internal/queue"
	"nutriadvisor/internal/repository"
)

// fakeLedger is an in-memory LedgerStore with the same contract as the SQL
// implementation: conditional debits and one appended entry per mutation.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	entries  []models.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[string]*models.Account)}
}

func (f *fakeLedger) seed(accountID string, balance decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[accountID] = &models.Account{ID: accountID, Balance: balance}
}

func (f *fakeLedger) EnsureAccount(_ context.Context, accountID string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[accountID]
	if !ok {
		acc = &models.Account{ID: accountID, CreatedAt: time.Now()}
		f.accounts[accountID] = acc
	}
	snapshot := *acc
	return &snapshot, nil
}

func (f *fakeLedger) Account(_ context.Context, accountID string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[accountID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	snapshot := *acc
	return &snapshot, nil
}

func (f *fakeLedger) Credit(_ context.Context, p repository.LedgerEntryParams) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[p.AccountID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	before := acc.Balance
	acc.Balance = before.Add(p.Amount)
	entry := models.Transaction{
		ID:            fmt.Sprintf("tx-%d", len(f.entries)+1),
		AccountID:     p.AccountID,
		Type:          p.Type,
		Amount:        p.Amount,
		BalanceBefore: before,
		BalanceAfter:  acc.Balance,
		PredictionID:  p.PredictionID,
		Description:   p.Description,
		CreatedAt:     time.Now(),
	}
	f.entries = append(f.entries, entry)
	return &entry, nil
}

func (f *fakeLedger) Debit(_ context.Context, p repository.LedgerEntryParams) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[p.AccountID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	if acc.Balance.LessThan(p.Amount) {
		return nil, models.ErrInsufficientBalance
	}
	before := acc.Balance
	acc.Balance = before.Sub(p.Amount)
	acc.TotalSpent = acc.TotalSpent.Add(p.Amount)
	acc.TotalPredictions++
	entry := models.Transaction{
		ID:            fmt.Sprintf("tx-%d", len(f.entries)+1),
		AccountID:     p.AccountID,
		Type:          p.Type,
		Amount:        p.Amount.Neg(),
		BalanceBefore: before,
		BalanceAfter:  acc.Balance,
		PredictionID:  p.PredictionID,
		Description:   p.Description,
		CreatedAt:     time.Now(),
	}
	f.entries = append(f.entries, entry)
	return &entry, nil
}

func (f *fakeLedger) Transactions(_ context.Context, accountID string, limit int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].AccountID == accountID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeLedger) entryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *fakeLedger) balance(accountID string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[accountID].Balance
}

// fakePredictionStore mirrors the guarded-transition contract of the SQL
// store.
type fakePredictionStore struct {
	mu    sync.Mutex
	preds map[string]*models.Prediction
	order []string
}

func newFakePredictionStore() *fakePredictionStore {
	return &fakePredictionStore{preds: make(map[string]*models.Prediction)}
}

func (f *fakePredictionStore) Create(_ context.Context, p *models.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.CreatedAt = time.Now()
	stored := *p
	f.preds[p.ID] = &stored
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakePredictionStore) Get(_ context.Context, id string) (*models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.preds[id]
	if !ok {
		return nil, models.ErrPredictionNotFound
	}
	snapshot := *p
	return &snapshot, nil
}

func (f *fakePredictionStore) GetForAccount(ctx context.Context, id, accountID string) (*models.Prediction, error) {
	p, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AccountID != accountID {
		return nil, models.ErrPredictionNotFound
	}
	return p, nil
}

func (f *fakePredictionStore) ListByAccount(_ context.Context, accountID string, limit int) ([]models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Prediction
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		if p := f.preds[f.order[i]]; p.AccountID == accountID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePredictionStore) MarkProcessing(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.preds[id]
	if !ok {
		return models.ErrPredictionNotFound
	}
	if p.Status != models.PredictionPending {
		return fmt.Errorf("%w: prediction %s is %s", models.ErrInvalidTransition, id, p.Status)
	}
	now := time.Now()
	p.Status = models.PredictionProcessing
	p.StartedAt = &now
	return nil
}

func (f *fakePredictionStore) Complete(_ context.Context, id string, output models.PredictionOutput, processingMS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.preds[id]
	if !ok {
		return models.ErrPredictionNotFound
	}
	if p.Status != models.PredictionProcessing {
		return fmt.Errorf("%w: prediction %s is %s", models.ErrInvalidTransition, id, p.Status)
	}
	now := time.Now()
	p.Status = models.PredictionCompleted
	p.Output = &output
	p.ErrorMessage = nil
	p.ProcessingMS = &processingMS
	p.CompletedAt = &now
	return nil
}

func (f *fakePredictionStore) Fail(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.preds[id]
	if !ok {
		return models.ErrPredictionNotFound
	}
	if p.Status != models.PredictionPending && p.Status != models.PredictionProcessing {
		return fmt.Errorf("%w: prediction %s is %s", models.ErrInvalidTransition, id, p.Status)
	}
	now := time.Now()
	p.Status = models.PredictionFailed
	p.ErrorMessage = &message
	p.CompletedAt = &now
	return nil
}

func (f *fakePredictionStore) FailStale(_ context.Context, cutoff time.Time, message string) ([]models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var failed []models.Prediction
	for _, p := range f.preds {
		if p.Status.Terminal() || !p.CreatedAt.Before(cutoff) {
			continue
		}
		now := time.Now()
		p.Status = models.PredictionFailed
		p.ErrorMessage = &message
		p.CompletedAt = &now
		failed = append(failed, *p)
	}
	return failed, nil
}

// fakeCatalog serves a fixed model set.
type fakeCatalog struct {
	models map[string]models.MLModel
}

func newFakeCatalog(entries ...models.MLModel) *fakeCatalog {
	c := &fakeCatalog{models: make(map[string]models.MLModel)}
	for _, m := range entries {
		c.models[m.ID] = m
	}
	return c
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*models.MLModel, error) {
	m, ok := f.models[id]
	if !ok {
		return nil, models.ErrModelNotFound
	}
	return &m, nil
}

func (f *fakeCatalog) ListActive(_ context.Context) ([]models.MLModel, error) {
	var active []models.MLModel
	for _, m := range f.models {
		if m.Active() {
			active = append(active, m)
		}
	}
	return active, nil
}

// fakeInferencer returns a canned response or error; with block set it
// waits for context cancellation to simulate a hung collaborator.
type fakeInferencer struct {
	mu       sync.Mutex
	response string
	err      error
	block    bool
	calls    int
}

func (f *fakeInferencer) Infer(ctx context.Context, _ *models.MLModel, _ models.PredictionInput) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeInferencer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeTaskQueue records published tasks.
type fakeTaskQueue struct {
	mu        sync.Mutex
	published []queue.Task
	err       error
}

func (f *fakeTaskQueue) Publish(_ context.Context, task queue.Task) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, task)
	return nil
}
