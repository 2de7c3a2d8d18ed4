package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Model providers supported by the inference clients.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// MLModel describes one entry of the model catalog: what it costs per
// request and where to reach it.
type MLModel struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description"`
	Version        string          `db:"version" json:"version"`
	Status         string          `db:"status" json:"status"`
	CostPerRequest decimal.Decimal `db:"cost_per_request" json:"cost_per_request"`
	Provider       string          `db:"provider" json:"provider"`
	Endpoint       string          `db:"endpoint" json:"endpoint"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Active reports whether the model may serve requests.
func (m *MLModel) Active() bool {
	return m.Status == "active"
}
