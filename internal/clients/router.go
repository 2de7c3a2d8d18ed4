package clients

import (
	"context"
	"fmt"

	"nutriadvisor/internal/models"
)

// Inferencer mirrors service.Inferencer so the router can compose clients
// without importing the service package.
type Inferencer interface {
	Infer(ctx context.Context, model *models.MLModel, input models.PredictionInput) (string, error)
}

// Router dispatches by the model's provider field.
type Router struct {
	ollama Inferencer
	openai Inferencer
}

// NewRouter wires provider-specific clients behind one Infer operation.
func NewRouter(ollama, openai Inferencer) *Router {
	return &Router{ollama: ollama, openai: openai}
}

// Infer routes to the client matching the model's provider.
func (r *Router) Infer(ctx context.Context, model *models.MLModel, input models.PredictionInput) (string, error) {
	switch model.Provider {
	case models.ProviderOllama:
		if r.ollama == nil {
			return "", fmt.Errorf("clients: ollama provider not configured")
		}
		return r.ollama.Infer(ctx, model, input)
	case models.ProviderOpenAI:
		if r.openai == nil {
			return "", fmt.Errorf("clients: openai provider not configured")
		}
		return r.openai.Infer(ctx, model, input)
	default:
		return "", fmt.Errorf("clients: unknown provider %q", model.Provider)
	}
}
