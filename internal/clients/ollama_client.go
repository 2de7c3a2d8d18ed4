// Package clients holds HTTP clients for the inference collaborators. Both
// speak through the single Infer operation, so callers stay agnostic to
// whether the model is a local Ollama server or an OpenAI-compatible hosted
// API.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"nutriadvisor/internal/models"
)

// OllamaClient calls a local Ollama server's /api/generate endpoint.
type OllamaClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewOllamaClient returns HTTP client wrapper. The timeout bounds one full
// generate call.
func NewOllamaClient(baseURL string, timeout time.Duration, logger *zap.Logger) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Infer flattens the conversation into a single prompt and runs one
// non-streaming generation.
func (c *OllamaClient) Infer(ctx context.Context, model *models.MLModel, input models.PredictionInput) (string, error) {
	payload := ollamaRequest{
		Model:  model.Name,
		Prompt: buildPrompt(input),
		Stream: false,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL
	if model.Endpoint != "" {
		endpoint = strings.TrimRight(model.Endpoint, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("ollama request failed", zap.Error(err))
		return "", fmt.Errorf("ollama: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: read response: %w", err)
	}

	var parsed ollamaResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			return "", fmt.Errorf("ollama: %s", parsed.Error)
		}
		return "", fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("ollama: parse response: %w", err)
	}
	return parsed.Response, nil
}

// buildPrompt renders the history plus the new message as role-tagged turns
// with a trailing assistant cue.
func buildPrompt(input models.PredictionInput) string {
	var b strings.Builder
	for _, turn := range input.ConversationHistory {
		switch turn.Role {
		case "system":
			fmt.Fprintf(&b, "System: %s\n", turn.Content)
		case "assistant":
			fmt.Fprintf(&b, "Assistant: %s\n", turn.Content)
		default:
			fmt.Fprintf(&b, "User: %s\n", turn.Content)
		}
	}
	fmt.Fprintf(&b, "User: %s\n", input.Message)
	b.WriteString("Assistant:")
	return b.String()
}
