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

// OpenAIClient calls an OpenAI-compatible chat completions endpoint (vLLM,
// hosted APIs).
type OpenAIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewOpenAIClient returns HTTP client wrapper. apiKey may be empty for
// local vLLM deployments.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Infer sends the conversation as a messages array and returns the first
// choice.
func (c *OpenAIClient) Infer(ctx context.Context, model *models.MLModel, input models.PredictionInput) (string, error) {
	messages := make([]chatMessage, 0, len(input.ConversationHistory)+1)
	for _, turn := range input.ConversationHistory {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: input.Message})

	data, err := json.Marshal(chatCompletionRequest{Model: model.Name, Messages: messages})
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL
	if model.Endpoint != "" {
		endpoint = strings.TrimRight(model.Endpoint, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("chat completion request failed", zap.Error(err))
		return "", fmt.Errorf("openai: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}

	var parsed chatCompletionResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
			return "", fmt.Errorf("openai: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("openai: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
