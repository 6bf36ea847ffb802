package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"dms/types"
)

// Message is a single chat message sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider issues one completion request against one model. The fallback
// chain is responsible for retries and model switching.
type Provider interface {
	Complete(ctx context.Context, messages []Message, model string) (string, error)
}

// OpenRouterClient implements Provider against the OpenRouter API.
type OpenRouterClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func NewOpenRouterClient(apiKey, baseURL string, timeout time.Duration) *OpenRouterClient {
	return &OpenRouterClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *OpenRouterClient) Complete(ctx context.Context, messages []Message, model string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "DMS - Document Management System")

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts and connection failures are worth another attempt.
		return "", &types.ProviderError{
			Model:     model,
			Message:   err.Error(),
			Transient: true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(model, resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", &types.ProviderError{
			Model:     model,
			Message:   "invalid response format: no choices",
			Transient: true,
		}
	}

	return out.Choices[0].Message.Content, nil
}

// ListModels returns the identifiers of models available on OpenRouter.
func (c *OpenRouterClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list models: status %d: %s", resp.StatusCode, string(body))
	}

	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	ids := make([]string, len(out.Data))
	for i, m := range out.Data {
		ids[i] = m.ID
	}
	return ids, nil
}

// classifyStatus maps an HTTP error status onto the transient /
// non-transient split the fallback chain relies on: 429 and 5xx are
// retryable, 4xx (auth, bad request, unknown model) are not.
func classifyStatus(model string, resp *http.Response) error {
	msg := "unknown error"
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Error != nil {
		msg = out.Error.Message
	}

	transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return &types.ProviderError{
		Model:      model,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Transient:  transient,
	}
}

var _ Provider = (*OpenRouterClient)(nil)

// ErrNoModels is returned when a fallback chain is built without any
// configured model.
var ErrNoModels = errors.New("no models configured")
