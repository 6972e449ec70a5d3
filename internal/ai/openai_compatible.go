package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAICompatibleClient talks to any provider exposing the OpenAI
// /embeddings and /chat/completions endpoints.
type OpenAICompatibleClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	chatModel      string
	embeddingModel string
}

func NewOpenAICompatibleClient(baseURL, apiKey, chatModel, embeddingModel string) *OpenAICompatibleClient {
	return &OpenAICompatibleClient{
		httpClient:     &http.Client{Timeout: 90 * time.Second},
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:         strings.TrimSpace(apiKey),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
	}
}

func (c *OpenAICompatibleClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

// Embed returns the embedding vector for the given text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.baseURL == "" || c.apiKey == "" || c.embeddingModel == "" {
		return nil, fmt.Errorf("%w: embedding endpoint is not configured", ErrEmbeddingUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: embedding input is empty", ErrEmbeddingRejected)
	}

	reqBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": text,
	}
	status, raw, err := postJSON(ctx, c.httpClient, c.baseURL+"/embeddings", c.headers(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if status >= 300 {
		return nil, embeddingStatusError(status, raw)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse embedding json failed: %v", ErrEmbeddingRejected, err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", ErrEmbeddingRejected)
	}
	return parsed.Data[0].Embedding, nil
}

// Complete sends prompt as a single user message.
func (c *OpenAICompatibleClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, []ChatMessage{{Role: "user", Content: prompt}})
}

func (c *OpenAICompatibleClient) chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if c.baseURL == "" || c.apiKey == "" || c.chatModel == "" {
		return "", fmt.Errorf("%w: chat endpoint is not configured", ErrCompletionFailed)
	}
	reqBody := map[string]interface{}{
		"model":    c.chatModel,
		"messages": messages,
		"stream":   false,
	}
	status, raw, err := postJSON(ctx, c.httpClient, c.baseURL+"/chat/completions", c.headers(), reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if status >= 300 {
		return "", completionStatusError(status, raw)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse llm json failed: %v", ErrCompletionFailed, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty llm choices", ErrCompletionFailed)
	}
	return parsed.Choices[0].Message.Content, nil
}
