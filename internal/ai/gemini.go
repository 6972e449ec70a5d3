package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google Generative Language REST API.
type GeminiClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	chatModel      string
	embeddingModel string
}

func NewGeminiClient(baseURL, apiKey, chatModel, embeddingModel string) *GeminiClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		httpClient:     &http.Client{Timeout: 90 * time.Second},
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(apiKey),
		chatModel:      strings.TrimPrefix(chatModel, "models/"),
		embeddingModel: strings.TrimPrefix(embeddingModel, "models/"),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

func (c *GeminiClient) headers() map[string]string {
	return map[string]string{"x-goog-api-key": c.apiKey}
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" || c.embeddingModel == "" {
		return nil, fmt.Errorf("%w: gemini embedding is not configured", ErrEmbeddingUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: embedding input is empty", ErrEmbeddingRejected)
	}

	reqBody := map[string]interface{}{
		"model":   "models/" + c.embeddingModel,
		"content": geminiContent{Parts: []geminiPart{{Text: text}}},
	}
	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embeddingModel)
	status, raw, err := postJSON(ctx, c.httpClient, url, c.headers(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if status >= 300 {
		return nil, embeddingStatusError(status, raw)
	}

	var parsed struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse gemini embedding failed: %v", ErrEmbeddingRejected, err)
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty gemini embedding", ErrEmbeddingRejected)
	}
	return parsed.Embedding.Values, nil
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.chatModel == "" {
		return "", fmt.Errorf("%w: gemini chat is not configured", ErrCompletionFailed)
	}
	reqBody := map[string]interface{}{
		"contents": []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.chatModel)
	status, raw, err := postJSON(ctx, c.httpClient, url, c.headers(), reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if status >= 300 {
		return "", completionStatusError(status, raw)
	}

	var parsed struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse gemini response failed: %v", ErrCompletionFailed, err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("%w: no gemini candidates", ErrCompletionFailed)
	}
	var b strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}
