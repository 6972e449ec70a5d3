// Package ai holds the ports and HTTP adapters for the external embedding
// and completion providers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmbeddingUnavailable means the provider could not be reached or is
	// not configured. Retrying later may succeed.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrEmbeddingRejected means the provider refused this input.
	ErrEmbeddingRejected = errors.New("embedding request rejected")
	ErrCompletionFailed  = errors.New("completion provider failed")
)

// Embedder turns one text into a fixed-dimension vector. Chunks and questions
// go through the same call. Implementations never substitute a zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer turns one prompt into prose.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type ProviderConfig struct {
	Provider       string
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
}

// NewProviders builds the embedder/completer pair selected by cfg.Provider.
func NewProviders(cfg ProviderConfig) (Embedder, Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		c := NewOpenAICompatibleClient(cfg.BaseURL, cfg.APIKey, cfg.ChatModel, cfg.EmbeddingModel)
		return c, c, nil
	case ProviderGemini:
		c := NewGeminiClient(cfg.BaseURL, cfg.APIKey, cfg.ChatModel, cfg.EmbeddingModel)
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
