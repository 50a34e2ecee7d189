// Package remote adapts chromem-go's embedding functions (Ollama, OpenAI)
// to memory.Embedder.
package remote

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config configures a remote embedder.
type Config struct {
	// Provider is "ollama" or "openai".
	Provider string

	// Model is the embedding model name.
	// Defaults: nomic-embed-text (Ollama), text-embedding-3-small (OpenAI).
	Model string

	// BaseURL overrides the provider endpoint (Ollama only).
	// Empty uses http://localhost:11434/api.
	BaseURL string

	// APIKey authenticates against OpenAI.
	APIKey string

	// Dimensions is reported by Dimensions(). Zero means "model-defined".
	Dimensions int
}

// Embedder calls a remote embedding API through chromem-go.
type Embedder struct {
	embed      chromem.EmbeddingFunc
	dimensions int
}

// New creates a remote embedder for cfg.Provider.
func New(cfg Config) (*Embedder, error) {
	var fn chromem.EmbeddingFunc

	switch cfg.Provider {
	case ProviderOllama:
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		fn = chromem.NewEmbeddingFuncOllama(model, cfg.BaseURL)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedder: API key is required")
		}
		model := chromem.EmbeddingModelOpenAI3Small
		if cfg.Model != "" {
			model = chromem.EmbeddingModelOpenAI(cfg.Model)
		}
		fn = chromem.NewEmbeddingFuncOpenAI(cfg.APIKey, model)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return &Embedder{embed: fn, dimensions: cfg.Dimensions}, nil
}

// NewFromFunc wraps an existing chromem embedding function.
func NewFromFunc(fn chromem.EmbeddingFunc, dimensions int) *Embedder {
	return &Embedder{embed: fn, dimensions: dimensions}
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("remote embed: %w", err)
	}
	return vec, nil
}

// Dimensions returns the configured embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
