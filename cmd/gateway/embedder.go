package main

import (
	"fmt"

	"github.com/becomeliminal/nim-memory-gateway/config"
	"github.com/becomeliminal/nim-memory-gateway/memory"
	"github.com/becomeliminal/nim-memory-gateway/memory/embedder/hash"
	"github.com/becomeliminal/nim-memory-gateway/memory/embedder/remote"
)

func newEmbedder(cfg config.EmbedderConfig) (memory.Embedder, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case config.EmbedderHash:
		return hash.New(), noop, nil
	case config.EmbedderOllama, config.EmbedderOpenAI:
		e, err := remote.New(remote.Config{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			BaseURL:  cfg.OllamaBaseURL,
			APIKey:   cfg.OpenAIAPIKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return e, noop, nil
	case config.EmbedderONNX:
		return newONNXEmbedder(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown embedder %q", cfg.Provider)
	}
}
