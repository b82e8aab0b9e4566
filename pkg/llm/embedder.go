package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig selects the Ollama model used to embed archived answers.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	BatchSize int
}

// NewEmbedderWithConfig returns an embedder backed by an Ollama server. The
// server is not contacted until the first embedding is requested.
func NewEmbedderWithConfig(config EmbedderConfig) (*embeddings.EmbedderImpl, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return emb, nil
}
