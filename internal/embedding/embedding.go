package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"deckgen/internal/config"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewEmbedder creates a text embedder for the configured provider
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	if llmConfig.Provider == config.ProviderOllama {
		return NewOllamaEmbedder(llmConfig)
	}

	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating OpenAI embedder")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init embedding llm: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

// new ollama embedder
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating Ollama embedder")

	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init embedding llm: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

// GenerateEmbeddings embeds passages in one batch, keeping input order
func GenerateEmbeddings(ctx context.Context, embedder embeddings.Embedder, passages []string) ([][]float32, error) {
	if len(passages) == 0 {
		log.Info().Msg("No passages to embed")
		return nil, nil
	}
	vectors, err := embedder.EmbedDocuments(ctx, passages)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d passages", len(vectors), len(passages))
	}
	return vectors, nil
}

// EmbeddingFunc adapts a langchaingo embedder to the vector store callback shape.
func EmbeddingFunc(embedder embeddings.Embedder) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
