package webimage

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"deckgen/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator creates images through the OpenAI images endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	size   string
}

func NewOpenAIGenerator(cfg *config.ImageGenConfig) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(strings.TrimPrefix(cfg.Key, "Bearer "))
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		size:   cfg.Size,
	}
}

func (g *OpenAIGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         "Presentation slide illustration, no text: " + prompt,
		Model:          g.model,
		Size:           g.size,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("create image: empty response")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	return data, nil
}
