package llmservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deckgen/internal/config"
	"deckgen/internal/helper"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client is the typed generation contract used by every pipeline stage.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

var ErrEmptyResponse = errors.New("llm returned no choices")

// LangChainClient calls a langchaingo model with a per-call timeout and bounded retries.
type LangChainClient struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
	timeout     time.Duration
	attempts    int
}

// NewModel builds the langchaingo model for the configured provider.
func NewModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	switch llmConfig.Provider {
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		return ollama.New(opts...)
	case config.ProviderOpenAI, "":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llmConfig.Provider)
	}
}

func NewClient(llmConfig *config.LLMConfig, timeout time.Duration, retries int) (*LangChainClient, error) {
	llm, err := NewModel(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}
	return NewWithModel(llm, llmConfig, timeout, retries), nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(llm llms.Model, llmConfig *config.LLMConfig, timeout time.Duration, retries int) *LangChainClient {
	if retries < 1 {
		retries = 1
	}
	return &LangChainClient{
		llm:         llm,
		temperature: llmConfig.Temperature,
		maxTokens:   llmConfig.MaxTokens,
		timeout:     timeout,
		attempts:    retries,
	}
}

func (c *LangChainClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := c.generateContent(ctx, messages)
		if err == nil {
			return content, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", c.attempts).Msg("LLM call failed")
	}
	return "", fmt.Errorf("llm call failed after %d attempts: %w", c.attempts, lastErr)
}

func (c *LangChainClient) generateContent(ctx context.Context, messages []llms.MessageContent) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var opts []llms.CallOption
	if c.temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.temperature))
	}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	res, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}

// CompleteJSON runs one completion and decodes the cleaned answer into out.
func CompleteJSON(ctx context.Context, c Client, system, prompt string, out interface{}) error {
	raw, err := c.Complete(ctx, system, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(helper.CleanJSON(raw)), out); err != nil {
		log.Debug().Str("response", raw).Msg("Unparseable model answer")
		return fmt.Errorf("decode model answer: %w", err)
	}
	return nil
}
