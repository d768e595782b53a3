package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"deckgen/internal/config"

	"github.com/rs/zerolog/log"
)

// ImageEmbedder maps images and captions into one shared vector space.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

var ErrEmptyEmbedding = errors.New("empty embedding")

// CLIPClient talks to a CLIP inference endpoint that accepts Hugging Face style
// {"inputs": ...} bodies and answers with a vector or a batch of vectors.
type CLIPClient struct {
	url        string
	key        string
	httpClient *http.Client
}

func NewCLIPClient(cfg *config.CLIPConfig) *CLIPClient {
	return &CLIPClient{
		url:        cfg.URL,
		key:        cfg.Key,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient replaces the underlying http client.
func (c *CLIPClient) WithHTTPClient(h *http.Client) *CLIPClient {
	c.httpClient = h
	return c
}

type clipInputs struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

func (c *CLIPClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, clipInputs{Text: text})
}

func (c *CLIPClient) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.embed(ctx, clipInputs{Image: base64.StdEncoding.EncodeToString(data)})
}

func (c *CLIPClient) embed(ctx context.Context, inputs clipInputs) ([]float32, error) {
	body, err := json.Marshal(map[string]clipInputs{"inputs": inputs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(c.key, "Bearer "))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clip request failed: %d, %s", resp.StatusCode, string(payload))
	}
	return decodeVector(payload)
}

// decodeVector accepts [f, ...] or [[f, ...], ...] and returns the first vector
func decodeVector(payload []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(payload, &flat); err == nil {
		if len(flat) == 0 {
			return nil, ErrEmptyEmbedding
		}
		return flat, nil
	}

	var batch [][]float32
	if err := json.Unmarshal(payload, &batch); err != nil {
		log.Debug().Str("payload", string(payload)).Msg("Unexpected clip response")
		return nil, fmt.Errorf("decode clip response: %w", err)
	}
	if len(batch) == 0 || len(batch[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return batch[0], nil
}
