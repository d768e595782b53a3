package webimage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"deckgen/internal/config"
)

const (
	tavilyBaseURL = "https://api.tavily.com"
	googleBaseURL = "https://www.googleapis.com/customsearch/v1"
)

// Searcher returns ranked candidate image URLs for a caption.
type Searcher interface {
	SearchImages(ctx context.Context, query string) ([]string, error)
}

// NewSearcher builds the configured web search backend.
func NewSearcher(cfg *config.SearchConfig, httpClient *http.Client) (Searcher, error) {
	switch cfg.Provider {
	case config.SearchTavily, "":
		if cfg.TavilyKey == "" {
			return nil, fmt.Errorf("tavily api key is required")
		}
		return &TavilySearcher{BaseURL: cfg.BaseURL, Key: cfg.TavilyKey, MaxResults: cfg.MaxResults, HTTPClient: httpClient}, nil
	case config.SearchGoogle:
		if cfg.GoogleKey == "" || cfg.GoogleCX == "" {
			return nil, fmt.Errorf("google custom search key and cx are required")
		}
		return &GoogleSearcher{BaseURL: cfg.BaseURL, Key: cfg.GoogleKey, CX: cfg.GoogleCX, MaxResults: cfg.MaxResults, HTTPClient: httpClient}, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

// TavilySearcher queries the Tavily search API with include_images.
type TavilySearcher struct {
	BaseURL    string
	Key        string
	MaxResults int
	HTTPClient *http.Client
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	IncludeImages bool   `json:"include_images"`
	MaxResults    int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	// entries are plain URLs or {"url": ..., "description": ...} objects
	Images []json.RawMessage `json:"images"`
}

func (s *TavilySearcher) SearchImages(ctx context.Context, query string) ([]string, error) {
	body, err := json.Marshal(tavilyRequest{APIKey: s.Key, Query: query, IncludeImages: true, MaxResults: s.MaxResults})
	if err != nil {
		return nil, err
	}
	base := s.BaseURL
	if base == "" {
		base = tavilyBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res tavilyResponse
	if err := doJSON(client(s.HTTPClient), req, &res); err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	var urls []string
	for _, raw := range res.Images {
		var u string
		if err := json.Unmarshal(raw, &u); err == nil {
			urls = appendURL(urls, u)
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			urls = appendURL(urls, obj.URL)
		}
	}
	return urls, nil
}

// GoogleSearcher queries the Custom Search JSON API with searchType=image.
type GoogleSearcher struct {
	BaseURL    string
	Key        string
	CX         string
	MaxResults int
	HTTPClient *http.Client
}

type googleResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

func (s *GoogleSearcher) SearchImages(ctx context.Context, query string) ([]string, error) {
	base := s.BaseURL
	if base == "" {
		base = googleBaseURL
	}
	params := url.Values{}
	params.Set("key", s.Key)
	params.Set("cx", s.CX)
	params.Set("q", query)
	params.Set("searchType", "image")
	if s.MaxResults > 0 {
		// the API caps num at 10
		params.Set("num", strconv.Itoa(min(s.MaxResults, 10)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var res googleResponse
	if err := doJSON(client(s.HTTPClient), req, &res); err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}
	var urls []string
	for _, item := range res.Items {
		urls = appendURL(urls, item.Link)
	}
	return urls, nil
}

func doJSON(httpClient *http.Client, req *http.Request, out interface{}) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request failed: %d, %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func appendURL(urls []string, u string) []string {
	u = strings.TrimSpace(u)
	if u == "" {
		return urls
	}
	for _, existing := range urls {
		if existing == u {
			return urls
		}
	}
	return append(urls, u)
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
