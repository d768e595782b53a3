package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	SearchTavily = "tavily"
	SearchGoogle = "google"

	DriverPG = "pgdriver"
	DriverPQ = "pq"
)

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	CLIP     CLIPConfig     `yaml:"clip"`
	Search   SearchConfig   `yaml:"search"`
	ImageGen ImageGenConfig `yaml:"image_gen"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	RAG      RAGConfig      `yaml:"rag"`
	Paths    PathsConfig    `yaml:"paths"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
}

// LLMConfig describes one langchaingo backed model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type CLIPConfig struct {
	URL     string        `yaml:"url"`
	Key     string        `yaml:"key"`
	Timeout time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	TavilyKey  string `yaml:"tavily_key"`
	GoogleKey  string `yaml:"google_key"`
	GoogleCX   string `yaml:"google_cx"`
	MaxResults int    `yaml:"max_results"`
}

type ImageGenConfig struct {
	Enabled bool   `yaml:"enabled"`
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Size    string `yaml:"size"`
}

type PipelineConfig struct {
	MinChunkSize        int           `yaml:"min_chunk_size"`
	MaxChunkSize        int           `yaml:"max_chunk_size"`
	MinSlides           int           `yaml:"min_slides"`
	MaxSlides           int           `yaml:"max_slides"`
	ConfidenceThreshold float32       `yaml:"confidence_threshold"`
	MaxDownloadAttempts int           `yaml:"max_download_attempts"`
	Workers             int           `yaml:"workers"`
	CallTimeout         time.Duration `yaml:"call_timeout"`
	DownloadTimeout     time.Duration `yaml:"download_timeout"`
	Retries             int           `yaml:"retries"`
	DefaultLayout       int           `yaml:"default_layout"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type PathsConfig struct {
	Images      string `yaml:"images"`
	Outputs     string `yaml:"outputs"`
	Uploads     string `yaml:"uploads"`
	Checkpoints string `yaml:"checkpoints"`
	Template    string `yaml:"template"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default filled and no file behind it.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every zero value.
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.4
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1000
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = c.LLM.Provider
	}
	if c.CLIP.Timeout == 0 {
		c.CLIP.Timeout = 30 * time.Second
	}
	if c.Search.Provider == "" {
		c.Search.Provider = SearchTavily
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 5
	}
	if c.ImageGen.Model == "" {
		c.ImageGen.Model = "dall-e-3"
	}
	if c.ImageGen.Size == "" {
		c.ImageGen.Size = "1024x1024"
	}

	p := &c.Pipeline
	if p.MinChunkSize == 0 {
		p.MinChunkSize = 1000
	}
	if p.MaxChunkSize == 0 {
		p.MaxChunkSize = 5000
	}
	if p.MinSlides == 0 {
		p.MinSlides = 7
	}
	if p.MaxSlides == 0 {
		p.MaxSlides = 15
	}
	if p.ConfidenceThreshold == 0 {
		p.ConfidenceThreshold = 0.30
	}
	if p.MaxDownloadAttempts == 0 {
		p.MaxDownloadAttempts = 5
	}
	if p.Workers == 0 {
		p.Workers = 4
	}
	if p.CallTimeout == 0 {
		p.CallTimeout = 60 * time.Second
	}
	if p.DownloadTimeout == 0 {
		p.DownloadTimeout = 20 * time.Second
	}
	if p.Retries == 0 {
		p.Retries = 3
	}

	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 200
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 1
	}

	if c.Paths.Images == "" {
		c.Paths.Images = "./images"
	}
	if c.Paths.Outputs == "" {
		c.Paths.Outputs = "./outputs"
	}
	if c.Paths.Uploads == "" {
		c.Paths.Uploads = "./uploads"
	}
	if c.Paths.Checkpoints == "" {
		c.Paths.Checkpoints = "./checkpoints"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPG
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
}

// secrets from the environment win over empty file values
func (c *Config) applyEnv() {
	setIfEmpty(&c.LLM.Key, "OPENAI_API_KEY")
	setIfEmpty(&c.EmbedLLM.Key, "OPENAI_API_KEY")
	setIfEmpty(&c.ImageGen.Key, "OPENAI_API_KEY")
	setIfEmpty(&c.CLIP.Key, "CLIP_API_KEY")
	setIfEmpty(&c.Search.TavilyKey, "TAVILY_API_KEY")
	setIfEmpty(&c.Search.GoogleKey, "GOOGLE_CSE_KEY")
	setIfEmpty(&c.Search.GoogleCX, "GOOGLE_CSE_CX")
	setIfEmpty(&c.Database.DSN, "DATABASE_DSN")
}

func setIfEmpty(field *string, key string) {
	if *field != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*field = value
	}
}
