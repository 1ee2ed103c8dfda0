// Package config loads the application configuration from defaults, a TOML
// file, dotenv files and the environment, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Provider names.
const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderHash      = "hash"
	ProviderMemory    = "memory"
	ProviderSQLite    = "sqlite"
	ProviderQdrant    = "qdrant"
)

// Duration is a time.Duration that reads and writes as "8s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the full application configuration.
type Config struct {
	Agent       AgentConfig       `toml:"agent"`
	Oracle      OracleConfig      `toml:"oracle"`
	Tools       ToolsConfig       `toml:"tools"`
	Ingest      IngestConfig      `toml:"ingest"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Memory      MemoryConfig      `toml:"memory"`
	Log         LogConfig         `toml:"log"`

	// Secrets come from the environment only and are never saved.
	Secrets Secrets `toml:"-"`
}

type AgentConfig struct {
	MaxIterations  int      `toml:"max_iterations"`
	QueryTimeout   Duration `toml:"query_timeout"`
	HistoryTurns   int      `toml:"history_turns"`
	MemoryCapacity int      `toml:"memory_capacity"`
	TopK           int      `toml:"top_k"`
	AutoRetrieve   bool     `toml:"auto_retrieve"`
}

type OracleConfig struct {
	Provider        string   `toml:"provider"`
	Model           string   `toml:"model"`
	Temperature     float64  `toml:"temperature"`
	MaxTokens       int      `toml:"max_tokens"`
	Timeout         Duration `toml:"timeout"`
	BaseURL         string   `toml:"base_url,omitempty"`
	AzureEndpoint   string   `toml:"azure_endpoint,omitempty"`
	AzureAPIVersion string   `toml:"azure_api_version,omitempty"`
}

type ToolsConfig struct {
	Timeout       Duration `toml:"timeout"`
	RatePerSecond float64  `toml:"rate_per_second"`
	Burst         int      `toml:"burst"`
}

type IngestConfig struct {
	ChunkSize      int      `toml:"chunk_size"`
	Overlap        int      `toml:"overlap"`
	OCRWorkers     int      `toml:"ocr_workers"`
	OCRTimeout     Duration `toml:"ocr_timeout"`
	MinPageChars   int      `toml:"min_page_chars"`
	MaxOCRPages    int      `toml:"max_ocr_pages"`
	MaxImagePixels int      `toml:"max_image_pixels"`
	DPI            int      `toml:"dpi"`
	TesseractPath  string   `toml:"tesseract_path"`
	PdftoppmPath   string   `toml:"pdftoppm_path"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	OllamaHost string `toml:"ollama_host,omitempty"`
}

type VectorStoreConfig struct {
	Provider   string `toml:"provider"`
	Path       string `toml:"path"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Collection string `toml:"collection"`
}

type MemoryConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Secrets holds credentials read from the environment.
type Secrets struct {
	OpenAIAPIKey        string
	AzureOpenAIKey      string
	AnthropicAPIKey     string
	WeatherstackKey     string
	CoinMarketCapKey    string
	NumVerifyKey        string
	AmadeusClientID     string
	AmadeusClientSecret string
}

// StateDir returns the directory holding the config file and local data.
func StateDir() (string, error) {
	if v := os.Getenv("SMARTINFO_HOME"); v != "" {
		return v, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "smartinfo"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Default returns the built-in configuration.
func Default() Config {
	dir, err := StateDir()
	if err != nil {
		dir = ".smartinfo"
	}

	return Config{
		Agent: AgentConfig{
			MaxIterations:  5,
			QueryTimeout:   Duration{2 * time.Minute},
			HistoryTurns:   10,
			MemoryCapacity: 100,
			TopK:           5,
		},
		Oracle: OracleConfig{
			Provider:    ProviderAuto,
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   800,
			Timeout:     Duration{60 * time.Second},
		},
		Tools: ToolsConfig{
			Timeout:       Duration{15 * time.Second},
			RatePerSecond: 5,
			Burst:         2,
		},
		Ingest: IngestConfig{
			ChunkSize:      1000,
			Overlap:        200,
			OCRWorkers:     2,
			OCRTimeout:     Duration{8 * time.Second},
			MinPageChars:   20,
			MaxImagePixels: 3_000_000,
			DPI:            150,
			TesseractPath:  "tesseract",
			PdftoppmPath:   "pdftoppm",
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderAuto,
		},
		VectorStore: VectorStoreConfig{
			Provider:   ProviderSQLite,
			Path:       filepath.Join(dir, "index.db"),
			Host:       "localhost",
			Port:       6334,
			Collection: "smartinfo",
		},
		Memory: MemoryConfig{
			Backend: ProviderSQLite,
			Path:    filepath.Join(dir, "memory.db"),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load builds the effective configuration. An empty path uses DefaultPath;
// a missing file is not an error.
func Load(path string) (Config, error) {
	if err := loadDotEnvPrecedence(); err != nil {
		return Config{}, err
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	cfg := Default()
	if err := mergeFile(&cfg, path); err != nil {
		return Config{}, err
	}
	mergeEnv(&cfg)
	cfg.resolve()

	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return nil
}

// Save writes cfg to path as TOML. Secrets are not written.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// resolve replaces "auto" providers with a concrete choice based on the
// credentials present.
func (c *Config) resolve() {
	if c.Oracle.Provider == ProviderAuto || c.Oracle.Provider == "" {
		switch {
		case c.Oracle.AzureEndpoint != "":
			c.Oracle.Provider = ProviderAzure
		case c.Secrets.OpenAIAPIKey == "" && c.Secrets.AnthropicAPIKey != "":
			c.Oracle.Provider = ProviderAnthropic
		default:
			c.Oracle.Provider = ProviderOpenAI
		}
	}
	if c.Oracle.Provider == ProviderAnthropic && c.Oracle.Model == Default().Oracle.Model {
		c.Oracle.Model = "claude-3-5-haiku-latest"
	}

	if c.Embedding.Provider == ProviderAuto || c.Embedding.Provider == "" {
		switch {
		case c.Oracle.AzureEndpoint != "" && c.Embedding.Model != "":
			c.Embedding.Provider = ProviderAzure
		case c.Secrets.OpenAIAPIKey != "":
			c.Embedding.Provider = ProviderOpenAI
		default:
			c.Embedding.Provider = ProviderHash
		}
	}
	if c.Embedding.Provider == ProviderOpenAI && c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Provider == ProviderOllama && c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
}

// OracleAPIKey returns the key matching the oracle provider.
func (c Config) OracleAPIKey() string {
	switch c.Oracle.Provider {
	case ProviderAzure:
		return c.Secrets.AzureOpenAIKey
	case ProviderAnthropic:
		return c.Secrets.AnthropicAPIKey
	default:
		return c.Secrets.OpenAIAPIKey
	}
}
