package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"evidence-rag/internal/models"
)

const (
	ProviderLocal    = "local"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"

	DriverChromem  = "chromem"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// a negative max_retries, or none at all, selects the default
	defaultMaxRetries = 2

	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
	OpenAIAPIKeyEnv = "OPENAI_API_KEY"
)

type Config struct {
	Log       LogConfig      `yaml:"log"`
	Evidence  EvidenceConfig `yaml:"evidence"`
	Store     StoreConfig    `yaml:"store"`
	EmbedLLM  LLMConfig      `yaml:"embedding"`
	Inference LLMConfig      `yaml:"inference"`
	RAG       RAGConfig      `yaml:"rag"`
	Server    ServerConfig   `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type EvidenceConfig struct {
	Dir             string `yaml:"dir"`
	ExtendedFormats bool   `yaml:"extended_formats"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Table  string `yaml:"table"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

// LLMConfig describes either the embedding backend or the generation backend
type LLMConfig struct {
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Key        string        `yaml:"key"`
	Dimension  int           `yaml:"dimension"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type RAGConfig struct {
	TopK int `yaml:"top_k"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoadConfig reads the yaml file at path. A missing file yields the defaults.
// Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{Inference: LLMConfig{MaxRetries: -1}}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadEnv loads a .env file into the process environment. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Evidence.Dir == "" {
		cfg.Evidence.Dir = "./evidence"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverChromem
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = models.DefaultTableName
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderLocal
	}
	if cfg.EmbedLLM.Dimension == 0 {
		cfg.EmbedLLM.Dimension = 384
	}
	switch cfg.EmbedLLM.Provider {
	case ProviderOllama:
		if cfg.EmbedLLM.BaseURL == "" {
			cfg.EmbedLLM.BaseURL = "http://localhost:11434"
		}
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "all-minilm"
		}
	case ProviderOpenAI:
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "text-embedding-3-small"
		}
	}

	if cfg.Inference.Provider == "" {
		cfg.Inference.Provider = ProviderGoogleAI
	}
	if cfg.Inference.Model == "" {
		switch cfg.Inference.Provider {
		case ProviderOpenAI:
			cfg.Inference.Model = "gpt-4o-mini"
		case ProviderOllama:
			cfg.Inference.Model = "llama3.2"
		default:
			cfg.Inference.Model = "gemini-2.5-flash"
		}
	}
	if cfg.Inference.Provider == ProviderOllama && cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = "http://localhost:11434"
	}
	if cfg.Inference.Timeout == 0 {
		cfg.Inference.Timeout = 60 * time.Second
	}
	if cfg.Inference.MaxRetries < 0 {
		cfg.Inference.MaxRetries = defaultMaxRetries
	}

	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3000"
	}
}

func applyEnv(cfg *Config) {
	if cfg.Inference.Key == "" {
		if _, name := cfg.Credential(); name != "" {
			cfg.Inference.Key = os.Getenv(name)
		}
	}
	if cfg.EmbedLLM.Provider == ProviderOpenAI && cfg.EmbedLLM.Key == "" {
		cfg.EmbedLLM.Key = os.Getenv(OpenAIAPIKeyEnv)
	}
	if v := os.Getenv("EVIDENCE_RAG_EVIDENCE_DIR"); v != "" {
		cfg.Evidence.Dir = v
	}
	if v := os.Getenv("EVIDENCE_RAG_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("EVIDENCE_RAG_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("EVIDENCE_RAG_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("EVIDENCE_RAG_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			cfg.RAG.TopK = k
		}
	}
	if v := os.Getenv("EVIDENCE_RAG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Credential returns the generation API key together with the environment
// variable it is read from. Providers without a key return an empty name.
func (c *Config) Credential() (key, envName string) {
	switch c.Inference.Provider {
	case ProviderGoogleAI:
		return c.Inference.Key, GoogleAPIKeyEnv
	case ProviderOpenAI:
		return c.Inference.Key, OpenAIAPIKeyEnv
	default:
		return c.Inference.Key, ""
	}
}

// HasCredential reports whether generation can be attempted at all
func (c *Config) HasCredential() bool {
	key, name := c.Credential()
	return name == "" || key != ""
}

// Validate checks the settings needed before any request is served
func (c *Config) Validate() error {
	if !c.HasCredential() {
		_, name := c.Credential()
		return fmt.Errorf("%w: %s not found in environment variables", models.ErrMissingCredential, name)
	}
	return c.ValidateStore()
}

func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case DriverChromem, DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	return nil
}
