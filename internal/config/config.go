package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"resume-rag/internal/models"
	"resume-rag/internal/retriever"
)

const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultInferenceModel = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-large"
	DefaultBucket         = "ragsd-resume-bucket"
	DefaultIndexPath      = "faiss_indexes/cv_index_text-embedding-3-large"
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 7860
)

// embedding model output sizes
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Key         string  `yaml:"key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Dimensions  int     `yaml:"dimensions"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// Timeout returns the per call deadline.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	IndexPath       string `yaml:"index_path"`
	LocalDir        string `yaml:"local_dir"`
	CredentialsJSON string `yaml:"-"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
}

type RAGConfig struct {
	K             int     `yaml:"k"`
	FetchK        int     `yaml:"fetch_k"`
	Diversity     float64 `yaml:"diversity"`
	EncryptionKey string  `yaml:"encryption_key"`
}

type ServerConfig struct {
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	LLM      LLMConfig     `yaml:"llm"`
	EmbedLLM LLMConfig     `yaml:"embed_llm"`
	Storage  StorageConfig `yaml:"storage"`
	RAG      RAGConfig     `yaml:"rag"`
	Server   ServerConfig  `yaml:"server"`
	Log      LogConfig     `yaml:"log"`
}

// LoadConfig reads the YAML file at path over the defaults (a missing file
// yields defaults) and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDerived(cfg)
	return cfg, nil
}

// Validate reports configuration that must stop the process before it serves.
func (c *Config) Validate() error {
	for _, llm := range []LLMConfig{c.LLM, c.EmbedLLM} {
		switch llm.Provider {
		case ProviderOpenAI:
			if llm.Key == "" {
				return models.ErrMissingAPIKey
			}
		case ProviderOllama:
		default:
			return fmt.Errorf("%w: unknown provider %q", models.ErrInvalidInput, llm.Provider)
		}
	}
	if c.RAG.K <= 0 || c.RAG.FetchK <= 0 {
		return fmt.Errorf("%w: rag.k and rag.fetch_k must be positive", models.ErrInvalidInput)
	}
	if c.RAG.Diversity < 0 || c.RAG.Diversity > 1 {
		return fmt.Errorf("%w: rag.diversity must be within [0,1], got %v", models.ErrInvalidInput, c.RAG.Diversity)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", models.ErrInvalidInput, c.Server.Port)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func applyEnv(cfg *Config) error {
	setString(&cfg.LLM.Key, "OPENAI_API_KEY")
	setString(&cfg.LLM.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.EmbedLLM.Model, "EMBEDDING_MODEL")
	setString(&cfg.Storage.Bucket, "GCS_BUCKET_NAME")
	setString(&cfg.Storage.IndexPath, "GCS_INDEX_PATH")
	setString(&cfg.Storage.LocalDir, "INDEX_DIR")
	setString(&cfg.Storage.CredentialsJSON, "GOOGLE_CREDENTIALS_JSON")
	setString(&cfg.RAG.EncryptionKey, "RAG_ENCRYPTION_KEY")
	setString(&cfg.Server.Host, "HOST")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q is not a number", models.ErrInvalidInput, v)
		}
		cfg.Server.Port = port
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			BaseURL:     DefaultBaseURL,
			Model:       DefaultInferenceModel,
			Temperature: 0.1,
			MaxTokens:   2000,
			TimeoutSecs: 60,
		},
		EmbedLLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       DefaultEmbeddingModel,
			TimeoutSecs: 15,
		},
		Storage: StorageConfig{
			Bucket:      DefaultBucket,
			IndexPath:   DefaultIndexPath,
			LocalDir:    filepath.Join(os.TempDir(), "cv_index"),
			TimeoutSecs: 120,
		},
		RAG:    ragDefaults(retriever.DefaultOptions()),
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort, RateLimit: 2, Burst: 5},
		Log:    LogConfig{Level: "info"},
	}
}

func ragDefaults(opts retriever.Options) RAGConfig {
	return RAGConfig{K: opts.K, FetchK: opts.FetchK, Diversity: opts.Diversity}
}

// applyDerived fills values that depend on other settings.
func applyDerived(cfg *Config) {
	// the embedder shares the completion credentials unless told otherwise
	if cfg.EmbedLLM.Key == "" {
		cfg.EmbedLLM.Key = cfg.LLM.Key
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == cfg.LLM.Provider {
		cfg.EmbedLLM.BaseURL = cfg.LLM.BaseURL
	}
	for _, llm := range []*LLMConfig{&cfg.LLM, &cfg.EmbedLLM} {
		if llm.Provider == ProviderOllama && (llm.BaseURL == "" || llm.BaseURL == DefaultBaseURL) {
			llm.BaseURL = DefaultOllamaURL
		}
	}
	if cfg.EmbedLLM.Dimensions == 0 {
		cfg.EmbedLLM.Dimensions = modelDimensions[cfg.EmbedLLM.Model]
	}
}
