// Package config loads the application configuration from a YAML file, a
// .env file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when RAG_CONFIG is not set.
const DefaultPath = "config.yaml"

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Strategy     string `yaml:"strategy"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Separator    string `yaml:"separator"`
}

// EmbedderConfig selects and configures the embedding model.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// APIKey resolves the key named by APIKeyEnv.
func (c EmbedderConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// VectorStoreConfig selects and configures the vector index.
type VectorStoreConfig struct {
	Type             string `yaml:"type"`
	Collection       string `yaml:"collection"`
	PersistDirectory string `yaml:"persist_directory"`
	URL              string `yaml:"url"`
	BatchSize        int    `yaml:"batch_size"`
}

// LLMConfig selects the answer generator. Disabled means extractive answers.
type LLMConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Type        string `yaml:"type"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// APIKey resolves the key named by APIKeyEnv.
func (c LLMConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	BatchConcurrency    int     `yaml:"batch_concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port  string `yaml:"port"`
	Watch bool   `yaml:"watch"`
}

// LogConfig configures the default slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir          string            `yaml:"data_dir"`
	PDFLicenseKeyEnv string            `yaml:"pdf_license_key_env"`
	Chunker          ChunkerConfig     `yaml:"chunker"`
	Embedder         EmbedderConfig    `yaml:"embedder"`
	VectorStore      VectorStoreConfig `yaml:"vector_store"`
	LLM              LLMConfig         `yaml:"llm"`
	Retrieval        RetrievalConfig   `yaml:"retrieval"`
	Server           ServerConfig      `yaml:"server"`
	Log              LogConfig         `yaml:"log"`
}

// PDFLicenseKey resolves the UniPDF key named by PDFLicenseKeyEnv.
func (c *AppConfig) PDFLicenseKey() string { return os.Getenv(c.PDFLicenseKeyEnv) }

// Load reads the config at path. A missing file yields the defaults. A .env
// file in the working directory and environment variables are applied on top,
// and the result is validated.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration: Ollama embeddings, a local
// Badger index and extractive answers.
func Default() *AppConfig {
	return &AppConfig{
		DataDir:          "data/raw",
		PDFLicenseKeyEnv: "UNIDOC_LICENSE_KEY",
		Chunker: ChunkerConfig{
			Strategy:     "paragraph",
			ChunkSize:    512,
			ChunkOverlap: 50,
			Separator:    "\n\n",
		},
		Embedder: EmbedderConfig{
			Type:        "ollama",
			BatchSize:   32,
			TimeoutSecs: 30,
		},
		VectorStore: VectorStoreConfig{
			Type:             "badger",
			Collection:       "engineering_docs",
			PersistDirectory: "data/vector_store",
			BatchSize:        100,
		},
		LLM: LLMConfig{
			Type:        "openai",
			TimeoutSecs: 60,
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			SimilarityThreshold: 0.7,
			BatchConcurrency:    1,
		},
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills provider-specific values that depend on other fields.
func applyDefaults(cfg *AppConfig) {
	if cfg.Chunker.Separator == "" {
		cfg.Chunker.Separator = "\n\n"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = defaultKeyEnv(cfg.Embedder.Type)
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = defaultKeyEnv(cfg.LLM.Type)
	}
	if cfg.PDFLicenseKeyEnv == "" {
		cfg.PDFLicenseKeyEnv = "UNIDOC_LICENSE_KEY"
	}
}

func defaultKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv("INDEX_PATH"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CHROMA_URL"); v != "" {
		cfg.VectorStore.URL = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		if cfg.Embedder.Type == "ollama" {
			cfg.Embedder.BaseURL = v
		}
		if cfg.LLM.Type == "ollama" {
			cfg.LLM.BaseURL = v
		}
	}
	if v := os.Getenv("RAG_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("RAG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RAG_LLM_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RAG_LLM_ENABLED %q: %w", v, err)
		}
		cfg.LLM.Enabled = enabled
	}
	return nil
}

// Validate checks the configuration for unknown types and inconsistent sizes.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Chunker.Strategy {
	case "paragraph", "recursive":
	default:
		errs = append(errs, fmt.Errorf("unknown chunker strategy %q", c.Chunker.Strategy))
	}
	if c.Chunker.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunker.chunk_size must be positive"))
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.chunk_overlap must be in [0, chunk_size)"))
	}

	switch c.Embedder.Type {
	case "ollama":
	case "openai", "gemini":
		if c.Embedder.APIKey() == "" {
			errs = append(errs, fmt.Errorf("embedder %s requires %s to be set", c.Embedder.Type, c.Embedder.APIKeyEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedder type %q", c.Embedder.Type))
	}
	if c.Embedder.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedder.batch_size must be positive"))
	}

	switch c.VectorStore.Type {
	case "chroma", "memory", "badger":
	default:
		errs = append(errs, fmt.Errorf("unknown vector store type %q", c.VectorStore.Type))
	}
	if strings.TrimSpace(c.VectorStore.Collection) == "" {
		errs = append(errs, fmt.Errorf("vector_store.collection is required"))
	}
	if c.VectorStore.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("vector_store.batch_size must be positive"))
	}

	if c.LLM.TimeoutSecs < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_secs must not be negative"))
	}
	if c.LLM.Enabled {
		switch c.LLM.Type {
		case "ollama":
		case "openai", "gemini":
			if c.LLM.APIKey() == "" {
				errs = append(errs, fmt.Errorf("llm %s requires %s to be set", c.LLM.Type, c.LLM.APIKeyEnv))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown llm type %q", c.LLM.Type))
		}
	}

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive"))
	}
	if c.Retrieval.SimilarityThreshold < -1 || c.Retrieval.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.similarity_threshold must be in [-1, 1]"))
	}
	if c.Retrieval.BatchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.batch_concurrency must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
