// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (DATABASE_URL, GEMINI_API_KEY, ...)
//  2. Config file (./config.yaml or ~/.support-assistant/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Sentinel errors for Go-idiomatic checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunking indicates an invalid chunk size / overlap pair.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDimension indicates an unsupported vector dimensionality.
	ErrInvalidEmbeddingDimension = errors.New("invalid embedding dimension")

	// ErrInvalidRetrievalTopK indicates the retrieval top-K is out of range.
	ErrInvalidRetrievalTopK = errors.New("invalid retrieval top-K")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidWorkers indicates an invalid ingest worker count.
	ErrInvalidWorkers = errors.New("invalid ingest worker count")

	// ErrInvalidModel indicates a model registry entry is malformed.
	ErrInvalidModel = errors.New("invalid model configuration")
)

const (
	// DefaultAppName keys sessions in the session store.
	DefaultAppName = "support-assistant"

	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation to 768 via OutputDimensionality; the document_chunks schema
	// uses 768 (see knowledge.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbeddingDimension matches the vector(768) column.
	DefaultEmbeddingDimension = 768

	// DefaultChunkSize and DefaultChunkOverlap are in characters.
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// DefaultRetrievalTopK is the number of chunks joined into context.
	DefaultRetrievalTopK = 6

	// DefaultFetchTimeout bounds the source document download.
	DefaultFetchTimeout = 30 * time.Second
)

// ModelConfig describes one named generation backend in the registry.
type ModelConfig struct {
	// Model is the fully qualified Genkit model name,
	// e.g. "googleai/gemini-2.5-flash" or "openai/gpt-4o".
	Model string `mapstructure:"model" json:"model"`
}

// Config stores application configuration.
// SECURITY: the PostgreSQL password is masked in MarshalJSON.
type Config struct {
	// AppName keys conversation sessions.
	AppName string `mapstructure:"app_name" json:"app_name"`

	// Generation backend registry, keyed by caller-facing model selector.
	// The registry is fixed at startup; unknown selectors fall back to
	// DefaultModel at request time.
	Models       map[string]ModelConfig `mapstructure:"models" json:"models"`
	DefaultModel string                 `mapstructure:"default_model" json:"default_model"`
	MaxTurns     int                    `mapstructure:"max_turns" json:"max_turns"`

	// Ingestion configuration
	ChunkSize      int           `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int           `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" json:"fetch_timeout"`
	IngestWorkers  int           `mapstructure:"ingest_workers" json:"ingest_workers"`
	IngestQueueLen int           `mapstructure:"ingest_queue_len" json:"ingest_queue_len"`

	// RAG configuration
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	RetrievalTopK      int    `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".support-assistant")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults apply
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL has highest priority for PostgreSQL settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("app_name", DefaultAppName)

	// Generation backends
	viper.SetDefault("models", map[string]ModelConfig{
		"gemini": {Model: "googleai/gemini-2.5-flash"},
		"openai": {Model: "openai/gpt-4o"},
	})
	viper.SetDefault("default_model", "gemini")
	viper.SetDefault("max_turns", 5)

	// Ingestion
	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("fetch_timeout", DefaultFetchTimeout)
	viper.SetDefault("ingest_workers", 4)
	viper.SetDefault("ingest_queue_len", 64)

	// RAG
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	viper.SetDefault("retrieval_top_k", DefaultRetrievalTopK)

	// PostgreSQL (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "assistant")
	viper.SetDefault("postgres_password", "assistant_dev_password")
	viper.SetDefault("postgres_db_name", "assistant")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds sensitive environment variables explicitly.
func bindEnvVariables() {
	_ = viper.BindEnv("postgres_password", "POSTGRES_PASSWORD")
	_ = viper.BindEnv("postgres_host", "POSTGRES_HOST")
	_ = viper.BindEnv("postgres_user", "POSTGRES_USER")
	_ = viper.BindEnv("postgres_db_name", "POSTGRES_DB")
}
