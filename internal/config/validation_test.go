package config

import (
	"errors"
	"testing"
	"time"
)

// validBaseConfig returns a Config with all required fields set.
func validBaseConfig() *Config {
	return &Config{
		AppName: DefaultAppName,
		Models: map[string]ModelConfig{
			"gemini": {Model: "googleai/gemini-2.5-flash"},
			"openai": {Model: "openai/gpt-4o"},
		},
		DefaultModel:       "gemini",
		MaxTurns:           5,
		ChunkSize:          DefaultChunkSize,
		ChunkOverlap:       DefaultChunkOverlap,
		FetchTimeout:       DefaultFetchTimeout,
		IngestWorkers:      4,
		IngestQueueLen:     64,
		EmbedderModel:      DefaultEmbedderModel,
		EmbeddingDimension: DefaultEmbeddingDimension,
		RetrievalTopK:      DefaultRetrievalTopK,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "assistant",
		PostgresPassword:   "test_password",
		PostgresDBName:     "assistant",
		PostgresSSLMode:    "disable",
	}
}

func setAPIKey(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-api-key")
}

func TestValidateSuccess(t *testing.T) {
	setAPIKey(t)

	cfg := validBaseConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with valid config: %v", err)
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() error = %v, want ErrConfigNil", err)
	}
}

// TestValidateMissingAPIKey tests that a missing GEMINI_API_KEY is rejected.
func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validBaseConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("error should be ErrMissingAPIKey, got: %v", err)
	}
}

// TestValidateModels tests model registry validation.
func TestValidateModels(t *testing.T) {
	setAPIKey(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty registry", mutate: func(c *Config) { c.Models = nil }},
		{name: "default not registered", mutate: func(c *Config) { c.DefaultModel = "claude" }},
		{name: "blank model name", mutate: func(c *Config) {
			c.Models["gemini"] = ModelConfig{Model: "  "}
		}},
		{name: "zero max turns", mutate: func(c *Config) { c.MaxTurns = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidModel) {
				t.Errorf("error should be ErrInvalidModel, got: %v", err)
			}
		})
	}
}

// TestValidateChunking tests chunk size and overlap validation.
func TestValidateChunking(t *testing.T) {
	setAPIKey(t)

	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "valid defaults", size: 1000, overlap: 200},
		{name: "valid zero overlap", size: 100, overlap: 0},
		{name: "valid overlap just under size", size: 100, overlap: 99},
		{name: "invalid zero size", size: 0, overlap: 0, wantErr: true},
		{name: "invalid negative overlap", size: 100, overlap: -1, wantErr: true},
		{name: "invalid overlap equals size", size: 100, overlap: 100, wantErr: true},
		{name: "invalid overlap exceeds size", size: 100, overlap: 150, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.ChunkSize = tt.size
			cfg.ChunkOverlap = tt.overlap

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for size=%d overlap=%d, got nil", tt.size, tt.overlap)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for size=%d overlap=%d: %v", tt.size, tt.overlap, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidChunking) {
				t.Errorf("error should be ErrInvalidChunking, got: %v", err)
			}
		})
	}
}

func TestValidateFetchTimeout(t *testing.T) {
	setAPIKey(t)

	cfg := validBaseConfig()
	cfg.FetchTimeout = -time.Second

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidChunking) {
		t.Errorf("Validate() error = %v, want ErrInvalidChunking", err)
	}
}

// TestValidateWorkers tests ingest worker pool validation.
func TestValidateWorkers(t *testing.T) {
	setAPIKey(t)

	tests := []struct {
		name     string
		workers  int
		queueLen int
		wantErr  bool
	}{
		{name: "valid", workers: 4, queueLen: 64},
		{name: "valid single worker", workers: 1, queueLen: 1},
		{name: "invalid zero workers", workers: 0, queueLen: 64, wantErr: true},
		{name: "invalid zero queue", workers: 4, queueLen: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.IngestWorkers = tt.workers
			cfg.IngestQueueLen = tt.queueLen

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for workers=%d queue=%d, got nil", tt.workers, tt.queueLen)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidWorkers) {
				t.Errorf("error should be ErrInvalidWorkers, got: %v", err)
			}
		})
	}
}

func TestValidateEmbedderModel(t *testing.T) {
	setAPIKey(t)

	cfg := validBaseConfig()
	cfg.EmbedderModel = ""

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidEmbedderModel) {
		t.Errorf("Validate() error = %v, want ErrInvalidEmbedderModel", err)
	}
}

// TestValidateEmbeddingDimension tests dimension range validation.
func TestValidateEmbeddingDimension(t *testing.T) {
	setAPIKey(t)

	tests := []struct {
		name    string
		dim     int
		wantErr bool
	}{
		{name: "valid default", dim: 768},
		{name: "valid min", dim: 1},
		{name: "valid max", dim: 3072},
		{name: "invalid zero", dim: 0, wantErr: true},
		{name: "invalid too high", dim: 3073, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.EmbeddingDimension = tt.dim

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for dimension %d, got nil", tt.dim)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for dimension %d: %v", tt.dim, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidEmbeddingDimension) {
				t.Errorf("error should be ErrInvalidEmbeddingDimension, got: %v", err)
			}
		})
	}
}

// TestValidateRetrievalTopK tests top-K range validation.
func TestValidateRetrievalTopK(t *testing.T) {
	setAPIKey(t)

	tests := []struct {
		name    string
		topK    int
		wantErr bool
	}{
		{name: "valid default", topK: 6},
		{name: "valid min", topK: 1},
		{name: "valid max", topK: 100},
		{name: "invalid zero", topK: 0, wantErr: true},
		{name: "invalid negative", topK: -1, wantErr: true},
		{name: "invalid too high", topK: 101, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.RetrievalTopK = tt.topK

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for top-K %d, got nil", tt.topK)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for top-K %d: %v", tt.topK, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidRetrievalTopK) {
				t.Errorf("error should be ErrInvalidRetrievalTopK, got: %v", err)
			}
		})
	}
}

func TestValidatePostgresHost(t *testing.T) {
	setAPIKey(t)

	cfg := validBaseConfig()
	cfg.PostgresHost = ""

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidPostgresHost) {
		t.Errorf("Validate() error = %v, want ErrInvalidPostgresHost", err)
	}
}

// TestValidatePostgresPort tests PostgreSQL port validation.
func TestValidatePostgresPort(t *testing.T) {
	setAPIKey(t)

	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{name: "valid min", port: 1},
		{name: "valid standard", port: 5432},
		{name: "valid max", port: 65535},
		{name: "invalid zero", port: 0, wantErr: true},
		{name: "invalid negative", port: -1, wantErr: true},
		{name: "invalid too high", port: 65536, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.PostgresPort = tt.port

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for port %d, got nil", tt.port)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for port %d: %v", tt.port, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidPostgresPort) {
				t.Errorf("error should be ErrInvalidPostgresPort, got: %v", err)
			}
		})
	}
}

func TestValidatePostgresDBName(t *testing.T) {
	setAPIKey(t)

	cfg := validBaseConfig()
	cfg.PostgresDBName = "  "

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidPostgresDBName) {
		t.Errorf("Validate() error = %v, want ErrInvalidPostgresDBName", err)
	}
}

// BenchmarkValidate benchmarks configuration validation.
func BenchmarkValidate(b *testing.B) {
	b.Setenv("GEMINI_API_KEY", "test-key")

	cfg := validBaseConfig()
	if err := cfg.Validate(); err != nil {
		b.Fatalf("Validate() unexpected error: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		_ = cfg.Validate()
	}
}
