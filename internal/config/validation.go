package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks the configuration for consistency. It is called by Load
// after all sources are merged, so a successful Load implies a valid Config.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is not set", ErrMissingAPIKey)
	}

	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateIngestion(); err != nil {
		return err
	}
	if err := c.validateRAG(); err != nil {
		return err
	}
	return c.validateStorage()
}

func (c *Config) validateModels() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("%w: model registry is empty", ErrInvalidModel)
	}
	if _, ok := c.Models[c.DefaultModel]; !ok {
		return fmt.Errorf("%w: default_model %q is not in the registry", ErrInvalidModel, c.DefaultModel)
	}
	for key, mc := range c.Models {
		if strings.TrimSpace(mc.Model) == "" {
			return fmt.Errorf("%w: registry entry %q has no model name", ErrInvalidModel, key)
		}
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("%w: max_turns must be at least 1, got %d", ErrInvalidModel, c.MaxTurns)
	}
	return nil
}

func (c *Config) validateIngestion() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch_timeout must be positive, got %s", ErrInvalidChunking, c.FetchTimeout)
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("%w: ingest_workers must be at least 1, got %d", ErrInvalidWorkers, c.IngestWorkers)
	}
	if c.IngestQueueLen < 1 {
		return fmt.Errorf("%w: ingest_queue_len must be at least 1, got %d", ErrInvalidWorkers, c.IngestQueueLen)
	}
	return nil
}

func (c *Config) validateRAG() error {
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidEmbedderModel)
	}
	if c.EmbeddingDimension < 1 || c.EmbeddingDimension > 3072 {
		return fmt.Errorf("%w: must be between 1 and 3072, got %d",
			ErrInvalidEmbeddingDimension, c.EmbeddingDimension)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d",
			ErrInvalidRetrievalTopK, c.RetrievalTopK)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	return nil
}
